// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
)

// FakeSession is an in-memory test double for tasks.Session.
//
// Every call is appended to Calls as "read <id>", "add <id> <n>", "upload" or "close", so tests can assert
// ordering across a run.
type FakeSession struct {
	Playlists  map[string][]string
	ReadErrors map[string]error
	WriteErr   error
	UploadErr  error

	// WriteApplied is the number of tracks reported as applied when WriteErr is set.
	WriteApplied int

	Calls  []string
	Added  [][]string
	Closed bool
}

// NewFakeSession creates a FakeSession serving the given playlists.
func NewFakeSession(playlists map[string][]string) *FakeSession {
	return &FakeSession{Playlists: playlists, ReadErrors: map[string]error{}}
}

func (f *FakeSession) RetrieveTracksFromPlaylist(ctx context.Context, playlistID string) ([]string, error) {
	f.Calls = append(f.Calls, "read "+playlistID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.ReadErrors[playlistID]; err != nil {
		return nil, err
	}
	return append([]string{}, f.Playlists[playlistID]...), nil
}

func (f *FakeSession) AddTracksToPlaylist(_ context.Context, playlistID string, tracks []string) (int, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("add %s %d", playlistID, len(tracks)))
	if f.WriteErr != nil {
		applied := min(f.WriteApplied, len(tracks))
		f.Playlists[playlistID] = append(f.Playlists[playlistID], tracks[:applied]...)
		return applied, f.WriteErr
	}
	f.Added = append(f.Added, append([]string(nil), tracks...))
	f.Playlists[playlistID] = append(f.Playlists[playlistID], tracks...)
	return len(tracks), nil
}

func (f *FakeSession) UploadRefreshedCacheToken(context.Context) error {
	f.Calls = append(f.Calls, "upload")
	return f.UploadErr
}

func (f *FakeSession) Close() error {
	f.Calls = append(f.Calls, "close")
	f.Closed = true
	return nil
}

// Reads returns how many playlist reads were made.
func (f *FakeSession) Reads() int {
	n := 0
	for _, c := range f.Calls {
		if len(c) > 5 && c[:5] == "read " {
			n++
		}
	}
	return n
}

// MemoryRecorder collects run records in memory. It satisfies tasks.RunRecorder.
type MemoryRecorder struct {
	mu   sync.Mutex
	Runs []*models.Run
	Err  error
}

func (m *MemoryRecorder) RecordRun(run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Runs = append(m.Runs, run)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MemoryStore is a services.CacheStore keeping the mirrored cache in memory.
type MemoryStore struct {
	Object  []byte // nil when the remote object is absent
	Err     error
	Uploads int
}

func (m *MemoryStore) Exists(context.Context) (bool, error) {
	return m.Object != nil, m.Err
}

func (m *MemoryStore) Download(_ context.Context, path string) error {
	if m.Err != nil {
		return m.Err
	}
	return os.WriteFile(path, m.Object, 0600)
}

func (m *MemoryStore) Upload(_ context.Context, path string) error {
	if m.Err != nil {
		return m.Err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.Object = data
	m.Uploads++
	return nil
}
