package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
)

// fakePlaylistAPI serves playlists from memory, split into pages.
type fakePlaylistAPI struct {
	playlists map[string][][]string
	readErr   map[string]int // playlist id -> page index that fails
	writeErr  int            // 1-based AddTracks call that fails, 0 for none
	adds      [][]string
	events    *[]string
}

func (f *fakePlaylistAPI) Name() string { return "Fake" }

func (f *fakePlaylistAPI) page(playlistID string, index int) (*TrackPage, error) {
	if at, ok := f.readErr[playlistID]; ok && at == index {
		return nil, fmt.Errorf("page %d unavailable", index)
	}
	pages := f.playlists[playlistID]
	if len(pages) == 0 {
		return &TrackPage{}, nil
	}
	page := &TrackPage{TrackIDs: pages[index]}
	if index+1 < len(pages) {
		page.Next = fmt.Sprintf("%s?page=%d", playlistID, index+1)
	}
	return page, nil
}

func (f *fakePlaylistAPI) PlaylistTracks(_ context.Context, playlistID string) (*TrackPage, error) {
	f.record("read " + playlistID)
	return f.page(playlistID, 0)
}

func (f *fakePlaylistAPI) NextTracks(_ context.Context, page *TrackPage) (*TrackPage, error) {
	var id string
	var index int
	fmt.Sscanf(strings.Replace(page.Next, "?page=", " ", 1), "%s %d", &id, &index)
	f.record(fmt.Sprintf("read %s page %d", id, index))
	return f.page(id, index)
}

func (f *fakePlaylistAPI) AddTracks(_ context.Context, playlistID string, trackIDs []string) error {
	f.record(fmt.Sprintf("add %s %d", playlistID, len(trackIDs)))
	f.adds = append(f.adds, append([]string(nil), trackIDs...))
	if f.writeErr == len(f.adds) {
		return errors.New("rejected")
	}
	return nil
}

func (f *fakePlaylistAPI) record(event string) {
	if f.events != nil {
		*f.events = append(*f.events, event)
	}
}

// fakeCacheStore keeps the mirrored object in memory.
type fakeCacheStore struct {
	object    []byte
	existsErr error
	uploadErr error
	uploads   int
	closed    bool
	events    *[]string
}

func (f *fakeCacheStore) Exists(context.Context) (bool, error) {
	*f.events = append(*f.events, "exists")
	return f.object != nil, f.existsErr
}

func (f *fakeCacheStore) Download(_ context.Context, path string) error {
	*f.events = append(*f.events, "download")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, f.object, 0600)
}

func (f *fakeCacheStore) Upload(_ context.Context, path string) error {
	*f.events = append(*f.events, "upload")
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.object = data
	f.uploads++
	return nil
}

func (f *fakeCacheStore) Close() error {
	f.closed = true
	return nil
}

type sessionFixture struct {
	config *shared.Config
	api    *fakePlaylistAPI
	store  *fakeCacheStore
	events []string
	sleeps []time.Duration
}

func newSessionFixture(t *testing.T, cloud bool) *sessionFixture {
	t.Helper()
	config := shared.DefaultConfig()
	config.Environment.CloudMode = cloud
	config.Environment.CloudCacheDir = t.TempDir()
	config.Environment.LocalCacheDir = t.TempDir()

	f := &sessionFixture{config: config}
	f.api = &fakePlaylistAPI{playlists: map[string][][]string{}, events: &f.events}
	f.store = &fakeCacheStore{events: &f.events}
	return f
}

func (f *sessionFixture) opts() SessionOpts {
	return SessionOpts{
		Logger: shared.NewLogger(io.Discard),
		Store:  f.store,
		Connect: func(context.Context, *shared.Config, *log.Logger) (PlaylistAPI, error) {
			f.events = append(f.events, "connect")
			return f.api, nil
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		},
	}
}

func (f *sessionFixture) session(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), f.config, f.opts())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestNewSession(t *testing.T) {
	t.Run("cloud mode downloads cache before connecting", func(t *testing.T) {
		f := newSessionFixture(t, true)
		f.store.object = []byte(`{"access_token":"a"}`)

		s := f.session(t)

		if got := strings.Join(f.events, ","); got != "exists,download,connect" {
			t.Errorf("unexpected call order %s", got)
		}
		data, err := os.ReadFile(f.config.CachePath())
		if err != nil || string(data) != `{"access_token":"a"}` {
			t.Errorf("expected cache file at %s, got %q, %v", f.config.CachePath(), data, err)
		}

		s.Close()
		if !f.store.closed {
			t.Error("expected store to be closed")
		}
	})

	t.Run("cloud mode without object skips download", func(t *testing.T) {
		f := newSessionFixture(t, true)

		f.session(t)

		if got := strings.Join(f.events, ","); got != "exists,connect" {
			t.Errorf("unexpected call order %s", got)
		}
	})

	t.Run("local mode never touches storage", func(t *testing.T) {
		f := newSessionFixture(t, false)

		f.session(t)

		if got := strings.Join(f.events, ","); got != "connect" {
			t.Errorf("unexpected calls %s", got)
		}
	})

	t.Run("storage failure is an initialization error", func(t *testing.T) {
		f := newSessionFixture(t, true)
		f.store.existsErr = errors.New("bucket not found")

		_, err := NewSession(context.Background(), f.config, f.opts())
		if !errors.Is(err, shared.ErrInitialization) {
			t.Errorf("expected ErrInitialization, got %v", err)
		}
		for _, e := range f.events {
			if e == "connect" {
				t.Error("expected no authentication after storage failure")
			}
		}
		if !f.store.closed {
			t.Error("expected store to be closed")
		}
	})

	t.Run("connect failure is an authentication error", func(t *testing.T) {
		f := newSessionFixture(t, false)
		opts := f.opts()
		opts.Connect = func(context.Context, *shared.Config, *log.Logger) (PlaylistAPI, error) {
			return nil, shared.ErrNoCachedToken
		}

		_, err := NewSession(context.Background(), f.config, opts)
		if !errors.Is(err, shared.ErrAuthentication) || !errors.Is(err, shared.ErrNoCachedToken) {
			t.Errorf("expected ErrAuthentication wrapping ErrNoCachedToken, got %v", err)
		}
	})
}

func TestRetrieveTracksFromPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("follows every page in order", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.playlists["src"] = [][]string{ids("a", 100), ids("b", 100), ids("c", 37)}

		tracks, err := f.session(t).RetrieveTracksFromPlaylist(ctx, "src")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(tracks) != 237 {
			t.Fatalf("expected 237 tracks, got %d", len(tracks))
		}
		if tracks[0] != "a0" || tracks[100] != "b0" || tracks[236] != "c36" {
			t.Errorf("unexpected order: %s %s %s", tracks[0], tracks[100], tracks[236])
		}
		if len(f.sleeps) != 2 {
			t.Errorf("expected a sleep before each follow-up page, got %d", len(f.sleeps))
		}
		for _, d := range f.sleeps {
			if d != 500*time.Millisecond {
				t.Errorf("expected 500ms delay, got %v", d)
			}
		}
	})

	t.Run("single page does not sleep", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.playlists["src"] = [][]string{{"x", "y"}}

		tracks, err := f.session(t).RetrieveTracksFromPlaylist(ctx, "src")
		if err != nil || strings.Join(tracks, ",") != "x,y" {
			t.Errorf("expected x,y, got %v, %v", tracks, err)
		}
		if len(f.sleeps) != 0 {
			t.Errorf("expected no sleeps, got %d", len(f.sleeps))
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		f := newSessionFixture(t, false)

		tracks, err := f.session(t).RetrieveTracksFromPlaylist(ctx, "empty")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", tracks)
		}
	})

	t.Run("first page failure", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.readErr = map[string]int{"src": 0}

		_, err := f.session(t).RetrieveTracksFromPlaylist(ctx, "src")
		if !errors.Is(err, shared.ErrAPIRead) {
			t.Errorf("expected ErrAPIRead, got %v", err)
		}
	})

	t.Run("later page failure discards partial result", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.playlists["src"] = [][]string{ids("a", 100), ids("b", 10)}
		f.api.readErr = map[string]int{"src": 1}

		tracks, err := f.session(t).RetrieveTracksFromPlaylist(ctx, "src")
		if !errors.Is(err, shared.ErrAPIRead) {
			t.Errorf("expected ErrAPIRead, got %v", err)
		}
		if tracks != nil {
			t.Errorf("expected no partial tracks, got %d", len(tracks))
		}
	})

	t.Run("cancelled sleep", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.playlists["src"] = [][]string{{"a"}, {"b"}}
		opts := f.opts()
		opts.Sleep = shared.Sleep
		s, err := NewSession(ctx, f.config, opts)
		if err != nil {
			t.Fatal(err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := s.RetrieveTracksFromPlaylist(cancelled, "src"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestAddTracksToPlaylist(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks of 100 in order", func(t *testing.T) {
		f := newSessionFixture(t, false)
		tracks := ids("t", 250)

		applied, err := f.session(t).AddTracksToPlaylist(ctx, "dest", tracks)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if applied != 250 {
			t.Errorf("expected 250 applied, got %d", applied)
		}

		if len(f.api.adds) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(f.api.adds))
		}
		for i, want := range []int{100, 100, 50} {
			if len(f.api.adds[i]) != want {
				t.Errorf("call %d: expected %d tracks, got %d", i, want, len(f.api.adds[i]))
			}
		}

		var flat []string
		for _, batch := range f.api.adds {
			flat = append(flat, batch...)
		}
		if strings.Join(flat, ",") != strings.Join(tracks, ",") {
			t.Error("expected concatenated batches to equal input")
		}
		if len(f.sleeps) != 3 {
			t.Errorf("expected a sleep after each batch, got %d", len(f.sleeps))
		}
	})

	t.Run("exactly 100", func(t *testing.T) {
		f := newSessionFixture(t, false)

		if _, err := f.session(t).AddTracksToPlaylist(ctx, "dest", ids("t", 100)); err != nil {
			t.Fatal(err)
		}
		if len(f.api.adds) != 1 {
			t.Errorf("expected 1 call, got %d", len(f.api.adds))
		}
	})

	t.Run("nothing to add", func(t *testing.T) {
		f := newSessionFixture(t, false)

		if _, err := f.session(t).AddTracksToPlaylist(ctx, "dest", nil); err != nil {
			t.Fatal(err)
		}
		if len(f.api.adds) != 0 || len(f.sleeps) != 0 {
			t.Errorf("expected no calls, got %d adds and %d sleeps", len(f.api.adds), len(f.sleeps))
		}
	})

	t.Run("failed batch stops remaining batches", func(t *testing.T) {
		f := newSessionFixture(t, false)
		f.api.writeErr = 2

		applied, err := f.session(t).AddTracksToPlaylist(ctx, "dest", ids("t", 250))
		if !errors.Is(err, shared.ErrAPIWrite) {
			t.Fatalf("expected ErrAPIWrite, got %v", err)
		}
		if !strings.Contains(err.Error(), "101-200") {
			t.Errorf("expected failing batch range in error, got %v", err)
		}
		if len(f.api.adds) != 2 {
			t.Errorf("expected 2 attempted calls, got %d", len(f.api.adds))
		}
		if applied != 100 {
			t.Errorf("expected the first batch counted as applied, got %d", applied)
		}
	})

	sessionWithSleepErr := func(t *testing.T, f *sessionFixture, failAt int) *Session {
		t.Helper()
		opts := f.opts()
		opts.Sleep = func(context.Context, time.Duration) error {
			f.sleeps = append(f.sleeps, 0)
			if len(f.sleeps) == failAt {
				return context.Canceled
			}
			return nil
		}
		s, err := NewSession(ctx, f.config, opts)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	t.Run("cancelled between batches", func(t *testing.T) {
		f := newSessionFixture(t, false)

		applied, err := sessionWithSleepErr(t, f, 1).AddTracksToPlaylist(ctx, "dest", ids("t", 250))
		if !errors.Is(err, shared.ErrAPIWrite) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected ErrAPIWrite wrapping context.Canceled, got %v", err)
		}
		if applied != 100 || len(f.api.adds) != 1 {
			t.Errorf("expected 1 call and 100 applied, got %d calls and %d applied", len(f.api.adds), applied)
		}
	})

	t.Run("cancelled after last batch", func(t *testing.T) {
		f := newSessionFixture(t, false)

		applied, err := sessionWithSleepErr(t, f, 3).AddTracksToPlaylist(ctx, "dest", ids("t", 250))
		if err != nil {
			t.Fatalf("expected a fully applied write to succeed, got %v", err)
		}
		if applied != 250 {
			t.Errorf("expected 250 applied, got %d", applied)
		}
	})
}

func TestUploadRefreshedCacheToken(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads cache file in cloud mode", func(t *testing.T) {
		f := newSessionFixture(t, true)
		s := f.session(t)
		if err := os.WriteFile(f.config.CachePath(), []byte(`{"access_token":"new"}`), 0600); err != nil {
			t.Fatal(err)
		}

		if err := s.UploadRefreshedCacheToken(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.store.uploads != 1 || string(f.store.object) != `{"access_token":"new"}` {
			t.Errorf("expected uploaded cache, got %d uploads of %q", f.store.uploads, f.store.object)
		}
	})

	t.Run("missing cache file is a no-op", func(t *testing.T) {
		f := newSessionFixture(t, true)

		if err := f.session(t).UploadRefreshedCacheToken(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.store.uploads != 0 {
			t.Errorf("expected no upload, got %d", f.store.uploads)
		}
	})

	t.Run("local mode is a no-op", func(t *testing.T) {
		f := newSessionFixture(t, false)
		s := f.session(t)
		if err := os.WriteFile(f.config.CachePath(), []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}

		if err := s.UploadRefreshedCacheToken(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.store.uploads != 0 {
			t.Errorf("expected no upload, got %d", f.store.uploads)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newSessionFixture(t, true)
		f.store.uploadErr = errors.New("quota exceeded")
		s := f.session(t)
		if err := os.WriteFile(f.config.CachePath(), []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}

		if err := s.UploadRefreshedCacheToken(ctx); !errors.Is(err, shared.ErrUpload) {
			t.Errorf("expected ErrUpload, got %v", err)
		}
	})
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		count int
		size  int
		want  []int
	}{
		{"empty", 0, 100, []int{}},
		{"under", 3, 100, []int{3}},
		{"exact", 100, 100, []int{100}},
		{"one over", 101, 100, []int{100, 1}},
		{"several", 250, 100, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(ids("t", tt.count), tt.size)
			if len(chunks) != len(tt.want) {
				t.Fatalf("expected %d chunks, got %d", len(tt.want), len(chunks))
			}
			for i, n := range tt.want {
				if len(chunks[i]) != n {
					t.Errorf("chunk %d: expected %d items, got %d", i, n, len(chunks[i]))
				}
			}
		})
	}

	t.Run("invalid size", func(t *testing.T) {
		if Chunk([]int{1, 2}, 0) != nil {
			t.Error("expected nil for non-positive size")
		}
	})
}
