package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
)

type bufferWriter struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func newTestBucketStore(object []byte, writer *bufferWriter) *BucketStore {
	return &BucketStore{
		bucket: "spotipy-cache",
		key:    ".cache",
		attrs: func(context.Context) (*storage.ObjectAttrs, error) {
			if object == nil {
				return nil, storage.ErrObjectNotExist
			}
			return &storage.ObjectAttrs{Name: ".cache", Size: int64(len(object))}, nil
		},
		newReader: func(context.Context) (io.ReadCloser, error) {
			if object == nil {
				return nil, storage.ErrObjectNotExist
			}
			return io.NopCloser(bytes.NewReader(object)), nil
		},
		newWriter: func(context.Context) io.WriteCloser {
			return writer
		},
	}
}

func TestBucketStore(t *testing.T) {
	ctx := context.Background()

	t.Run("String", func(t *testing.T) {
		store := newTestBucketStore(nil, nil)
		if got := store.String(); got != "gs://spotipy-cache/.cache" {
			t.Errorf("unexpected object URL %s", got)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := newTestBucketStore([]byte(`{}`), nil).Exists(ctx)
		if err != nil || !exists {
			t.Errorf("expected existing object, got %v, %v", exists, err)
		}

		exists, err = newTestBucketStore(nil, nil).Exists(ctx)
		if err != nil || exists {
			t.Errorf("expected missing object without error, got %v, %v", exists, err)
		}
	})

	t.Run("Exists error", func(t *testing.T) {
		store := newTestBucketStore(nil, nil)
		store.attrs = func(context.Context) (*storage.ObjectAttrs, error) {
			return nil, storage.ErrBucketNotExist
		}

		if _, err := store.Exists(ctx); !errors.Is(err, storage.ErrBucketNotExist) {
			t.Errorf("expected wrapped ErrBucketNotExist, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		content := []byte(`{"access_token":"a"}`)
		path := filepath.Join(t.TempDir(), "tmp", ".cache")

		if err := newTestBucketStore(content, nil).Download(ctx, path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected downloaded file: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("expected %s, got %s", content, got)
		}
	})

	t.Run("Download missing object", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".cache")

		if err := newTestBucketStore(nil, nil).Download(ctx, path); !errors.Is(err, storage.ErrObjectNotExist) {
			t.Errorf("expected ErrObjectNotExist, got %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("expected no local file")
		}
	})

	t.Run("Upload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".cache")
		if err := os.WriteFile(path, []byte(`{"access_token":"b"}`), 0600); err != nil {
			t.Fatal(err)
		}
		w := &bufferWriter{}

		if err := newTestBucketStore(nil, w).Upload(ctx, path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !w.closed {
			t.Error("expected writer to be closed")
		}
		if w.String() != `{"access_token":"b"}` {
			t.Errorf("unexpected uploaded content %s", w.String())
		}
	})

	t.Run("Upload commit failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".cache")
		if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
		w := &bufferWriter{closeErr: errors.New("permission denied")}

		err := newTestBucketStore(nil, w).Upload(ctx, path)
		if err == nil || !strings.Contains(err.Error(), "permission denied") {
			t.Errorf("expected commit error, got %v", err)
		}
	})

	t.Run("Upload missing file", func(t *testing.T) {
		w := &bufferWriter{}

		if err := newTestBucketStore(nil, w).Upload(ctx, filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected read error")
		}
		if w.Len() != 0 {
			t.Error("expected nothing written")
		}
	})

	t.Run("Close without client", func(t *testing.T) {
		if err := newTestBucketStore(nil, nil).Close(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}
