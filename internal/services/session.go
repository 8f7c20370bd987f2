package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
)

// SessionOpts contains optional collaborators for [NewSession]. Nil fields get production defaults.
type SessionOpts struct {
	Logger *log.Logger

	// Store mirrors the token cache in cloud mode. Defaults to a [BucketStore] for the configured bucket and key.
	Store CacheStore

	// Connect authenticates and returns the playlist API. Defaults to [ConnectSpotify].
	Connect func(ctx context.Context, config *shared.Config, logger *log.Logger) (PlaylistAPI, error)

	// Sleep implements the rate-limit delay. Defaults to [shared.Sleep].
	Sleep func(ctx context.Context, d time.Duration) error
}

// Session owns the authenticated playlist API and, in cloud mode, the bucket mirroring the token cache.
type Session struct {
	config *shared.Config
	api    PlaylistAPI
	store  CacheStore // nil outside cloud mode
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSession resolves storage and authenticates.
//
// In cloud mode a previously uploaded token cache is downloaded before authenticating so a refreshed token from
// an earlier run is reused. Storage failures are [shared.ErrInitialization]; token failures are
// [shared.ErrAuthentication].
func NewSession(ctx context.Context, config *shared.Config, opts SessionOpts) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = shared.Sleep
	}
	if opts.Connect == nil {
		opts.Connect = func(ctx context.Context, config *shared.Config, logger *log.Logger) (PlaylistAPI, error) {
			return ConnectSpotify(ctx, config, logger)
		}
	}

	s := &Session{config: config, logger: opts.Logger, sleep: opts.Sleep}

	if config.Environment.CloudMode {
		store := opts.Store
		if store == nil {
			bucket, err := NewBucketStore(ctx, config.Environment.BucketName, config.CacheObjectKey())
			if err != nil {
				return nil, fmt.Errorf("%w: %w", shared.ErrInitialization, err)
			}
			store = bucket
		}
		s.store = store

		if err := s.restoreCache(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %w", shared.ErrInitialization, err)
		}
	}

	api, err := opts.Connect(ctx, config, s.logger)
	if err != nil {
		s.Close()
		if !errors.Is(err, shared.ErrAuthentication) {
			err = fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
		}
		return nil, err
	}
	s.api = api
	return s, nil
}

// restoreCache downloads the bucket object to the cache path when it exists.
func (s *Session) restoreCache(ctx context.Context) error {
	exists, err := s.store.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info("no token cache in bucket", "bucket", s.config.Environment.BucketName, "key", s.config.CacheObjectKey())
		return nil
	}

	if err := s.store.Download(ctx, s.config.CachePath()); err != nil {
		return err
	}
	s.logger.Info("downloaded token cache", "path", s.config.CachePath())
	return nil
}

// UploadRefreshedCacheToken copies the local token cache to the bucket, overwriting the previous object.
//
// Outside cloud mode, or when no cache file exists yet, this is a no-op. Failures are [shared.ErrUpload].
func (s *Session) UploadRefreshedCacheToken(ctx context.Context) error {
	if !s.config.Environment.CloudMode || s.store == nil {
		return nil
	}

	path := s.config.CachePath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", shared.ErrUpload, err)
	}

	if err := s.store.Upload(ctx, path); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrUpload, err)
	}
	return nil
}

// RetrieveTracksFromPlaylist returns every track id in the playlist in provider order.
//
// Pages are followed until the provider reports no next page, sleeping the rate-limit delay before each page
// after the first. Failures are [shared.ErrAPIRead].
func (s *Session) RetrieveTracksFromPlaylist(ctx context.Context, playlistID string) ([]string, error) {
	page, err := s.api.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %w", shared.ErrAPIRead, playlistID, err)
	}

	tracks := []string{}
	for page != nil {
		tracks = append(tracks, page.TrackIDs...)
		if !page.HasNext() {
			break
		}

		if err := s.sleep(ctx, s.config.Spotify.RateLimitDelay()); err != nil {
			return nil, fmt.Errorf("%w: playlist %s: %w", shared.ErrAPIRead, playlistID, err)
		}

		page, err = s.api.NextTracks(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: playlist %s after %d tracks: %w", shared.ErrAPIRead, playlistID, len(tracks), err)
		}
	}

	return tracks, nil
}

// AddTracksToPlaylist adds tracks in chunks of [MaxTracksPerRequest], in order, sleeping the rate-limit delay
// after each chunk, and returns how many tracks were applied.
//
// The first failing chunk stops the operation. Earlier chunks stay applied. Failures are [shared.ErrAPIWrite].
// Cancellation during the sleep after the last chunk is not a failure: every track is already applied.
func (s *Session) AddTracksToPlaylist(ctx context.Context, playlistID string, tracks []string) (int, error) {
	applied := 0
	batches := Chunk(tracks, MaxTracksPerRequest)
	for i, batch := range batches {
		start := i * MaxTracksPerRequest
		if err := s.api.AddTracks(ctx, playlistID, batch); err != nil {
			return applied, fmt.Errorf("%w: playlist %s batch %d-%d: %w", shared.ErrAPIWrite, playlistID, start+1, start+len(batch), err)
		}
		applied += len(batch)
		s.logger.Debug("added batch", "playlist", playlistID, "from", start+1, "to", start+len(batch))

		if err := s.sleep(ctx, s.config.Spotify.RateLimitDelay()); err != nil && i < len(batches)-1 {
			return applied, fmt.Errorf("%w: playlist %s: %w", shared.ErrAPIWrite, playlistID, err)
		}
	}
	return applied, nil
}

// Close releases the storage client, if one was opened.
func (s *Session) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		chunks = append(chunks, items[i:min(i+size, len(items))])
	}
	return chunks
}
