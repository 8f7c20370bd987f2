// package tasks implements the playlist sync run.
//
// The core abstraction is SyncEngine, which drives one run through a fixed sequence of states.
// Runs emit progress updates via channels for non-blocking status reporting to CLI/HTTP layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// Session is what a run needs from an authenticated session. [services.Session] implements it.
type Session interface {
	RetrieveTracksFromPlaylist(ctx context.Context, playlistID string) ([]string, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, tracks []string) (int, error)
	UploadRefreshedCacheToken(ctx context.Context) error
}

// SessionFactory constructs and authenticates a session at the start of a run.
type SessionFactory func(ctx context.Context) (Session, error)

// RunRecorder stores the record of a finished run. repositories.RunRepository implements it.
type RunRecorder interface {
	RecordRun(run *models.Run) error
}

// SyncResult contains everything observed during one run.
type SyncResult struct {
	RunID         string
	Origin        string
	State         State // last state reached, [StateDone] or [StateFailed] once Run returns
	CloudMode     bool
	DestinationID string

	DestinationCount int      // tracks in the destination before the run
	SourceCount      int      // tracks aggregated from every fetched source, duplicates included
	FailedSources    []string // sources skipped after a read failure
	NewTracks        []string // tracks in the sources but not in the destination, in source order
	Added            int      // tracks accepted by the provider, including batches before a failed one

	Err       error // fatal error, set when State is [StateFailed]
	WriteErr  error // non-fatal batched add failure
	UploadErr error // non-fatal cache upload failure

	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run reached [StateDone].
func (r *SyncResult) Succeeded() bool {
	return r.State == StateDone
}

// Record converts the result into a persistable run record.
func (r *SyncResult) Record() *models.Run {
	run := models.NewRun(r.RunID, r.Origin, r.DestinationID, r.CloudMode, r.StartedAt)
	run.SetState(r.State.String())
	run.SetCounts(r.DestinationCount, r.SourceCount, len(r.FailedSources), r.Added)
	run.SetFinishedAt(r.FinishedAt)
	if r.Err != nil {
		run.SetErrorMessage(r.Err.Error())
	}
	if r.WriteErr != nil {
		run.SetWriteError(r.WriteErr.Error())
	}
	if r.UploadErr != nil {
		run.SetUploadError(r.UploadErr.Error())
	}
	return run
}

// SyncEngine runs playlist syncs.
type SyncEngine interface {
	// Run performs one sync: read the destination, read the sources, add the difference, persist the token cache.
	// The origin label is used for logging only.
	Run(ctx context.Context, origin string) (*SyncResult, error)
}

// EngineOpts contains optional collaborators for [NewPlaylistEngine].
type EngineOpts struct {
	Logger   *log.Logger
	Recorder RunRecorder
	Progress chan<- ProgressUpdate
}

// PlaylistEngine implements SyncEngine for a fixed configuration.
type PlaylistEngine struct {
	config   *shared.Config
	open     SessionFactory
	logger   *log.Logger
	recorder RunRecorder
	progress chan<- ProgressUpdate
	now      func() time.Time
}

// NewPlaylistEngine creates a new PlaylistEngine that opens a session with open for every run.
func NewPlaylistEngine(config *shared.Config, open SessionFactory, opts EngineOpts) *PlaylistEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		config:   config,
		open:     open,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		progress: opts.Progress,
		now:      time.Now,
	}
}

// NewSessionFactory returns a factory creating a [services.Session] for config.
func NewSessionFactory(config *shared.Config, opts services.SessionOpts) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		session, err := services.NewSession(ctx, config, opts)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// Run performs one sync run.
//
// Session construction, destination read and the capacity guard are fatal: the returned result is in
// [StateFailed] and the error is returned, wrapped as [shared.ErrInitialization], [shared.ErrAuthentication],
// [shared.ErrAPIRead] or a [*shared.PlaylistCapacityError]. Source read failures skip that source. Write and
// cache upload failures are recorded in the result but the run still finishes in [StateDone].
func (e *PlaylistEngine) Run(ctx context.Context, origin string) (*SyncResult, error) {
	result := &SyncResult{
		RunID:         shared.GenerateID(),
		Origin:        origin,
		State:         StateInit,
		CloudMode:     e.config.Environment.CloudMode,
		DestinationID: e.config.Playlists.Destination,
		StartedAt:     e.now(),
	}
	logger := shared.WithLogger(e.logger, "run", result.RunID[:8], "origin", origin)
	defer e.finish(logger, result)

	logger.Info("starting sync",
		"destination", result.DestinationID,
		"sources", len(e.config.Playlists.Sources),
		"cloud_mode", result.CloudMode)

	e.sendProgress(openSessionUpdate(result.CloudMode))
	session, err := e.open(ctx)
	if err != nil {
		logger.Error("failed to initialize session", "err", err)
		return e.fail(result, err)
	}
	if c, ok := session.(io.Closer); ok {
		defer c.Close()
	}

	destID := result.DestinationID
	e.sendProgress(fetchDestUpdate(destID))
	destination, err := session.RetrieveTracksFromPlaylist(ctx, destID)
	if err != nil {
		logger.Error("failed to fetch destination playlist", "playlist", destID, "err", err)
		return e.fail(result, err)
	}
	result.DestinationCount = len(destination)
	result.State = StateDestinationFetched
	logger.Info("fetched destination playlist", "playlist", destID, "tracks", len(destination))

	if limit := e.config.Spotify.PlaylistMaxTracks; len(destination) >= limit {
		err := &shared.PlaylistCapacityError{PlaylistID: destID, Count: len(destination), Max: limit}
		logger.Error("destination playlist is full", "playlist", destID, "tracks", len(destination), "max", limit)
		return e.fail(result, err)
	}

	sources, err := e.fetchSources(ctx, logger, session, result)
	if err != nil {
		return e.fail(result, err)
	}
	result.SourceCount = len(sources)
	result.State = StateSourcesFetched

	result.NewTracks = FindNewTracks(destination, sources)
	result.State = StateDiffComputed
	e.sendProgress(compareUpdate(result.NewTracks))
	logger.Info("computed new tracks", "sources", len(sources), "new", len(result.NewTracks))

	if len(result.NewTracks) == 0 {
		result.State = StateWriteSkipped
		logger.Info("destination is up to date", "playlist", destID)
	} else {
		count := len(result.NewTracks)
		e.sendProgress(addTracksUpdate(count, len(services.Chunk(result.NewTracks, services.MaxTracksPerRequest))))

		added, err := session.AddTracksToPlaylist(ctx, destID, result.NewTracks)
		result.Added = added
		if err != nil {
			result.WriteErr = err
			logger.Error("failed to add tracks", "playlist", destID, "tracks", count, "applied", added, "err", err)
		} else {
			logger.Info("added tracks", "playlist", destID, "tracks", added)
		}
		result.State = StateWritten
	}

	if result.CloudMode {
		e.sendProgress(uploadCacheUpdate())
		if err := session.UploadRefreshedCacheToken(ctx); err != nil {
			result.UploadErr = err
			logger.Error("failed to upload token cache", "bucket", e.config.Environment.BucketName, "err", err)
		} else {
			logger.Info("uploaded token cache", "bucket", e.config.Environment.BucketName, "key", e.config.CacheObjectKey())
		}
		result.State = StateCacheUploaded
	}

	result.State = StateDone
	logger.Info("sync complete", "added", result.Added)
	return result, nil
}

// fetchSources reads every configured source in order and concatenates their tracks.
//
// A failing source is logged and skipped. Only cancellation of ctx aborts the loop.
func (e *PlaylistEngine) fetchSources(ctx context.Context, logger *log.Logger, session Session, result *SyncResult) ([]string, error) {
	ids := e.config.Playlists.Sources
	sources := []string{}

	for i, id := range ids {
		e.sendProgress(fetchSourceUpdate(i+1, len(ids), id))

		tracks, err := session.RetrieveTracksFromPlaylist(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				logger.Error("sync cancelled while fetching sources", "playlist", id, "err", ctxErr)
				return nil, fmt.Errorf("%w: %w", shared.ErrAPIRead, ctxErr)
			}
			logger.Warn("skipping source playlist", "playlist", id, "err", err)
			e.sendProgress(skippedSourceUpdate(i+1, len(ids), id, err))
			result.FailedSources = append(result.FailedSources, id)
			continue
		}

		logger.Info("fetched source playlist", "playlist", id, "tracks", len(tracks))
		sources = append(sources, tracks...)
	}

	return sources, nil
}

func (e *PlaylistEngine) fail(result *SyncResult, err error) (*SyncResult, error) {
	result.State = StateFailed
	result.Err = err
	return result, err
}

// finish stamps the result, records it and reports completion.
func (e *PlaylistEngine) finish(logger *log.Logger, result *SyncResult) {
	result.FinishedAt = e.now()
	e.sendProgress(completeUpdate(result))

	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordRun(result.Record()); err != nil {
		logger.Warn("failed to record run", "err", err)
	}
}

// FindNewTracks returns the tracks in sources that do not appear anywhere in destination.
//
// Order follows sources. Duplicates within sources are kept, so a track listed twice is returned twice.
func FindNewTracks(destination, sources []string) []string {
	present := make(map[string]struct{}, len(destination))
	for _, id := range destination {
		present[id] = struct{}{}
	}

	newTracks := []string{}
	for _, id := range sources {
		if _, ok := present[id]; !ok {
			newTracks = append(newTracks, id)
		}
	}
	return newTracks
}

// IsCapacityError reports whether err is, or wraps, a [*shared.PlaylistCapacityError].
func IsCapacityError(err error) bool {
	var capacity *shared.PlaylistCapacityError
	return errors.As(err, &capacity)
}
