package main

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync performs one run and prints its progress and a summary.
//
// Fatal failures, including a full destination playlist, are returned so the process exits non-zero.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	recorder, closeHistory := r.openRecorder(config)
	defer closeHistory()

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.OpenSession:
				r.writePlain("🔑 %s\n", update.Message)
			case tasks.FetchDest, tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.Compare:
				r.writePlain("\n🔍 %s\n", update.Message)
			case tasks.AddTracks:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.UploadCache:
				r.writePlain("☁ %s\n", update.Message)
			}
		}
	}()

	engine := tasks.NewPlaylistEngine(config, r.sessions(config), tasks.EngineOpts{
		Logger:   r.logger,
		Recorder: recorder,
		Progress: progressCh,
	})

	origin := cmd.String("origin")
	r.logger.Info("sync requested", "origin", origin, "destination", config.Playlists.Destination)

	result, err := engine.Run(ctx, origin)
	close(progressCh)
	<-done

	r.writeSummary(result)
	return err
}

func (r *Runner) writeSummary(result *tasks.SyncResult) {
	if result == nil {
		return
	}

	r.writePlain("\n")
	if result.Succeeded() {
		r.writePlainHeader(tasks.CompleteMessage)
	} else {
		r.writePlainHeader("Sync Failed")
	}
	r.writePlain("Run: %s (%s)\n", result.RunID, result.Origin)
	r.writePlain("Destination: %s (%d tracks)\n", result.DestinationID, result.DestinationCount)
	r.writePlain("Source tracks: %d\n", result.SourceCount)
	r.writePlain("New tracks: %d, added: %d\n", len(result.NewTracks), result.Added)
	r.writePlain("Duration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	if len(result.FailedSources) > 0 {
		r.writePlain("Skipped sources: %s\n", strings.Join(result.FailedSources, ", "))
	}
	if result.WriteErr != nil {
		r.writePlain("⚠ Add failed: %v\n", result.WriteErr)
	}
	if result.UploadErr != nil {
		r.writePlain("⚠ Cache upload failed: %v\n", result.UploadErr)
	}
	if result.Err != nil {
		r.writePlain("✗ %v\n", result.Err)
	}
}
