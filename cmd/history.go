package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID               string    `json:"id"`
	Origin           string    `json:"origin"`
	State            string    `json:"state"`
	CloudMode        bool      `json:"cloud_mode"`
	DestinationID    string    `json:"destination_id"`
	DestinationCount int       `json:"destination_count"`
	SourceCount      int       `json:"source_count"`
	FailedSources    int       `json:"failed_sources"`
	Added            int       `json:"added"`
	WriteError       string    `json:"write_error,omitempty"`
	UploadError      string    `json:"upload_error,omitempty"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

func newHistoryEntry(run *models.Run) historyEntry {
	return historyEntry{
		ID:               run.ID(),
		Origin:           run.Origin(),
		State:            run.State(),
		CloudMode:        run.CloudMode(),
		DestinationID:    run.DestinationID(),
		DestinationCount: run.DestinationCount(),
		SourceCount:      run.SourceCount(),
		FailedSources:    run.FailedSources(),
		Added:            run.AddedCount(),
		WriteError:       run.WriteError(),
		UploadError:      run.UploadError(),
		Error:            run.ErrorMessage(),
		StartedAt:        run.StartedAt(),
		FinishedAt:       run.FinishedAt(),
	}
}

// History lists recorded runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, db, err := repositories.OpenRunRepository(config.History.Path)
	if err != nil {
		if errors.Is(err, shared.ErrHistoryDisabled) {
			return fmt.Errorf("%w: set history.path in the config file", shared.ErrHistoryDisabled)
		}
		return err
	}
	defer db.Close()

	if age := cmd.Duration("prune"); age > 0 {
		n, err := repo.Prune(time.Now().Add(-age))
		if err != nil {
			return err
		}
		r.logger.Info("pruned runs", "count", n, "older_than", age)
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if origin := cmd.String("origin"); origin != "" {
		criteria["origin"] = origin
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	path := cmd.String("output")
	if format == "json" {
		entries := make([]historyEntry, 0, len(runs))
		for _, run := range runs {
			entries = append(entries, newHistoryEntry(run))
		}
		if path == "" {
			return r.writeJSON(entries, cmd.Bool("pretty"))
		}
		if err := writeJSONFile(entries, cmd.Bool("pretty"), path); err != nil {
			return err
		}
		r.writePlain("✓ Exported %d runs to %s\n", len(runs), path)
		return nil
	}

	if path != "" {
		if err := formatter.WriteExport(runs, format, path); err != nil {
			return err
		}
		r.writePlain("✓ Exported %d runs to %s\n", len(runs), path)
		return nil
	}

	data, err := formatter.Export(runs, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

func writeJSONFile(data any, pretty bool, path string) error {
	var (
		content []byte
		err     error
	)
	if pretty {
		content, err = json.MarshalIndent(data, "", "  ")
	} else {
		content, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, append(content, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
