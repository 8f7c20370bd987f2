package main

import (
	"context"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes the example configuration file.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Fill in playlists.sources and playlists.destination, then run: plsync auth\n")
	return nil
}
