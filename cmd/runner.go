package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	store    services.CacheStore
	sessions func(config *shared.Config) tasks.SessionFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config replaces the file named by --config when set.
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer

	// Store replaces the bucket-backed token cache mirror in cloud mode.
	Store services.CacheStore

	// Sessions builds the session factory for a run. Defaults to [tasks.NewSessionFactory].
	Sessions func(config *shared.Config) tasks.SessionFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		store:    opts.Store,
		sessions: opts.Sessions,
	}
	if r.sessions == nil {
		r.sessions = r.defaultSessions
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, authCommand, serveCommand, historyCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) defaultSessions(config *shared.Config) tasks.SessionFactory {
	return tasks.NewSessionFactory(config, services.SessionOpts{Logger: r.logger, Store: r.store})
}

// loadConfig returns the injected config or resolves the file named by --config.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	config, err := shared.ResolveConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	return config, nil
}

// openRecorder opens run history when configured. The returned close func is never nil.
func (r *Runner) openRecorder(config *shared.Config) (tasks.RunRecorder, func()) {
	repo, db, err := repositories.OpenRunRepository(config.History.Path)
	if err != nil {
		if !errors.Is(err, shared.ErrHistoryDisabled) {
			r.logger.Warn("run history unavailable", "path", config.History.Path, "err", err)
		}
		return nil, func() {}
	}

	return repo, func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close history database", "err", err)
		}
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
