package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/plsync/internal/server"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP trigger until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	recorder, closeHistory := r.openRecorder(config)
	defer closeHistory()

	engine := tasks.NewPlaylistEngine(config, r.sessions(config), tasks.EngineOpts{
		Logger:   r.logger,
		Recorder: recorder,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := r.syncRouter(engine)
	httpServer := server.NewServer(config.Server.Addr(), router)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving sync trigger", "addr", httpServer.Addr, "routes", router.Patterns())
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (r *Runner) syncRouter(engine tasks.SyncEngine) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(server.NewSyncHandler(func(ctx context.Context, origin string) (tasks.Response, error) {
		return tasks.Invoke(ctx, engine, origin)
	}, r.logger))
	router.Handler(server.HealthHandler{})
	return router
}
