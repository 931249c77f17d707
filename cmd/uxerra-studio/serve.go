package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	uxerrastudio "github.com/uxerra/studio-api/internal/app/uxerra-studio"
	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/lib/sl"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := sl.New(cfg.Env, os.Stdout)
	logger.Info("starting uxerra-studio", slog.String("env", cfg.Env), slog.String("version", Version))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := uxerrastudio.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		return err
	}

	if err = app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		return err
	}

	logger.Info("uxerra-studio stopped gracefully")
	return nil
}
