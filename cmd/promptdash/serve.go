package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/promptdash/promptdash/optimizer"
	"github.com/promptdash/promptdash/server"
	"github.com/promptdash/promptdash/store"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the promptdash HTTP API server.

Required configuration:
  - PostgreSQL (DATABASE_URL)
  - A provider API key (ANTHROPIC_API_KEY or OPENAI_API_KEY)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if cfg.DatabaseURL == "" {
		return errors.New("server mode requires PostgreSQL, set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	promptStore := store.New(pool, logger)

	gw, err := buildGateway("")
	if err != nil {
		return err
	}
	engine := optimizer.NewEngine(gw,
		optimizer.WithLogger(logger),
		optimizer.WithSaver(promptStore),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(promptStore, engine, gw, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr, "provider", gw.Provider(), "model", gw.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
