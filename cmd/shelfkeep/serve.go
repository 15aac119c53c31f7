package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API, reachability monitor and sync loops",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h := database.NewHandle(cfg.DBPath, logger)
		defer h.Close()

		srv := server.New(cfg, h, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop()

		httpServer := &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      srv.Router(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("shelfkeep listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the local database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := database.NewHandle(cfg.DBPath, logger)
		defer h.Close()
		if err := h.Initialize(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database ready:", cfg.DBPath)
		return nil
	},
}
