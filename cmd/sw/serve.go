package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/storyweb/internal/config"
	"github.com/alfredjeanlab/storyweb/internal/events"
	"github.com/alfredjeanlab/storyweb/internal/presence"
	"github.com/alfredjeanlab/storyweb/internal/server"
	"github.com/alfredjeanlab/storyweb/internal/store"
	"github.com/alfredjeanlab/storyweb/internal/store/memory"
	"github.com/alfredjeanlab/storyweb/internal/store/postgres"
	swsync "github.com/alfredjeanlab/storyweb/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the storyweb HTTP and gRPC server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server needs no client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if memFlag, _ := cmd.Flags().GetBool("memory"); memFlag {
			os.Setenv("STORYWEB_MEMORY", "true")
		}
		envFile, _ := cmd.Flags().GetString("env-file")
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}

		logger := newLogger(os.Stderr, serverLogLevel(cfg.LogLevel, debug))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg, logger)
	},
}

// openStore connects to Postgres, or returns an in-process store when
// cfg.Memory is set.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Memory {
		logger.Warn("using in-memory store; nothing will be persisted")
		return memory.New(), nil
	}
	s, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openPublisher connects to NATS. Without a NATS URL events only reach the
// server's own SSE stream.
func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("events limited to the SSE stream (STORYWEB_NATS_URL not set)")
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub, nil
}

// syncDestinations builds the configured export destinations. A destination
// that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []swsync.Destination {
	var dests []swsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := swsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint, cfg.SyncS3History)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key, "history", cfg.SyncS3History)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, swsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests
}

// runServer serves until ctx is cancelled, then shuts everything down.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		st.Close()
		return err
	}

	srv := server.New(st, publisher)
	srv.Presence().StartReaper(&presence.ReaperConfig{IdleThreshold: cfg.PresenceIdle})

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		srv.Presence().Stop()
		publisher.Close()
		st.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)
	go func() {
		logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "err", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	var scheduler *swsync.Scheduler
	if cfg.SyncInterval > 0 {
		if dests := syncDestinations(ctx, cfg, logger); len(dests) > 0 {
			scheduler = swsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
			scheduler.Start()
			logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
		}
	}

	logger.Info("storyweb server started",
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
		"auth", cfg.AuthToken != "",
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if scheduler != nil {
		scheduler.Stop()
		logger.Info("sync scheduler stopped")
	}

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	srv.Presence().Stop()
	if err := publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func init() {
	serveCmd.Flags().Bool("memory", false, "use the in-memory store (overrides STORYWEB_MEMORY)")
	serveCmd.Flags().String("env-file", ".env", "dotenv file loaded before the environment")
}
