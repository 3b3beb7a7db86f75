package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"image-drop/internal/config"
	"image-drop/internal/logging"
	"image-drop/internal/registry"
	"image-drop/internal/server"
	"image-drop/internal/storage"
	"image-drop/web"
)

// serve runs the HTTP server until SIGINT/SIGTERM or a server error.
func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		BufferSize: cfg.Log.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	log := logger.Logger

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("storage unavailable", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
		return err
	}

	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	if disk, ok := store.(*storage.Disk); ok {
		go disk.StartCleanupJob(jobCtx, storage.CleanupConfig{
			Interval: cfg.Cleanup.Interval,
			MaxAge:   cfg.Cleanup.MaxAge,
		})
	}

	srv := server.New(server.Config{
		Addr:           cfg.Addr(),
		Registry:       registry.New(log),
		Storage:        store,
		Logger:         log,
		Ring:           logger.Ring,
		Public:         publicFS(cfg.PublicDir),
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		Version:        version,
	})

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting",
			zap.String("addr", cfg.Addr()),
			zap.String("version", version),
			zap.String("commit", commit),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", zap.Error(err))
			return err
		}
		log.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// openStorage builds the configured backend.
func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		s3 := cfg.Storage.S3
		return storage.NewS3(ctx, storage.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
		}, log)
	case config.BackendDisk:
		return storage.NewDisk(cfg.UploadDir, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// publicFS returns dir as a filesystem, or the bundled client when dir is
// empty.
func publicFS(dir string) fs.FS {
	if dir == "" {
		return web.Public()
	}
	return os.DirFS(dir)
}
