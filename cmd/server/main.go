package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/finboard/internal/config"
	"github.com/JonMunkholm/finboard/internal/core"
	"github.com/JonMunkholm/finboard/internal/logging"
	"github.com/JonMunkholm/finboard/internal/storage"
	"github.com/JonMunkholm/finboard/internal/watch"
	"github.com/JonMunkholm/finboard/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Open the persisted copy of the dashboard
	openCtx, cancelOpen := context.WithTimeout(ctx, cfg.Storage.Timeout)
	store, err := storage.Open(openCtx, storage.Options{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DatabaseURL: cfg.Storage.DatabaseURL,
		MaxConns:    cfg.Storage.MaxConns,
	})
	cancelOpen()
	if err != nil {
		slog.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	service := core.NewService(store, core.Options{
		MaxSourceSize: cfg.Upload.MaxFileSize,
		Timeout:       cfg.Upload.Timeout,
	})

	restoreCtx, cancelRestore := context.WithTimeout(ctx, cfg.Storage.Timeout)
	restored, err := service.Restore(restoreCtx)
	cancelRestore()
	if err != nil {
		// the dashboard still works, it just starts empty
		slog.Error("failed to restore dashboard", "error", err)
	} else if !restored {
		slog.Info("no saved dashboard, starting empty")
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(ctx)
	watchDone := make(chan struct{})

	if cfg.Import.WatchDir != "" {
		scanner := watch.NewScanner(service, cfg.Import.WatchDir, cfg.Import.ArchiveDir)
		watcher := watch.NewWatcher(scanner, cfg.Import.ScanSchedule, cfg.Import.Debounce)
		go func() {
			defer close(watchDone)
			if err := watcher.Run(jobCtx); err != nil {
				slog.Error("import watcher failed", "dir", cfg.Import.WatchDir, "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Stop background jobs
		cancelJobs()
		<-watchDone

		// Wait for imports still committing (with timeout)
		if err := service.Wait(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		return
	}
	<-stopped
	slog.Info("server stopped")
}
