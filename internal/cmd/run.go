package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/config"
	"github.com/joshdurbin/lift-mcp/internal/db"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/remote"
	"github.com/joshdurbin/lift-mcp/internal/server"
	"github.com/joshdurbin/lift-mcp/internal/store"
	"github.com/joshdurbin/lift-mcp/internal/streak"
	syncsvc "github.com/joshdurbin/lift-mcp/internal/sync"
	"github.com/joshdurbin/lift-mcp/internal/workers"

	_ "modernc.org/sqlite"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

// Run is the main entry point for the unified run mode
func Run(cfg *config.RuntimeConfig) error {
	log := logging.Logger

	log.Info().
		Str("db_path", cfg.DBPath).
		Int("mcp_port", cfg.Port).
		Int("metrics_port", cfg.MetricsPort).
		Str("user_id", cfg.UserID).
		Bool("sync", cfg.SyncEnabled()).
		Dur("sync_interval", cfg.SyncInterval).
		Dur("notify_interval", cfg.NotifyInterval).
		Msg("starting lift-mcp")

	ctx, cancel := signalContext()
	defer cancel()

	sqlDB, storage, err := openStorage(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	workers.LogDatabaseStats(ctx, storage)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewManager(metrics.Namespace, metrics.Subsystem, promRegistry)

	registry := analytics.NewRegistry(storage,
		analytics.WithIngestObserver(m.ObserveIngest),
		analytics.WithNotificationStore(storage))

	// Start background workers with errgroup for graceful shutdown
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.SyncEnabled() {
		syncer := workers.NewHistorySyncer(newSyncService(cfg, storage), storage, registry, m, cfg.SyncInterval, cfg.UserID)

		// Initial sync; the background worker retries on failure
		if err := syncer.SyncOnce(ctx); err != nil {
			if errors.Is(err, syncsvc.ErrUnauthorized) {
				return fmt.Errorf("backend rejected the API key in %s: %w", config.APIKeyEnv, err)
			}
			log.Warn().Err(err).Msg("initial sync failed")
		}
		workers.LogDatabaseStats(ctx, storage)

		g.Go(func() error {
			syncer.Run(gCtx)
			return nil
		})
	} else {
		log.Info().Msg("running in offline mode, skipping backend sync")
	}

	freezeResetter := workers.NewFreezeResetter(storage, storage, time.Hour, cfg.UserID)
	g.Go(func() error {
		freezeResetter.Run(gCtx)
		return nil
	})

	notifier := workers.NewStagnationNotifier(registry, storage, m, cfg.NotifyInterval, cfg.UserID)
	g.Go(func() error {
		notifier.Run(gCtx)
		return nil
	})

	if cfg.MetricsPort > 0 {
		g.Go(func() error {
			return serveHTTP(gCtx, "metrics", cfg.MetricsPort, server.MetricsRouter(promRegistry))
		})
	}

	srv := server.New(server.Deps{
		Registry:    registry,
		Recorder:    storage,
		Streaks:     streak.NewStore(storage),
		Metrics:     m,
		DefaultUser: cfg.UserID,
	})

	var serverErr error
	if cfg.Port > 0 {
		serverErr = serveHTTP(ctx, "MCP", cfg.Port, srv.Router(promRegistry))
	} else {
		log.Info().Msg("MCP server running via stdio")
		serverErr = srv.Run(ctx)
	}

	// stdio returns when the client disconnects; stop the workers too
	cancel()

	log.Info().Msg("waiting for workers to shut down")
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("worker error during shutdown")
	} else {
		log.Info().Msg("all workers shut down gracefully")
	}

	return serverErr
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// openStorage opens, tunes, lock-checks and migrates the database
func openStorage(ctx context.Context, path string) (*sql.DB, *store.Storage, error) {
	log := logging.Logger

	log.Info().Str("path", path).Msg("opening database")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	if err := configureSQLite(sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("configuring SQLite: %w", err)
	}

	// Check for database lock (another instance running)
	if err := checkDatabaseLock(sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	results, err := db.Migrate(ctx, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	for _, r := range results {
		log.Debug().Int64("version", r.Source.Version).Str("path", r.Source.Path).Msg("migration applied")
	}
	log.Debug().Int("applied", len(results)).Msg("database migrations completed")

	return sqlDB, store.NewStorage(sqlDB), nil
}

func newSyncService(cfg *config.RuntimeConfig, storage *store.Storage) *syncsvc.Service {
	client := remote.NewClient(cfg.BackendURL, cfg.APIKey, remote.DefaultRetryConfig())
	return syncsvc.NewService(storage, client)
}

// serveHTTP runs handler on port until ctx is cancelled
func serveHTTP(ctx context.Context, name string, port int, handler http.Handler) error {
	log := logging.Logger

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().
			Str("server", name).
			Str("address", addr).
			Str("endpoint", fmt.Sprintf("http://localhost%s", addr)).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Str("server", name).Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("%s server: %w", name, err)
	}
}

// configureSQLite sets up SQLite for concurrent access
func configureSQLite(sqlDB *sql.DB) error {
	log := logging.Logger

	// WAL lets readers proceed during a sync write
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}

	// Set busy timeout to 5 seconds (wait instead of failing immediately)
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("setting synchronous mode: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	// A single connection serializes writers
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	log.Debug().
		Str("journal_mode", "WAL").
		Str("busy_timeout", "5000ms").
		Msg("SQLite configured")
	return nil
}

// checkDatabaseLock verifies no other process has the database locked
func checkDatabaseLock(sqlDB *sql.DB) error {
	log := logging.Logger

	_, err := sqlDB.Exec("PRAGMA locking_mode=EXCLUSIVE")
	if err != nil {
		return fmt.Errorf("another instance may be running (database locked): %w", err)
	}

	// Starting a transaction actually takes the lock
	_, err = sqlDB.Exec("BEGIN EXCLUSIVE")
	if err != nil {
		if strings.Contains(err.Error(), "locked") || strings.Contains(err.Error(), "busy") {
			return fmt.Errorf("another instance is already running (database is locked)")
		}
		return fmt.Errorf("checking database lock: %w", err)
	}

	_, err = sqlDB.Exec("COMMIT")
	if err != nil {
		return fmt.Errorf("releasing lock check: %w", err)
	}

	log.Debug().Msg("database lock check passed")
	return nil
}
