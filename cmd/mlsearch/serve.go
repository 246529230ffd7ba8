package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/metrics"
	"github.com/mlcatalog/mlsearch/internal/session"
	chiTransport "github.com/mlcatalog/mlsearch/internal/transport/chi"
	healthuc "github.com/mlcatalog/mlsearch/internal/usecase/health"
	"github.com/mlcatalog/mlsearch/internal/usecase/surface"
	"github.com/mlcatalog/mlsearch/internal/version"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP search API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the configured HTTP port",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer func() { _ = d.logger.Sync() }()
			if port := c.Int("port"); port > 0 {
				d.cfg.HTTP.Port = port
			}
			return serve(ctx, d)
		},
	}
}

func serve(ctx context.Context, d *deps) error {
	cfg, logger := d.cfg, d.logger
	logger.Info("Starting mlsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", d.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("index_addrs", cfg.Index.Addresses),
		zap.String("session_driver", cfg.Session.Driver),
		zap.Int("cache_size", cfg.Cache.Size),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterSearchMetrics()

	sessions, closeSessions, err := d.sessionStore()
	if err != nil {
		return err
	}
	defer closeSessions()

	// The backend may come up after us; health reports it until then.
	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.Index.RequestTimeoutDuration())
	if err := d.connector.Ping(pingCtx); err != nil {
		logger.Warn("Search backend not reachable at startup", zap.Error(err))
	}
	cancelPing()

	surfaces := surface.NewManager(d.catalog, d.search, surface.Options{
		Debounce:    cfg.URLSync.Debounce(),
		OnWrite:     recordSurfaceQuery(sessions, logger),
		IdleTTL:     cfg.Surfaces.IdleTTL(),
		MaxSurfaces: cfg.Surfaces.Max,
	}, logger)
	defer surfaces.Close()

	healthSvc := healthuc.New(d.connector, sessions)
	server := chiTransport.NewServer(d.catalog, d.search, surfaces, sessions, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such route")
	})
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully", zap.Int("surfaces_mounted", surfaces.Len()))
	return nil
}

// recordSurfaceQuery remembers every URL a surface writes as the session's last search.
func recordSurfaceQuery(store session.Store, logger *zap.Logger) func(*surface.Surface, string) {
	return func(sf *surface.Surface, query string) {
		if sf.SessionID() == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := session.New(sf.SessionID(), store).RecordQuery(ctx, sf.Entity(), query); err != nil {
			logger.Warn("Failed to record surface query",
				zap.String("surface", sf.ID()),
				zap.Error(err),
			)
		}
	}
}
