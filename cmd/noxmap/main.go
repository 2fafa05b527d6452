package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noxmap/core-go/internal/atlas"
	"noxmap/core-go/internal/config"
	"noxmap/core-go/internal/db"
	"noxmap/core-go/internal/httpapi"
	"noxmap/core-go/internal/metrics"
	"noxmap/core-go/internal/source"
)

func main() {
	cfg, err := config.Load(envOr("NOXMAP_CONFIG", ""), os.Getenv)
	if err != nil {
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	var sinks []io.Writer
	if cfg.LogFile != "" {
		lf := httpapi.RotatingFile(cfg.LogFile)
		defer lf.Close()
		sinks = append(sinks, lf)
	}
	logger := httpapi.NewLogger(cfg.LogLevel, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	// Left as a nil interface without a database so pg: locations are rejected.
	var queries source.DocumentQueries
	if pool != nil {
		queries = pool.Queries()
	}
	subMapSrc, err := source.Open(cfg.MapConfig, queries)
	if err != nil {
		logger.Fatal().Err(err).Str("location", cfg.MapConfig).Msg("invalid sub-map config location")
	}
	annotationSrc, err := source.Open(cfg.Annotations, queries)
	if err != nil {
		logger.Fatal().Err(err).Str("location", cfg.Annotations).Msg("invalid annotations location")
	}

	m := metrics.New()
	hub := httpapi.NewHub(logger)
	defer hub.Close()

	loadCtx, cancelLoad := context.WithTimeout(ctx, 30*time.Second)
	a, err := atlas.Load(loadCtx, subMapSrc, annotationSrc, atlas.Options{
		AssetPrefix:    cfg.AssetPrefix,
		AssetToken:     cfg.AssetToken,
		MinZoom:        cfg.MinZoom,
		MaxZoom:        cfg.MaxZoom,
		ViewportWidth:  cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		Settings:       cfg.Settings,
		Renderer:       hub,
		OnSwap:         hub.ImageSwapped,
		Metrics:        m,
		Log:            logger.With().Str("component", "atlas").Logger(),
	})
	cancelLoad()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load map")
	}

	h := httpapi.NewHandler(logger, pool, a, hub, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("noxmap listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
