// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/inkframe/inkframe/internal/api"
	"github.com/inkframe/inkframe/internal/art"
	"github.com/inkframe/inkframe/internal/cache"
	"github.com/inkframe/inkframe/internal/config"
	"github.com/inkframe/inkframe/internal/device"
	"github.com/inkframe/inkframe/internal/frame"
	"github.com/inkframe/inkframe/internal/imaging"
	inklog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/ota"
	"github.com/inkframe/inkframe/internal/store"
	"github.com/inkframe/inkframe/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inkframe %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	inklog.Configure(inklog.Config{
		Level:   "info",
		Service: "inkframe",
		Version: version,
	})
	logger := inklog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path precedence: --config, then ${INKFRAME_DATA}/config.yaml if
	// present, then env + defaults only.
	explicit := strings.TrimSpace(*configPath)
	effective := explicit
	if effective == "" {
		dataDir := config.ParseString("INKFRAME_DATA", "./data")
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effective = autoPath
		}
	}

	cfg, err := config.Load(effective, explicit != "")
	if err != nil {
		logger.Fatal().Err(err).Str("path", effective).Msg("failed to load configuration")
	}

	inklog.Configure(inklog.Config{Level: cfg.LogLevel})
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Str("store", cfg.StoreBackend).
		Str("data_dir", cfg.DataDir).
		Msg("starting inkframe")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:       cfg.TracingEndpoint,
		ServiceName:    "inkframe",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	searchCache := openCache(cfg)

	pipeline := imaging.NewPool(cfg.PipelineWorkers)

	curated := art.NewCuratedAdapter(nil)
	federator := art.NewFederator(buildSources(cfg, curated), searchCache)
	federator.SetCacheTTL(cfg.SearchCacheTTL)

	frames := frame.NewManager(st, pipeline, cfg.Location())

	var notifier device.Notifier = device.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = device.NewWebhookNotifier(cfg.WebhookURL)
		logger.Info().Msg("low-battery webhook enabled")
	}
	registry := device.NewRegistry(st, notifier)
	commands := device.NewCommandQueue(st)

	otaSvc := ota.NewService(st, cfg.FirmwarePath, cfg.FirmwareVersion, cfg.BuildDate)
	go func() {
		if err := otaSvc.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("firmware watcher stopped")
		}
	}()

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Frames:    frames,
		Federator: federator,
		Curated:   curated,
		Devices:   registry,
		Commands:  commands,
		OTA:       otaSvc,
		Pipeline:  pipeline,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           telemetry.WrapHandler(server.Router(), "inkframe.api"),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: firmware downloads over weak Wi-Fi take minutes.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server exiting")
}

// openStore selects the persistence backend. Both live under DataDir so a
// backend switch never scatters state across the filesystem.
func openStore(cfg config.AppConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case "badger":
		return store.NewBadgerStore(filepath.Join(cfg.DataDir, "badger"))
	default:
		return store.NewFileStore(cfg.DataDir)
	}
}

// openCache prefers Redis when configured so multiple instances share the
// search cache, falling back to the in-process LRU.
func openCache(cfg config.AppConfig) cache.Cache {
	logger := inklog.WithComponent("cache")
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr}, logger)
		if err == nil {
			return c
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	return cache.NewMemoryCache(cfg.SearchCacheMax, 5*time.Minute)
}

// buildSources registers every museum adapter the configuration can support.
// Keyless APIs are always on; keyed ones join only when their key is set.
func buildSources(cfg config.AppConfig, curated *art.CuratedAdapter) []art.Source {
	logger := inklog.WithComponent("art")

	sources := []art.Source{
		art.NewMetAdapter(""),
		art.NewArticAdapter(""),
		art.NewClevelandAdapter(""),
		art.NewWikimediaAdapter(""),
		art.NewVAMAdapter(""),
	}
	if cfg.RijksKey != "" {
		sources = append(sources, art.NewRijksAdapter("", cfg.RijksKey))
	}
	if cfg.HarvardKey != "" {
		sources = append(sources, art.NewHarvardAdapter("", cfg.HarvardKey))
	}
	if cfg.SmithsonianKey != "" {
		sources = append(sources, art.NewSmithsonianAdapter("", cfg.SmithsonianKey))
	}
	sources = append(sources, curated)

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	logger.Info().Strs("sources", names).Msg("art sources registered")

	return sources
}
