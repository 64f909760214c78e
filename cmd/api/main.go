package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rodinstudio/internal/http/handlers"
	httpapi "rodinstudio/internal/http/httpapi"
	"rodinstudio/internal/infra"
	"rodinstudio/internal/infra/credentials"
	"rodinstudio/internal/infra/geoip"
	"rodinstudio/internal/metrics"
	appmw "rodinstudio/internal/middleware"
	"rodinstudio/internal/orchestrator"
	"rodinstudio/internal/providers/rodin"
	"rodinstudio/internal/storage"
	"rodinstudio/internal/transport"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}

	var store *credentials.Store
	if dbpool != nil {
		defer dbpool.Close()
		store = credentials.NewStore(infra.NewSQLRunner(dbpool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credentials table")
		}
	}
	keys := credentials.NewKeySource(cfg.RodinAPIKey, store, time.Minute)
	if cfg.RodinAPIKey == "" && store == nil {
		logger.Warn().Msg("RODIN_API_KEY and DATABASE_URL are both empty; upstream calls will fail")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup appmw.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	collector := metrics.NewCollector()
	client := rodin.NewClient(rodin.Options{
		Keys:    keys,
		BaseURL: cfg.RodinBaseURL,
		Logger:  &logger,
	})
	adapter := transport.NewAdapter(client, transport.Options{
		SubmitTimeout:  cfg.SubmitTimeout,
		ResolveTimeout: cfg.ResolveTimeout,
		Metrics:        collector,
		Logger:         &logger,
	})
	sessions, err := orchestrator.NewManager(orchestrator.Deps{
		Transport: adapter,
		Config: orchestrator.Config{
			PollInterval:        cfg.PollInterval,
			MaxPollDuration:     cfg.PollMaxDuration,
			PlaceholderModelURL: cfg.DefaultModelURL,
			Locale:              cfg.DefaultLocale,
		},
		Logger:  &logger,
		Metrics: collector,
	}, cfg.MaxSessions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session manager")
	}
	defer sessions.Close()

	app := handlers.NewApp(cfg, &logger, client, sessions)
	app.Metrics = collector
	if dbpool != nil {
		app.DB = dbpool
	}
	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init artifact store")
	}
	app.Artifacts = artifacts

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newArtifactStore returns nil when caching is disabled.
func newArtifactStore(cfg *infra.Config) (storage.ArtifactStore, error) {
	switch cfg.ArtifactStore {
	case "fs":
		return storage.NewFileStore(cfg.StoragePath)
	case "s3":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, nil
	}
}
