package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tailor/internal/adapter/repo"
	"tailor/internal/http/handlers"
	httpapi "tailor/internal/http/httpapi"
	"tailor/internal/infra"
	"tailor/internal/infra/geoip"
	"tailor/internal/middleware"
	"tailor/internal/pipeline"
	"tailor/internal/queue"
	"tailor/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sql := infra.NewSQLRunner(dbpool, logger)

	store, staticDir, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	var (
		q       queue.Queue
		limiter middleware.Limiter
	)
	if rdb != nil {
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb, cfg.QueueKey)
		limiter = middleware.NewRedisLimiter(rdb, "tailor:ratelimit", cfg.RateLimitPerMin, time.Minute)
	} else {
		// Without redis the API still records jobs; workers pick them up
		// through the pending sweep.
		logger.Warn().Msg("REDIS_ADDR not set, using in-process queue and rate limiter")
		q = queue.NewMemoryQueue()
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMin, time.Minute)
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	jobs := repo.NewJobRepository(sql)
	app := handlers.NewApp(handlers.Options{
		Sessions:  repo.NewSessionRepository(sql),
		Artifacts: repo.NewArtifactRepository(sql),
		Jobs:      jobs,
		Messages:  repo.NewMessageRepository(sql),
		Store:     store,
		Enqueuer:  pipeline.NewEnqueuer(jobs, q, logger),
		Logger:    logger,
	})

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		Limiter:        limiter,
		AllowedOrigins: allowedOrigins(cfg, logger),
		DefaultLocale:  "en",
		CountryLookup:  lookup,
		StaticDir:      staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("port", cfg.Port).Msg("api listening")
	if err := server.Run(ctx, nil); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("api stopped")
}

func allowedOrigins(cfg *infra.Config, logger zerolog.Logger) []string {
	if len(cfg.AllowedOrigins) > 0 {
		return cfg.AllowedOrigins
	}
	if cfg.AppEnv != "development" {
		logger.Warn().Msg("CORS_ALLOWED_ORIGINS not set, cross-origin requests are refused")
		return nil
	}
	return []string{"*"}
}
