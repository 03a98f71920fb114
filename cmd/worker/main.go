package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tailor/internal/adapter/repo"
	"tailor/internal/cache"
	"tailor/internal/design"
	"tailor/internal/imageproc"
	"tailor/internal/infra"
	"tailor/internal/infra/credentials"
	"tailor/internal/pipeline"
	"tailor/internal/providers/fulfillment"
	"tailor/internal/providers/genai"
	"tailor/internal/providers/segment"
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

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	sql := infra.NewSQLRunner(pool, logger)

	store, _, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	var q queue.Queue
	if rdb != nil {
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb, cfg.QueueKey)
	} else {
		logger.Warn().Msg("worker: REDIS_ADDR not set, polling pending jobs only")
		q = queue.NewMemoryQueue()
	}

	creds := credentials.NewStore(sql)
	resolve := func(provider, configured string) string {
		key, err := creds.Resolve(ctx, provider, configured)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("worker: failed to load api key from store")
		}
		return key
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  resolve(credentials.ProviderGemini, cfg.GeminiAPIKey),
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if geminiClient.Synthetic() {
		logger.Warn().Str("model", geminiClient.Model()).Msg("worker: gemini api key missing, using synthetic artwork")
	}

	remover := imageproc.NewRemover(nil, logger)
	segmentClient, err := segment.NewClient(segment.Options{
		APIKey:  resolve(credentials.ProviderSegment, cfg.SegmentAPIKey),
		BaseURL: cfg.SegmentBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure segmentation client")
	}
	if segmentClient.HasCredentials() {
		remover.Segmenter = segmentClient
	} else {
		logger.Info().Msg("worker: no segmentation key, uploads keep their background")
	}

	deps := pipeline.Deps{
		Jobs:      repo.NewJobRepository(sql),
		Artifacts: repo.NewArtifactRepository(sql),
		Sessions:  repo.NewSessionRepository(sql),
		Store:     store,
		Generator: geminiClient,
		Remover:   remover,
		Notifier:  pipeline.NewNotifier(repo.NewMessageRepository(sql), logger),
		Config: pipeline.Config{
			PrintTarget: design.PrintArea{
				Width:  cfg.PrintTargetWidth,
				Height: cfg.PrintTargetHeight,
				DPI:    cfg.PrintTargetDPI,
			},
			CatalogProductID: cfg.FulfillmentCatalogProductID,
			VariantIDs:       cfg.FulfillmentVariantIDs,
			RetailPrice:      cfg.FulfillmentRetailPrice,
			Mockups:          cfg.FulfillmentMockups,
		},
		Logger: logger,
	}
	deps.Enqueuer = pipeline.NewEnqueuer(deps.Jobs, q, logger)

	shop, err := fulfillment.NewClient(fulfillment.Options{
		APIKey:   resolve(credentials.ProviderFulfillment, cfg.FulfillmentAPIKey),
		BaseURL:  cfg.FulfillmentBaseURL,
		Logger:   &logger,
		Cache:    printfileCache(rdb, logger),
		CacheTTL: cfg.PrintfileCacheTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure fulfillment client")
	}
	if shop.HasCredentials() {
		deps.Fulfillment = shop
	} else {
		logger.Warn().Msg("worker: fulfillment api key missing, product jobs will fail")
	}

	worker := &pipeline.Worker{
		Runner:       pipeline.NewRunner(deps),
		Queue:        q,
		Jobs:         deps.Jobs,
		PollInterval: cfg.WorkerPollInterval,
		Logger:       logger,
	}
	if err := worker.Run(ctx, cfg.WorkerConcurrency); err != nil {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// printfileCache shares print area lookups across workers when redis is
// available.
func printfileCache(rdb *redis.Client, logger zerolog.Logger) cache.Cache[design.PrintArea] {
	if rdb == nil {
		return cache.NewMemory[design.PrintArea]()
	}
	return cache.NewRedis[design.PrintArea](rdb, "tailor:printfiles:", logger)
}
