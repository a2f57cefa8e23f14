package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dramaforge/dramaforge-backend/internal/audioclips"
	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/jobs"
	"github.com/dramaforge/dramaforge-backend/internal/pipeline"
	"github.com/dramaforge/dramaforge-backend/internal/projects"
	"github.com/dramaforge/dramaforge-backend/internal/providers"
	"github.com/dramaforge/dramaforge-backend/internal/scripts"
	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	"github.com/dramaforge/dramaforge-backend/pkg/instance"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
	"github.com/dramaforge/dramaforge-backend/pkg/metrics"
	"github.com/dramaforge/dramaforge-backend/pkg/redis"
	"github.com/dramaforge/dramaforge-backend/pkg/storage"
)

// The worker process consumes queued production runs and drives them
// through the stage machine. It shares the orchestrator wiring with the
// API but never serves HTTP.
func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	generationMetrics := metrics.NewGenerationMetrics(prometheus.NewRegistry())

	var uploader storage.Uploader
	if cfg.Storage.Endpoint != "" {
		store, err := storage.New(ctx, cfg.Storage, logg)
		if err != nil {
			logg.Error(ctx, "failed to connect object storage", err)
			os.Exit(1)
		}
		uploader = store
	}

	httpTimeout := &http.Client{Timeout: cfg.Providers.RequestTimeout}
	openAI := providers.NewOpenAIClient(cfg.Providers.OpenAIKey,
		providers.WithOpenAIBaseURL(cfg.Providers.OpenAIBaseURL),
		providers.WithOpenAIHTTPClient(httpTimeout),
	)
	eleven := providers.NewElevenLabsClient(cfg.Providers.ElevenLabsKey,
		providers.WithElevenLabsBaseURL(cfg.Providers.ElevenBaseURL),
		providers.WithElevenLabsHTTPClient(httpTimeout),
	)
	kling := providers.NewKlingClient(cfg.Providers.KlingKey,
		providers.WithKlingBaseURL(cfg.Providers.KlingBaseURL),
		providers.WithKlingHTTPClient(httpTimeout),
	)
	speech := map[enums.AudioProvider]providers.SpeechProvider{
		enums.AudioProviderOpenAI:     openAI,
		enums.AudioProviderElevenLabs: eleven,
	}
	clips := map[enums.VideoProvider]providers.ClipProvider{
		enums.VideoProviderKling: kling,
	}

	creditService, err := credits.NewService(credits.NewRepository(dbClient.DB()), dbClient, generationMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create credit service", err)
		os.Exit(1)
	}

	runQueue, err := pipeline.NewQueue(cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to create run queue", err)
		os.Exit(1)
	}
	defer func() {
		if err := runQueue.Close(); err != nil {
			logg.Error(context.Background(), "error closing run queue", err)
		}
	}()

	pipelineService, err := pipeline.NewService(pipeline.ServiceParams{
		Repo:       pipeline.NewRepository(dbClient.DB()),
		Projects:   projects.NewRepository(dbClient.DB()),
		Scripts:    scripts.NewRepository(dbClient.DB()),
		AudioClips: audioclips.NewRepository(dbClient.DB()),
		Jobs:       jobs.NewRepository(dbClient.DB()),
		Gate:       creditService,
		Clips:      clips,
		Speech:     speech,
		Poller:     pipeline.NewPoller(cfg.Poller),
		Locks:      redisClient,
		Queue:      runQueue,
		Uploader:   uploader,
		Notifier:   pipeline.NewBroadcaster(redisClient, logg),
		Costs:      cfg.Credits,
		Logger:     logg,
		Metrics:    generationMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create pipeline service", err)
		os.Exit(1)
	}

	worker, err := pipeline.NewWorker(cfg.Redis, pipelineService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create worker", err)
		os.Exit(1)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	}), "starting production worker")

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "worker stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		worker.Shutdown()
		logg.Info(ctx, "worker shut down gracefully")
	}
}
