package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dramaforge/dramaforge-backend/api/routes"
	"github.com/dramaforge/dramaforge-backend/internal/audioclips"
	"github.com/dramaforge/dramaforge-backend/internal/auth"
	"github.com/dramaforge/dramaforge-backend/internal/billing"
	"github.com/dramaforge/dramaforge-backend/internal/characters"
	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/jobs"
	"github.com/dramaforge/dramaforge-backend/internal/pipeline"
	"github.com/dramaforge/dramaforge-backend/internal/projects"
	"github.com/dramaforge/dramaforge-backend/internal/providers"
	"github.com/dramaforge/dramaforge-backend/internal/scripts"
	"github.com/dramaforge/dramaforge-backend/internal/users"
	"github.com/dramaforge/dramaforge-backend/internal/voices"
	stripewebhook "github.com/dramaforge/dramaforge-backend/internal/webhooks/stripe"
	"github.com/dramaforge/dramaforge-backend/pkg/auth/session"
	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
	"github.com/dramaforge/dramaforge-backend/pkg/metrics"
	"github.com/dramaforge/dramaforge-backend/pkg/migrate"
	"github.com/dramaforge/dramaforge-backend/pkg/redis"
	"github.com/dramaforge/dramaforge-backend/pkg/storage"
	pkgstripe "github.com/dramaforge/dramaforge-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	generationMetrics := metrics.NewGenerationMetrics(registry)

	var uploader storage.Uploader
	if cfg.Storage.Endpoint != "" {
		store, err := storage.New(ctx, cfg.Storage, logg)
		if err != nil {
			logg.Error(ctx, "failed to connect object storage", err)
			os.Exit(1)
		}
		uploader = store
	} else {
		logg.Warn(ctx, "object storage unconfigured, media falls back to data URLs")
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

	writers := map[string]providers.ScriptProvider{"openai": openAI}
	if cfg.Providers.GeminiKey != "" {
		gemini, err := providers.NewGeminiClient(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiModel)
		if err != nil {
			logg.Error(ctx, "failed to create gemini client", err)
			os.Exit(1)
		}
		writers["gemini"] = gemini
	}
	speech := map[enums.AudioProvider]providers.SpeechProvider{
		enums.AudioProviderOpenAI:     openAI,
		enums.AudioProviderElevenLabs: eleven,
	}

	userRepo := users.NewRepository(dbClient.DB())
	jobRepo := jobs.NewRepository(dbClient.DB())
	projectRepo := projects.NewRepository(dbClient.DB())
	characterRepo := characters.NewRepository(dbClient.DB())
	scriptRepo := scripts.NewRepository(dbClient.DB())
	voiceRepo := voices.NewRepository(dbClient.DB())
	audioClipRepo := audioclips.NewRepository(dbClient.DB())
	runRepo := pipeline.NewRepository(dbClient.DB())

	creditService, err := credits.NewService(credits.NewRepository(dbClient.DB()), dbClient, generationMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create credit service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		CreditGranter:  creditService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(userRepo)
	if err != nil {
		logg.Error(ctx, "failed to create user service", err)
		os.Exit(1)
	}

	projectService, err := projects.NewService(projectRepo)
	if err != nil {
		logg.Error(ctx, "failed to create project service", err)
		os.Exit(1)
	}

	characterService, err := characters.NewService(characterRepo, openAI, creditService, jobRepo, cfg.Credits.ImageCost, logg, generationMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create character service", err)
		os.Exit(1)
	}

	scriptService, err := scripts.NewService(scripts.ServiceParams{
		Repo:       scriptRepo,
		Projects:   projectRepo,
		Characters: characterRepo,
		Writers:    writers,
		Gate:       creditService,
		Jobs:       jobRepo,
		Locks:      redisClient,
		ScriptCost: cfg.Credits.ScriptCost,
		Logger:     logg,
		Metrics:    generationMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create script service", err)
		os.Exit(1)
	}

	voiceService, err := voices.NewService(voiceRepo, eleven, creditService, jobRepo, cfg.Credits.VoiceCloneCost, logg)
	if err != nil {
		logg.Error(ctx, "failed to create voice service", err)
		os.Exit(1)
	}

	audioClipService, err := audioclips.NewService(audioclips.ServiceParams{
		Repo:      audioClipRepo,
		Voices:    voiceRepo,
		Speech:    speech,
		Gate:      creditService,
		Jobs:      jobRepo,
		Uploader:  uploader,
		AudioCost: cfg.Credits.AudioCost,
		Logger:    logg,
		Metrics:   generationMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create audio clip service", err)
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

	// Run progress flows through Redis pub/sub: the orchestrator
	// publishes snapshots, and a relay feeds every event back into the
	// local hub so websocket subscribers see updates no matter which
	// process produced them.
	hub := pipeline.NewHub()
	go func() {
		if err := pipeline.RelayRunEvents(ctx, redisClient, hub, logg); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "run event relay stopped", err)
		}
	}()

	pipelineService, err := pipeline.NewService(pipeline.ServiceParams{
		Repo:       runRepo,
		Projects:   projectRepo,
		Scripts:    scriptRepo,
		AudioClips: audioClipRepo,
		Jobs:       jobRepo,
		Gate:       creditService,
		Clips:      map[enums.VideoProvider]providers.ClipProvider{enums.VideoProviderKling: kling},
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

	var (
		stripeClient   *pkgstripe.Client
		billingService billing.Service
		webhookService *stripewebhook.Service
		webhookGuard   *stripewebhook.IdempotencyGuard
	)
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(ctx, "failed to create stripe client", err)
			os.Exit(1)
		}
		billingService, err = billing.NewService(billing.ServiceParams{
			StripeClient: billing.NewStripeClient(stripeClient),
			UserRepo:     userRepo,
			StripeConfig: cfg.Stripe,
		})
		if err != nil {
			logg.Error(ctx, "failed to create billing service", err)
			os.Exit(1)
		}
		webhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			UserRepo:      userRepo,
			CreditGranter: creditService,
			Logger:        logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create webhook service", err)
			os.Exit(1)
		}
		webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
		if err != nil {
			logg.Error(ctx, "failed to create webhook guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "stripe unconfigured, billing endpoints disabled")
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		SessionManager: sessionManager,

		AuthService:      authService,
		UserService:      userService,
		CreditService:    creditService,
		ProjectService:   projectService,
		CharacterService: characterService,
		ScriptService:    scriptService,
		VoiceService:     voiceService,
		AudioClipService: audioClipService,
		PipelineService:  pipelineService,
		Hub:              hub,
		BillingService:   billingService,
		StripeClient:     stripeClient,
		WebhookService:   webhookService,
		WebhookGuard:     webhookGuard,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "api server shutdown failed", err)
		}
		logg.Info(runCtx, "api server shut down gracefully")
	}
}
