package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dramaforge/dramaforge-backend/api/controllers"
	billingcontrollers "github.com/dramaforge/dramaforge-backend/api/controllers/billing"
	webhookcontrollers "github.com/dramaforge/dramaforge-backend/api/controllers/webhooks"
	"github.com/dramaforge/dramaforge-backend/api/middleware"
	"github.com/dramaforge/dramaforge-backend/internal/audioclips"
	"github.com/dramaforge/dramaforge-backend/internal/auth"
	"github.com/dramaforge/dramaforge-backend/internal/billing"
	"github.com/dramaforge/dramaforge-backend/internal/characters"
	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/pipeline"
	"github.com/dramaforge/dramaforge-backend/internal/projects"
	"github.com/dramaforge/dramaforge-backend/internal/scripts"
	"github.com/dramaforge/dramaforge-backend/internal/users"
	"github.com/dramaforge/dramaforge-backend/internal/voices"
	stripewebhook "github.com/dramaforge/dramaforge-backend/internal/webhooks/stripe"
	"github.com/dramaforge/dramaforge-backend/pkg/auth/session"
	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
	"github.com/dramaforge/dramaforge-backend/pkg/redis"
	"github.com/dramaforge/dramaforge-backend/pkg/stripe"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionManager session.AccessSessionChecker

	AuthService       auth.Service
	UserService       users.Service
	CreditService     credits.Service
	ProjectService    projects.Service
	CharacterService  characters.Service
	ScriptService     scripts.Service
	VoiceService      voices.Service
	AudioClipService  audioclips.Service
	PipelineService   pipeline.Service
	Hub               *pipeline.Hub
	BillingService    billing.Service
	StripeClient      *stripe.Client
	WebhookService    *stripewebhook.Service
	WebhookGuard      *stripewebhook.IdempotencyGuard
	MetricsHandler   http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.MetricsHandler != nil {
		r.Handle("/metrics", p.MetricsHandler)
	}

	// Only mounted when Stripe is configured; the typed-nil pointers
	// would otherwise defeat the controller's interface nil checks.
	if p.WebhookService != nil && p.StripeClient != nil && p.WebhookGuard != nil {
		r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, logg))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
	})

	r.Get("/api/v1/billing/plans", billingcontrollers.Plans(p.BillingService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionManager, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.UserProfile(p.UserService, logg))
			r.Patch("/", controllers.UserUpdateProfile(p.UserService, logg))
			r.Get("/credits", controllers.CreditBalance(p.CreditService, logg))
			r.Get("/credits/ledger", controllers.CreditLedger(p.CreditService, logg))
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", controllers.ProjectCreate(p.ProjectService, logg))
			r.Get("/", controllers.ProjectList(p.ProjectService, logg))
			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", controllers.ProjectGet(p.ProjectService, logg))
				r.Patch("/", controllers.ProjectUpdate(p.ProjectService, logg))
				r.Delete("/", controllers.ProjectDelete(p.ProjectService, logg))

				r.Post("/script", controllers.ScriptGenerate(p.ScriptService, logg))
				r.Get("/script", controllers.ScriptLatest(p.ScriptService, logg))
				r.Get("/script/versions", controllers.ScriptVersions(p.ScriptService, logg))

				r.Post("/production", controllers.ProductionStart(p.PipelineService, logg))
				r.Get("/runs", controllers.RunList(p.PipelineService, logg))
				r.Post("/scenes/{sceneNumber}/clip", controllers.SceneClipGenerate(p.PipelineService, logg))
			})
		})

		r.Route("/runs/{runId}", func(r chi.Router) {
			r.Get("/", controllers.RunGet(p.PipelineService, logg))
			r.Get("/ws", controllers.RunEvents(p.PipelineService, p.Hub, logg))
		})

		r.Route("/characters", func(r chi.Router) {
			r.Post("/", controllers.CharacterCreate(p.CharacterService, logg))
			r.Get("/", controllers.CharacterList(p.CharacterService, logg))
			r.Post("/generate-images", controllers.CharacterGenerateImages(p.CharacterService, logg))
			r.Route("/{characterId}", func(r chi.Router) {
				r.Get("/", controllers.CharacterGet(p.CharacterService, logg))
				r.Patch("/", controllers.CharacterUpdate(p.CharacterService, logg))
				r.Delete("/", controllers.CharacterDelete(p.CharacterService, logg))
			})
		})

		r.Route("/voices", func(r chi.Router) {
			r.Get("/", controllers.VoiceList(p.VoiceService, logg))
			r.Post("/clone", controllers.VoiceClone(p.VoiceService, logg))
			r.Route("/{voiceId}", func(r chi.Router) {
				r.Get("/", controllers.VoiceGet(p.VoiceService, logg))
				r.Delete("/", controllers.VoiceDelete(p.VoiceService, logg))
			})
		})

		r.Route("/audio-clips", func(r chi.Router) {
			r.Post("/", controllers.AudioGenerate(p.AudioClipService, logg))
			r.Get("/", controllers.AudioList(p.AudioClipService, logg))
			r.Route("/{clipId}", func(r chi.Router) {
				r.Get("/", controllers.AudioGet(p.AudioClipService, logg))
				r.Delete("/", controllers.AudioDelete(p.AudioClipService, logg))
				r.Post("/favorite", controllers.AudioToggleFavorite(p.AudioClipService, logg))
				r.Post("/reuse", controllers.AudioReuse(p.AudioClipService, logg))
			})
		})

		r.Post("/billing/checkout", billingcontrollers.Checkout(p.BillingService, logg))
	})

	return r
}
