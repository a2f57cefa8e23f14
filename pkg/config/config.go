package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "DRAMAFORGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "DRAMAFORGE_APP_ENV"
	EnvPort       = "DRAMAFORGE_APP_PORT"
	EnvDBDSN      = "DRAMAFORGE_DB_DSN"
	EnvDBHost     = "DRAMAFORGE_DB_HOST"
	EnvDBUser     = "DRAMAFORGE_DB_USER"
	EnvDBName     = "DRAMAFORGE_DB_NAME"
	EnvRedisURL   = "DRAMAFORGE_REDIS_URL"
	EnvJWTSecret  = "DRAMAFORGE_JWT_SECRET"
	EnvJWTIssuer  = "DRAMAFORGE_JWT_ISSUER"
	EnvJWTExpMins = "DRAMAFORGE_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Providers     ProvidersConfig
	Credits       CreditsConfig
	Poller        PollerConfig
	Storage       StorageConfig
	Stripe        StripeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRAMAFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"DRAMAFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DRAMAFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRAMAFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DRAMAFORGE_DB_DSN"`
	Driver string `envconfig:"DRAMAFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DRAMAFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"DRAMAFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DRAMAFORGE_DB_USER"`
	LegacyPassword string `envconfig:"DRAMAFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DRAMAFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DRAMAFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DRAMAFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRAMAFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRAMAFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRAMAFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRAMAFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DRAMAFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"DRAMAFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRAMAFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRAMAFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRAMAFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRAMAFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRAMAFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRAMAFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"DRAMAFORGE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"DRAMAFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"DRAMAFORGE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"DRAMAFORGE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DRAMAFORGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DRAMAFORGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"DRAMAFORGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"DRAMAFORGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DRAMAFORGE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"DRAMAFORGE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DRAMAFORGE_AUTO_MIGRATE" default:"false"`
}

// ProvidersConfig carries the generative-AI credentials injected into the
// provider adapters at construction time. An empty key means the capability
// is unconfigured; adapters surface that as a typed condition instead of
// reading the environment at call sites.
type ProvidersConfig struct {
	OpenAIKey     string `envconfig:"DRAMAFORGE_OPENAI_API_KEY"`
	GeminiKey     string `envconfig:"DRAMAFORGE_GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"DRAMAFORGE_GEMINI_MODEL" default:"gemini-1.5-pro"`
	ElevenLabsKey string `envconfig:"DRAMAFORGE_ELEVENLABS_API_KEY"`
	KlingKey      string `envconfig:"DRAMAFORGE_KLING_API_KEY"`

	OpenAIBaseURL  string        `envconfig:"DRAMAFORGE_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	ElevenBaseURL  string        `envconfig:"DRAMAFORGE_ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io/v1"`
	KlingBaseURL   string        `envconfig:"DRAMAFORGE_KLING_BASE_URL" default:"https://api.klingai.com/v1"`
	RequestTimeout time.Duration `envconfig:"DRAMAFORGE_PROVIDER_REQUEST_TIMEOUT" default:"60s"`
}

// CreditsConfig prices each billable generation action. Defaults match the
// launch pricing and are overridable per environment.
type CreditsConfig struct {
	ImageCost      int `envconfig:"DRAMAFORGE_CREDITS_IMAGE" default:"1"`
	ScriptCost     int `envconfig:"DRAMAFORGE_CREDITS_SCRIPT" default:"1"`
	ClipCost       int `envconfig:"DRAMAFORGE_CREDITS_CLIP" default:"1"`
	AudioCost      int `envconfig:"DRAMAFORGE_CREDITS_AUDIO" default:"1"`
	ProductionCost int `envconfig:"DRAMAFORGE_CREDITS_PRODUCTION" default:"5"`
	VoiceCloneCost int `envconfig:"DRAMAFORGE_CREDITS_VOICE_CLONE" default:"5"`
}

// PollerConfig bounds the async video task polling loop. 3s x 15 attempts
// keeps the worst case around 45 seconds while giving a fast provider job a
// real chance to finish.
type PollerConfig struct {
	Interval    time.Duration `envconfig:"DRAMAFORGE_POLL_INTERVAL" default:"3s"`
	MaxAttempts int           `envconfig:"DRAMAFORGE_POLL_MAX_ATTEMPTS" default:"15"`
}

type StorageConfig struct {
	Endpoint  string        `envconfig:"DRAMAFORGE_STORAGE_ENDPOINT"`
	AccessKey string        `envconfig:"DRAMAFORGE_STORAGE_ACCESS_KEY"`
	SecretKey string        `envconfig:"DRAMAFORGE_STORAGE_SECRET_KEY"`
	Bucket    string        `envconfig:"DRAMAFORGE_STORAGE_BUCKET" default:"dramaforge-media"`
	UseSSL    bool          `envconfig:"DRAMAFORGE_STORAGE_USE_SSL" default:"true"`
	URLExpiry time.Duration `envconfig:"DRAMAFORGE_STORAGE_URL_EXPIRY" default:"72h"`
}

type StripeConfig struct {
	APIKey       string `envconfig:"DRAMAFORGE_STRIPE_API_KEY"`
	Secret       string `envconfig:"DRAMAFORGE_STRIPE_SECRET"`
	Env          string `envconfig:"DRAMAFORGE_STRIPE_ENV" default:"test"`
	BasicPriceID string `envconfig:"DRAMAFORGE_STRIPE_BASIC_PRICE_ID"`
	ProPriceID   string `envconfig:"DRAMAFORGE_STRIPE_PRO_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
