package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values used by the backend service.
type Config struct {
	// ServerAddress is the host:port pair the HTTP server listens on. Defaults to ":18111".
	ServerAddress string

	// Env selects logging mode. "production" enables JSON logs.
	Env string

	// DatabaseURL is the Postgres DSN. Either supplied directly or built from
	// the Supabase values below.
	DatabaseURL string

	// SupabaseProjectRef identifies the hosted project (the "abcd" in db.abcd.supabase.co).
	SupabaseProjectRef string

	// SupabaseDBPassword is the service credential for the hosted database.
	SupabaseDBPassword string

	// SupabaseDBUser defaults to "postgres".
	SupabaseDBUser string

	// SupabaseDBName defaults to "postgres".
	SupabaseDBName string

	// StripeSecretKey authenticates outbound payment-provider calls.
	StripeSecretKey string

	// StripeWebhookSecret verifies inbound webhook signatures.
	StripeWebhookSecret string

	// StripeAPIURL overrides the provider endpoint, e.g. for stripe-mock.
	StripeAPIURL string

	// StripeTimeout bounds each outbound provider request.
	StripeTimeout time.Duration

	// Default redirect targets when a checkout request omits them.
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// RedisURL enables webhook event de-duplication when set.
	RedisURL string

	// KafkaBrokers and KafkaTopic enable registration-completed publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// JaegerEndpoint enables trace export when set.
	JaegerEndpoint string

	// WorkerConcurrency and WorkerQueueSize size the background reconciliation pool.
	WorkerConcurrency int
	WorkerQueueSize   int

	// AdminAPIToken guards the manual subscription sync endpoint. Empty disables it.
	AdminAPIToken string
}

const (
	defaultServerAddress     = ":18111"
	defaultEnv               = "development"
	defaultSupabaseDBUser    = "postgres"
	defaultSupabaseDBName    = "postgres"
	defaultStripeTimeout     = 30 * time.Second
	defaultKafkaTopic        = "course-registrations"
	defaultWorkerConcurrency = 4
	defaultWorkerQueueSize   = 256

	envServerAddress      = "BACKEND_ADDR"
	envEnv                = "APP_ENV"
	envDatabaseURL        = "DATABASE_URL"
	envSupabaseProjectRef = "SUPABASE_PROJECT_REF"
	envSupabaseDBPassword = "SUPABASE_DB_PASSWORD"
	envSupabaseDBUser     = "SUPABASE_DB_USER"
	envSupabaseDBName     = "SUPABASE_DB_NAME"
	envStripeSecretKey    = "STRIPE_SECRET_KEY"
	envStripeWebhookKey   = "STRIPE_WEBHOOK_SECRET"
	envStripeAPIURL       = "STRIPE_API_URL"
	envStripeTimeout      = "STRIPE_TIMEOUT"
	envCheckoutSuccessURL = "CHECKOUT_SUCCESS_URL"
	envCheckoutCancelURL  = "CHECKOUT_CANCEL_URL"
	envRedisURL           = "REDIS_URL"
	envKafkaBrokers       = "KAFKA_BROKERS"
	envKafkaTopic         = "KAFKA_TOPIC"
	envJaegerEndpoint     = "JAEGER_ENDPOINT"
	envWorkerConcurrency  = "WORKER_CONCURRENCY"
	envWorkerQueueSize    = "WORKER_QUEUE_SIZE"
	envAdminAPIToken      = "ADMIN_API_TOKEN"
)

// Load reads configuration from environment variables, applies defaults, and returns
// a Config structure. Required values return an error when missing.
func Load() (Config, error) {
	cfg := Config{
		ServerAddress:       firstNonEmpty(os.Getenv(envServerAddress), defaultServerAddress),
		Env:                 firstNonEmpty(os.Getenv(envEnv), defaultEnv),
		DatabaseURL:         strings.TrimSpace(os.Getenv(envDatabaseURL)),
		SupabaseProjectRef:  strings.TrimSpace(os.Getenv(envSupabaseProjectRef)),
		SupabaseDBPassword:  os.Getenv(envSupabaseDBPassword),
		SupabaseDBUser:      firstNonEmpty(os.Getenv(envSupabaseDBUser), defaultSupabaseDBUser),
		SupabaseDBName:      firstNonEmpty(os.Getenv(envSupabaseDBName), defaultSupabaseDBName),
		StripeSecretKey:     strings.TrimSpace(os.Getenv(envStripeSecretKey)),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv(envStripeWebhookKey)),
		StripeAPIURL:        strings.TrimSpace(os.Getenv(envStripeAPIURL)),
		StripeTimeout:       defaultStripeTimeout,
		CheckoutSuccessURL:  os.Getenv(envCheckoutSuccessURL),
		CheckoutCancelURL:   os.Getenv(envCheckoutCancelURL),
		RedisURL:            strings.TrimSpace(os.Getenv(envRedisURL)),
		KafkaBrokers:        splitList(os.Getenv(envKafkaBrokers)),
		KafkaTopic:          firstNonEmpty(os.Getenv(envKafkaTopic), defaultKafkaTopic),
		JaegerEndpoint:      strings.TrimSpace(os.Getenv(envJaegerEndpoint)),
		WorkerConcurrency:   defaultWorkerConcurrency,
		WorkerQueueSize:     defaultWorkerQueueSize,
		AdminAPIToken:       os.Getenv(envAdminAPIToken),
	}

	if value := os.Getenv(envStripeTimeout); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", envStripeTimeout, value)
		}
		cfg.StripeTimeout = d
	}

	var err error
	if cfg.WorkerConcurrency, err = positiveInt(envWorkerConcurrency, cfg.WorkerConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.WorkerQueueSize, err = positiveInt(envWorkerQueueSize, cfg.WorkerQueueSize); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL, err = resolveDatabaseURL(cfg); err != nil {
		return Config{}, err
	}

	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("%s is required", envStripeSecretKey)
	}
	if cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("%s is required", envStripeWebhookKey)
	}

	return cfg, nil
}

// LoadDatabaseURL resolves only the Postgres DSN. Tools that just touch the
// schema use it so they don't need payment credentials.
func LoadDatabaseURL() (string, error) {
	return resolveDatabaseURL(Config{
		DatabaseURL:        strings.TrimSpace(os.Getenv(envDatabaseURL)),
		SupabaseProjectRef: strings.TrimSpace(os.Getenv(envSupabaseProjectRef)),
		SupabaseDBPassword: os.Getenv(envSupabaseDBPassword),
		SupabaseDBUser:     firstNonEmpty(os.Getenv(envSupabaseDBUser), defaultSupabaseDBUser),
		SupabaseDBName:     firstNonEmpty(os.Getenv(envSupabaseDBName), defaultSupabaseDBName),
	})
}

func resolveDatabaseURL(cfg Config) (string, error) {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, nil
	}
	if cfg.SupabaseProjectRef == "" || cfg.SupabaseDBPassword == "" {
		return "", fmt.Errorf("%s is required (or %s and %s)", envDatabaseURL, envSupabaseProjectRef, envSupabaseDBPassword)
	}
	return buildDatabaseURL(cfg), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return n, nil
}

func buildDatabaseURL(cfg Config) string {
	u := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(cfg.SupabaseDBUser, cfg.SupabaseDBPassword),
		Host:   fmt.Sprintf("db.%s.supabase.co:5432", cfg.SupabaseProjectRef),
		Path:   "/" + cfg.SupabaseDBName,
	}

	q := u.Query()
	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()

	return u.String()
}
