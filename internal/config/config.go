package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talos-registry/talos-server/internal/security"
)

type Config struct {
	Profile  string
	HTTPAddr string

	DatabaseURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	RedisAddr        string
	TemplateCacheTTL time.Duration

	APIKeyExemptPrefixes []string
	APIKeySeedOwners     []string

	AuthRateLimitRPM int
	APIRateLimitRPM  int
	CORSOrigins      []string

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

// Load builds the config from the environment and validates it. There is no
// fallback for the signing secret: a missing or short secret aborts startup.
func Load() (*Config, error) {
	cfg, err := load()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	profile := ""
	if cfg != nil {
		profile = cfg.Profile
	}
	recordConfigValidationEvent(context.Background(), profile, outcome, classifyConfigLoadError(err))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Profile:  getEnv("TALOS_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		APIKeyExemptPrefixes: getEnvList("API_KEY_EXEMPT_PREFIXES", []string{"/health", "/api/v1/auth/login"}),
		APIKeySeedOwners:     getEnvList("API_KEY_SEED_OWNERS", nil),

		CORSOrigins: getEnvList("CORS_ORIGINS", nil),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "talos-server"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
	}

	var err error
	if cfg.AccessTTL, err = getEnvDuration("JWT_ACCESS_TTL", 60*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RefreshTTL, err = getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.TemplateCacheTTL, err = getEnvDuration("TEMPLATE_CACHE_TTL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.OTELMetricsExportInterval, err = getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 20*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ShutdownHTTPDrainTimeout, err = getEnvDuration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ShutdownObservabilityTimeout, err = getEnvDuration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.AuthRateLimitRPM, err = getEnvInt("AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return cfg, err
	}
	if cfg.APIRateLimitRPM, err = getEnvInt("API_RATE_LIMIT_RPM", 300); err != nil {
		return cfg, err
	}
	if cfg.OTELMetricsEnabled, err = getEnvBool("OTEL_METRICS_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.OTELTracesEnabled, err = getEnvBool("OTEL_TRACES_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.OTELLogsEnabled, err = getEnvBool("OTEL_LOGS_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.OTELExporterOTLPInsecure, err = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("validate config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("validate config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < security.MinSecretLength {
		return fmt.Errorf("validate config: JWT_SECRET must be at least %d bytes", security.MinSecretLength)
	}
	if c.JWTIssuer == "" {
		return fmt.Errorf("validate config: JWT_ISSUER is required")
	}
	if c.JWTAudience == "" {
		return fmt.Errorf("validate config: JWT_AUDIENCE is required")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
