package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/talos-registry/talos-server/internal/config"
	"github.com/talos-registry/talos-server/internal/database"
	"github.com/talos-registry/talos-server/internal/health"
	"github.com/talos-registry/talos-server/internal/http/handler"
	"github.com/talos-registry/talos-server/internal/http/middleware"
	"github.com/talos-registry/talos-server/internal/http/router"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/security"
	"github.com/talos-registry/talos-server/internal/service"
)

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogging(ctx context.Context, cfg *config.Config) (*slog.Logger, *sdklog.LoggerProvider, error) {
	return observability.InitLogging(ctx, cfg)
}

func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, loggerProvider *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, loggerProvider)
}

func provideDatabase(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedis(cfg *config.Config) redis.UniversalClient {
	return database.NewRedisClient(cfg)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret, cfg.AccessTTL)
}

func provideTemplateCache(client redis.UniversalClient) service.TemplateCacheStore {
	if client == nil {
		return service.NewInMemoryTemplateCacheStore()
	}
	return service.NewRedisTemplateCacheStore(client, "template_cache")
}

func provideAuthService(db *gorm.DB, jwtMgr *security.JWTManager, cfg *config.Config, logger *slog.Logger) service.AuthServiceInterface {
	return service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		repository.NewTemplateRepository(db),
		jwtMgr,
		cfg.RefreshTTL,
		logger,
	)
}

func provideApiKeyService(db *gorm.DB, logger *slog.Logger) service.ApiKeyServiceInterface {
	return service.NewApiKeyService(repository.NewApiKeyRepository(db), logger)
}

func provideTemplateService(db *gorm.DB, cache service.TemplateCacheStore, cfg *config.Config, logger *slog.Logger) service.TemplateServiceInterface {
	return service.NewTemplateService(repository.NewTemplateRepository(db), cache, cfg.TemplateCacheTTL, logger)
}

func provideAPIKeyGate(db *gorm.DB, cfg *config.Config, logger *slog.Logger) *middleware.APIKeyGate {
	return middleware.NewAPIKeyGate(repository.NewApiKeyRepository(db), cfg.APIKeyExemptPrefixes, logger)
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{database.Checker(db)}
	if client != nil {
		checkers = append(checkers, database.RedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, checkers...)
}

func provideSweeper(db *gorm.DB, cfg *config.Config, logger *slog.Logger) *service.TokenSweeper {
	sweeper := service.NewTokenSweeper(
		repository.NewRefreshTokenRepository(db),
		time.Hour,
		cfg.RefreshTTL,
		logger,
	)
	sweeper.Start()
	return sweeper
}

func provideRouter(
	authSvc service.AuthServiceInterface,
	templateSvc service.TemplateServiceInterface,
	keySvc service.ApiKeyServiceInterface,
	jwtMgr *security.JWTManager,
	gate *middleware.APIKeyGate,
	readiness *health.ProbeRunner,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc, logger),
		TemplateHandler:  handler.NewTemplateHandler(templateSvc, logger),
		ApiKeyHandler:    handler.NewApiKeyAdminHandler(keySvc, logger),
		JWTManager:       jwtMgr,
		APIKeyGate:       gate,
		Logger:           logger,
		CORSOrigins:      cfg.CORSOrigins,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracesEnabled,
	})
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideApp(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	client redis.UniversalClient,
	readiness *health.ProbeRunner,
	keySvc service.ApiKeyServiceInterface,
	sweeper *service.TokenSweeper,
) (*App, error) {
	if err := seedAPIKeys(ctx, cfg, keySvc, logger); err != nil {
		return nil, err
	}
	return New(cfg, logger, server, runtime, db, client, readiness, sweeper.Stop), nil
}

// seedAPIKeys runs once on an empty key table. Minted values are logged in
// full on purpose: this is their only exposure and the operator needs them.
func seedAPIKeys(ctx context.Context, cfg *config.Config, keySvc service.ApiKeyServiceInterface, logger *slog.Logger) error {
	minted, err := keySvc.SeedFromConfig(ctx, cfg.APIKeySeedOwners)
	if err != nil {
		return fmt.Errorf("seed api keys: %w", err)
	}
	for _, key := range minted {
		logger.Warn("seeded api key, store it now", "owner", key.Owner, "key", key.Key)
	}
	return nil
}
