package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talos-registry/talos-server/internal/config"
	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/health"
)

// Open connects to Postgres. TranslateError is required: the repositories
// depend on gorm.ErrDuplicatedKey to map unique-index violations.
func Open(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database connected")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.RefreshToken{},
		&domain.ApiKey{},
		&domain.ApiKeyAudit{},
		&domain.Template{},
		&domain.TemplateDependency{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// NewRedisClient returns nil when no address is configured; callers fall back
// to in-process caching.
func NewRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
}

func Checker(db *gorm.DB) health.Checker {
	return health.Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

func RedisChecker(client redis.UniversalClient) health.Checker {
	return health.Checker{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
