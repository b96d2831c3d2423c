package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/observability"
)

var ErrApiKeyNotFound = errors.New("api key not found")

type ApiKeyRepository interface {
	Create(ctx context.Context, key *domain.ApiKey) error
	FindByKey(ctx context.Context, key string) (*domain.ApiKey, error)
	List(ctx context.Context) ([]domain.ApiKey, error)
	Count(ctx context.Context) (int64, error)
	// Deactivate flips IsActive off. Returns false when the key is absent or
	// already inactive. Keys are never physically deleted.
	Deactivate(ctx context.Context, key string) (bool, error)
	AppendAudit(ctx context.Context, audit *domain.ApiKeyAudit) error
}

type GormApiKeyRepository struct{ db *gorm.DB }

func NewApiKeyRepository(db *gorm.DB) ApiKeyRepository { return &GormApiKeyRepository{db: db} }

func (r *GormApiKeyRepository) Create(ctx context.Context, key *domain.ApiKey) error {
	err := r.db.WithContext(ctx).Create(key).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "create", "success")
	return nil
}

func (r *GormApiKeyRepository) FindByKey(ctx context.Context, key string) (*domain.ApiKey, error) {
	var k domain.ApiKey
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&k).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "api_key", "find_by_key", "not_found")
			return nil, ErrApiKeyNotFound
		}
		observability.RecordRepositoryOperation(ctx, "api_key", "find_by_key", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "find_by_key", "success")
	return &k, nil
}

func (r *GormApiKeyRepository) List(ctx context.Context) ([]domain.ApiKey, error) {
	var keys []domain.ApiKey
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&keys).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "list", "success")
	return keys, nil
}

func (r *GormApiKeyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ApiKey{}).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "count", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "count", "success")
	return count, nil
}

func (r *GormApiKeyRepository) Deactivate(ctx context.Context, key string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.ApiKey{}).
		Where("key = ? AND is_active = ?", key, true).
		Update("is_active", false)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "api_key", "deactivate", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "api_key", "deactivate", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormApiKeyRepository) AppendAudit(ctx context.Context, audit *domain.ApiKeyAudit) error {
	err := r.db.WithContext(ctx).Create(audit).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "api_key_audit", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "api_key_audit", "create", "success")
	return nil
}
