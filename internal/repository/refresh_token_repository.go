package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/observability"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenRevoked is returned by Rotate when the presented token
	// lost the conditional-revoke race or was already consumed.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	// Revoke marks a live token revoked. Returns false without error when the
	// token is absent or already revoked.
	Revoke(ctx context.Context, token string) (bool, error)
	// Rotate revokes the presented live token and inserts its replacement in
	// one transaction. A token that is no longer live yields
	// ErrRefreshTokenRevoked so a concurrent refresh loses cleanly.
	Rotate(ctx context.Context, oldToken string, replacement *domain.RefreshToken) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	err := r.db.WithContext(ctx).Create(token).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "create", "success")
	return nil
}

func (r *GormRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_token", "not_found")
			return nil, ErrRefreshTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "find_by_token", "success")
	return &t, nil
}

func (r *GormRefreshTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token = ? AND revoked = ?", token, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "revoke", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "revoke", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormRefreshTokenRepository) Rotate(ctx context.Context, oldToken string, replacement *domain.RefreshToken) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&domain.RefreshToken{}).
			Where("token = ? AND revoked = ?", oldToken, false).
			Updates(map[string]any{"revoked": true, "revoked_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshTokenRevoked
		}
		return tx.Create(replacement).Error
	})
	if err != nil {
		if errors.Is(err, ErrRefreshTokenRevoked) {
			observability.RecordRepositoryOperation(ctx, "refresh_token", "rotate", "revoked")
		} else {
			observability.RecordRepositoryOperation(ctx, "refresh_token", "rotate", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "rotate", "success")
	return nil
}

func (r *GormRefreshTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", cutoff).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "refresh_token", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "refresh_token", "delete_expired", "success")
	return res.RowsAffected, nil
}
