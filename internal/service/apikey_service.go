package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/security"
)

var ErrApiKeyNotFound = errors.New("api key not found")

type MintKeyRequest struct {
	Owner     string         `json:"owner"`
	Role      string         `json:"role"`
	Scope     string         `json:"scope"`
	ExpiresIn *time.Duration `json:"expiresIn,omitempty"`
}

// MintedKey is the only place the raw key value ever leaves the service.
// Listings return the stored rows with the key field suppressed.
type MintedKey struct {
	Key       string     `json:"key"`
	Owner     string     `json:"owner"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type ApiKeyService struct {
	keys   repository.ApiKeyRepository
	logger *slog.Logger
}

func NewApiKeyService(keys repository.ApiKeyRepository, logger *slog.Logger) *ApiKeyService {
	return &ApiKeyService{keys: keys, logger: logger}
}

func (s *ApiKeyService) Mint(ctx context.Context, req MintKeyRequest) (*MintedKey, error) {
	if req.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	value, err := security.NewAPIKey()
	if err != nil {
		return nil, fmt.Errorf("mint api key: %w", err)
	}
	key := &domain.ApiKey{
		Key:      value,
		Owner:    req.Owner,
		Role:     role,
		IsActive: true,
	}
	if req.ExpiresIn != nil {
		expires := time.Now().Add(*req.ExpiresIn)
		key.ExpiresAt = &expires
	}
	if req.Scope != "" {
		scope := req.Scope
		key.Scope = &scope
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.InfoContext(ctx, "api key minted",
		"owner", key.Owner, "role", key.Role, "key_prefix", security.TokenPrefix(key.Key))
	return &MintedKey{Key: key.Key, Owner: key.Owner, Role: key.Role, ExpiresAt: key.ExpiresAt}, nil
}

func (s *ApiKeyService) Revoke(ctx context.Context, key string) error {
	changed, err := s.keys.Deactivate(ctx, key)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if !changed {
		if _, err := s.keys.FindByKey(ctx, key); errors.Is(err, repository.ErrApiKeyNotFound) {
			return ErrApiKeyNotFound
		}
		// Already inactive; revocation is idempotent.
		return nil
	}
	s.logger.InfoContext(ctx, "api key revoked", "key_prefix", security.TokenPrefix(key))
	return nil
}

func (s *ApiKeyService) List(ctx context.Context) ([]domain.ApiKey, error) {
	return s.keys.List(ctx)
}

// SeedFromConfig mints one key per configured owner on first boot. Owners
// that already hold any key are skipped, so restarting the server does not
// multiply keys.
func (s *ApiKeyService) SeedFromConfig(ctx context.Context, owners []string) ([]MintedKey, error) {
	if len(owners) == 0 {
		return nil, nil
	}
	count, err := s.keys.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count api keys: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	minted := make([]MintedKey, 0, len(owners))
	for _, owner := range owners {
		key, err := s.Mint(ctx, MintKeyRequest{Owner: owner, Role: domain.RoleAdmin})
		if err != nil {
			return minted, fmt.Errorf("seed key for %s: %w", owner, err)
		}
		minted = append(minted, *key)
	}
	s.logger.InfoContext(ctx, "seeded api keys", "count", len(minted))
	return minted, nil
}
