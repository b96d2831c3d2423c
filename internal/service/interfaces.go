package service

import (
	"context"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/repository"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetProfile(ctx context.Context, userID uint) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) error
}

type ApiKeyServiceInterface interface {
	Mint(ctx context.Context, req MintKeyRequest) (*MintedKey, error)
	Revoke(ctx context.Context, key string) error
	List(ctx context.Context) ([]domain.ApiKey, error)
	SeedFromConfig(ctx context.Context, owners []string) ([]MintedKey, error)
}

type TemplateServiceInterface interface {
	Get(ctx context.Context, id uint) (*domain.Template, error)
	List(ctx context.Context, query repository.TemplateListQuery) (repository.PageResult[domain.Template], error)
	Create(ctx context.Context, ownerID uint, req TemplateRequest) (*domain.Template, error)
	Update(ctx context.Context, ownerID, id uint, req TemplateRequest) (*domain.Template, error)
	Delete(ctx context.Context, ownerID, id uint) error
}
