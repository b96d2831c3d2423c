//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"
)

func InitializeApp(ctx context.Context) (*App, error) {
	wire.Build(
		provideConfig,
		provideLogging,
		provideRuntime,
		provideDatabase,
		provideRedis,
		provideJWTManager,
		provideTemplateCache,
		provideAuthService,
		provideApiKeyService,
		provideTemplateService,
		provideAPIKeyGate,
		provideReadiness,
		provideSweeper,
		provideRouter,
		provideServer,
		provideApp,
	)
	return nil, nil
}
