package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/repository"
)

func TestTokenSweeperDeletesExpired(t *testing.T) {
	tokens := newInMemoryRefreshTokenRepo()
	ctx := context.Background()
	if err := tokens.Create(ctx, &domain.RefreshToken{Token: "stale", UserID: 1, ExpiresAt: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tokens.Create(ctx, &domain.RefreshToken{Token: "live", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sweeper := NewTokenSweeper(tokens, 5*time.Millisecond, 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sweeper.Start()
	defer sweeper.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := tokens.FindByToken(ctx, "stale"); errors.Is(err, repository.ErrRefreshTokenNotFound) {
			if _, err := tokens.FindByToken(ctx, "live"); err != nil {
				t.Fatalf("live token should survive the sweep: %v", err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected stale token to be swept")
}

func TestTokenSweeperStopIsIdempotent(t *testing.T) {
	sweeper := NewTokenSweeper(newInMemoryRefreshTokenRepo(), time.Millisecond, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sweeper.Start()
	sweeper.Stop()
	sweeper.Stop()
}
