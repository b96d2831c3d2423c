package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talos-registry/talos-server/internal/repository"
)

// TokenSweeper periodically deletes refresh tokens whose expiry is older than
// the retention window. Revoked-but-unexpired rows are kept so a replayed
// token still reports "revoked" rather than "invalid".
type TokenSweeper struct {
	tokens    repository.RefreshTokenRepository
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewTokenSweeper(tokens repository.RefreshTokenRepository, interval, retention time.Duration, logger *slog.Logger) *TokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention < 0 {
		retention = 0
	}
	return &TokenSweeper{
		tokens:    tokens,
		interval:  interval,
		retention: retention,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

func (s *TokenSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop blocks until the sweep loop has exited. Safe to call more than once.
func (s *TokenSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *TokenSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.tokens.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("refresh token sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("swept expired refresh tokens", "deleted", deleted)
	}
}
