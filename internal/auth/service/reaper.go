package service

import (
	"context"
	"log"
	"time"

	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
)

// Reaper periodically hard-deletes expired refresh and reset tokens. The
// sweep is a plain DELETE WHERE predicate, so any number of instances may
// run it concurrently without coordination.
type Reaper struct {
	repo     domain.UserRepository
	interval time.Duration
}

func NewReaper(repo domain.UserRepository, interval time.Duration) *Reaper {
	return &Reaper{repo: repo, interval: interval}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) {
	refreshCount, err := r.repo.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		log.Printf("warn: failed to delete expired refresh tokens: %v", err)
	}

	resetCount, err := r.repo.DeleteExpiredResetTokens(ctx)
	if err != nil {
		log.Printf("warn: failed to delete expired reset tokens: %v", err)
	}

	if refreshCount > 0 || resetCount > 0 {
		log.Printf("reaper: deleted %d expired refresh tokens, %d expired reset tokens",
			refreshCount, resetCount)
	}
}
