package auth

import (
	"context"
	"time"

	"github.com/openbadger/openbadger/internal/logger"
	"github.com/openbadger/openbadger/internal/repository"
)

const defaultReapInterval = 1 * time.Hour

// BlacklistReaper periodically deletes blacklist entries past their
// retention window. Postgres has no TTL index, the sweep gives the
// same property: entries never outlive the access token TTL window
// but are gone eventually.
type BlacklistReaper struct {
	blacklist repository.BlacklistRepo
	logger    logger.Logger
	interval  time.Duration
}

func NewBlacklistReaper(blacklist repository.BlacklistRepo, l logger.Logger, interval time.Duration) *BlacklistReaper {
	if interval <= 0 {
		interval = defaultReapInterval
	}

	return &BlacklistReaper{
		blacklist: blacklist,
		logger:    l,
		interval:  interval,
	}
}

// Run sweeps once immediately and then on every tick until the context
// is cancelled. Blocks, run it in its own goroutine.
func (r *BlacklistReaper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *BlacklistReaper) sweep(ctx context.Context) {
	deleted, err := r.blacklist.DeleteExpired(ctx, time.Now())
	if err != nil {
		r.logger.Error("failed to delete expired blacklist entries", "error", err)
		return
	}

	if deleted > 0 {
		r.logger.Info("expired blacklist entries removed", "count", deleted)
	}
}
