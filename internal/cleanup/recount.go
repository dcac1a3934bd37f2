package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/cache"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

// UserLister is the extra surface the recounter needs beyond Repository
type UserLister interface {
	AllUserIDs(ctx context.Context) ([]string, error)
}

// Recounter periodically recomputes every user's flag count from their
// submission history. Stats updated in-path can drift only through
// operator edits or partial restores; this worker heals such drift.
type Recounter struct {
	repo     storage.Repository
	users    UserLister
	cache    *cache.Cache
	interval time.Duration
}

// NewRecounter creates a new recount worker
func NewRecounter(repo storage.Repository, users UserLister, c *cache.Cache, interval time.Duration) *Recounter {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Recounter{
		repo:     repo,
		users:    users,
		cache:    c,
		interval: interval,
	}
}

// Start begins the recount worker in a goroutine
func (r *Recounter) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Recounter) run(ctx context.Context) {
	slog.Info("recount worker started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("recount worker stopped")
			return
		case <-ticker.C:
			r.recount(ctx)
		}
	}
}

func (r *Recounter) recount(ctx context.Context) {
	ids, err := r.users.AllUserIDs(ctx)
	if err != nil {
		slog.Error("failed to list users for recount", "error", err)
		return
	}

	changed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.repo.RecountFlags(ctx, id); err != nil {
			slog.Error("failed to recount flags", "user_id", id, "error", err)
			continue
		}
		changed++
	}

	if changed > 0 {
		r.cache.InvalidateLeaderboard(ctx)
	}
	slog.Debug("recount cycle finished", "users", changed)
}
