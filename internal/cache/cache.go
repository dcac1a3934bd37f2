package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prompt-clan/prompt-arena/internal/models"
)

const leaderboardKey = "arena:leaderboard"

// Cache is a Redis-backed read cache for hot endpoints. A nil *Cache is
// valid and behaves as a permanent miss, so callers never branch on
// whether Redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection
func New(address, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// GetLeaderboard returns the cached leaderboard, or (nil, false) on miss
func (c *Cache) GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("leaderboard cache read failed", "error", err)
		}
		return nil, false
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("leaderboard cache entry corrupt, dropping", "error", err)
		c.client.Del(ctx, leaderboardKey)
		return nil, false
	}
	return entries, true
}

// SetLeaderboard stores the leaderboard with the configured TTL
func (c *Cache) SetLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) {
	if c == nil {
		return
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, leaderboardKey, data, c.ttl).Err(); err != nil {
		slog.Warn("leaderboard cache write failed", "error", err)
	}
}

// InvalidateLeaderboard drops the cached leaderboard; called after a
// successful submission changes the standings
func (c *Cache) InvalidateLeaderboard(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, leaderboardKey).Err(); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
}

// Close shuts down the Redis client
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
