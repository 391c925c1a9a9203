package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pawn-ledger/internal/domain/ledger"
)

const dashboardKey = "pawn-ledger:dashboard"

// DashboardCache keeps the computed dashboard aggregate in Redis for a short
// TTL. Every failure path degrades to a cache miss; the aggregate is always
// recomputable from the ledger.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ledger.StatsCache = (*DashboardCache)(nil)

func NewDashboardCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "DashboardCache"),
	}
}

func (c *DashboardCache) GetDashboard(ctx context.Context) (*ledger.DashboardStats, bool) {
	raw, err := c.client.Get(ctx, dashboardKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Dashboard cache read failed", "error", err)
		}
		return nil, false
	}

	var stats ledger.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.WarnContext(ctx, "Dashboard cache entry not decodable, dropping it", "error", err)
		_ = c.client.Del(ctx, dashboardKey).Err()
		return nil, false
	}
	return &stats, true
}

func (c *DashboardCache) SetDashboard(ctx context.Context, stats *ledger.DashboardStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to encode dashboard stats for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, dashboardKey, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Dashboard cache write failed", "error", err)
	}
}

// Invalidate drops the cached aggregate. Called after writes that change the
// numbers so the next dashboard read reflects them immediately rather than
// after TTL expiry.
func (c *DashboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, dashboardKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "Dashboard cache invalidation failed", "error", err)
	}
}
