// Package redis caches Tcorr lookups in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	goredis "github.com/redis/go-redis/v9"
)

// CachedTcorrStore wraps a TcorrStore with a Redis read-through cache. Only
// found entries are cached: corrections are inserted as scenes are processed,
// so a miss now may be a hit later. Redis failures are logged and fall
// through to the inner store.
type CachedTcorrStore struct {
	inner   domain.TcorrStore
	client  *goredis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedTcorrStore creates a cache decorator. Entries expire after ttl.
func NewCachedTcorrStore(inner domain.TcorrStore, client *goredis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedTcorrStore {
	return &CachedTcorrStore{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// NewClient opens a Redis client for addr. It does not dial.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

// CheckReadiness pings Redis.
func (c *CachedTcorrStore) CheckReadiness(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *CachedTcorrStore) SceneTcorr(ctx context.Context, tmaxKey, sceneID string) (float64, bool, error) {
	key := fmt.Sprintf("tcorr:scene:%s:%s", tmaxKey, sceneID)
	return c.lookup(ctx, key, func() (float64, bool, error) {
		return c.inner.SceneTcorr(ctx, tmaxKey, sceneID)
	})
}

func (c *CachedTcorrStore) MonthTcorr(ctx context.Context, tmaxKey, wrs2Tile string, month int) (float64, bool, error) {
	key := fmt.Sprintf("tcorr:month:%s:%s:%02d", tmaxKey, wrs2Tile, month)
	return c.lookup(ctx, key, func() (float64, bool, error) {
		return c.inner.MonthTcorr(ctx, tmaxKey, wrs2Tile, month)
	})
}

func (c *CachedTcorrStore) lookup(ctx context.Context, key string, load func() (float64, bool, error)) (float64, bool, error) {
	s, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if v, perr := parseCached(s); perr == nil {
			c.metrics.TcorrCache.WithLabelValues("hit").Inc()
			return v, true, nil
		}
		c.logger.Warn("discarding malformed tcorr cache entry", "key", key, "value", s)
		c.metrics.TcorrCache.WithLabelValues("miss").Inc()
	case errors.Is(err, goredis.Nil):
		c.metrics.TcorrCache.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("tcorr cache get failed", "key", key, "error", err)
		c.metrics.TcorrCache.WithLabelValues("error").Inc()
	}

	v, ok, err := load()
	if err != nil || !ok {
		return 0, false, err
	}

	if err := c.client.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Warn("tcorr cache set failed", "key", key, "error", err)
	}
	return v, true, nil
}

func parseCached(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
