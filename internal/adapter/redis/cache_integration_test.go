//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start redis container")

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestCachedTcorrStore_ReadThrough(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := NewClient(startRedis(ctx, t), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	mem := domain.NewMemoryTcorrStore()
	mem.PutScene("GRIDMET", "LC08_042035_20150713", 0.9835)
	mem.PutMonth("GRIDMET", "p042r035", 7, 0.9743)
	inner := &countingStore{inner: mem}

	store := NewCachedTcorrStore(inner, client, time.Minute, discardLogger(), observability.NewMetricsForTesting())

	for range 3 {
		v, ok, err := store.SceneTcorr(ctx, "GRIDMET", "LC08_042035_20150713")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0.9835, v)

		v, ok, err = store.MonthTcorr(ctx, "GRIDMET", "p042r035", 7)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0.9743, v)
	}
	assert.Equal(t, 2, inner.calls)

	cached, err := client.Get(ctx, "tcorr:month:GRIDMET:p042r035:07").Result()
	require.NoError(t, err)
	assert.Equal(t, "0.9743", cached)

	ttl, err := client.TTL(ctx, "tcorr:scene:GRIDMET:LC08_042035_20150713").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestCachedTcorrStore_MissNotCached(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := NewClient(startRedis(ctx, t), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	mem := domain.NewMemoryTcorrStore()
	inner := &countingStore{inner: mem}
	store := NewCachedTcorrStore(inner, client, time.Hour, discardLogger(), observability.NewMetricsForTesting())

	_, ok, err := store.SceneTcorr(ctx, "DAYMET", "LC08_042035_20150729")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := client.Exists(ctx, "tcorr:scene:DAYMET:LC08_042035_20150729").Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	// A correction computed after the first lookup is visible immediately.
	mem.PutScene("DAYMET", "LC08_042035_20150729", 0.9811)
	v, ok, err := store.SceneTcorr(ctx, "DAYMET", "LC08_042035_20150729")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.9811, v)
	assert.Equal(t, 2, inner.calls)
}
