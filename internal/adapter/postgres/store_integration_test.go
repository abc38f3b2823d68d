//go:build integration

package postgres

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ssebop",
				"POSTGRES_PASSWORD": "ssebop",
				"POSTGRES_DB":       "tcorr",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start postgres container")

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://ssebop:ssebop@%s:%s/tcorr?sslmode=disable", host, port.Port())
}

func TestStore_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(ctx, startPostgres(ctx, t), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")
	require.NoError(t, store.CheckReadiness(ctx))

	_, ok, err := store.SceneTcorr(ctx, "DAYMET_MEDIAN_V0", "LC08_042035_20150713")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutScene(ctx, "DAYMET_MEDIAN_V0", "LC08_042035_20150713", 0.9760))
	require.NoError(t, store.PutScene(ctx, "DAYMET_MEDIAN_V0", "LC08_042035_20150713", 0.9764))
	require.NoError(t, store.PutMonth(ctx, "DAYMET_MEDIAN_V0", "p042r035", 7, 0.9727))

	v, ok, err := store.SceneTcorr(ctx, "DAYMET_MEDIAN_V0", "LC08_042035_20150713")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.9764, v, 1e-12)

	v, ok, err = store.MonthTcorr(ctx, "DAYMET_MEDIAN_V0", "p042r035", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.9727, v, 1e-12)

	_, ok, err = store.MonthTcorr(ctx, "GRIDMET", "p042r035", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, store.PutMonth(ctx, "DAYMET", "p042r035", 13, 0.97), "month out of range")
}
