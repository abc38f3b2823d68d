package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/adapter/engine"
	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/couchcryptid/ssebop-etl/internal/pipeline"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	failKeys map[string]bool
	outages  int // calls that fail as if the raster engine were down

	mu    sync.Mutex
	calls int
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.outages > 0 {
		m.outages--
		return domain.OutputEvent{}, errors.New("engine API error: status 503")
	}
	if m.failKeys[string(raw.Key)] {
		return domain.OutputEvent{}, fmt.Errorf("parse scene request: %w: no points", domain.ErrInvalidRequest)
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.OutputEvent
	failures int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

type commitRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (c *commitRecorder) event(key string) domain.RawEvent {
	return domain.RawEvent{
		Key:   []byte(key),
		Value: []byte(`{"scene_id":"` + key + `"}`),
		Topic: "landsat-scenes",
		Commit: func(context.Context) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.keys = append(c.keys, key)
			return nil
		},
	}
}

func (c *commitRecorder) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rec.event("LC08_042035_20150713"), rec.event("LC08_042035_20150729")},
	}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 500*time.Millisecond)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, []byte("LC08_042035_20150713"), ldr.loaded[0].Key)
	assert.Equal(t, []string{"LC08_042035_20150713", "LC08_042035_20150729"}, rec.committed())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2.0, counterValue(t, metrics.ScenesConsumed))
	assert.Equal(t, 2.0, counterValue(t, metrics.ResultsProduced))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rec.event("bad"), rec.event("LC08_042035_20150713")},
	}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{failKeys: map[string]bool{"bad": true}}, ldr, slog.Default(), metrics, 10)
	runFor(t, p, 500*time.Millisecond)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, []byte("LC08_042035_20150713"), ldr.loaded[0].Key)
	assert.Equal(t, []string{"bad", "LC08_042035_20150713"}, rec.committed())
	assert.Equal(t, 1.0, counterValue(t, metrics.TransformErrors))
}

func TestPipeline_Run_InvalidRequestCommittedAfterLoad(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rec.event("LC08_042035_20150713"), rec.event("bad")},
	}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{failKeys: map[string]bool{"bad": true}}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 500*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Empty(t, rec.committed(), "a skipped request must not commit past an unloaded result")
}

func TestPipeline_Run_EngineOutageRetriesScene(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rec.event("LC08_042035_20150713"), rec.event("LC08_042035_20150729")},
	}}
	tr := &mockTransformer{outages: 2}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, tr, ldr, slog.Default(), metrics, 10)
	runFor(t, p, 2*time.Second)

	require.Equal(t, 2, ldr.count())
	assert.Equal(t, []byte("LC08_042035_20150713"), ldr.loaded[0].Key)
	assert.Equal(t, []string{"LC08_042035_20150713", "LC08_042035_20150729"}, rec.committed())
	assert.Equal(t, 4, tr.calls)
	assert.Equal(t, 2.0, counterValue(t, metrics.TransformRetries))
	assert.Equal(t, 0.0, counterValue(t, metrics.TransformErrors))
}

func TestPipeline_Run_EngineOutageUntilShutdownCommitsNothing(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rec.event("LC08_042035_20150713")}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{outages: 1000}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 500*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Empty(t, rec.committed())
}

func TestPipeline_Run_AllTransformsFail(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rec.event("bad")}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{failKeys: map[string]bool{"bad": true}}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Equal(t, []string{"bad"}, rec.committed())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureLeavesOffsetsUncommitted(t *testing.T) {
	rec := &commitRecorder{}
	ext := &mockExtractor{batches: [][]domain.RawEvent{
		{rec.event("LC08_042035_20150713")},
		{rec.event("LC08_042035_20150729")},
	}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	assert.Equal(t, 1, ldr.count())
	assert.Equal(t, []string{"LC08_042035_20150729"}, rec.committed())
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("broker down")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(), 10)

	start := time.Now()
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "run returns only on cancellation")
}

func TestPipeline_Run_EmptyBatch(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{}, {}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, 10)
	runFor(t, p, 200*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Equal(t, 0.0, counterValue(t, metrics.ScenesConsumed))
}

// flakyEngine serves sceneSampler values after failing the first n sample
// requests with 503.
func flakyEngine(t *testing.T, n int64) string {
	t.Helper()
	var failures atomic.Int64
	failures.Store(n)
	values := sceneSampler()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sample", func(w http.ResponseWriter, r *http.Request) {
		if failures.Add(-1) >= 0 {
			http.Error(w, `{"error":"engine overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Expr *raster.Expr `json:"expr"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Expr == nil || req.Expr.Dataset == nil {
			http.Error(w, `{"error":"only dataset leaves are supported"}`, http.StatusBadRequest)
			return
		}
		v, ok := values[*req.Expr.Dataset]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"asset not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"value": v})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestPipeline_Run_EngineUnavailableKeepsScene(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	client := engine.NewClient(flakyEngine(t, 3), 5*time.Second, 30, metrics, discardLogger())
	clock := clockwork.NewFakeClockAt(now)
	resolver := domain.NewResolver(domain.DefaultCatalog(), client, domain.NewMemoryTcorrStore(), discardLogger(), domain.WithClock(clock))
	tr := pipeline.NewTransformer(resolver, raster.NewPointEvaluator(client), clock, metrics, discardLogger())

	rec := &commitRecorder{}
	raw := sceneRequest(t, func(r *domain.SceneRequest) { r.Points = []raster.Point{inside} })
	raw.Commit = rec.event(sceneID).Commit
	ldr := &mockLoader{}

	p := pipeline.New(&mockExtractor{batches: [][]domain.RawEvent{{raw}}}, tr, ldr, discardLogger(), metrics, 10)
	runFor(t, p, 3*time.Second)

	require.Equal(t, 1, ldr.count())
	assert.Equal(t, []byte(sceneID), ldr.loaded[0].Key)
	assert.Equal(t, []string{sceneID}, rec.committed())
	assert.Equal(t, 3.0, counterValue(t, metrics.TransformRetries))
	assert.Equal(t, 0.0, counterValue(t, metrics.TransformErrors))
}
