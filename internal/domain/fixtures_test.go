package domain

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const (
	testSceneID   = "LC08_042035_20150713"
	testOtherID   = "XXXX_042035_20150713"
	testTile      = "p042r035"
	testToday     = "2026-10-19"
	testK1        = 607.76
	testK2        = 1260.56
	testSceneDOY  = 194
	testDailyDate = "2015-07-13"
)

var (
	testSceneDate = time.Date(2015, time.July, 13, 0, 0, 0, 0, time.UTC)
	futureDate    = time.Date(2099, time.July, 13, 0, 0, 0, 0, time.UTC)

	elevPoint    = raster.Point{Lon: -106.03249, Lat: 37.17777}
	climatePoint = raster.Point{Lon: -120.113, Lat: 36.336}
	hotPoint     = raster.Point{Lon: -119.0, Lat: 37.5}
)

type fixtureKey struct {
	ds raster.Dataset
	pt raster.Point
}

// fixtureSampler serves point values for the reference datasets used in the
// tests. Unknown datasets are reported as not found.
type fixtureSampler map[fixtureKey]float64

func (f fixtureSampler) SampleDataset(_ context.Context, ds raster.Dataset, pt raster.Point) (float64, bool, error) {
	v, ok := f[fixtureKey{ds, pt}]
	if !ok {
		return 0, false, raster.ErrAssetNotFound
	}
	return v, true, nil
}

func newFixtureSampler() fixtureSampler {
	f := fixtureSampler{}
	at := func(pt raster.Point, ds raster.Dataset, v float64) { f[fixtureKey{ds, pt}] = v }

	at(elevPoint, raster.Dataset{ID: "projects/usgs-ssebop/srtm_1km"}, 2369.0)
	at(elevPoint, raster.Dataset{ID: "USGS/GTOPO30"}, 2369.0)
	at(elevPoint, raster.Dataset{ID: "USGS/NED"}, 2364.351)
	at(elevPoint, raster.Dataset{ID: "USGS/SRTMGL1_003"}, 2362.0)

	at(climatePoint, raster.Dataset{ID: "projects/usgs-ssebop/dt/daymet_median_v0", Band: "dt", DOY: testSceneDOY}, 19.262)
	at(climatePoint, raster.Dataset{ID: "projects/usgs-ssebop/dt/daymet_median_v1", Band: "dt", DOY: testSceneDOY}, 18)
	at(hotPoint, raster.Dataset{ID: "projects/usgs-ssebop/dt/daymet_median_v0", Band: "dt", DOY: testSceneDOY}, 25)

	// Daily products: CIMIS and DAYMET are stored in Celsius.
	at(climatePoint, raster.Dataset{ID: "projects/climate-engine/cimis/daily", Band: "Tx", Date: testDailyDate}, 34.575)
	at(climatePoint, raster.Dataset{ID: "NASA/ORNL/DAYMET_V3", Band: "tmax", Date: testDailyDate}, 35.5)
	at(climatePoint, raster.Dataset{ID: "IDAHO_EPSCOR/GRIDMET", Band: "tmmx", Date: testDailyDate}, 306.969)

	for id, v := range map[string]float64{
		"projects/usgs-ssebop/tmax/cimis_median_v1":   308.946,
		"projects/usgs-ssebop/tmax/daymet_median_v0":  310.150,
		"projects/usgs-ssebop/tmax/daymet_median_v1":  310.150,
		"projects/usgs-ssebop/tmax/gridmet_median_v1": 310.436,
		"projects/usgs-ssebop/tmax/topowx_median_v0":  310.430,
	} {
		at(climatePoint, raster.Dataset{ID: id, Band: "tmax", DOY: testSceneDOY}, v)
	}
	return f
}

// fakeCoverage reports daily images for dates before until.
type fakeCoverage struct {
	until time.Time
	calls atomic.Int64
}

func (c *fakeCoverage) HasImage(_ context.Context, _ string, date time.Time) (bool, error) {
	c.calls.Add(1)
	return date.Before(c.until), nil
}

// countingTcorrStore counts lookups against an inner store.
type countingTcorrStore struct {
	inner      TcorrStore
	sceneCalls atomic.Int64
	monthCalls atomic.Int64
}

func (s *countingTcorrStore) SceneTcorr(ctx context.Context, tmaxKey, sceneID string) (float64, bool, error) {
	s.sceneCalls.Add(1)
	return s.inner.SceneTcorr(ctx, tmaxKey, sceneID)
}

func (s *countingTcorrStore) MonthTcorr(ctx context.Context, tmaxKey, tile string, month int) (float64, bool, error) {
	s.monthCalls.Add(1)
	return s.inner.MonthTcorr(ctx, tmaxKey, tile, month)
}

// referenceTcorrStore holds the scene and July corrections for tile p042r035.
func referenceTcorrStore() *MemoryTcorrStore {
	s := NewMemoryTcorrStore()
	for key, v := range map[string][2]float64{
		"CIMIS":             {0.9789, 0.9701},
		"DAYMET":            {0.9825, 0.9718},
		"GRIDMET":           {0.9835, 0.9743},
		"CIMIS_MEDIAN_V1":   {0.9742, 0.9694},
		"DAYMET_MEDIAN_V0":  {0.9764, 0.9727},
		"DAYMET_MEDIAN_V1":  {0.9762, 0.9717},
		"GRIDMET_MEDIAN_V1": {0.9750, 0.9725},
		"TOPOWX_MEDIAN_V0":  {0.9752, 0.9720},
	} {
		s.PutScene(key, testSceneID, v[0])
		s.PutMonth(key, testTile, 7, v[1])
	}
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	resolver  *Resolver
	evaluator *raster.PointEvaluator
	coverage  *fakeCoverage
	store     *countingTcorrStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC))
	cov := &fakeCoverage{until: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
	store := &countingTcorrStore{inner: referenceTcorrStore()}
	return &testEnv{
		resolver:  NewResolver(DefaultCatalog(), cov, store, discardLogger(), WithClock(clock)),
		evaluator: raster.NewPointEvaluator(newFixtureSampler()),
		coverage:  cov,
		store:     store,
	}
}

func (e *testEnv) sample(t *testing.T, img raster.Image, pt raster.Point) (float64, bool) {
	t.Helper()
	v, ok, err := e.evaluator.Sample(context.Background(), img, pt)
	require.NoError(t, err)
	return v, ok
}

// toaScene builds a constant raw TOA scene.
func toaScene(red, nir, bt float64) Scene {
	return Scene{
		ID:   testSceneID,
		Time: testSceneDate,
		Bands: map[string]raster.Image{
			BandRed: raster.Constant(red),
			BandNIR: raster.Constant(nir),
			BandBT:  raster.Constant(bt),
		},
		Props: map[string]float64{PropK1: testK1, PropK2: testK2},
	}
}

// preparedScene builds a constant scene with lst and ndvi bands.
func preparedScene(id string, date time.Time, lst, ndvi float64) Scene {
	return Scene{
		ID:   id,
		Time: date,
		Bands: map[string]raster.Image{
			BandLST:  raster.Constant(lst),
			BandNDVI: raster.Constant(ndvi),
		},
	}
}
