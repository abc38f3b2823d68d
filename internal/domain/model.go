package domain

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
)

// Default source specifiers.
const (
	DefaultDtSource    Spec = "DAYMET_MEDIAN_V1"
	DefaultElevSource  Spec = "SRTM"
	DefaultTcorrSource Spec = "SCENE"
	DefaultTmaxSource  Spec = "DAYMET_MEDIAN_V0"
)

// Options configures a Model. Empty specifiers take the package defaults and
// a zero TdiffThreshold takes DefaultParams().TdiffThreshold.
type Options struct {
	DtSource       Spec
	ElevSource     Spec
	TcorrSource    Spec
	TmaxSource     Spec
	ELR            bool
	TdiffThreshold float64
}

func (o Options) withDefaults() Options {
	if o.DtSource == "" {
		o.DtSource = DefaultDtSource
	}
	if o.ElevSource == "" {
		o.ElevSource = DefaultElevSource
	}
	if o.TcorrSource == "" {
		o.TcorrSource = DefaultTcorrSource
	}
	if o.TmaxSource == "" {
		o.TmaxSource = DefaultTmaxSource
	}
	return o
}

// Model computes SSEBop rasters for one scene. Each derived raster is built
// on first access and memoized; later calls return the cached value without
// querying collaborators. A Model is safe for concurrent use.
type Model struct {
	scene    Scene
	resolver *Resolver
	params   Params

	dtSrc, elevSrc, tcorrSrc, tmaxSrc Source

	// input bands, fixed at construction
	ndviIn, lstIn raster.Image

	mu    sync.Mutex
	sc    SceneContext
	gen   uint64 // bumped by SetMonth; builds started earlier are not cached
	cache map[string]raster.Image
	tcorr *TcorrResult
}

// NewModel validates the scene and classifies every source specifier.
// Malformed specifiers and incomplete scenes fail here rather than on first
// property access.
func NewModel(scene Scene, opts Options, r *Resolver) (*Model, error) {
	opts = opts.withDefaults()

	id, err := ParseSceneID(scene.ID)
	if err != nil {
		return nil, err
	}
	if scene.Time.IsZero() {
		return nil, fmt.Errorf("scene %s: missing acquisition time", scene.ID)
	}

	m := &Model{
		scene:    scene,
		resolver: r,
		params:   DefaultParams(),
		cache:    make(map[string]raster.Image),
	}
	m.params.ELR = opts.ELR
	if opts.TdiffThreshold > 0 {
		m.params.TdiffThreshold = opts.TdiffThreshold
	}

	date := scene.Time.UTC()
	m.sc = SceneContext{
		SceneID:  scene.ID,
		WRS2Tile: id.WRS2Tile(),
		Date:     date,
		Month:    int(date.Month()),
	}

	cat := r.Catalog()
	for _, s := range []struct {
		aux  AuxType
		spec Spec
		dst  *Source
	}{
		{AuxDt, opts.DtSource, &m.dtSrc},
		{AuxElevation, opts.ElevSource, &m.elevSrc},
		{AuxTcorr, opts.TcorrSource, &m.tcorrSrc},
		{AuxTmax, opts.TmaxSource, &m.tmaxSrc},
	} {
		src, err := ClassifySource(s.aux, s.spec, cat)
		if err != nil {
			return nil, err
		}
		*s.dst = src
	}

	if err := m.bindInputs(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) bindInputs() error {
	s := m.scene
	if s.Prepared() {
		m.ndviIn = s.Bands[BandNDVI].Rename(BandNDVI)
		m.lstIn = s.Bands[BandLST].Rename(BandLST)
		return nil
	}
	nd, err := NDVI(s)
	if err != nil {
		return err
	}
	lstImg, err := LST(s)
	if err != nil {
		return err
	}
	m.ndviIn, m.lstIn = nd, lstImg
	return nil
}

// SceneContext returns the lookup context, including any month override.
func (m *Model) SceneContext() SceneContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sc
}

// SetMonth overrides the month used for monthly Tcorr lookups. It exists for
// backfills and tests that evaluate a scene against another month's table.
// Cached Tcorr and ETf are discarded.
func (m *Model) SetMonth(month int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sc.Month = month
	m.gen++
	m.tcorr = nil
	delete(m.cache, "etf")
}

// Params returns the composition parameters.
func (m *Model) Params() Params { return m.params }

// TmaxSource returns the classified Tmax source.
func (m *Model) TmaxSource() Source { return m.tmaxSrc }

// NDVI returns the scene NDVI.
func (m *Model) NDVI() raster.Image {
	return m.memo("ndvi", func() raster.Image { return m.ndviIn })
}

// Emissivity returns the NDVI derived surface emissivity.
func (m *Model) Emissivity() raster.Image {
	return m.memo("emissivity", func() raster.Image { return EmissivityFromNDVI(m.NDVI()) })
}

// LST returns the land surface temperature [K].
func (m *Model) LST() raster.Image {
	return m.memo("lst", func() raster.Image { return m.lstIn })
}

// Elevation returns the elevation raster [m].
func (m *Model) Elevation() raster.Image {
	return m.memo("elev", func() raster.Image { return m.resolver.Elevation(m.elevSrc) })
}

// Dt returns the unclamped dT raster [K].
func (m *Model) Dt() (raster.Image, error) {
	return m.memoErr("dt", func() (raster.Image, error) {
		return m.resolver.Dt(m.dtSrc, m.SceneContext())
	})
}

// Tmax returns the maximum air temperature raster [K] with provenance.
func (m *Model) Tmax(ctx context.Context) (raster.Image, error) {
	return m.memoErr("tmax", func() (raster.Image, error) {
		return m.resolver.Tmax(ctx, m.tmaxSrc, m.SceneContext())
	})
}

// Tcorr returns the Tmax correction factor and the tier that supplied it.
func (m *Model) Tcorr(ctx context.Context) (TcorrResult, error) {
	m.mu.Lock()
	if m.tcorr != nil {
		res := *m.tcorr
		m.mu.Unlock()
		return res, nil
	}
	sc, gen := m.sc, m.gen
	m.mu.Unlock()

	res, err := m.resolver.Tcorr(ctx, m.tcorrSrc, m.tmaxSrc, sc)
	if err != nil {
		return TcorrResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tcorr == nil && m.gen == gen {
		m.tcorr = &res
	}
	return res, nil
}

// ETf returns the evapotranspiration fraction raster.
func (m *Model) ETf(ctx context.Context) (raster.Image, error) {
	return m.memoErr("etf", func() (raster.Image, error) {
		tmax, err := m.Tmax(ctx)
		if err != nil {
			return raster.Image{}, err
		}
		dt, err := m.Dt()
		if err != nil {
			return raster.Image{}, err
		}
		tcorr, err := m.Tcorr(ctx)
		if err != nil {
			return raster.Image{}, err
		}
		etf := ComposeETf(ETfInputs{
			LST:   m.LST(),
			Tmax:  tmax,
			Dt:    dt,
			Elev:  m.Elevation(),
			Tcorr: tcorr,
		}, m.params)
		return etf.Set("system:index", m.scene.ID), nil
	})
}

func (m *Model) memo(key string, build func() raster.Image) raster.Image {
	img, _ := m.memoErr(key, func() (raster.Image, error) { return build(), nil })
	return img
}

// memoErr returns the cached image for key or builds it. build runs without
// the lock held so it may call other properties; failed builds and builds that
// overlap a SetMonth are not cached.
func (m *Model) memoErr(key string, build func() (raster.Image, error)) (raster.Image, error) {
	m.mu.Lock()
	if img, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return img, nil
	}
	gen := m.gen
	m.mu.Unlock()

	img, err := build()
	if err != nil {
		return raster.Image{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return img, nil
	}
	if cached, ok := m.cache[key]; ok {
		return cached, nil
	}
	m.cache[key] = img
	return img, nil
}
