package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
	"github.com/jonboulle/clockwork"
)

// Tmax provenance property keys.
const (
	PropTmaxSource  = "TMAX_SOURCE"
	PropTmaxVersion = "TMAX_VERSION"
)

// Coverage reports whether a daily collection holds an image for a date.
type Coverage interface {
	HasImage(ctx context.Context, collection string, date time.Time) (bool, error)
}

// TcorrStore looks up precomputed temperature corrections. A missing entry
// is reported as ok=false, not as an error.
type TcorrStore interface {
	// SceneTcorr returns the correction computed for one scene.
	SceneTcorr(ctx context.Context, tmaxKey, sceneID string) (float64, bool, error)

	// MonthTcorr returns the correction aggregated for a WRS-2 tile and month.
	MonthTcorr(ctx context.Context, tmaxKey, wrs2Tile string, month int) (float64, bool, error)
}

// TcorrIndex records which fallback tier supplied a Tcorr value.
type TcorrIndex int

const (
	TcorrIndexScene   TcorrIndex = 0
	TcorrIndexMonth   TcorrIndex = 1
	TcorrIndexDefault TcorrIndex = 2
	TcorrIndexUser    TcorrIndex = 3
)

// TcorrResult is a resolved Tcorr. Valid is false when every tier was empty
// and no default is configured; Image is then fully masked.
type TcorrResult struct {
	Image raster.Image
	Value float64
	Index TcorrIndex
	Valid bool
}

// SceneContext carries the scene attributes auxiliary lookups are keyed on.
type SceneContext struct {
	SceneID  string
	WRS2Tile string
	Date     time.Time
	Month    int
}

// DOY returns the acquisition day of year.
func (sc SceneContext) DOY() int { return sc.Date.YearDay() }

// Resolver turns classified sources into auxiliary rasters.
type Resolver struct {
	catalog  *Catalog
	coverage Coverage
	tcorr    TcorrStore
	clock    clockwork.Clock
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock sets the time source used for daily Tmax provenance dates.
func WithClock(c clockwork.Clock) ResolverOption {
	return func(r *Resolver) { r.clock = c }
}

// NewResolver creates a Resolver. A nil store disables the scene and month
// Tcorr tiers.
func NewResolver(cat *Catalog, cov Coverage, store TcorrStore, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		catalog:  cat,
		coverage: cov,
		tcorr:    store,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the resolver's dataset catalog.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Elevation resolves an elevation source [m].
func (r *Resolver) Elevation(src Source) raster.Image {
	var img raster.Image
	switch src.Kind {
	case SourceConstant:
		img = raster.Constant(src.Value)
	case SourceNamed:
		img = raster.FromDataset(raster.Dataset{ID: r.catalog.Elevation[src.Key]})
	case SourceCustom:
		img = raster.FromDataset(raster.Dataset{ID: src.Path})
	}
	return img.Rename("elev")
}

// Dt resolves the hot/cold temperature difference [K] for the scene's day of
// year. Values are returned unclamped.
func (r *Resolver) Dt(src Source, sc SceneContext) (raster.Image, error) {
	var img raster.Image
	switch src.Kind {
	case SourceConstant:
		img = raster.Constant(src.Value)
	case SourceNamed:
		img = raster.FromDataset(raster.Dataset{
			ID:   r.catalog.Dt[src.Key],
			Band: r.catalog.DtBand,
			DOY:  sc.DOY(),
		})
	default:
		return raster.Image{}, fmt.Errorf("dt source %q: %w", src.Raw, ErrInvalidSource)
	}
	return img.Rename("dt"), nil
}

// Tmax resolves daily maximum air temperature [K]. Daily sources fall back to
// their median collection when the date has no daily image. The result
// carries TMAX_SOURCE (the specifier as given) and TMAX_VERSION.
func (r *Resolver) Tmax(ctx context.Context, src Source, sc SceneContext) (raster.Image, error) {
	var img raster.Image
	switch src.Kind {
	case SourceConstant:
		img = raster.Constant(src.Value).Set(PropTmaxVersion, "CUSTOM_"+src.constantLabel())
	case SourceNamed:
		if daily, ok := r.catalog.TmaxDaily[src.Key]; ok {
			var err error
			img, err = r.dailyTmax(ctx, daily, sc)
			if err != nil {
				return raster.Image{}, err
			}
			break
		}
		median, ok := r.catalog.TmaxMedian[src.Key]
		if !ok {
			return raster.Image{}, fmt.Errorf("tmax source %q: %w", src.Raw, ErrInvalidSource)
		}
		img = medianTmax(median, sc)
	default:
		return raster.Image{}, fmt.Errorf("tmax source %q: %w", src.Raw, ErrInvalidSource)
	}
	return img.Rename("tmax").Set(PropTmaxSource, src.Raw), nil
}

func (r *Resolver) dailyTmax(ctx context.Context, daily DailyTmax, sc SceneContext) (raster.Image, error) {
	has, err := r.coverage.HasImage(ctx, daily.Collection, sc.Date)
	if err != nil {
		return raster.Image{}, fmt.Errorf("tmax coverage %s: %w", daily.Collection, err)
	}
	if !has {
		median, ok := r.catalog.TmaxMedian[daily.Median]
		if !ok {
			return raster.Image{}, fmt.Errorf("tmax fallback %q not in catalog", daily.Median)
		}
		r.logger.Debug("daily tmax unavailable, using median",
			"collection", daily.Collection,
			"date", sc.Date.Format(time.DateOnly),
			"median", median.Collection,
		)
		return medianTmax(median, sc), nil
	}

	img := raster.FromDataset(raster.Dataset{
		ID:   daily.Collection,
		Band: daily.Band,
		Date: sc.Date.Format(time.DateOnly),
	})
	if daily.Offset != 0 {
		img = img.Add(raster.Constant(daily.Offset))
	}
	return img.Set(PropTmaxVersion, r.clock.Now().Format(time.DateOnly)), nil
}

func medianTmax(m MedianTmax, sc SceneContext) raster.Image {
	return raster.FromDataset(raster.Dataset{ID: m.Collection, Band: m.Band, DOY: sc.DOY()}).
		Set(PropTmaxVersion, m.Version)
}

// Tcorr resolves the Tmax correction factor. A constant source bypasses the
// lookup chain (index 3). SCENE mode tries the scene entry (0), then the
// monthly entry (1), then the catalog default (2); MONTH mode starts at the
// monthly entry.
func (r *Resolver) Tcorr(ctx context.Context, src, tmaxSrc Source, sc SceneContext) (TcorrResult, error) {
	if src.Kind == SourceConstant {
		return newTcorrResult(src.Value, TcorrIndexUser), nil
	}
	if src.Kind != SourceNamed || (src.Key != TcorrScene && src.Key != TcorrMonth) {
		return TcorrResult{}, fmt.Errorf("tcorr source %q: %w", src.Raw, ErrInvalidSource)
	}

	tmaxKey := tmaxSrc.Key
	lookups := r.tcorr != nil && tmaxSrc.Kind == SourceNamed

	if lookups && src.Key == TcorrScene {
		v, ok, err := r.tcorr.SceneTcorr(ctx, tmaxKey, sc.SceneID)
		if err != nil {
			return TcorrResult{}, fmt.Errorf("scene tcorr %s/%s: %w", tmaxKey, sc.SceneID, err)
		}
		if ok {
			return newTcorrResult(v, TcorrIndexScene), nil
		}
	}

	if lookups {
		v, ok, err := r.tcorr.MonthTcorr(ctx, tmaxKey, sc.WRS2Tile, sc.Month)
		if err != nil {
			return TcorrResult{}, fmt.Errorf("month tcorr %s/%s/%d: %w", tmaxKey, sc.WRS2Tile, sc.Month, err)
		}
		if ok {
			return newTcorrResult(v, TcorrIndexMonth), nil
		}
	}

	if v, ok := r.catalog.TcorrDefault[tmaxKey]; ok {
		return newTcorrResult(v, TcorrIndexDefault), nil
	}

	r.logger.Warn("no tcorr default configured, tcorr masked",
		"tmax_source", tmaxSrc.Raw,
		"scene_id", sc.SceneID,
	)
	return TcorrResult{
		Image: raster.Masked().Rename("tcorr"),
		Index: TcorrIndexDefault,
	}, nil
}

func newTcorrResult(v float64, idx TcorrIndex) TcorrResult {
	return TcorrResult{
		Image: raster.Constant(v).Rename("tcorr").Set("TCORR_INDEX", strconv.Itoa(int(idx))),
		Value: v,
		Index: idx,
		Valid: true,
	}
}
