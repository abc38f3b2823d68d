package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
	"github.com/jonboulle/clockwork"
)

// SceneTransformer implements Transformer: it builds an SSEBop model for the
// requested scene and samples ETf and its main inputs at each point.
type SceneTransformer struct {
	resolver  *domain.Resolver
	evaluator raster.Evaluator
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewTransformer creates a SceneTransformer. evaluator reduces expression
// graphs at points, normally the raster engine client.
func NewTransformer(resolver *domain.Resolver, evaluator raster.Evaluator, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *SceneTransformer {
	return &SceneTransformer{
		resolver:  resolver,
		evaluator: evaluator,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

func (t *SceneTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseSceneRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	res, err := t.Compute(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("serialize etf result %s: %w", res.SceneID, err)
	}
	return domain.OutputEvent{
		Key:   []byte(res.SceneID),
		Value: data,
		Headers: map[string]string{
			"scene_id":     res.SceneID,
			"processed_at": res.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// Compute runs the model for one request.
func (t *SceneTransformer) Compute(ctx context.Context, req domain.SceneRequest) (domain.ETfResult, error) {
	scene, err := req.Scene()
	if err != nil {
		return domain.ETfResult{}, err
	}
	model, err := domain.NewModel(scene, req.Options(), t.resolver)
	if err != nil {
		return domain.ETfResult{}, err
	}

	etf, err := model.ETf(ctx)
	if err != nil {
		return domain.ETfResult{}, fmt.Errorf("scene %s: etf: %w", scene.ID, err)
	}
	tmax, err := model.Tmax(ctx)
	if err != nil {
		return domain.ETfResult{}, fmt.Errorf("scene %s: tmax: %w", scene.ID, err)
	}
	tcorr, err := model.Tcorr(ctx)
	if err != nil {
		return domain.ETfResult{}, fmt.Errorf("scene %s: tcorr: %w", scene.ID, err)
	}
	t.observeModel(model, tmax, tcorr)

	res := domain.ETfResult{
		SceneID:    scene.ID,
		Date:       scene.Time.UTC().Format(time.DateOnly),
		TcorrIndex: tcorr.Index,
		Points:     make([]domain.PointResult, 0, len(req.Points)),
	}
	res.TmaxSource, _ = tmax.Prop(domain.PropTmaxSource)
	res.TmaxVersion, _ = tmax.Prop(domain.PropTmaxVersion)
	if tcorr.Valid {
		v := tcorr.Value
		res.Tcorr = &v
	}

	for _, pt := range req.Points {
		pr := domain.PointResult{Point: pt}
		for _, s := range []struct {
			name string
			img  raster.Image
			dst  **float64
		}{
			{"etf", etf, &pr.ETf},
			{"lst", model.LST(), &pr.LST},
			{"ndvi", model.NDVI(), &pr.NDVI},
			{"tmax", tmax, &pr.Tmax},
		} {
			v, err := t.sample(ctx, s.img, pt)
			if err != nil {
				return domain.ETfResult{}, fmt.Errorf("scene %s: sample %s at (%g, %g): %w", scene.ID, s.name, pt.Lon, pt.Lat, err)
			}
			*s.dst = v
		}
		res.Points = append(res.Points, pr)
	}

	res.ProcessedAt = t.clock.Now().UTC()
	t.logger.Debug("scene computed",
		"scene_id", res.SceneID,
		"points", len(res.Points),
		"tmax_source", res.TmaxSource,
		"tcorr_index", int(res.TcorrIndex),
	)
	return res, nil
}

func (t *SceneTransformer) sample(ctx context.Context, img raster.Image, pt raster.Point) (*float64, error) {
	v, ok, err := t.evaluator.Sample(ctx, img, pt)
	if err != nil || !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, err
	}
	return &v, nil
}

// observeModel records which Tcorr tier was used and whether a daily Tmax
// source fell back to its median climatology.
func (t *SceneTransformer) observeModel(model *domain.Model, tmax raster.Image, tcorr domain.TcorrResult) {
	t.metrics.TcorrTier.WithLabelValues(strconv.Itoa(int(tcorr.Index))).Inc()

	src := model.TmaxSource()
	if src.Kind != domain.SourceNamed {
		return
	}
	if _, daily := t.resolver.Catalog().TmaxDaily[src.Key]; !daily {
		return
	}
	if version, _ := tmax.Prop(domain.PropTmaxVersion); strings.HasPrefix(version, "median") {
		t.metrics.TmaxFallback.WithLabelValues(src.Key).Inc()
		t.logger.Info("tmax outside daily coverage, using median",
			"scene_id", model.SceneContext().SceneID,
			"source", src.Key,
			"version", version,
		)
	}
}
