package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
)

// ErrInvalidRequest is returned for scene requests that cannot be decoded or
// lack required fields.
var ErrInvalidRequest = errors.New("invalid scene request")

// IsInvalidInput reports whether err is caused by the request itself rather
// than by the raster engine or the Tcorr store. Such requests fail the same
// way on every attempt.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidScene) ||
		errors.Is(err, ErrInvalidSource) ||
		errors.Is(err, ErrMissingBand) ||
		errors.Is(err, ErrMissingCalibration) ||
		errors.Is(err, raster.ErrAssetNotFound)
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SceneRequest asks for ETf of one Landsat TOA scene at a set of points.
type SceneRequest struct {
	SceneID   string         `json:"scene_id"`
	AssetID   string         `json:"asset_id"`
	TimeStart int64          `json:"time_start,omitempty"` // epoch milliseconds
	K1        float64        `json:"k1"`
	K2        float64        `json:"k2"`
	Points    []raster.Point `json:"points"`

	DtSource       Spec    `json:"dt_source,omitempty"`
	ElevSource     Spec    `json:"elev_source,omitempty"`
	TcorrSource    Spec    `json:"tcorr_source,omitempty"`
	TmaxSource     Spec    `json:"tmax_source,omitempty"`
	ELR            bool    `json:"elr,omitempty"`
	TdiffThreshold float64 `json:"tdiff_threshold,omitempty"`
}

// ParseSceneRequest deserializes and validates a RawEvent's value.
func ParseSceneRequest(raw RawEvent) (SceneRequest, error) {
	var req SceneRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return SceneRequest{}, fmt.Errorf("parse scene request: %w: %w", ErrInvalidRequest, err)
	}
	if req.SceneID == "" || req.AssetID == "" {
		return SceneRequest{}, fmt.Errorf("parse scene request: %w: scene_id and asset_id are required", ErrInvalidRequest)
	}
	if len(req.Points) == 0 {
		return SceneRequest{}, fmt.Errorf("parse scene request %s: %w: no points", req.SceneID, ErrInvalidRequest)
	}
	return req, nil
}

// Scene builds the raw TOA scene described by the request.
func (r SceneRequest) Scene() (Scene, error) {
	var t time.Time
	if r.TimeStart != 0 {
		t = time.UnixMilli(r.TimeStart).UTC()
	}
	return SceneFromLandsatTOA(r.SceneID, r.AssetID, t, r.K1, r.K2)
}

// Options returns the model options carried by the request.
func (r SceneRequest) Options() Options {
	return Options{
		DtSource:       r.DtSource,
		ElevSource:     r.ElevSource,
		TcorrSource:    r.TcorrSource,
		TmaxSource:     r.TmaxSource,
		ELR:            r.ELR,
		TdiffThreshold: r.TdiffThreshold,
	}
}

// PointResult holds the sampled rasters at one point. Nil values are masked.
type PointResult struct {
	Point raster.Point `json:"point"`
	ETf   *float64     `json:"etf"`
	LST   *float64     `json:"lst"`
	NDVI  *float64     `json:"ndvi"`
	Tmax  *float64     `json:"tmax"`
}

// ETfResult is the per-scene output written to the sink topic.
type ETfResult struct {
	SceneID     string        `json:"scene_id"`
	Date        string        `json:"date"`
	TmaxSource  string        `json:"tmax_source"`
	TmaxVersion string        `json:"tmax_version"`
	Tcorr       *float64      `json:"tcorr"`
	TcorrIndex  TcorrIndex    `json:"tcorr_index"`
	Points      []PointResult `json:"points"`
	ProcessedAt time.Time     `json:"processed_at"`
}
