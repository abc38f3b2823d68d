package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
)

// Scene band names.
const (
	BandRed  = "red"
	BandNIR  = "nir"
	BandBT   = "bt" // top-of-atmosphere brightness temperature [K]
	BandLST  = "lst"
	BandNDVI = "ndvi"
)

// Thermal calibration property keys.
const (
	PropK1 = "k1_constant"
	PropK2 = "k2_constant"
)

var (
	// ErrMissingBand is returned when a scene lacks a band required for a derivation.
	ErrMissingBand = errors.New("missing band")

	// ErrMissingCalibration is returned when a raw scene lacks k1/k2 thermal constants.
	ErrMissingCalibration = errors.New("missing thermal calibration constant")

	// ErrInvalidScene is returned for scene IDs that are malformed or name an
	// unsupported spacecraft.
	ErrInvalidScene = errors.New("invalid scene")

	// sceneIDRe matches "<spacecraft>_<path><row>_<yyyymmdd>", e.g. LC08_042035_20150713.
	sceneIDRe = regexp.MustCompile(`^([A-Z0-9]{4})_(\d{3})(\d{3})_(\d{8})$`)
)

// Scene is a single-capture input raster. It either carries raw bands
// {red, nir, bt} plus k1/k2 calibration properties, or prepared {lst, ndvi}.
type Scene struct {
	ID    string
	Time  time.Time
	Bands map[string]raster.Image
	Props map[string]float64
}

// Band returns the named band.
func (s Scene) Band(name string) (raster.Image, bool) {
	img, ok := s.Bands[name]
	return img, ok
}

// Prepared reports whether the scene already carries lst and ndvi bands.
func (s Scene) Prepared() bool {
	_, lst := s.Bands[BandLST]
	_, ndvi := s.Bands[BandNDVI]
	return lst && ndvi
}

func (s Scene) requireBands(names ...string) error {
	for _, name := range names {
		if _, ok := s.Bands[name]; !ok {
			return fmt.Errorf("scene %s: %w %q", s.ID, ErrMissingBand, name)
		}
	}
	return nil
}

func (s Scene) calibration() (k1, k2 float64, err error) {
	k1, ok1 := s.Props[PropK1]
	k2, ok2 := s.Props[PropK2]
	if !ok1 || !ok2 || k1 <= 0 || k2 <= 0 {
		return 0, 0, fmt.Errorf("scene %s: %w", s.ID, ErrMissingCalibration)
	}
	return k1, k2, nil
}

// SceneID is the parsed form of a Landsat-style scene identifier.
type SceneID struct {
	Spacecraft string
	Path       int
	Row        int
	Date       time.Time
}

// ParseSceneID parses identifiers like "LC08_042035_20150713".
func ParseSceneID(id string) (SceneID, error) {
	m := sceneIDRe.FindStringSubmatch(id)
	if m == nil {
		return SceneID{}, fmt.Errorf("parse scene id %q: %w: unexpected format", id, ErrInvalidScene)
	}
	path, _ := strconv.Atoi(m[2])
	row, _ := strconv.Atoi(m[3])
	date, err := time.Parse("20060102", m[4])
	if err != nil {
		return SceneID{}, fmt.Errorf("parse scene id %q: %w: %w", id, ErrInvalidScene, err)
	}
	return SceneID{Spacecraft: m[1], Path: path, Row: row, Date: date}, nil
}

// WRS2Tile returns the WRS-2 tile key, e.g. "p042r035".
func (s SceneID) WRS2Tile() string {
	return fmt.Sprintf("p%03dr%03d", s.Path, s.Row)
}

// landsatTOABands maps spacecraft to the Collection 1 TOA band names for red,
// nir and thermal brightness temperature.
var landsatTOABands = map[string][3]string{
	"LC08": {"B4", "B5", "B10"},
	"LE07": {"B3", "B4", "B6_VCID_1"},
	"LT05": {"B3", "B4", "B6"},
	"LT04": {"B3", "B4", "B6"},
}

// SceneFromLandsatTOA builds a raw scene over a Landsat Collection 1 TOA asset.
// The spacecraft is taken from the scene ID and the acquisition time defaults
// to midnight UTC of the ID date when t is zero.
func SceneFromLandsatTOA(id, assetID string, t time.Time, k1, k2 float64) (Scene, error) {
	parsed, err := ParseSceneID(id)
	if err != nil {
		return Scene{}, err
	}
	bands, ok := landsatTOABands[parsed.Spacecraft]
	if !ok {
		return Scene{}, fmt.Errorf("scene %s: %w: unsupported spacecraft %q", id, ErrInvalidScene, parsed.Spacecraft)
	}
	if t.IsZero() {
		t = parsed.Date
	}
	return Scene{
		ID:   id,
		Time: t.UTC(),
		Bands: map[string]raster.Image{
			BandRed: raster.FromDataset(raster.Dataset{ID: assetID, Band: bands[0]}).Rename(BandRed),
			BandNIR: raster.FromDataset(raster.Dataset{ID: assetID, Band: bands[1]}).Rename(BandNIR),
			BandBT:  raster.FromDataset(raster.Dataset{ID: assetID, Band: bands[2]}).Rename(BandBT),
		},
		Props: map[string]float64{PropK1: k1, PropK2: k2},
	}, nil
}
