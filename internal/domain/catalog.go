package domain

import "strings"

// Tcorr modes.
const (
	TcorrScene = "SCENE"
	TcorrMonth = "MONTH"
)

// DailyTmax describes a daily maximum air temperature collection and the
// median collection that stands in for dates outside its coverage.
type DailyTmax struct {
	Collection string
	Band       string
	Offset     float64 // added to convert the native unit to Kelvin
	Median     string  // catalog key of the fallback median collection
}

// MedianTmax describes a day-of-year keyed long-term median Tmax collection.
type MedianTmax struct {
	Collection string
	Band       string
	Version    string
}

// Catalog maps named source keys to datasets. It is read-only after
// construction and may be shared between resolvers.
type Catalog struct {
	Elevation    map[string]string // key -> image asset
	Dt           map[string]string // key -> day-of-year collection
	DtBand       string
	TmaxDaily    map[string]DailyTmax
	TmaxMedian   map[string]MedianTmax
	TcorrDefault map[string]float64 // Tmax key -> terminal Tcorr fallback
}

// DefaultCatalog returns the standard SSEBop dataset catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Elevation: map[string]string{
			"ASSET": "projects/usgs-ssebop/srtm_1km",
			"GTOPO": "USGS/GTOPO30",
			"NED":   "USGS/NED",
			"SRTM":  "USGS/SRTMGL1_003",
		},
		Dt: map[string]string{
			"DAYMET_MEDIAN_V0": "projects/usgs-ssebop/dt/daymet_median_v0",
			"DAYMET_MEDIAN_V1": "projects/usgs-ssebop/dt/daymet_median_v1",
		},
		DtBand: "dt",
		TmaxDaily: map[string]DailyTmax{
			"CIMIS":   {Collection: "projects/climate-engine/cimis/daily", Band: "Tx", Offset: 273.15, Median: "CIMIS_MEDIAN_V1"},
			"DAYMET":  {Collection: "NASA/ORNL/DAYMET_V3", Band: "tmax", Offset: 273.15, Median: "DAYMET_MEDIAN_V0"},
			"GRIDMET": {Collection: "IDAHO_EPSCOR/GRIDMET", Band: "tmmx", Median: "GRIDMET_MEDIAN_V1"},
		},
		TmaxMedian: map[string]MedianTmax{
			"CIMIS_MEDIAN_V1":   {Collection: "projects/usgs-ssebop/tmax/cimis_median_v1", Band: "tmax", Version: "median_v1"},
			"DAYMET_MEDIAN_V0":  {Collection: "projects/usgs-ssebop/tmax/daymet_median_v0", Band: "tmax", Version: "median_v0"},
			"DAYMET_MEDIAN_V1":  {Collection: "projects/usgs-ssebop/tmax/daymet_median_v1", Band: "tmax", Version: "median_v1"},
			"GRIDMET_MEDIAN_V1": {Collection: "projects/usgs-ssebop/tmax/gridmet_median_v1", Band: "tmax", Version: "median_v1"},
			"TOPOWX_MEDIAN_V0":  {Collection: "projects/usgs-ssebop/tmax/topowx_median_v0", Band: "tmax", Version: "median_v0"},
		},
		TcorrDefault: map[string]float64{
			"CIMIS":             0.978,
			"DAYMET":            0.978,
			"GRIDMET":           0.978,
			"CIMIS_MEDIAN_V1":   0.978,
			"DAYMET_MEDIAN_V0":  0.978,
			"DAYMET_MEDIAN_V1":  0.978,
			"GRIDMET_MEDIAN_V1": 0.978,
			"TOPOWX_MEDIAN_V0":  0.978,
		},
	}
}

// Known reports whether key names a catalog entry for the auxiliary type.
// Keys are matched case-insensitively.
func (c *Catalog) Known(aux AuxType, key string) bool {
	key = strings.ToUpper(key)
	switch aux {
	case AuxElevation:
		_, ok := c.Elevation[key]
		return ok
	case AuxDt:
		_, ok := c.Dt[key]
		return ok
	case AuxTmax:
		if _, ok := c.TmaxDaily[key]; ok {
			return true
		}
		_, ok := c.TmaxMedian[key]
		return ok
	case AuxTcorr:
		return key == TcorrScene || key == TcorrMonth
	default:
		return false
	}
}

// AcceptsCustomPath reports whether arbitrary asset paths are valid sources
// for the auxiliary type. Only elevation images can be user supplied.
func (c *Catalog) AcceptsCustomPath(aux AuxType) bool {
	return aux == AuxElevation
}
