// Package domain implements the SSEBop (Simplified Surface Energy Balance,
// operational) evapotranspiration fraction model as raster expression graphs.
//
// # Inputs
//
// A [Scene] is one Landsat capture: either top-of-atmosphere reflectance
// (red, nir) and brightness temperature (bt) with the thermal calibration
// constants k1 and k2, or already prepared lst and ndvi bands.
//
// Scene identifiers follow the Collection 1 short form:
//
//	"<spacecraft>_<path><row>_<yyyymmdd>"  →  e.g. "LC08_042035_20150713"
//	spacecraft LC08, WRS-2 path 42, row 35, acquired 2015-07-13.
//
// The WRS-2 tile key ("p042r035") and the acquisition month index the
// monthly Tcorr tables.
//
// # Source specifiers
//
// Each auxiliary input (elevation, dT, Tmax, Tcorr) is chosen with a [Spec],
// classified once by [ClassifySource]:
//
//	"305", "0.985"         constant, broadcast as a uniform raster
//	"DAYMET", "SRTM", ...  named catalog entry (case-insensitive)
//	"projects/x/dem"       custom asset path (elevation only)
//
// # Fallbacks and provenance
//
// Daily Tmax sources (CIMIS, DAYMET, GRIDMET) fall back to their long-term
// median collection when no daily image exists for the date. TMAX_VERSION is
// the processing date for daily data, the median family tag ("median_v0",
// "median_v1") for median data, or "CUSTOM_<value>" for constants.
//
// Tcorr resolves through scene (index 0), month (1) and catalog default (2)
// tiers; a constant Tcorr has index 3.
//
// # Units
//
//	lst, bt, tmax, dt   Kelvin
//	elev                metres
//	ndvi, etf           unitless; etf in [0, 1.05] or masked
package domain
