package domain

import (
	"strconv"

	"github.com/couchcryptid/ssebop-etl/internal/raster"
)

// Params holds the ETf composition thresholds.
type Params struct {
	// TdiffThreshold masks pixels where Tmax exceeds LST by more than this [K];
	// such contrast indicates cloud or other unreliable thermal data.
	TdiffThreshold float64

	// DtMin and DtMax bound dT before it is used as the ETf denominator [K].
	DtMin float64
	DtMax float64

	// ELR enables the elevation lapse rate adjustment of Tmax.
	ELR            bool
	LapseThreshold float64 // elevation above which Tmax is adjusted [m]
	LapseRate      float64 // [K/m]

	// ETf above MaskCeiling is masked; the rest is clamped to [Min, Max].
	MaskCeiling float64
	Min         float64
	Max         float64
}

// DefaultParams returns the operational SSEBop thresholds.
func DefaultParams() Params {
	return Params{
		TdiffThreshold: 15,
		DtMin:          6,
		DtMax:          25,
		LapseThreshold: 1500,
		LapseRate:      0.003,
		MaskCeiling:    1.3,
		Min:            0,
		Max:            1.05,
	}
}

// LapseAdjust lowers temperature by rate per metre of elevation above
// threshold. Pixels at or below the threshold are unchanged.
func LapseAdjust(temperature, elev raster.Image, threshold, rate float64) raster.Image {
	c := raster.Constant
	adjusted := temperature.Sub(c(rate).Mul(elev.Sub(c(threshold))))
	return adjusted.Where(elev.Lte(c(threshold)), temperature)
}

// ETfInputs are the rasters combined into ETf.
type ETfInputs struct {
	LST   raster.Image
	Tmax  raster.Image
	Dt    raster.Image
	Elev  raster.Image // only read when Params.ELR is set
	Tcorr TcorrResult
}

// ComposeETf computes
//
//	ETf = (Tcorr*Tmax - LST + dT) / dT
//
// i.e. 1 at the cold limit (LST = Tcorr*Tmax) and 0 at the hot limit
// (LST = Tcorr*Tmax + dT). dT is clamped to [DtMin, DtMax]; ETf at or above
// MaskCeiling is masked, the remainder clamped to [Min, Max], and pixels whose
// Tmax - LST exceeds TdiffThreshold are masked.
func ComposeETf(in ETfInputs, p Params) raster.Image {
	c := raster.Constant

	tmax := in.Tmax
	if p.ELR {
		tmax = LapseAdjust(tmax, in.Elev, p.LapseThreshold, p.LapseRate)
	}
	dt := in.Dt.Clamp(p.DtMin, p.DtMax)

	etf := in.Tcorr.Image.Mul(tmax).Sub(in.LST).Add(dt).Div(dt)
	etf = etf.
		UpdateMask(etf.Lt(c(p.MaskCeiling))).
		Clamp(p.Min, p.Max).
		UpdateMask(tmax.Sub(in.LST).Lte(c(p.TdiffThreshold)))

	return etf.Rename("etf").
		Set("TCORR", strconv.FormatFloat(in.Tcorr.Value, 'f', -1, 64)).
		Set("TCORR_INDEX", strconv.Itoa(int(in.Tcorr.Index)))
}
