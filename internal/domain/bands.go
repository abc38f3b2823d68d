package domain

import "github.com/couchcryptid/ssebop-etl/internal/raster"

// Emissivity model constants.
const (
	soilEmissivity = 0.97
	vegEmissivity  = 0.99
	shapeFactor    = 0.55

	bareEmissivity  = 0.977 // 0 <= NDVI < 0.2
	waterEmissivity = 0.985 // NDVI < 0
)

// Single-channel atmospheric correction constants for the thermal band.
const (
	pathRadiance   = 0.91 // rp
	transmissivity = 0.866
	skyRadiance    = 1.32 // narrow band clear sky downward thermal radiation
)

// NDVI returns (nir - red) / (nir + red) for a raw scene, 0 where both are 0.
func NDVI(s Scene) (raster.Image, error) {
	if err := s.requireBands(BandRed, BandNIR); err != nil {
		return raster.Image{}, err
	}
	return ndvi(s.Bands[BandRed], s.Bands[BandNIR]), nil
}

func ndvi(red, nir raster.Image) raster.Image {
	return raster.NormalizedDifference(nir, red).Rename(BandNDVI)
}

// Emissivity returns the narrow band surface emissivity of a raw scene.
func Emissivity(s Scene) (raster.Image, error) {
	nd, err := NDVI(s)
	if err != nil {
		return raster.Image{}, err
	}
	return EmissivityFromNDVI(nd), nil
}

// EmissivityFromNDVI applies the piecewise NDVI emissivity model:
//
//	NDVI < 0            0.985
//	0 <= NDVI < 0.2     0.977
//	0.2 <= NDVI <= 0.5  0.99*Pv + 0.97*(1-Pv) + dE, Pv = ((NDVI-0.2)/0.3)^2
//	NDVI > 0.5          0.99
//
// with dE = (1-0.97)*(1-Pv)*(0.55*0.99), clamped to [0.977, 0.99].
func EmissivityFromNDVI(nd raster.Image) raster.Image {
	c := raster.Constant
	pv := nd.Sub(c(0.2)).Div(c(0.3)).Pow(c(2))
	dE := c(1 - soilEmissivity).Mul(c(1).Sub(pv)).Mul(c(shapeFactor * vegEmissivity))
	mixed := pv.Mul(c(vegEmissivity)).Add(c(1).Sub(pv).Mul(c(soilEmissivity))).Add(dE)

	return nd.
		Where(nd.Lt(c(0)), c(waterEmissivity)).
		Where(nd.Gte(c(0)).And(nd.Lt(c(0.2))), c(bareEmissivity)).
		Where(nd.Gt(c(0.5)), c(vegEmissivity)).
		Where(nd.Gte(c(0.2)).And(nd.Lte(c(0.5))), mixed).
		Clamp(bareEmissivity, vegEmissivity).
		Rename("emissivity")
}

// LST returns the emissivity corrected land surface temperature [K] of a raw
// scene. The brightness temperature is converted back to at-sensor radiance
// with the k1/k2 constants, corrected for path radiance, transmissivity and
// sky radiance, and converted to temperature using the surface emissivity.
func LST(s Scene) (raster.Image, error) {
	if err := s.requireBands(BandRed, BandNIR, BandBT); err != nil {
		return raster.Image{}, err
	}
	k1, k2, err := s.calibration()
	if err != nil {
		return raster.Image{}, err
	}
	nd := ndvi(s.Bands[BandRed], s.Bands[BandNIR])
	return lst(s.Bands[BandBT], EmissivityFromNDVI(nd), k1, k2), nil
}

func lst(bt, emissivity raster.Image, k1, k2 float64) raster.Image {
	c := raster.Constant
	radiance := c(k1).Div(c(k2).Div(bt).Exp().Sub(c(1)))
	rc := radiance.Sub(c(pathRadiance)).Div(c(transmissivity)).
		Sub(c(skyRadiance).Mul(c(1).Sub(emissivity)))
	return c(k2).Div(emissivity.Mul(c(k1)).Div(rc).Add(c(1)).Log()).Rename(BandLST)
}
