package main

import (
	"bytes"
	"testing"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoints(t *testing.T) {
	pts, err := parsePoints(" -120.10237,36.946608 ; -119.8, 36.6;")
	require.NoError(t, err)
	assert.Equal(t, []raster.Point{
		{Lon: -120.10237, Lat: 36.946608},
		{Lon: -119.8, Lat: 36.6},
	}, pts)
}

func TestParsePoints_Invalid(t *testing.T) {
	for _, s := range []string{"", ";", "-120.1", "x,36.9", "-120.1,y"} {
		_, err := parsePoints(s)
		assert.Error(t, err, s)
	}
}

func TestRun_RequiresSceneAndAsset(t *testing.T) {
	err := run([]string{"-points", "-120.1,36.9"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-scene")
}

func TestRun_InvalidTime(t *testing.T) {
	err := run([]string{"-scene", "LC08_042035_20150713", "-asset", "a/b", "-points", "0,0", "-time", "yesterday"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-time")
}

func TestPrintResult(t *testing.T) {
	etf, lst, ndvi, tmax := 0.8794, 305.0, 0.6, 308.65
	tcorr := 0.9811
	res := domain.ETfResult{
		SceneID:     "LC08_042035_20150713",
		Date:        "2015-07-13",
		TmaxSource:  "DAYMET",
		TmaxVersion: "2026-10-19",
		Tcorr:       &tcorr,
		TcorrIndex:  domain.TcorrIndexMonth,
		Points: []domain.PointResult{
			{Point: raster.Point{Lon: -120.10237, Lat: 36.946608}, ETf: &etf, LST: &lst, NDVI: &ndvi, Tmax: &tmax},
			{Point: raster.Point{Lon: 0, Lat: 0}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "scene LC08_042035_20150713  date 2015-07-13  tmax DAYMET (2026-10-19)  tcorr 0.9811 [index 1]")
	assert.Contains(t, out, "0.8794")
	assert.Contains(t, out, "308.650")
	assert.Contains(t, out, "-120.102370")
	assert.Contains(t, out, "-")
}

func TestPrintResult_MaskedTcorr(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, domain.ETfResult{SceneID: "LC08_042035_20150713", TcorrIndex: domain.TcorrIndexDefault}))
	assert.Contains(t, buf.String(), "tcorr masked [index 2]")
}
