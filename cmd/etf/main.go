// Command etf computes SSEBop ETf for one Landsat scene at a set of points
// and prints the sampled values as a table.
//
//	etf -scene LC08_042035_20150713 -asset LANDSAT/LC08/C01/T1_TOA/LC08_042035_20150713 \
//	    -k1 774.8853 -k2 1321.0789 -points "-120.10237,36.946608;-119.8,36.6" -tmax DAYMET
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/adapter/engine"
	"github.com/couchcryptid/ssebop-etl/internal/adapter/postgres"
	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/couchcryptid/ssebop-etl/internal/pipeline"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "etf:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	fs := flag.NewFlagSet("etf", flag.ContinueOnError)
	var (
		req    domain.SceneRequest
		points string
		date   string
	)
	var (
		engineURL = fs.String("engine", sharedcfg.EnvOrDefault("ENGINE_URL", "http://localhost:8090"), "raster engine base URL")
		dbURL     = fs.String("db", os.Getenv("TCORR_DATABASE_URL"), "tcorr PostgreSQL DSN (optional)")
		scale     = fs.Float64("scale", 30, "sampling resolution [m]")
		timeout   = fs.Duration("timeout", 2*time.Minute, "overall timeout")
		logLevel  = fs.String("log-level", "warn", "log level")
	)
	fs.StringVar(&req.SceneID, "scene", "", "Landsat scene ID, e.g. LC08_042035_20150713 (required)")
	fs.StringVar(&req.AssetID, "asset", "", "TOA image asset ID (required)")
	fs.Float64Var(&req.K1, "k1", 0, "thermal band K1 constant (required)")
	fs.Float64Var(&req.K2, "k2", 0, "thermal band K2 constant (required)")
	fs.StringVar(&points, "points", "", `semicolon separated "lon,lat" pairs (required)`)
	fs.StringVar(&date, "time", "", "acquisition time, RFC 3339 (defaults to the scene ID date)")
	fs.Func("tmax", "Tmax source", specFlag(&req.TmaxSource))
	fs.Func("dt", "dT source", specFlag(&req.DtSource))
	fs.Func("elev", "elevation source", specFlag(&req.ElevSource))
	fs.Func("tcorr", "Tcorr source", specFlag(&req.TcorrSource))
	fs.BoolVar(&req.ELR, "elr", false, "apply the elevation lapse rate adjustment")
	fs.Float64Var(&req.TdiffThreshold, "tdiff", 0, "Tmax - LST mask threshold [K] (default 15)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pts, err := parsePoints(points)
	if err != nil {
		return err
	}
	req.Points = pts
	if date != "" {
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return fmt.Errorf("invalid -time: %w", err)
		}
		req.TimeStart = t.UnixMilli()
	}
	if req.SceneID == "" || req.AssetID == "" {
		return errors.New("-scene and -asset are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	logger := sharedobs.NewLogger(*logLevel, "text")
	metrics := observability.NewUnregisteredMetrics()
	client := engine.NewClient(*engineURL, *timeout, *scale, metrics, logger)

	var store domain.TcorrStore = domain.NewMemoryTcorrStore()
	if *dbURL != "" {
		db, err := postgres.Open(ctx, *dbURL, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	clock := clockwork.NewRealClock()
	resolver := domain.NewResolver(domain.DefaultCatalog(), client, store, logger, domain.WithClock(clock))
	res, err := pipeline.NewTransformer(resolver, client, clock, metrics, logger).Compute(ctx, req)
	if err != nil {
		return err
	}
	return printResult(out, res)
}

func specFlag(dst *domain.Spec) func(string) error {
	return func(s string) error {
		*dst = domain.Spec(s)
		return nil
	}
}

func parsePoints(s string) ([]raster.Point, error) {
	var pts []raster.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lon, lat, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q: want lon,lat", pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		pts = append(pts, raster.Point{Lon: x, Lat: y})
	}
	if len(pts) == 0 {
		return nil, errors.New("-points is required")
	}
	return pts, nil
}

func printResult(out io.Writer, res domain.ETfResult) error {
	tcorr := "masked"
	if res.Tcorr != nil {
		tcorr = strconv.FormatFloat(*res.Tcorr, 'f', 4, 64)
	}
	fmt.Fprintf(out, "scene %s  date %s  tmax %s (%s)  tcorr %s [index %d]\n\n",
		res.SceneID, res.Date, res.TmaxSource, res.TmaxVersion, tcorr, res.TcorrIndex)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "LON\tLAT\tNDVI\tLST\tTMAX\tETF\t")
	for _, p := range res.Points {
		fmt.Fprintf(tw, "%.6f\t%.6f\t%s\t%s\t%s\t%s\t\n",
			p.Point.Lon, p.Point.Lat,
			formatValue(p.NDVI, 4), formatValue(p.LST, 3), formatValue(p.Tmax, 3), formatValue(p.ETf, 4))
	}
	return tw.Flush()
}

func formatValue(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
