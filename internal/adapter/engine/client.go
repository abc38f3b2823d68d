// Package engine talks to the remote raster engine that executes expression
// graphs and answers collection coverage queries.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
)

// Client implements raster.Evaluator, raster.Sampler and domain.Coverage
// over the engine HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	scale      float64
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an engine client. scale is the sampling resolution in
// metres sent with every point query.
func NewClient(baseURL string, timeout time.Duration, scale float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		scale:   scale,
		metrics: metrics,
		logger:  logger,
	}
}

type sampleRequest struct {
	Expr  *raster.Expr `json:"expr"`
	Point raster.Point `json:"point"`
	Scale float64      `json:"scale"`
}

type sampleResponse struct {
	Value *float64 `json:"value"`
}

type coverageResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Sample evaluates the whole expression graph of img on the engine. A null
// value in the response means the pixel is masked.
func (c *Client) Sample(ctx context.Context, img raster.Image, pt raster.Point) (float64, bool, error) {
	if img.Expr() == nil {
		return 0, false, errors.New("sample: empty image")
	}
	body, err := json.Marshal(sampleRequest{Expr: img.Expr(), Point: pt, Scale: c.scale})
	if err != nil {
		return 0, false, fmt.Errorf("encode sample request: %w", err)
	}

	start := time.Now()
	var resp sampleResponse
	err = c.do(ctx, http.MethodPost, c.baseURL+"/v1/sample", bytes.NewReader(body), &resp)
	c.metrics.EngineDuration.WithLabelValues("sample").Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, raster.ErrAssetNotFound):
		c.metrics.EngineRequests.WithLabelValues("sample", "not_found").Inc()
		return 0, false, err
	case err != nil:
		c.metrics.EngineRequests.WithLabelValues("sample", "error").Inc()
		c.logger.Warn("engine sample failed", "error", err, "band", img.Name())
		return 0, false, err
	case resp.Value == nil:
		c.metrics.EngineRequests.WithLabelValues("sample", "masked").Inc()
		return 0, false, nil
	}
	c.metrics.EngineRequests.WithLabelValues("sample", "success").Inc()
	return *resp.Value, true, nil
}

// SampleDataset reads a single dataset pixel, so the local point evaluator
// can run against engine-hosted data.
func (c *Client) SampleDataset(ctx context.Context, ds raster.Dataset, pt raster.Point) (float64, bool, error) {
	return c.Sample(ctx, raster.FromDataset(ds), pt)
}

// HasImage reports whether a daily collection holds an image for date.
func (c *Client) HasImage(ctx context.Context, collection string, date time.Time) (bool, error) {
	u := fmt.Sprintf("%s/v1/collections/%s/images?%s",
		c.baseURL,
		url.PathEscape(collection),
		url.Values{"date": {date.Format(time.DateOnly)}}.Encode(),
	)

	start := time.Now()
	var resp coverageResponse
	err := c.do(ctx, http.MethodGet, u, nil, &resp)
	c.metrics.EngineDuration.WithLabelValues("coverage").Observe(time.Since(start).Seconds())

	if errors.Is(err, raster.ErrAssetNotFound) {
		c.metrics.EngineRequests.WithLabelValues("coverage", "not_found").Inc()
		return false, fmt.Errorf("collection %s: %w", collection, err)
	}
	if err != nil {
		c.metrics.EngineRequests.WithLabelValues("coverage", "error").Inc()
		return false, err
	}
	c.metrics.EngineRequests.WithLabelValues("coverage", "success").Inc()
	return resp.Count > 0, nil
}

func (c *Client) do(ctx context.Context, method, fullURL string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("engine: %s: %w", e.Error, raster.ErrAssetNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("engine API error: status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
