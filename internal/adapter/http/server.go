package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/raster"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 1 << 20

// Computer runs the ETf model for a single scene request.
type Computer interface {
	Compute(ctx context.Context, req domain.SceneRequest) (domain.ETfResult, error)
}

// Server exposes health, readiness, metrics and on-demand ETf endpoints.
type Server struct {
	httpServer *http.Server
	computer   Computer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and, when
// computer is non-nil, POST /v1/etf.
func NewServer(addr string, ready sharedobs.ReadinessChecker, computer Computer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		computer: computer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if computer != nil {
		mux.HandleFunc("POST /v1/etf", s.handleETf)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleETf(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	req, err := domain.ParseSceneRequest(domain.RawEvent{Value: raw})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.computer.Compute(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("etf request failed", "scene_id", req.SceneID, "error", err)
		}
		writeError(w, status, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

// statusFor maps model errors to HTTP status codes: request problems are
// 4xx, engine and store failures 5xx.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidScene),
		errors.Is(err, domain.ErrInvalidSource),
		errors.Is(err, domain.ErrMissingBand),
		errors.Is(err, domain.ErrMissingCalibration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, raster.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

// Readiness combines named checks. Every failing dependency is reported,
// prefixed with its name.
type Readiness map[string]sharedobs.ReadinessChecker

func (r Readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for name, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
