package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/vent-capacity-service/internal/config"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assessor turns a raw request into an assessment. pipeline.AssessmentTransformer
// satisfies it, so HTTP and Kafka requests share one code path.
type Assessor interface {
	Transform(ctx context.Context, raw domain.RawRequest) (domain.Assessment, error)
}

// ReadyFunc adapts a function to sharedobs.ReadinessChecker.
type ReadyFunc func(ctx context.Context) error

func (f ReadyFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// AlwaysReady reports ready unconditionally. Used when no pipeline runs.
var AlwaysReady = ReadyFunc(func(context.Context) error { return nil })

// Server exposes health, readiness, metrics and the assessment API.
type Server struct {
	httpServer      *http.Server
	assessor        Assessor
	maxRequestBytes int64
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 assessment routes.
func NewServer(cfg *config.Config, ready sharedobs.ReadinessChecker, assessor Assessor, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessor:        assessor,
		maxRequestBytes: cfg.MaxRequestBytes,
		metrics:         metrics,
		logger:          logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/assessments", s.handleAssess)
	mux.HandleFunc("GET /v1/fittings", handleFittings)
	mux.HandleFunc("GET /v1/pipe-sizes", handlePipeSizes)

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

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.HTTPAssessments.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.metrics.HTTPAssessments.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := s.assessor.Transform(r.Context(), domain.RawRequest{Value: body, Timestamp: time.Now()})
	if err != nil {
		if domain.IsConfigurationError(err) {
			s.metrics.HTTPAssessments.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.metrics.HTTPAssessments.WithLabelValues("error").Inc()
		s.logger.Error("assessment failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	out, err := json.Marshal(a)
	if err != nil {
		s.metrics.HTTPAssessments.WithLabelValues("error").Inc()
		s.logger.Error("encode assessment failed", "assessment_id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}

	s.metrics.HTTPAssessments.WithLabelValues("ok").Inc()
	s.logger.Info("assessment served", "assessment_id", a.ID, "status", a.Margin.Status)
	writeBody(w, http.StatusOK, out)
}

func handleFittings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Fittings())
}

func handlePipeSizes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.NominalSizes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v before touching the response so an encoding failure
// becomes a 500 rather than a truncated 2xx.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n')) //nolint:errcheck // headers already sent
}
