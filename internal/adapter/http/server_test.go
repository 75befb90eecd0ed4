package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/couchcryptid/vent-capacity-service/internal/adapter/http"
	"github.com/couchcryptid/vent-capacity-service/internal/config"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
	"github.com/couchcryptid/vent-capacity-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRequest = `{
	"site": "Pad 12",
	"tanks": [{"fluid": "oil", "quantity": 1, "size_bbl": 500, "design_pressure_osig": 16}],
	"headers": [{"name": "tank vent", "runs": [{"nominal": "6\"", "developed_length_ft": 10}]}]
}`

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type unencodableAssessor struct{}

func (unencodableAssessor) Transform(context.Context, domain.RawRequest) (domain.Assessment, error) {
	ratio := math.Inf(1)
	return domain.Assessment{ID: "assessment-inf", Margin: domain.Margin{Status: domain.MarginPass, Ratio: &ratio}}, nil
}

type failingAssessor struct{}

func (failingAssessor) Transform(context.Context, domain.RawRequest) (domain.Assessment, error) {
	return domain.Assessment{}, errors.New("engine unavailable")
}

func testConfig() *config.Config {
	return &config.Config{HTTPAddr: ":0", MaxRequestBytes: 4096}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error) (*httpadapter.Server, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()
	tfm := pipeline.NewTransformer(domain.NewEngine(domain.DefaultFlashProfiles()), logger, metrics)
	return httpadapter.NewServer(testConfig(), &mockReadiness{err: readyErr}, tfm, metrics, logger), metrics
}

func do(srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", "").Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(fmt.Errorf("pipeline has not produced any assessments yet"))
	assert.Equal(t, http.StatusServiceUnavailable, do(srv, http.MethodGet, "/readyz", "").Code)
}

func TestAlwaysReady(t *testing.T) {
	require.NoError(t, httpadapter.AlwaysReady.CheckReadiness(context.Background()))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := do(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAssessReturnsAssessment(t *testing.T) {
	srv, metrics := newTestServer(nil)
	rec := do(srv, http.MethodPost, "/v1/assessments", validRequest)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		ID     string `json:"id"`
		Site   string `json:"site"`
		Margin struct {
			Status string   `json:"status"`
			Ratio  *float64 `json:"ratio"`
		} `json:"margin"`
		TotalCapacity struct {
			State string `json:"state"`
		} `json:"total_capacity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.ID, "assessment-"))
	assert.Equal(t, "Pad 12", body.Site)
	assert.Equal(t, "pass", body.Margin.Status)
	require.NotNil(t, body.Margin.Ratio)
	assert.Greater(t, *body.Margin.Ratio, 1.0)
	assert.Equal(t, "configured", body.TotalCapacity.State)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MarginOutcomes.WithLabelValues("pass")), 1e-9)
}

func TestAssessRejectsInvalidRequest(t *testing.T) {
	srv, metrics := newTestServer(nil)
	rec := do(srv, http.MethodPost, "/v1/assessments",
		`{"tanks":[{"fluid":"brine","quantity":1,"size_bbl":500}],"headers":[{"runs":[{"nominal":"5\"","developed_length_ft":10}]}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "tanks[0]")
	assert.Contains(t, body["error"], "headers[0].runs[0]")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("invalid")), 1e-9)
}

func TestAssessRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := do(srv, http.MethodPost, "/v1/assessments", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssessRejectsOversizedBody(t *testing.T) {
	srv, metrics := newTestServer(nil)
	body := `{"site":"` + strings.Repeat("x", 8192) + `"}`
	rec := do(srv, http.MethodPost, "/v1/assessments", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("too_large")), 1e-9)
}

func TestAssessHidesInternalErrors(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	srv := httpadapter.NewServer(testConfig(), &mockReadiness{}, failingAssessor{}, metrics, discardLogger())

	rec := do(srv, http.MethodPost, "/v1/assessments", validRequest)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "engine unavailable")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("error")), 1e-9)
}

func TestAssessUnencodableResultIs500(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	srv := httpadapter.NewServer(testConfig(), &mockReadiness{}, unencodableAssessor{}, metrics, discardLogger())

	rec := do(srv, http.MethodPost, "/v1/assessments", validRequest)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("error")), 1e-9)
	assert.Zero(t, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("ok")))
}

func TestAssessOverflowingInputIs400(t *testing.T) {
	srv, metrics := newTestServer(nil)
	rec := do(srv, http.MethodPost, "/v1/assessments",
		`{"headers":[{"runs":[{"nominal":"1.5\"","developed_length_ft":1e307}]}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-finite")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPAssessments.WithLabelValues("invalid")), 1e-9)
}

func TestAssessRequiresPost(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodGet, "/v1/assessments", "").Code)
}

func TestFittingsLibrary(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := do(srv, http.MethodGet, "/v1/fittings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var fittings []domain.Fitting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fittings))
	assert.Equal(t, domain.Fittings(), fittings)
}

func TestPipeSizes(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := do(srv, http.MethodGet, "/v1/pipe-sizes", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var sizes []domain.NominalSize
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sizes))
	require.Len(t, sizes, 8)
	assert.Equal(t, `3"`, sizes[2].Label)
	assert.Equal(t, domain.ReferenceDiameterIn, sizes[2].InternalDiameterIn)
}
