package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
)

// AssessmentTransformer implements Transformer by parsing the request and
// running it through an assessor (the engine, optionally behind a cache).
type AssessmentTransformer struct {
	assessor domain.Assessor
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates an AssessmentTransformer.
func NewTransformer(assessor domain.Assessor, logger *slog.Logger, metrics *observability.Metrics) *AssessmentTransformer {
	return &AssessmentTransformer{
		assessor: assessor,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *AssessmentTransformer) Transform(_ context.Context, raw domain.RawRequest) (domain.Assessment, error) {
	site, err := domain.ParseRawRequest(raw)
	if err != nil {
		return domain.Assessment{}, err
	}

	a, err := t.assessor.Assess(site)
	if err != nil {
		return domain.Assessment{}, err
	}

	t.metrics.MarginOutcomes.WithLabelValues(string(a.Margin.Status)).Inc()
	t.logger.Debug("site assessed",
		"assessment_id", a.ID,
		"site", a.Site,
		"status", a.Margin.Status,
		"inflow_mmscfd", a.Inflow.TotalMMSCFD,
		"capacity", a.TotalCapacity.String(),
	)
	return a, nil
}
