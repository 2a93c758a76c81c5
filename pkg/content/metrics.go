package content

import (
	"context"
	"database/sql"
	"time"

	"github.com/astralpost/astralpost/pkg/observability"
)

// GenerationRecord is one append-only telemetry row, written after every
// generation attempt regardless of which path produced the result.
type GenerationRecord struct {
	Provider    string
	Perspective Perspective
	Tier        string
	Outcome     string
	Tokens      int
	CostUSD     float64
	Duration    time.Duration
}

// MetricsSink records generation telemetry. Cost and alerting read from it;
// correctness never does.
type MetricsSink interface {
	Record(ctx context.Context, rec GenerationRecord)
}

// StoreSink writes each record to the generation_metrics table and mirrors
// it into the Prometheus instruments.
type StoreSink struct {
	db      *sql.DB
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewStoreSink creates the default metrics sink.
func NewStoreSink(db *sql.DB, metrics *observability.Metrics, logger *observability.Logger) *StoreSink {
	return &StoreSink{
		db:      db,
		metrics: metrics,
		logger:  logger.WithField("component", "content.metrics"),
	}
}

// Record persists the telemetry row. Failures are logged and dropped:
// metrics are for cost tracking, not correctness.
func (s *StoreSink) Record(ctx context.Context, rec GenerationRecord) {
	s.metrics.GenerationTotal.WithLabelValues(rec.Provider, string(rec.Perspective), rec.Tier, rec.Outcome).Inc()
	s.metrics.GenerationDuration.WithLabelValues(rec.Provider, rec.Tier).Observe(rec.Duration.Seconds())
	s.metrics.GenerationTokens.WithLabelValues(rec.Provider).Observe(float64(rec.Tokens))
	s.metrics.GenerationCostUSD.WithLabelValues(rec.Provider).Add(rec.CostUSD)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_metrics (provider, perspective, tier, outcome, tokens, cost_usd, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Provider, rec.Perspective, rec.Tier, rec.Outcome, rec.Tokens, rec.CostUSD,
		rec.Duration.Milliseconds())
	if err != nil {
		s.logger.WithError(err).Warn("failed to persist generation metric")
	}
}
