package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"pageforge/idgen"
)

// Common metric names recorded by the capture pipeline.
const (
	MetricChunkIngestMs     = "chunk_ingest_duration_ms"
	MetricPayloadFinalizeMs = "payload_finalize_duration_ms"
	MetricSessionDurationMs = "session_duration_ms"
)

// MetricsRecorder writes point-in-time metric samples.
type MetricsRecorder struct {
	db    *sql.DB
	newID idgen.Generator
}

// NewMetricsRecorder creates a recorder backed by the given database.
func NewMetricsRecorder(db *sql.DB) *MetricsRecorder {
	return &MetricsRecorder{db: db, newID: idgen.Prefixed("met_", idgen.Default)}
}

// RecordSimple records a single metric sample. Errors are logged, not returned.
func (m *MetricsRecorder) RecordSimple(ctx context.Context, name string, value float64, unit string) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO metrics_timeseries (metric_id, metric_name, timestamp, value, unit)
		VALUES (?,?,?,?,?)`,
		m.newID(), name, time.Now().Unix(), value, unit)
	if err != nil {
		slog.Warn("metric record failed", "error", err, "metric", name)
	}
}
