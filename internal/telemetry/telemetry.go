// Package telemetry records the per-stage performance metrics of spec.md
// §4.4 step 7. No bespoke metrics client is wired in, so this stays a thin
// log/slog-backed Recorder rather than reaching for a library with nothing
// in SPEC_FULL.md to wire it to.
package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// StageMetric is the {document_id, stage, processing_time, success,
// correlation_id} tuple of spec.md §4.4.
type StageMetric struct {
	DocumentID    string
	Stage         string
	ProcessingTime time.Duration
	Success       bool
	CorrelationID string
}

// Recorder is the narrow metrics sink the processor package depends on.
type Recorder interface {
	RecordStage(ctx context.Context, m StageMetric)
}

// SlogRecorder logs each metric as a structured slog event.
type SlogRecorder struct {
	logger *slog.Logger
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger}
}

func (r *SlogRecorder) RecordStage(_ context.Context, m StageMetric) {
	r.logger.Info("stage metric",
		slog.String("document_id", m.DocumentID),
		slog.String("stage", m.Stage),
		slog.Duration("processing_time", m.ProcessingTime),
		slog.Bool("success", m.Success),
		slog.String("correlation_id", m.CorrelationID))
}
