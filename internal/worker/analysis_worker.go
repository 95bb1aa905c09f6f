package worker

import (
	"context"
	"fmt"
	"log/slog"

	"spendlens/internal/amqp"
	"spendlens/internal/analysis"
	"spendlens/internal/log"
	"spendlens/internal/services"
)

// Analyzer runs one analysis over the configured ledger.
type Analyzer interface {
	Analyze(ctx context.Context, req services.AnalyzeRequest) (analysis.StoredRun, error)
}

// AnalysisWorker turns queue messages and schedule ticks into analysis runs.
type AnalysisWorker struct {
	analyzer Analyzer
	logger   *log.Logger
}

func NewAnalysisWorker(analyzer Analyzer, logger *log.Logger) *AnalysisWorker {
	return &AnalysisWorker{
		analyzer: analyzer,
		logger:   logger.OrDefault().WithComponent(log.ComponentWorker),
	}
}

// HandleAnalysisRequest processes a single analysis request from AMQP.
// A returned error makes the consumer requeue the message once.
func (w *AnalysisWorker) HandleAnalysisRequest(ctx context.Context, msg *amqp.AnalysisRequestMessage) error {
	trigger := msg.Trigger
	if trigger == "" {
		trigger = analysis.TriggerMessage
	}
	w.logger.InfoContext(ctx, "Processing analysis request",
		"request_id", msg.RequestID,
		"trigger", trigger,
		"requested_at", msg.RequestedAt)

	run, err := w.analyzer.Analyze(ctx, services.AnalyzeRequest{Trigger: trigger})
	if err != nil {
		return fmt.Errorf("analysis request %s: %w", msg.RequestID, err)
	}
	w.logRun(ctx, run)
	return nil
}

// RunScheduled performs one scheduled analysis. Failures are logged; the
// next tick tries again.
func (w *AnalysisWorker) RunScheduled(ctx context.Context) {
	run, err := w.analyzer.Analyze(ctx, services.AnalyzeRequest{Trigger: analysis.TriggerSchedule})
	if err != nil {
		w.logger.LogFields(ctx, slog.LevelError, "Scheduled analysis failed", log.NewFields().
			WithOperation(log.OpAnalyze).
			WithError(err))
		return
	}
	w.logRun(ctx, run)
}

func (w *AnalysisWorker) logRun(ctx context.Context, run analysis.StoredRun) {
	level := slog.LevelInfo
	if run.Metadata.Status == analysis.RunPartiallyCompleted {
		level = slog.LevelWarn
	}
	w.logger.Log(ctx, level, "Analysis run finished",
		log.FieldRunID, run.Metadata.ID,
		log.FieldRunStatus, run.Metadata.Status,
		"trigger", run.Metadata.Trigger,
		"rows_accepted", run.Metadata.RowsAccepted)
}
