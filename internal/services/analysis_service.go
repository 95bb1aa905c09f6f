package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spendlens/internal/amqp"
	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
	"spendlens/internal/log"
	"spendlens/internal/storage"
)

// Ports used by AnalysisService. Every one is optional except the source
// for runs that do not bring their own rows.
type (
	RunStore interface {
		SaveRun(ctx context.Context, run analysis.StoredRun) error
		GetRun(ctx context.Context, id string) (analysis.StoredRun, error)
		ListRuns(ctx context.Context, limit int) ([]analysis.RunMetadata, error)
	}

	LedgerStore interface {
		UpsertRecords(ctx context.Context, recs []core.ExpenseRecord) (storage.UpsertResult, error)
		ListRecords(ctx context.Context, f storage.RecordFilter) ([]core.ExpenseRecord, error)
		GetRecord(ctx context.Context, transactionID string) (core.ExpenseRecord, error)
	}

	ReportPublisher interface {
		PublishReportCompleted(ctx context.Context, msg *amqp.ReportCompletedMessage) error
	}

	RunNotifier interface {
		NotifyRun(ctx context.Context, run analysis.StoredRun) error
	}
)

// Returned when an optional dependency the call needs is not configured.
var (
	ErrNoRunStore    = errors.New("run storage is not configured")
	ErrNoLedgerStore = errors.New("ledger storage is not configured")
	ErrNoSource      = errors.New("no ledger source configured")
)

type AnalysisServiceDeps struct {
	Engine    *Orchestrator
	Source    ledger.RowSource
	Runs      RunStore
	Ledger    LedgerStore
	Publisher ReportPublisher
	Notifier  RunNotifier
	Logger    *log.Logger
}

// AnalysisService runs analyses and takes care of what happens around a run:
// loading rows, persisting the result, announcing it.
type AnalysisService struct {
	engine     *Orchestrator
	normalizer *ingest.Normalizer
	source     ledger.RowSource
	runs       RunStore
	ledger     LedgerStore
	publisher  ReportPublisher
	notifier   RunNotifier
	logger     *log.Logger

	newID func() string
	now   func() time.Time
}

func NewAnalysisService(deps AnalysisServiceDeps) *AnalysisService {
	logger := deps.Logger.OrDefault()
	return &AnalysisService{
		engine:     deps.Engine,
		normalizer: ingest.NewNormalizer(logger),
		source:     deps.Source,
		runs:       deps.Runs,
		ledger:     deps.Ledger,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		logger:     logger.WithComponent(log.ComponentAnalysis),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// AnalyzeRequest describes one run. Without Rows the configured source is read.
type AnalyzeRequest struct {
	Trigger string
	Source  string
	Rows    []ingest.Row
}

// Analyze runs the engine and, when configured, stores the run, publishes a
// completion event and sends a notification. Only loading, engine and
// storage failures are returned; publishing and notifying are best effort.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (analysis.StoredRun, error) {
	meta := analysis.RunMetadata{
		ID:        s.newID(),
		Trigger:   req.Trigger,
		Source:    req.Source,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With(log.FieldRunID, meta.ID)

	rows := req.Rows
	if rows == nil {
		if s.source == nil {
			return analysis.StoredRun{}, ErrNoSource
		}
		var err error
		if rows, err = s.source.Rows(ctx); err != nil {
			return analysis.StoredRun{}, fmt.Errorf("load ledger from %s: %w", s.source.Name(), err)
		}
		if meta.Source == "" {
			meta.Source = s.source.Name()
		}
	}

	report, err := s.engine.Run(ctx, rows)
	if err != nil {
		logger.LogFields(ctx, slog.LevelError, "Analysis run failed", log.NewFields().
			WithOperation(log.OpAnalyze).
			WithError(err))
		return analysis.StoredRun{}, err
	}

	meta.Status = report.Status
	meta.RowsReceived = report.Batch.RowsReceived
	meta.RowsAccepted = report.Batch.RowsAccepted
	meta.FinishedAt = s.now().UTC()
	run := analysis.StoredRun{Metadata: meta, Report: report}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("save run: %w", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReportCompleted(ctx, amqp.NewReportCompletedMessage(meta, report.Totals)); err != nil {
			logger.LogFields(ctx, slog.LevelError, "Failed to publish report completed", log.NewFields().
				WithOperation(log.OpPublish).
				WithError(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, run); err != nil {
			logger.LogFields(ctx, slog.LevelWarn, "Failed to send run notification", log.NewFields().
				WithOperation(log.OpNotify).
				WithError(err))
		}
	}

	logger.InfoContext(ctx, "Analysis run stored",
		"trigger", meta.Trigger,
		"source", meta.Source,
		log.FieldRunStatus, meta.Status)
	return run, nil
}

// ImportResult reports a ledger import.
type ImportResult struct {
	Batch  ingest.BatchSummary  `json:"batch"`
	Upsert storage.UpsertResult `json:"upsert"`
}

// ImportLedger validates rows and upserts the valid ones by transaction id.
func (s *AnalysisService) ImportLedger(ctx context.Context, rows []ingest.Row) (ImportResult, error) {
	if s.ledger == nil {
		return ImportResult{}, ErrNoLedgerStore
	}
	batch, err := s.normalizer.Normalize(ctx, rows)
	if err != nil {
		return ImportResult{Batch: batch.Summary}, err
	}
	res, err := s.ledger.UpsertRecords(ctx, batch.Records)
	if err != nil {
		return ImportResult{Batch: batch.Summary}, fmt.Errorf("upsert ledger: %w", err)
	}
	return ImportResult{Batch: batch.Summary, Upsert: res}, nil
}

// ListLedger returns the stored records matching f in import order.
func (s *AnalysisService) ListLedger(ctx context.Context, f storage.RecordFilter) ([]core.ExpenseRecord, error) {
	if s.ledger == nil {
		return nil, ErrNoLedgerStore
	}
	return s.ledger.ListRecords(ctx, f)
}

// GetLedgerRecord returns one stored transaction; storage.ErrNotFound when
// the id was never imported.
func (s *AnalysisService) GetLedgerRecord(ctx context.Context, transactionID string) (core.ExpenseRecord, error) {
	if s.ledger == nil {
		return core.ExpenseRecord{}, ErrNoLedgerStore
	}
	return s.ledger.GetRecord(ctx, transactionID)
}

func (s *AnalysisService) GetRun(ctx context.Context, id string) (analysis.StoredRun, error) {
	if s.runs == nil {
		return analysis.StoredRun{}, ErrNoRunStore
	}
	return s.runs.GetRun(ctx, id)
}

func (s *AnalysisService) ListRuns(ctx context.Context, limit int) ([]analysis.RunMetadata, error) {
	if s.runs == nil {
		return nil, ErrNoRunStore
	}
	return s.runs.ListRuns(ctx, limit)
}

// Close closes the stores and the publisher when they hold connections.
func (s *AnalysisService) Close() error {
	var errs []error
	seen := map[any]bool{}
	for name, dep := range map[string]any{"runs": s.runs, "ledger": s.ledger, "publisher": s.publisher} {
		c, ok := dep.(io.Closer)
		if !ok || seen[dep] {
			continue
		}
		seen[dep] = true
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close analysis service: %w", errors.Join(errs...))
	}
	return nil
}
