package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/log"
)

// RunState is a step of one analysis run.
type RunState string

const (
	StateIdle               RunState = "idle"
	StateRunning            RunState = "running"
	StateCompleted          RunState = "completed"
	StatePartiallyCompleted RunState = "partially_completed"
	StateDone               RunState = "done"
	StateFailed             RunState = "failed"
)

// DefaultAnalyzerTimeout bounds each analyzer in a run.
const DefaultAnalyzerTimeout = 30 * time.Second

// Causes wrapped by the AnalyzerFailure of an analyzer that overran, panicked
// or was still running when the caller gave up.
var (
	ErrAnalyzerTimeout   = errors.New("analyzer timed out")
	ErrAnalyzerPanic     = errors.New("analyzer panicked")
	ErrAnalyzerCancelled = errors.New("analyzer cancelled")
)

type OrchestratorConfig struct {
	AnalyzerTimeout time.Duration
}

// Orchestrator normalizes a batch, builds one grouped view and runs every
// analyzer against it concurrently. A failing analyzer only empties its own
// section. Orchestrator is safe for concurrent runs.
type Orchestrator struct {
	normalizer *ingest.Normalizer
	analyzers  []analysis.Analyzer
	config     OrchestratorConfig
	logger     *log.Logger

	// observe, when set, sees every state transition of every run.
	observe func(from, to RunState)
}

func NewOrchestrator(normalizer *ingest.Normalizer, analyzers []analysis.Analyzer, config OrchestratorConfig, logger *log.Logger) *Orchestrator {
	if config.AnalyzerTimeout <= 0 {
		config.AnalyzerTimeout = DefaultAnalyzerTimeout
	}
	return &Orchestrator{
		normalizer: normalizer,
		analyzers:  analyzers,
		config:     config,
		logger:     logger.OrDefault().WithComponent(log.ComponentOrchestrator),
	}
}

// OnTransition registers an observer for state changes.
func (o *Orchestrator) OnTransition(fn func(from, to RunState)) {
	o.observe = fn
}

type analyzerOutcome struct {
	name   string
	result analysis.Result
	err    error
}

// Run executes one analysis over rows. It fails only when the batch cannot
// be normalized or grouped; analyzer failures are recorded in the report.
func (o *Orchestrator) Run(ctx context.Context, rows []ingest.Row) (*analysis.Report, error) {
	state := StateIdle
	move := func(to RunState) {
		if o.observe != nil {
			o.observe(state, to)
		}
		state = to
	}
	move(StateRunning)

	batch, err := o.normalizer.Normalize(ctx, rows)
	if err != nil {
		move(StateFailed)
		return nil, fmt.Errorf("normalize batch: %w", err)
	}

	view, err := analysis.Group(batch.Records)
	if err != nil {
		move(StateFailed)
		o.logger.LogFields(ctx, slog.LevelError, "Grouping failed", log.NewFields().
			WithOperation(log.OpGroup).
			WithError(err))
		return nil, fmt.Errorf("group records: %w", err)
	}

	outcomes := make(chan analyzerOutcome, len(o.analyzers))
	for _, a := range o.analyzers {
		go func() {
			outcomes <- o.runAnalyzer(ctx, a, view)
		}()
	}
	byName := make(map[string]analyzerOutcome, len(o.analyzers))
	for range o.analyzers {
		out := <-outcomes
		byName[out.name] = out
	}

	report := analysis.NewReport(batch.Summary)
	for _, a := range o.analyzers {
		out := byName[a.Name()]
		if out.err != nil {
			o.logger.LogFields(ctx, slog.LevelError, "Analyzer failed", log.NewFields().
				WithAnalyzer(out.name).
				WithOperation(log.OpAnalyze).
				WithErrorType(errorType(out.err)).
				WithError(out.err))
			report.ApplyFailure(out.name, out.err)
			continue
		}
		report.ApplyResult(out.name, out.result)
	}
	report.ComputeTotals()

	if report.Status == analysis.RunPartiallyCompleted {
		move(StatePartiallyCompleted)
	} else {
		move(StateCompleted)
	}
	o.logger.InfoContext(ctx, "Analysis run finished",
		log.FieldRunStatus, report.Status,
		log.FieldRowsAccepted, batch.Summary.RowsAccepted,
		"duplicates", len(report.DuplicateFindings.Items),
		"switches", len(report.SwitchRecommendations.Items),
		"substitutions", len(report.SubstitutionCandidates.Items))
	move(StateDone)
	return report, nil
}

// runAnalyzer never returns a bare error: panics, overruns and caller
// cancellation become *core.AnalyzerFailure like returned errors do. An
// abandoned analyzer has its context cancelled so lookups stop.
func (o *Orchestrator) runAnalyzer(parent context.Context, a analysis.Analyzer, view *analysis.GroupedView) analyzerOutcome {
	name := a.Name()
	ctx, cancel := context.WithTimeout(parent, o.config.AnalyzerTimeout)
	defer cancel()

	done := make(chan analyzerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzerOutcome{name: name, err: &core.AnalyzerFailure{Analyzer: name, Err: fmt.Errorf("%w: %v", ErrAnalyzerPanic, r)}}
			}
		}()
		res, err := a.Analyze(ctx, view)
		if err != nil {
			err = &core.AnalyzerFailure{Analyzer: name, Err: err}
		}
		done <- analyzerOutcome{name: name, result: res, err: err}
	}()

	timer := time.NewTimer(o.config.AnalyzerTimeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out
	case <-timer.C:
		return analyzerOutcome{name: name, err: &core.AnalyzerFailure{
			Analyzer: name,
			Err:      fmt.Errorf("%w after %s", ErrAnalyzerTimeout, o.config.AnalyzerTimeout),
		}}
	case <-parent.Done():
		return analyzerOutcome{name: name, err: &core.AnalyzerFailure{
			Analyzer: name,
			Err:      fmt.Errorf("%w: %w", ErrAnalyzerCancelled, parent.Err()),
		}}
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrAnalyzerTimeout), errors.Is(err, ErrAnalyzerCancelled):
		return log.ErrorTypeTimeout
	case errors.Is(err, ErrAnalyzerPanic):
		return log.ErrorTypePanic
	default:
		return log.ErrorTypeInternal
	}
}
