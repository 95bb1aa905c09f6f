package http

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
	"spendlens/internal/log"
	"spendlens/internal/services"
	"spendlens/internal/storage"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every configured dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.config.Checks))
	for name, check := range s.config.Checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	type metric struct {
		name, help, kind string
		value            int64
	}
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metrics := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_server_errors_total", "HTTP responses with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"http_response_time_microseconds_avg", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"analysis_runs_total", "Analysis runs started over HTTP", "counter", atomic.LoadInt64(&s.appMetrics.runsTotal)},
		{"analysis_runs_partial_total", "Analysis runs with a failed analyzer", "counter", atomic.LoadInt64(&s.appMetrics.runsPartial)},
		{"ledger_imports_total", "Ledger uploads stored", "counter", atomic.LoadInt64(&s.appMetrics.importsTotal)},
		{"rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.TotalHits},
		{"rate_limit_active_clients", "Clients tracked by the rate limiter", "gauge", rateLimitMetrics.ClientCount},
		{"security_suspicious_requests_total", "Requests flagged as suspicious", "counter", securityMetrics.SuspiciousRequests},
		{"uptime_seconds", "Seconds since the server started", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds())},
	}
	if s.config.CacheStats != nil {
		st := s.config.CacheStats()
		metrics = append(metrics,
			metric{"price_cache_hits_total", "Price lookup cache hits", "counter", int64(st.Hits)},
			metric{"price_cache_misses_total", "Price lookup cache misses", "counter", int64(st.Misses)},
			metric{"price_cache_entries", "Price lookup cache entries", "gauge", int64(st.Size)},
		)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}

// handleImportLedger upserts an uploaded CSV ledger by transaction id.
func (s *Server) handleImportLedger(w http.ResponseWriter, r *http.Request) {
	rows, err := ReadLedgerUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		s.writeError(w, r, log.OpRead, err, nil)
		return
	}

	res, err := s.api.ImportLedger(r.Context(), rows)
	if err != nil {
		s.writeError(w, r, log.OpUpsert, err, res.Batch)
		return
	}
	atomic.AddInt64(&s.appMetrics.importsTotal, 1)
	NewJSONResponse().Body(res).Write(w)
}

// handleListLedger pages through stored records, optionally filtered.
func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseRecordFilter(r.URL.Query(), defaultLedgerLimit, maxLedgerLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	recs, err := s.api.ListLedger(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, log.OpList, err, nil)
		return
	}
	if recs == nil {
		recs = []core.ExpenseRecord{}
	}
	NewJSONResponse().Body(map[string]any{
		"records": recs,
		"count":   len(recs),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	}).Write(w)
}

func (s *Server) handleGetLedgerRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.api.GetLedgerRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err, nil)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

// handleCreateAnalysis runs an analysis over an uploaded CSV, or over the
// configured ledger when the request has no body.
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	req := services.AnalyzeRequest{Trigger: analysis.TriggerAPI}
	if HasLedgerUpload(r) {
		rows, err := ReadLedgerUpload(w, r, s.config.MaxUploadBytes)
		if err != nil {
			s.writeError(w, r, log.OpRead, err, nil)
			return
		}
		req.Rows = rows
		req.Source = ledger.SourceUpload
		if req.Rows == nil {
			req.Rows = []ingest.Row{}
		}
	}

	run, err := s.api.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, r, log.OpAnalyze, err, nil)
		return
	}
	s.recordRun(run.Metadata.Status)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/analyses/"+run.Metadata.ID).
		Body(run).
		Write(w)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query(), defaultRunsLimit, maxRunsLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	runs, err := s.api.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, log.OpList, err, nil)
		return
	}
	if runs == nil {
		runs = []analysis.RunMetadata{}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	NewJSONResponse().Body(map[string]any{"runs": runs, "count": len(runs)}).Write(w)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.api.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err, nil)
		return
	}
	NewJSONResponse().Body(run).Write(w)
}

// writeError maps service errors onto status codes. details, when not nil,
// is attached to validation failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error, details any) {
	var (
		status    = http.StatusInternalServerError
		message   = "internal error"
		errorType = log.ErrorTypeInternal
		emptyErr  *core.EmptyBatchError
		maxErr    *http.MaxBytesError
		csvErr    *csv.ParseError
	)
	switch {
	case errors.As(err, &maxErr):
		status, message, errorType = http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit), log.ErrorTypeValidation
	case errors.Is(err, ErrNoUpload), errors.Is(err, ingest.ErrMissingColumns), errors.As(err, &csvErr):
		status, message, errorType = http.StatusBadRequest, err.Error(), log.ErrorTypeValidation
	case errors.As(err, &emptyErr):
		status, message, errorType = http.StatusUnprocessableEntity, emptyErr.Error(), log.ErrorTypeValidation
	case errors.Is(err, storage.ErrNotFound):
		status, message, errorType = http.StatusNotFound, err.Error(), log.ErrorTypeNotFound
	case errors.Is(err, services.ErrNoRunStore), errors.Is(err, services.ErrNoLedgerStore), errors.Is(err, services.ErrNoSource):
		status, message, errorType = http.StatusServiceUnavailable, err.Error(), log.ErrorTypeConfiguration
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.FromContext(r.Context()).LogFields(r.Context(), level, "Request failed", log.NewFields().
		WithOperation(op).
		WithErrorType(errorType).
		WithError(err))

	if status == http.StatusUnprocessableEntity && details != nil {
		ErrorResponseWithDetails(status, message, details).Write(w)
		return
	}
	ErrorResponse(status, message).Write(w)
}
