// Package http serves the JSON API over the analysis service: ledger
// uploads, analysis runs and stored reports.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/cache"
	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/log"
	"spendlens/internal/middleware/ratelimit"
	"spendlens/internal/middleware/security"
	"spendlens/internal/middleware/trace"
	"spendlens/internal/services"
	"spendlens/internal/storage"
)

// AnalysisAPI is the part of services.AnalysisService the server needs.
type AnalysisAPI interface {
	Analyze(ctx context.Context, req services.AnalyzeRequest) (analysis.StoredRun, error)
	ImportLedger(ctx context.Context, rows []ingest.Row) (services.ImportResult, error)
	ListLedger(ctx context.Context, f storage.RecordFilter) ([]core.ExpenseRecord, error)
	GetLedgerRecord(ctx context.Context, transactionID string) (core.ExpenseRecord, error)
	GetRun(ctx context.Context, id string) (analysis.StoredRun, error)
	ListRuns(ctx context.Context, limit int) ([]analysis.RunMetadata, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
	// CacheStats, when set, is exported on /metrics.
	CacheStats func() cache.Stats
}

type appMetrics struct {
	runsTotal    int64
	runsPartial  int64
	importsTotal int64
	uptime       time.Time
}

type Server struct {
	http.Server
	api    AnalysisAPI
	config ServerConfig
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

const (
	defaultRunsLimit   = 20
	maxRunsLimit       = 100
	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
	readyTimeout     = 5 * time.Second
)

// NewServer configures routes and middleware, returning a ready-to-run server.
// POST routes are rate limited per client.
func NewServer(config ServerConfig, api AnalysisAPI, logger *log.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	logger = logger.OrDefault().WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range config.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s := &Server{
		api:              api,
		config:           config,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(config.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("POST /api/ledger", limited(http.HandlerFunc(s.handleImportLedger)))
	mux.HandleFunc("GET /api/ledger", s.handleListLedger)
	mux.HandleFunc("GET /api/ledger/{id}", s.handleGetLedgerRecord)
	mux.Handle("POST /api/analyses", limited(http.HandlerFunc(s.handleCreateAnalysis)))
	mux.HandleFunc("GET /api/analyses", s.handleListAnalyses)
	mux.HandleFunc("GET /api/analyses/{id}", s.handleGetAnalysis)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).LogFields(r.Context(), slog.LevelWarn, "Rate limit exceeded", log.NewFields().
		WithClientIP(s.securityDetector.ExtractClientIP(r)).
		WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
		WithErrorType(log.ErrorTypeRateLimit))
	TooManyRequestsError().Write(w)
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) recordRun(status analysis.RunStatus) {
	atomic.AddInt64(&s.appMetrics.runsTotal, 1)
	if status == analysis.RunPartiallyCompleted {
		atomic.AddInt64(&s.appMetrics.runsPartial, 1)
	}
}
