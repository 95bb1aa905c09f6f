package cli

import (
	"context"
	"fmt"
	"time"

	"spendlens/internal/amqp"
	"spendlens/internal/backend"
	"spendlens/internal/cache"
	"spendlens/internal/config"
	"spendlens/internal/log"
	"spendlens/internal/notify"
	"spendlens/internal/services"
	"spendlens/internal/storage"
)

// cacheSweepInterval is how often expired price answers are dropped.
const cacheSweepInterval = 5 * time.Minute

// AppOptions selects the optional parts a command needs.
type AppOptions struct {
	// AMQP connects the message client when AMQP_URL is set.
	AMQP bool
	// Notify posts run summaries to Slack when a token is set.
	Notify bool
	// SkipStorage runs without the SQLite store, as the one-shot CLI does.
	SkipStorage bool
}

// App holds everything a command runs with.
type App struct {
	Config     *config.Config
	Service    *services.AnalysisService
	Repository *storage.SQLiteRepository
	Lookup     *backend.LookupResult
	AMQP       *amqp.Client

	janitor *cache.Janitor
	stop    context.CancelFunc
	logger  *log.Logger
}

// NewApp assembles the ledger source, price lookup, engine and service.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions, logger *log.Logger) (*App, error) {
	logger = logger.OrDefault()
	factory := backend.NewFactory(logger)

	var (
		source backend.Result
		err    error
	)
	if !opts.SkipStorage {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return nil, err
		}
		res, err := factory.CreateSource(ctx, bcfg)
		if err != nil {
			return nil, err
		}
		source = *res
	}

	lookup, err := factory.CreateLookup(backend.LookupFromAppConfig(cfg))
	if err != nil {
		closeSource(source)
		return nil, err
	}

	engineCfg, err := EngineConfigFrom(cfg)
	if err != nil {
		closeSource(source)
		return nil, err
	}
	engine := services.NewEngine(engineCfg, lookup.Lookup, services.CatalogTerms{Catalog: lookup.Catalog}, logger)

	app := &App{
		Config:     cfg,
		Repository: source.Repository,
		Lookup:     lookup,
		logger:     logger,
	}

	deps := services.AnalysisServiceDeps{
		Engine: engine,
		Source: source.Source,
		Logger: logger,
	}
	if source.Repository != nil {
		deps.Runs = source.Repository
		deps.Ledger = source.Repository
	}

	if opts.AMQP && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReportRoutingKey, logger)
		if err != nil {
			closeSource(source)
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		app.AMQP = client
		deps.Publisher = client
	}
	if opts.Notify && cfg.SlackBotToken != "" {
		deps.Notifier = notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID, logger)
	}
	app.Service = services.NewAnalysisService(deps)

	if lookup.Cache != nil {
		jctx, cancel := context.WithCancel(context.Background())
		app.stop = cancel
		app.janitor = cache.NewJanitor(logger, lookup.Cache.Store())
		go app.janitor.Run(jctx, cacheSweepInterval)
	}

	logger.Info("Application initialized",
		"ledger_source", cfg.LedgerSource,
		"sqlite_enabled", app.Repository != nil,
		"lookup_provider", cfg.LookupProvider,
		"amqp_enabled", app.AMQP != nil,
		"slack_enabled", deps.Notifier != nil)
	return app, nil
}

// CacheStats reports the price cache, zero when lookups are not cached.
func (a *App) CacheStats() cache.Stats {
	if a.Lookup == nil || a.Lookup.Cache == nil {
		return cache.Stats{}
	}
	return a.Lookup.Cache.Stats()
}

// Close stops the cache janitor and releases the store and broker
// connections, both owned by the service.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
		<-a.janitor.Done()
	}
	return a.Service.Close()
}

func closeSource(res backend.Result) {
	if res.Cleanup != nil {
		_ = res.Cleanup()
	}
}
