package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"spendlens/internal/cache"
	"spendlens/internal/cli"
	apphttp "spendlens/internal/http"
	"spendlens/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.NewApp(context.Background(), cfg, cli.AppOptions{AMQP: true, Notify: true}, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverCfg := apphttp.ServerConfig{
		Addr:           ":" + cfg.Port,
		RateLimit:      ratelimit.DefaultConfig(),
		TrustedProxies: cfg.TrustedProxies,
		Checks:         map[string]apphttp.ReadinessCheck{},
	}
	if app.Repository != nil {
		serverCfg.Checks["sqlite"] = app.Repository.Ping
	}
	if app.Lookup.Cache != nil {
		serverCfg.CacheStats = func() cache.Stats { return app.CacheStats() }
	}
	srv := apphttp.NewServer(serverCfg, app.Service, logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 2 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting spendlens API", "port", cfg.Port, "ledger_source", cfg.LedgerSource)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
