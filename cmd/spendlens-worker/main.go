package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendlens/internal/cli"
	"spendlens/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting spendlens-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" && cfg.AnalysisSchedule == "" {
		logger.Error("Nothing to do: set AMQP_URL, ANALYSIS_SCHEDULE or both")
		os.Exit(1)
	}

	app, err := cli.NewApp(context.Background(), cfg, cli.AppOptions{AMQP: true, Notify: true}, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	analysisWorker := worker.NewAnalysisWorker(app.Service, logger)

	var scheduler *worker.Scheduler
	if cfg.AnalysisSchedule != "" {
		scheduler, err = worker.NewScheduler(cfg.AnalysisSchedule, analysisWorker, logger)
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Scheduled run did not finish", "error", err)
			}
		}
	})

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Scheduled analysis disabled - no ANALYSIS_SCHEDULE provided")
	}

	if app.AMQP != nil {
		go func() {
			err := app.AMQP.ConsumeAnalysisRequests(ctx, analysisWorker.HandleAnalysisRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP consumption disabled - no AMQP_URL provided")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
