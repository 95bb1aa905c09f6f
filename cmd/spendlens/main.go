package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"spendlens/internal/amqp"
	"spendlens/internal/analysis"
	"spendlens/internal/cli"
	"spendlens/internal/config"
	"spendlens/internal/ingest"
	"spendlens/internal/ledger/csvfile"
	"spendlens/internal/log"
	"spendlens/internal/render"
	"spendlens/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli.LoadEnvFile()
	// Logs go to stderr so the summary on stdout stays readable.
	logger := log.New(log.Config{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: log.ParseLevel(envOr("LOG_LEVEL", "warn")),
		}),
	})

	switch os.Args[1] {
	case "analyze":
		runAnalyze(logger)
	case "import":
		runImport(logger)
	case "request":
		runRequest(logger)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("spendlens - expense pattern analysis")
	fmt.Println("\nUsage:")
	fmt.Println("  spendlens <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Analyze a CSV ledger, or the configured ledger, and print a summary")
	fmt.Println("  import    Validate a CSV ledger and upsert it into the SQLite store")
	fmt.Println("  request   Queue an analysis request for the worker")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'spendlens <command> -h' for more information on a command.")
}

func runAnalyze(logger *log.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	csvPath := fs.String("csv", "", "CSV ledger to analyze (default: the configured ledger source)")
	output := fs.String("output", "", "write the JSON report to this file")
	store := fs.Bool("store", false, "store the run in SQLite")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	opts := cli.AppOptions{SkipStorage: *csvPath != "" && !*store}
	app, err := cli.NewApp(ctx, cfg, opts, logger)
	if err != nil {
		fatal(logger, "Failed to initialize application", err)
	}
	defer app.Close()

	req := services.AnalyzeRequest{Trigger: analysis.TriggerCLI}
	if *csvPath != "" {
		src := csvfile.New(*csvPath)
		if req.Rows, err = src.Rows(ctx); err != nil {
			fatal(logger, "Failed to read ledger", err)
		}
		if req.Rows == nil {
			req.Rows = []ingest.Row{}
		}
		req.Source = src.Name()
	}

	run, err := app.Service.Analyze(ctx, req)
	if err != nil {
		fatal(logger, "Analysis failed", err)
	}

	fmt.Print(render.Summary(run.Report))
	if *output != "" {
		if err := writeJSON(*output, run.Report); err != nil {
			fatal(logger, "Failed to write report", err)
		}
		fmt.Printf("\nReport written to %s\n", *output)
	}
	if app.Repository != nil {
		fmt.Printf("Run stored as %s\n", run.Metadata.ID)
	}
}

func runImport(logger *log.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	csvPath := fs.String("csv", "", "CSV ledger to import")
	fs.Parse(os.Args[2:])

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --csv is required")
		os.Exit(1)
	}

	cfg := loadConfig(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, cli.AppOptions{}, logger)
	if err != nil {
		fatal(logger, "Failed to initialize application", err)
	}
	defer app.Close()

	rows, err := csvfile.New(*csvPath).Rows(ctx)
	if err != nil {
		fatal(logger, "Failed to read ledger", err)
	}
	res, err := app.Service.ImportLedger(ctx, rows)
	if err != nil {
		fatal(logger, "Import failed", err)
	}

	fmt.Printf("Imported %d of %d rows: %d inserted, %d updated\n",
		res.Batch.RowsAccepted, res.Batch.RowsReceived, res.Upsert.Inserted, res.Upsert.Updated)
	for _, w := range res.Batch.Warnings {
		fmt.Printf("  row %d %s: %s: %s\n", w.Row, w.TransactionID, w.Field, w.Reason)
	}
}

func runRequest(logger *log.Logger) {
	fs := flag.NewFlagSet("request", flag.ExitOnError)
	trigger := fs.String("trigger", analysis.TriggerMessage, "trigger recorded on the run")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(logger)
	if cfg.AMQPURL == "" {
		fmt.Fprintln(os.Stderr, "Error: AMQP_URL is not set")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReportRoutingKey, logger)
	if err != nil {
		fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg := amqp.NewAnalysisRequestMessage(*trigger)
	if err := client.PublishAnalysisRequest(ctx, msg); err != nil {
		fatal(logger, "Failed to queue analysis request", err)
	}
	fmt.Printf("Queued analysis request %s\n", msg.RequestID)
}

func loadConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fatal(logger, "Configuration validation failed", err)
	}
	return cfg
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
