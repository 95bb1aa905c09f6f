package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/config"
	"spendlens/internal/ingest"
	"spendlens/internal/log"
	"spendlens/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, k := range []string{"LEDGER_SOURCE", "SQLITE_DB_PATH", "LOOKUP_PROVIDER", "PRICE_CATALOG_PATH", "AMQP_URL", "SLACK_BOT_TOKEN", "YEARLY_DISCOUNT_RATE"} {
		t.Setenv(k, "")
	}
	cfg := config.Load()
	cfg.LedgerSource = config.LedgerMemory
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "spendlens.db")
	return cfg
}

func TestEngineConfigFrom(t *testing.T) {
	cfg := testConfig(t)
	cfg.StabilityTolerance = 0.05
	cfg.SavingsThreshold = 0.2
	cfg.MinSwitchSamples = 6
	cfg.YearlyDiscountRate = "0.15"
	cfg.AnalyzerTimeout = 5 * time.Second
	cfg.LookupConcurrency = 0

	ec, err := EngineConfigFrom(cfg)
	if err != nil {
		t.Fatalf("EngineConfigFrom() error = %v", err)
	}
	if ec.StabilityTolerance != 0.05 || ec.SavingsThreshold != 0.2 || ec.MinSwitchSamples != 6 {
		t.Errorf("unexpected engine config: %+v", ec)
	}
	if ec.DefaultDiscountRate == nil || ec.DefaultDiscountRate.String() != "0.15" {
		t.Errorf("discount = %v", ec.DefaultDiscountRate)
	}
	if ec.LookupConcurrency != services.DefaultEngineConfig().LookupConcurrency {
		t.Errorf("zero concurrency should keep the default, got %d", ec.LookupConcurrency)
	}

	cfg.YearlyDiscountRate = "a lot"
	if _, err := EngineConfigFrom(cfg); err == nil {
		t.Error("expected error for invalid discount")
	}
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := NewApp(ctx, cfg, AppOptions{AMQP: true, Notify: true}, log.Discard())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if app.Repository == nil {
		t.Fatal("expected SQLite repository")
	}
	if app.AMQP != nil {
		t.Error("AMQP client should stay nil without AMQP_URL")
	}
	if stats := app.CacheStats(); stats.Size != 0 {
		t.Errorf("cache stats = %+v", stats)
	}

	row := ingest.Row{
		ingest.FieldTransactionID: "t1",
		ingest.FieldAmount:        "49.00",
		ingest.FieldCurrency:      "USD",
		ingest.FieldDatetime:      "2025-01-01 09:00:00",
		ingest.FieldVendorName:    "Slack",
		ingest.FieldStartDate:     "2025-01-01",
		ingest.FieldEndDate:       "2025-01-31",
		ingest.FieldRecurrency:    "monthly",
		ingest.FieldExpenseType:   "Communication",
	}

	run, err := app.Service.Analyze(ctx, services.AnalyzeRequest{Trigger: analysis.TriggerCLI, Source: "test", Rows: []ingest.Row{row}})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	stored, err := app.Service.GetRun(ctx, run.Metadata.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.Metadata.RowsAccepted != 1 {
		t.Errorf("rows accepted = %d", stored.Metadata.RowsAccepted)
	}
}

func TestNewApp_SkipStorage(t *testing.T) {
	cfg := testConfig(t)
	app, err := NewApp(context.Background(), cfg, AppOptions{SkipStorage: true}, log.Discard())
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if app.Repository != nil {
		t.Error("repository should not be opened")
	}
	if _, err := app.Service.ListRuns(context.Background(), 10); err == nil {
		t.Error("expected ErrNoRunStore")
	}
}

func TestNewApp_LookupError(t *testing.T) {
	cfg := testConfig(t)
	cfg.LookupProvider = config.LookupCatalog
	cfg.PriceCatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := NewApp(context.Background(), cfg, AppOptions{}, log.Discard()); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
