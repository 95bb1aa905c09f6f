// Package ledger defines where raw ledger rows come from.
package ledger

import (
	"context"

	"spendlens/internal/ingest"
)

// RowSource yields the raw rows of one ledger, in ledger order.
type RowSource interface {
	Name() string
	Rows(ctx context.Context) ([]ingest.Row, error)
}

// Source names
const (
	SourceCSV    = "csv"
	SourceSheets = "sheets"
	SourceSQLite = "sqlite"
	SourceMemory = "memory"
	SourceUpload = "upload"
)
