// Package csvfile reads a ledger from a CSV file on disk.
package csvfile

import (
	"context"
	"fmt"
	"os"

	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
)

type Source struct {
	path string
}

var _ ledger.RowSource = (*Source)(nil)

func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Name() string {
	return ledger.SourceCSV + ":" + s.path
}

// Rows re-reads the file on every call.
func (s *Source) Rows(ctx context.Context) ([]ingest.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger csv: %w", err)
	}
	defer f.Close()

	rows, err := ingest.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read ledger csv %s: %w", s.path, err)
	}
	return rows, nil
}
