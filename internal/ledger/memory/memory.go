// Package memory keeps a ledger in process, for tests and demos.
package memory

import (
	"context"
	"maps"
	"sync"

	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
)

type Source struct {
	mu   sync.RWMutex
	rows []ingest.Row
}

var _ ledger.RowSource = (*Source)(nil)

func New(rows ...ingest.Row) *Source {
	s := &Source{}
	s.Replace(rows)
	return s
}

func (s *Source) Name() string {
	return ledger.SourceMemory
}

// Replace swaps the whole ledger.
func (s *Source) Replace(rows []ingest.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = cloneRows(rows)
}

// Append adds rows at the end of the ledger.
func (s *Source) Append(rows ...ingest.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, cloneRows(rows)...)
}

// Rows returns a copy; callers may modify it freely.
func (s *Source) Rows(ctx context.Context) ([]ingest.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRows(s.rows), nil
}

func cloneRows(rows []ingest.Row) []ingest.Row {
	out := make([]ingest.Row, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}
