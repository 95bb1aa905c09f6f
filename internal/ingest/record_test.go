package ingest

import (
	"testing"
)

func TestRowFromRecord_RoundTrip(t *testing.T) {
	rec, err := NormalizeRow(0, validRow("t1"))
	if err != nil {
		t.Fatalf("NormalizeRow() error = %v", err)
	}
	again, err := NormalizeRow(0, RowFromRecord(rec))
	if err != nil {
		t.Fatalf("NormalizeRow(RowFromRecord) error = %v", err)
	}
	if !again.Amount.Equal(rec.Amount) || !again.OccurredAt.Equal(rec.OccurredAt) ||
		!again.PeriodStart.Equal(rec.PeriodStart) || !again.PeriodEnd.Equal(rec.PeriodEnd) ||
		again.Category != rec.Category || again.Recurrency != rec.Recurrency || again.Department != rec.Department {
		t.Errorf("round trip changed the record:\n got %+v\nwant %+v", again, rec)
	}
}
