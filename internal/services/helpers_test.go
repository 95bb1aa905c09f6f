package services

import (
	"spendlens/internal/ingest"
)

func ledgerRow(id, vendor, category, amount, start, end string) ingest.Row {
	return ingest.Row{
		ingest.FieldTransactionID: id,
		ingest.FieldAmount:        amount,
		ingest.FieldCurrency:      "USD",
		ingest.FieldDatetime:      start + " 09:00:00",
		ingest.FieldVendorName:    vendor,
		ingest.FieldStartDate:     start,
		ingest.FieldEndDate:       end,
		ingest.FieldRecurrency:    "monthly",
		ingest.FieldExpenseType:   category,
	}
}

// sampleLedger holds an overlapping design pair and a stable Slack subscription.
func sampleLedger() []ingest.Row {
	return []ingest.Row{
		ledgerRow("f1", "Figma", "Design", "45.00", "2025-01-01", "2025-01-31"),
		ledgerRow("s1", "Sketch", "Design", "30.00", "2025-01-15", "2025-02-15"),
		ledgerRow("sl1", "Slack", "Communication", "49.00", "2025-01-01", "2025-01-31"),
		ledgerRow("sl2", "Slack", "Communication", "49.00", "2025-02-01", "2025-02-28"),
		ledgerRow("sl3", "Slack", "Communication", "49.00", "2025-03-01", "2025-03-31"),
	}
}
