package ingest

import (
	"time"

	"spendlens/internal/core"
)

// RowFromRecord renders a validated record back into ledger columns, with
// explicit period dates. NormalizeRow(RowFromRecord(rec)) yields rec again.
func RowFromRecord(rec core.ExpenseRecord) Row {
	return Row{
		FieldTransactionID: rec.TransactionID,
		FieldAmount:        rec.Amount.String(),
		FieldCurrency:      rec.Currency,
		FieldDatetime:      rec.OccurredAt.UTC().Format(time.RFC3339),
		FieldPaymentMethod: rec.PaymentMethod,
		FieldSrcAccount:    rec.SrcAccount,
		FieldDstAccount:    rec.DstAccount,
		FieldVendorName:    rec.VendorName,
		FieldStartDate:     rec.PeriodStart.String(),
		FieldEndDate:       rec.PeriodEnd.String(),
		FieldRecurrency:    rec.Recurrency.String(),
		FieldDepartment:    rec.Department,
		FieldExpenseType:   rec.Category,
		FieldExpenseName:   rec.Description,
	}
}
