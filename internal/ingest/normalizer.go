// Package ingest turns raw ledger rows into validated expense records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"spendlens/internal/core"
	"spendlens/internal/log"
)

// Ledger column names in their canonical order.
const (
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldDatetime      = "datetime"
	FieldPaymentMethod = "payment_method"
	FieldSrcAccount    = "src_account"
	FieldDstAccount    = "dst_account"
	FieldVendorName    = "vendor_name"
	FieldStartDate     = "start_date"
	FieldEndDate       = "end_date"
	FieldRecurrency    = "recurrency"
	FieldDepartment    = "department"
	FieldExpenseType   = "expense_type"
	FieldExpenseName   = "expense_name"
)

// Fields lists the fourteen expected ledger columns.
var Fields = []string{
	FieldTransactionID, FieldAmount, FieldCurrency, FieldDatetime,
	FieldPaymentMethod, FieldSrcAccount, FieldDstAccount, FieldVendorName,
	FieldStartDate, FieldEndDate, FieldRecurrency, FieldDepartment,
	FieldExpenseType, FieldExpenseName,
}

// RequiredFields must be present and non-blank on every row.
var RequiredFields = []string{
	FieldTransactionID, FieldAmount, FieldCurrency, FieldDatetime,
	FieldVendorName, FieldExpenseType, FieldRecurrency,
}

type (
	// Row is one raw ledger line keyed by column name.
	Row map[string]string

	// Warning describes a skipped row.
	Warning struct {
		Row           int    `json:"row"`
		TransactionID string `json:"transaction_id,omitempty"`
		Field         string `json:"field"`
		Reason        string `json:"reason"`
	}

	// BatchSummary accounts for every input row.
	BatchSummary struct {
		RowsReceived int       `json:"rows_received"`
		RowsAccepted int       `json:"rows_accepted"`
		Warnings     []Warning `json:"warnings"`
	}

	// Batch is the normalizer output.
	Batch struct {
		Records []core.ExpenseRecord
		Summary BatchSummary
	}
)

// Get returns the trimmed value for a column, matching names case-insensitively.
// An exact match wins; among keys differing only by case the smallest one is
// used, so the result does not depend on map order.
func (r Row) Get(field string) string {
	if v, ok := r[field]; ok {
		return strings.TrimSpace(v)
	}
	match, found := "", false
	for k := range r {
		if strings.EqualFold(strings.TrimSpace(k), field) && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(r[match])
}

// Normalizer validates raw rows. It holds no per-batch state.
type Normalizer struct {
	logger *log.Logger
}

func NewNormalizer(logger *log.Logger) *Normalizer {
	return &Normalizer{logger: logger.OrDefault().WithComponent(log.ComponentIngest)}
}

// Normalize converts rows into records in input order. Malformed rows are
// skipped and reported in the summary; only a batch with no valid rows fails,
// with *core.EmptyBatchError.
func (n *Normalizer) Normalize(ctx context.Context, rows []Row) (Batch, error) {
	batch := Batch{
		Records: make([]core.ExpenseRecord, 0, len(rows)),
		Summary: BatchSummary{RowsReceived: len(rows), Warnings: []Warning{}},
	}
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		rec, err := NormalizeRow(i, row)
		if err == nil {
			if first, dup := seen[rec.TransactionID]; dup {
				err = &core.ValidationError{
					Row:           i,
					TransactionID: rec.TransactionID,
					Field:         FieldTransactionID,
					Err:           fmt.Errorf("%w (first seen at row %d)", core.ErrDuplicateTransaction, first),
				}
			}
		}
		if err != nil {
			w := warningFrom(i, err)
			batch.Summary.Warnings = append(batch.Summary.Warnings, w)
			n.logger.LogFields(ctx, slog.LevelWarn, "Skipping ledger row", log.NewFields().
				WithRow(w.Row, w.TransactionID).
				WithOperation(log.OpNormalize).
				WithErrorType(log.ErrorTypeValidation).
				WithError(err))
			continue
		}
		seen[rec.TransactionID] = i
		batch.Records = append(batch.Records, rec)
	}

	batch.Summary.RowsAccepted = len(batch.Records)
	if len(batch.Records) == 0 {
		return batch, &core.EmptyBatchError{Rows: len(rows), Rejected: len(batch.Summary.Warnings)}
	}

	n.logger.InfoContext(ctx, "Ledger normalized",
		log.FieldRowsReceived, batch.Summary.RowsReceived,
		log.FieldRowsAccepted, batch.Summary.RowsAccepted,
		"warnings", len(batch.Summary.Warnings))
	return batch, nil
}

// NormalizeRow validates a single row. Errors are *core.ValidationError.
func NormalizeRow(index int, row Row) (core.ExpenseRecord, error) {
	id := row.Get(FieldTransactionID)
	fail := func(field string, err error) (core.ExpenseRecord, error) {
		return core.ExpenseRecord{}, &core.ValidationError{Row: index, TransactionID: id, Field: field, Err: err}
	}

	for _, field := range RequiredFields {
		if row.Get(field) == "" {
			return fail(field, core.ErrMissingField)
		}
	}

	amount, err := core.ParseAmount(row.Get(FieldAmount))
	if err != nil {
		return fail(FieldAmount, err)
	}
	occurredAt, err := core.ParseTimestamp(row.Get(FieldDatetime))
	if err != nil {
		return fail(FieldDatetime, err)
	}
	recurrency, err := core.ParseRecurrency(row.Get(FieldRecurrency))
	if err != nil {
		return fail(FieldRecurrency, err)
	}
	policy, err := core.CadenceFor(recurrency)
	if err != nil {
		return fail(FieldRecurrency, err)
	}

	start := core.DateOf(occurredAt)
	if v := row.Get(FieldStartDate); v != "" {
		if start, err = core.ParseDate(v); err != nil {
			return fail(FieldStartDate, err)
		}
	}
	end := policy.PeriodEnd(start)
	if v := row.Get(FieldEndDate); v != "" {
		if end, err = core.ParseDate(v); err != nil {
			return fail(FieldEndDate, err)
		}
	}

	rec := core.ExpenseRecord{
		TransactionID: id,
		Amount:        amount,
		Currency:      strings.ToUpper(row.Get(FieldCurrency)),
		OccurredAt:    occurredAt,
		VendorName:    row.Get(FieldVendorName),
		Category:      row.Get(FieldExpenseType),
		Recurrency:    recurrency,
		PeriodStart:   start,
		PeriodEnd:     end,
		Department:    row.Get(FieldDepartment),
		Description:   row.Get(FieldExpenseName),
		PaymentMethod: row.Get(FieldPaymentMethod),
		SrcAccount:    row.Get(FieldSrcAccount),
		DstAccount:    row.Get(FieldDstAccount),
	}
	if err := rec.Validate(); err != nil {
		field := FieldEndDate
		if !errors.Is(err, core.ErrInvalidPeriod) {
			field = "record"
		}
		return fail(field, err)
	}
	return rec, nil
}

func warningFrom(index int, err error) Warning {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return Warning{Row: ve.Row, TransactionID: ve.TransactionID, Field: ve.Field, Reason: ve.Err.Error()}
	}
	return Warning{Row: index, Field: "row", Reason: err.Error()}
}
