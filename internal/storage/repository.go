// Package storage persists the ledger and analysis runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
	"spendlens/internal/log"
)

var ErrNotFound = errors.New("not found")

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ ledger.RowSource = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.OrDefault().WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertResult counts what an upsert changed.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// UpsertRecords inserts new transactions at the end of the ledger and
// overwrites existing ones in place, all in one transaction.
func (r *SQLiteRepository) UpsertRecords(ctx context.Context, recs []core.ExpenseRecord) (UpsertResult, error) {
	var res UpsertResult
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM ledger_records`).Scan(&next); err != nil {
		return res, fmt.Errorf("read ledger position: %w", err)
	}

	updatedAt := r.now().UTC().Format(timeLayout)
	for _, rec := range recs {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM ledger_records WHERE transaction_id = ?`, rec.TransactionID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			next++
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ledger_records (
					transaction_id, amount, currency, occurred_at, vendor_name, category, recurrency,
					period_start, period_end, department, description, payment_method, src_account, dst_account,
					position, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.TransactionID, rec.Amount.String(), rec.Currency, rec.OccurredAt.UTC().Format(timeLayout),
				rec.VendorName, rec.Category, string(rec.Recurrency),
				rec.PeriodStart.String(), rec.PeriodEnd.String(), rec.Department, rec.Description,
				rec.PaymentMethod, rec.SrcAccount, rec.DstAccount, next, updatedAt)
			if err != nil {
				return res, fmt.Errorf("insert %s: %w", rec.TransactionID, err)
			}
			res.Inserted++
		case err != nil:
			return res, fmt.Errorf("check %s: %w", rec.TransactionID, err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE ledger_records SET
					amount = ?, currency = ?, occurred_at = ?, vendor_name = ?, category = ?, recurrency = ?,
					period_start = ?, period_end = ?, department = ?, description = ?, payment_method = ?,
					src_account = ?, dst_account = ?, updated_at = ?
				WHERE transaction_id = ?`,
				rec.Amount.String(), rec.Currency, rec.OccurredAt.UTC().Format(timeLayout),
				rec.VendorName, rec.Category, string(rec.Recurrency),
				rec.PeriodStart.String(), rec.PeriodEnd.String(), rec.Department, rec.Description,
				rec.PaymentMethod, rec.SrcAccount, rec.DstAccount, updatedAt, rec.TransactionID)
			if err != nil {
				return res, fmt.Errorf("update %s: %w", rec.TransactionID, err)
			}
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit upsert: %w", err)
	}
	r.logger.InfoContext(ctx, "Ledger records upserted",
		log.FieldOperation, log.OpUpsert,
		"inserted", res.Inserted,
		"updated", res.Updated)
	return res, nil
}

// RecordFilter narrows a ledger listing. Zero fields do not filter. Text
// filters match case-insensitive substrings except Currency, which is exact.
// From and To are calendar dates bounding occurred_at, both inclusive.
type RecordFilter struct {
	Department string
	Category   string
	Vendor     string
	Currency   string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	From       *core.Date
	To         *core.Date

	// Limit of zero returns every match.
	Limit  int
	Offset int
}

const recordColumns = `transaction_id, amount, currency, occurred_at, vendor_name, category, recurrency,
		       period_start, period_end, department, description, payment_method, src_account, dst_account`

func (f RecordFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	like := func(column, value string) {
		if value = strings.TrimSpace(value); value != "" {
			conds = append(conds, column+` LIKE ? ESCAPE '\'`)
			args = append(args, "%"+likeEscaper.Replace(value)+"%")
		}
	}
	like("department", f.Department)
	like("category", f.Category)
	like("vendor_name", f.Vendor)
	if c := strings.TrimSpace(f.Currency); c != "" {
		conds = append(conds, "currency = ?")
		args = append(args, strings.ToUpper(c))
	}
	if f.MinAmount != nil {
		conds = append(conds, "CAST(amount AS REAL) >= ?")
		args = append(args, f.MinAmount.InexactFloat64())
	}
	if f.MaxAmount != nil {
		conds = append(conds, "CAST(amount AS REAL) <= ?")
		args = append(args, f.MaxAmount.InexactFloat64())
	}
	if f.From != nil {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		conds = append(conds, "occurred_at < ?")
		args = append(args, f.To.AddDate(0, 0, 1).UTC().Format(timeLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListRecords returns the stored ledger rows matching f in insertion order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, f RecordFilter) ([]core.ExpenseRecord, error) {
	where, args := f.where()
	query := `SELECT ` + recordColumns + ` FROM ledger_records` + where + ` ORDER BY position`
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(f.Offset, 0))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	var recs []core.ExpenseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetRecord returns one stored transaction or ErrNotFound.
func (r *SQLiteRepository) GetRecord(ctx context.Context, transactionID string) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM ledger_records WHERE transaction_id = ?`, transactionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.ExpenseRecord, error) {
	var (
		rec                          core.ExpenseRecord
		amount, occurred, recurrency string
		periodStart, periodEnd       string
	)
	err := row.Scan(&rec.TransactionID, &amount, &rec.Currency, &occurred, &rec.VendorName,
		&rec.Category, &recurrency, &periodStart, &periodEnd, &rec.Department, &rec.Description,
		&rec.PaymentMethod, &rec.SrcAccount, &rec.DstAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan ledger record: %w", err)
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return rec, fmt.Errorf("record %s amount: %w", rec.TransactionID, err)
	}
	if rec.OccurredAt, err = time.Parse(timeLayout, occurred); err != nil {
		return rec, fmt.Errorf("record %s occurred_at: %w", rec.TransactionID, err)
	}
	if rec.PeriodStart, err = core.ParseDate(periodStart); err != nil {
		return rec, fmt.Errorf("record %s period_start: %w", rec.TransactionID, err)
	}
	if rec.PeriodEnd, err = core.ParseDate(periodEnd); err != nil {
		return rec, fmt.Errorf("record %s period_end: %w", rec.TransactionID, err)
	}
	rec.Recurrency = core.Recurrency(recurrency)
	return rec, nil
}

func (r *SQLiteRepository) Name() string {
	return ledger.SourceSQLite
}

// Rows exposes the stored ledger as raw rows so it can be analyzed like any
// other source.
func (r *SQLiteRepository) Rows(ctx context.Context) ([]ingest.Row, error) {
	recs, err := r.ListRecords(ctx, RecordFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]ingest.Row, len(recs))
	for i, rec := range recs {
		out[i] = ingest.RowFromRecord(rec)
	}
	return out, nil
}

// SaveRun stores a finished run. Saving the same id twice is an error.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run analysis.StoredRun) error {
	body, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	m := run.Metadata
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, run_trigger, source, status, rows_received, rows_accepted, started_at, finished_at, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Trigger, m.Source, string(m.Status), m.RowsReceived, m.RowsAccepted,
		m.StartedAt.UTC().Format(timeLayout), m.FinishedAt.UTC().Format(timeLayout), string(body))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (analysis.StoredRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_trigger, source, status, rows_received, rows_accepted, started_at, finished_at, report_json
		FROM analysis_runs WHERE id = ?`, id)

	var body string
	m, err := scanMetadata(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return analysis.StoredRun{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return analysis.StoredRun{}, fmt.Errorf("get run %s: %w", id, err)
	}

	var report analysis.Report
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return analysis.StoredRun{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return analysis.StoredRun{Metadata: m, Report: &report}, nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]analysis.RunMetadata, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_trigger, source, status, rows_received, rows_accepted, started_at, finished_at, ''
		FROM analysis_runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []analysis.RunMetadata{}
	for rows.Next() {
		var ignored string
		m, err := scanMetadata(rows, &ignored)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s scanner, body *string) (analysis.RunMetadata, error) {
	var (
		m                 analysis.RunMetadata
		status            string
		started, finished string
	)
	if err := s.Scan(&m.ID, &m.Trigger, &m.Source, &status, &m.RowsReceived, &m.RowsAccepted, &started, &finished, body); err != nil {
		return m, err
	}
	m.Status = analysis.RunStatus(status)
	var err error
	if m.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return m, fmt.Errorf("started_at: %w", err)
	}
	if m.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return m, fmt.Errorf("finished_at: %w", err)
	}
	return m, nil
}
