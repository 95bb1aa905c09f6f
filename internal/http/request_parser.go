// This file parses ledger uploads and query parameters.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/internal/core"
	"spendlens/internal/ingest"
	"spendlens/internal/storage"
)

// DefaultMaxUploadBytes bounds a ledger upload.
const DefaultMaxUploadBytes = 10 << 20

// UploadField is the multipart form field carrying a ledger file.
const UploadField = "file"

// ErrNoUpload is returned when a request carries no ledger file.
var ErrNoUpload = errors.New("request carries no ledger CSV")

// HasLedgerUpload reports whether the request body is a CSV ledger, either
// raw or as a multipart file.
func HasLedgerUpload(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	switch mediaType {
	case "multipart/form-data", "text/csv", "application/csv":
		return true
	default:
		return false
	}
}

// ReadLedgerUpload reads the ledger rows from a raw CSV body or from the
// multipart field "file". The body is capped at maxBytes.
func ReadLedgerUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]ingest.Row, error) {
	if !HasLedgerUpload(r) {
		return nil, ErrNoUpload
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, fmt.Errorf("%w: parse multipart form: %w", ErrNoUpload, err)
		}
		file, _, err := r.FormFile(UploadField)
		if err != nil {
			return nil, fmt.Errorf("%w: missing %q field", ErrNoUpload, UploadField)
		}
		defer file.Close()
		body = file
	}
	return ingest.ReadCSV(body)
}

// ParseLimit reads the "limit" query parameter, defaulting to def and
// capping at max.
func ParseLimit(query url.Values, def, max int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive integer", v)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseOffset reads the "offset" query parameter, defaulting to zero.
func ParseOffset(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("offset"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid offset %q: must be a non-negative integer", v)
	}
	return n, nil
}

// ParseRecordFilter reads ledger listing filters named after the ledger
// columns, plus min_amount/max_amount, start_date/end_date (YYYY-MM-DD) and
// limit/offset paging.
func ParseRecordFilter(query url.Values, defLimit, maxLimit int) (storage.RecordFilter, error) {
	f := storage.RecordFilter{
		Department: query.Get(ingest.FieldDepartment),
		Category:   query.Get(ingest.FieldExpenseType),
		Vendor:     query.Get(ingest.FieldVendorName),
		Currency:   query.Get(ingest.FieldCurrency),
	}
	var err error
	if f.Limit, err = ParseLimit(query, defLimit, maxLimit); err != nil {
		return f, err
	}
	if f.Offset, err = ParseOffset(query); err != nil {
		return f, err
	}
	if f.MinAmount, err = parseAmountParam(query, "min_amount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseAmountParam(query, "max_amount"); err != nil {
		return f, err
	}
	if f.From, err = parseDateParam(query, "start_date"); err != nil {
		return f, err
	}
	if f.To, err = parseDateParam(query, "end_date"); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("end_date %s is before start_date %s", f.To, f.From)
	}
	return f, nil
}

func parseAmountParam(query url.Values, name string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &d, nil
}

func parseDateParam(query url.Values, name string) (*core.Date, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(core.DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: use YYYY-MM-DD", name, v)
	}
	d := core.DateOf(t)
	return &d, nil
}
