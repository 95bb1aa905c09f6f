// Package google reads a ledger tab from a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendlens/internal/ingest"
	"spendlens/internal/ledger"
	"spendlens/internal/log"
)

// DefaultRange reads every column of the "Ledger" tab.
const DefaultRange = "Ledger!A:N"

// valuesReader is the single Sheets call the source makes.
type valuesReader interface {
	Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (s sheetsValues) Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Source struct {
	values        valuesReader
	spreadsheetID string
	readRange     string
}

var _ ledger.RowSource = (*Source)(nil)

// New connects with service account credentials taken from the environment.
func New(ctx context.Context, spreadsheetID, readRange string, logger *log.Logger) (*Source, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, logger.OrDefault().WithComponent(log.ComponentLedger))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newSource(sheetsValues{svc: svc}, spreadsheetID, readRange), nil
}

func newSource(values valuesReader, spreadsheetID, readRange string) *Source {
	if readRange == "" {
		readRange = DefaultRange
	}
	return &Source{values: values, spreadsheetID: spreadsheetID, readRange: readRange}
}

// newSheetsService uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS, in that order. The scope is read-only.
func newSheetsService(ctx context.Context, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *Source) Name() string {
	return ledger.SourceSheets + ":" + s.spreadsheetID
}

func (s *Source) Rows(ctx context.Context) ([]ingest.Row, error) {
	values, err := s.values.Values(ctx, s.spreadsheetID, s.readRange)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", s.readRange, err)
	}
	rows, err := ingest.RowsFromValues(stringGrid(values))
	if err != nil {
		return nil, fmt.Errorf("parse range %s: %w", s.readRange, err)
	}
	return rows, nil
}

// stringGrid flattens Sheets cell values into strings.
func stringGrid(values [][]interface{}) [][]string {
	grid := make([][]string, len(values))
	for i, row := range values {
		grid[i] = make([]string, len(row))
		for j, cell := range row {
			grid[i][j] = cellString(cell)
		}
	}
	return grid
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
