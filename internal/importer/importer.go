package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/models"
	"go.uber.org/zap"
)

// Columns the import understands. date, pair, amount, price and type are
// required; total and fees are optional and default to derived/zero.
var requiredColumns = []string{"date", "pair", "amount", "price", "type"}

// RowError describes a single CSV data row that could not be imported.
// Row numbering is 1-based and counts data rows only, not the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult is the aggregate outcome of a best-effort import: everything
// that was created, everything that failed, and a human-readable summary.
type ImportResult struct {
	Created []models.Transaction `json:"created"`
	Errors  []RowError           `json:"errors"`
	Message string               `json:"message"`
}

// Importer feeds CSV rows through the reconciler into the store.
type Importer struct {
	store  *ledger.Store
	logger *zap.Logger
}

// NewImporter creates a CSV importer writing into the given store.
func NewImporter(store *ledger.Store, logger *zap.Logger) *Importer {
	return &Importer{
		store:  store,
		logger: logger.Named("importer"),
	}
}

// Import reads CSV data and creates one transaction per well-formed row.
// Malformed rows are collected as RowErrors and do not abort the rest of the
// file. Cancelling the context stops the import between rows; rows already
// created stay committed.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // column-count mismatches become row errors
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			imp.logger.Warn("Import cancelled", zap.Int("rows_read", row))
			result.Message = summary(result)
			return result, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Reason: err.Error()})
			continue
		}

		draft, err := parseRow(record, header, columns)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Reason: err.Error()})
			continue
		}

		created, err := imp.store.Create(draft)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Reason: err.Error()})
			continue
		}
		result.Created = append(result.Created, created)
	}

	result.Message = summary(result)
	imp.logger.Info("CSV import finished",
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Errors)))
	return result, nil
}

// mapColumns resolves the header into a name -> index lookup and checks that
// all required columns are present.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("CSV header is missing required column %q", name)
		}
	}
	return columns, nil
}

// parseRow converts one CSV record into a reconciled transaction draft.
func parseRow(record, header []string, columns map[string]int) (models.Transaction, error) {
	if len(record) != len(header) {
		return models.Transaction{}, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}

	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	draft := models.Transaction{
		Date: field("date"),
		Pair: field("pair"),
		Type: strings.ToLower(field("type")),
	}
	if !models.ValidType(draft.Type) {
		return models.Transaction{}, fmt.Errorf("unknown transaction type %q", field("type"))
	}

	var err error
	if draft.Amount, err = strconv.ParseFloat(field("amount"), 64); err != nil {
		return models.Transaction{}, fmt.Errorf("non-numeric amount %q", field("amount"))
	}
	if raw := field("fees"); raw != "" {
		if draft.Fees, err = strconv.ParseFloat(raw, 64); err != nil {
			return models.Transaction{}, fmt.Errorf("non-numeric fees %q", raw)
		}
	}

	rawPrice := field("price")
	rawTotal := field("total")
	if rawPrice == "" && rawTotal == "" {
		return models.Transaction{}, fmt.Errorf("missing price/total, one of the two is required")
	}
	if rawPrice != "" {
		if draft.Price, err = strconv.ParseFloat(rawPrice, 64); err != nil {
			return models.Transaction{}, fmt.Errorf("non-numeric price %q", rawPrice)
		}
	}
	if rawTotal != "" {
		if draft.Total, err = strconv.ParseFloat(rawTotal, 64); err != nil {
			return models.Transaction{}, fmt.Errorf("non-numeric total %q", rawTotal)
		}
	}

	// The price column wins when both are present, so a re-imported export
	// reproduces the stored values exactly. A total with a blank price
	// derives the price instead.
	if rawPrice == "" {
		return ledger.Reconcile(draft, ledger.FieldTotal), nil
	}
	return ledger.Reconcile(draft, ledger.FieldPrice), nil
}

func summary(result *ImportResult) string {
	if len(result.Errors) == 0 {
		return fmt.Sprintf("Successfully imported %d transactions", len(result.Created))
	}
	return fmt.Sprintf("Imported %d transactions, %d rows failed", len(result.Created), len(result.Errors))
}
