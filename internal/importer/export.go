package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"crypto-ledger-go/internal/models"
)

var exportHeader = []string{"date", "pair", "amount", "price", "total", "fees", "type"}

// Export writes transactions as CSV in the same column layout the importer
// accepts, so an exported file can be re-imported as-is.
func Export(w io.Writer, transactions []models.Transaction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, tx := range transactions {
		record := []string{
			tx.Date,
			tx.Pair,
			formatFloat(tx.Amount),
			formatFloat(tx.Price),
			formatFloat(tx.Total),
			formatFloat(tx.Fees),
			tx.Type,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write transaction %d: %w", tx.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
