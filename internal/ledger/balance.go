package ledger

import (
	"fmt"
	"strings"

	"crypto-ledger-go/internal/models"
)

// MalformedPairWarning is reported for a transaction whose pair could not be
// split into BASE-QUOTE. The transaction is skipped during aggregation but
// stays in the store.
type MalformedPairWarning struct {
	TransactionID uint
	Pair          string
}

func (w MalformedPairWarning) String() string {
	return fmt.Sprintf("transaction %d: malformed pair %q, skipped", w.TransactionID, w.Pair)
}

// ComputeBalances replays all transactions and returns the net balance per
// currency symbol. The replay is total and stateless: the same transaction
// list always produces the same mapping. A currency touched by any applied
// transaction keeps its entry even when the balance nets out to zero.
//
// Fee policy: buys debit the quote currency by total+fees, sells credit it by
// total-fees, transfer fees debit the base currency. Transfer direction is
// carried by the sign of amount (positive = inbound).
func ComputeBalances(transactions []models.Transaction) (map[string]float64, []MalformedPairWarning) {
	balances := make(map[string]float64)
	var warnings []MalformedPairWarning

	for _, tx := range transactions {
		base, quote, ok := SplitPair(tx.Pair)
		if !ok {
			warnings = append(warnings, MalformedPairWarning{TransactionID: tx.ID, Pair: tx.Pair})
			continue
		}

		switch tx.Type {
		case models.TypeBuy:
			balances[base] += tx.Amount
			balances[quote] -= tx.Total + tx.Fees
		case models.TypeSell:
			balances[base] -= tx.Amount
			balances[quote] += tx.Total - tx.Fees
		case models.TypeTransfer:
			balances[base] += tx.Amount - tx.Fees
		}
	}

	return balances, warnings
}

// SplitPair splits a BASE-QUOTE pair string into its two currency symbols.
// It reports ok=false unless the pair has exactly two non-empty tokens.
func SplitPair(pair string) (base, quote string, ok bool) {
	parts := strings.Split(pair, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
