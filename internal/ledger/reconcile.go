package ledger

import "crypto-ledger-go/internal/models"

// Fields of a draft the reconciler can treat as the last-edited one.
const (
	FieldPrice = "price"
	FieldTotal = "total"
)

// Reconcile returns a copy of draft where amount, price and total are mutually
// consistent (total = price * amount). The changed argument names the field the
// caller just set; the other one is derived from it. Amount is never derived,
// and if amount is zero or negative the draft is returned unchanged, raw values
// and all.
func Reconcile(draft models.Transaction, changed string) models.Transaction {
	if draft.Amount <= 0 {
		return draft
	}

	switch changed {
	case FieldTotal:
		draft.Price = draft.Total / draft.Amount
	case FieldPrice:
		draft.Total = draft.Price * draft.Amount
	}
	return draft
}
