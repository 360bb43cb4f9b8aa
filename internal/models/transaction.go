package models

import "gorm.io/gorm"

// Transaction type values. The set is closed; the balance aggregator
// decides how to apply a transaction based on this field.
const (
	TypeBuy      = "buy"
	TypeSell     = "sell"
	TypeTransfer = "transfer"
)

// Transaction represents a single recorded trade in the database.
// Total always equals Amount*Price once a draft has passed through
// the reconciler; Fees are recorded separately and never folded into Total.
type Transaction struct {
	gorm.Model
	Date   string  `json:"date" gorm:"not null"`
	Pair   string  `json:"pair" gorm:"not null"` // BASE-QUOTE, e.g. "BTC-USD"
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Total  float64 `json:"total"`
	Fees   float64 `json:"fees"`
	Type   string  `json:"type" gorm:"not null"` // buy, sell or transfer
}

// ValidType reports whether t is one of the known transaction types.
func ValidType(t string) bool {
	return t == TypeBuy || t == TypeSell || t == TypeTransfer
}
