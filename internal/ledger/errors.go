package ledger

import "fmt"

// ValidationError reports a missing or malformed field on a transaction draft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction: field %q %s", e.Field, e.Reason)
}

// NotFoundError reports an operation that referenced an unknown transaction id.
type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction %d not found", e.ID)
}
