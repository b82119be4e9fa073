package domain

import (
	"time"
)

// Transaction represents one recorded payment against a bill.
// Transactions are immutable once created; a correction is modeled as
// a reversal plus a new transaction, never an in-place edit.
type Transaction struct {
	// ID is the stable identity of the transaction (UUID string).
	ID string

	// BillID is the owning bill.
	BillID string

	// Amount paid, in integer minor units.
	Amount int64

	// PaidAt is the UTC instant of the payment.
	PaidAt time.Time

	// Notes is free-form text attached by the payer, empty for
	// auto-pay transactions.
	Notes string

	// Historical marks a payment dated before the start of the
	// bill's current cycle. Historical payments are recorded but do
	// not reset the live cycle.
	Historical bool

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}
