package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmarkov/duebook/internal/cycle"
	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/notify"
	"github.com/dmarkov/duebook/internal/store"
)

// PaymentResult reports a recorded payment.
type PaymentResult struct {
	TransactionID string
	Historical    bool
}

// RecordPayment records a manual payment against a bill. A payment
// dated within or after the current cycle resolves the cycle and
// advances recurring bills exactly as auto-pay does. A historical
// payment, one dated before the current cycle's start, is recorded as
// a transaction but leaves the live cycle untouched.
func (e *Engine) RecordPayment(ctx context.Context, billID string, amount int64, paidAt time.Time, notes string) (PaymentResult, error) {
	if amount <= 0 {
		return PaymentResult{}, &domain.ValidationError{Field: "amount", Reason: "payment amount must be positive"}
	}
	if paidAt.IsZero() {
		return PaymentResult{}, &domain.ValidationError{Field: "paidAt", Reason: "missing payment time"}
	}

	bill, err := e.store.GetBill(ctx, billID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("record payment: %w", err)
	}

	result, err := e.applyPayment(ctx, bill, amount, paidAt, notes)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with the scheduler; re-read and retry once.
		fresh, getErr := e.store.GetBill(ctx, billID)
		if getErr != nil {
			return PaymentResult{}, fmt.Errorf("record payment: %w", getErr)
		}
		result, err = e.applyPayment(ctx, fresh, amount, paidAt, notes)
	}
	if err != nil {
		return PaymentResult{}, fmt.Errorf("record payment: %w", err)
	}

	e.notifyAsync(notify.Event{
		Type:    notify.EventPaymentRecorded,
		BillID:  bill.ID,
		Title:   bill.Title,
		Amount:  amount,
		DueDate: cycle.Day(bill.DueDate),
		At:      paidAt,
	})
	return result, nil
}

// applyPayment classifies and commits a single payment attempt
// against the given snapshot of the bill.
func (e *Engine) applyPayment(ctx context.Context, bill *domain.Bill, amount int64, paidAt time.Time, notes string) (PaymentResult, error) {
	historical := cycle.IsHistorical(bill.DueDate, bill.Frequency, paidAt)

	txn := &domain.Transaction{
		ID:         uuid.NewString(),
		BillID:     bill.ID,
		Amount:     amount,
		PaidAt:     paidAt,
		Notes:      notes,
		Historical: historical,
	}

	if historical {
		if err := e.store.RecordTransaction(ctx, txn); err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{TransactionID: txn.ID, Historical: true}, nil
	}

	next := store.Transition{LastProcessedAt: e.clock.Now()}
	if bill.Frequency.Recurring() {
		next.Status = domain.StatusPending
		next.DueDate = cycle.Next(bill.DueDate, bill.Frequency)
	} else {
		next.Status = domain.StatusPaid
		next.DueDate = cycle.Day(bill.DueDate)
	}

	if err := e.store.CommitTransition(ctx, bill.ID, bill.Version, next, txn); err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{TransactionID: txn.ID, Historical: false}, nil
}
