package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmarkov/duebook/internal/cycle"
	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/notify"
	"github.com/dmarkov/duebook/internal/store"
)

// transitionKind identifies which state-machine transition a bill
// takes on a given pass.
type transitionKind int

const (
	transitionNone transitionKind = iota
	transitionDue
	transitionOverdue
	transitionAutoPay
)

// decision is the computed transition for one bill at one instant.
type decision struct {
	kind  transitionKind
	next  store.Transition
	txn   *domain.Transaction
	event notify.Event
}

// outcome is the result of applying a decision. A fatal error means
// the store itself is unreachable; it aborts the whole tick instead of
// being recorded against the bill.
type outcome struct {
	kind  transitionKind
	err   *BillError
	fatal error
}

// decide computes the transition a bill takes at the reference
// instant. It is a pure function of (bill, now); re-running it on the
// resulting state yields transitionNone, which is what makes repeated
// ticks over the same instant idempotent. Auto-pay takes precedence
// over the overdue flag: the end state of "flag overdue, then pay" and
// "pay" is identical, and a single transition avoids a double write.
func decide(bill *domain.Bill, now time.Time) decision {
	today := cycle.Day(now)
	due := cycle.Day(bill.DueDate)

	if bill.Status == domain.StatusPaid && !bill.Frequency.Recurring() {
		// Resolved one-time bill: terminal, nothing ever happens again.
		return decision{}
	}

	switch {
	case bill.AutoPay && bill.Status != domain.StatusPaid && !due.After(today):
		txn := &domain.Transaction{
			ID:     uuid.NewString(),
			BillID: bill.ID,
			Amount: bill.Amount,
			PaidAt: now,
		}
		next := store.Transition{LastProcessedAt: now}
		if bill.Frequency.Recurring() {
			next.Status = domain.StatusPending
			next.DueDate = cycle.Next(bill.DueDate, bill.Frequency)
		} else {
			next.Status = domain.StatusPaid
			next.DueDate = due
		}
		return decision{
			kind: transitionAutoPay,
			next: next,
			txn:  txn,
			event: notify.Event{
				Type:    notify.EventAutoPayExecuted,
				BillID:  bill.ID,
				Title:   bill.Title,
				Amount:  bill.Amount,
				DueDate: due,
				At:      now,
			},
		}

	case due.Before(today) && bill.Status != domain.StatusOverdue && bill.Status != domain.StatusPaid:
		return decision{
			kind: transitionOverdue,
			next: store.Transition{
				Status:          domain.StatusOverdue,
				DueDate:         due,
				LastProcessedAt: now,
			},
			event: notify.Event{
				Type:    notify.EventBillOverdue,
				BillID:  bill.ID,
				Title:   bill.Title,
				Amount:  bill.Amount,
				DueDate: due,
				At:      now,
			},
		}

	case due.Equal(today) && bill.Status == domain.StatusPending:
		return decision{
			kind: transitionDue,
			next: store.Transition{
				Status:          domain.StatusDue,
				DueDate:         due,
				LastProcessedAt: now,
			},
		}
	}

	return decision{}
}

// processBill applies the state machine to a single bill. A conflict
// means another writer advanced the bill first; the bill is re-read
// and re-decided exactly once, and a second conflict is surfaced as a
// per-bill error for the next tick to resolve.
func (e *Engine) processBill(ctx context.Context, bill *domain.Bill, now time.Time) outcome {
	if err := bill.Validate(); err != nil {
		return outcome{err: &BillError{BillID: bill.ID, Reason: err.Error()}}
	}

	d := decide(bill, now)
	if d.kind == transitionNone {
		return outcome{}
	}

	err := e.store.CommitTransition(ctx, bill.ID, bill.Version, d.next, d.txn)
	if errors.Is(err, store.ErrConflict) {
		fresh, getErr := e.store.GetBill(ctx, bill.ID)
		if getErr != nil {
			if errors.Is(getErr, store.ErrUnavailable) {
				return outcome{fatal: getErr}
			}
			return outcome{err: &BillError{BillID: bill.ID, Reason: classifyReason(getErr)}}
		}
		d = decide(fresh, now)
		if d.kind == transitionNone {
			// The racing writer already settled this bill.
			return outcome{}
		}
		err = e.store.CommitTransition(ctx, fresh.ID, fresh.Version, d.next, d.txn)
	}
	if errors.Is(err, store.ErrUnavailable) {
		// Not a per-bill condition: the store is gone, and the caller
		// must not advance the watermark past this pass.
		return outcome{fatal: err}
	}
	if err != nil {
		return outcome{err: &BillError{BillID: bill.ID, Reason: classifyReason(err)}}
	}

	if d.event.Type != "" {
		e.notifyAsync(d.event)
	}
	return outcome{kind: d.kind}
}
