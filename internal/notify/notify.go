// Package notify defines the notification collaborator invoked after
// bill state changes. Delivery is best-effort: the engine fires
// notifications asynchronously and never lets a failure block or roll
// back the transition it follows.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies what happened to a bill.
type EventType string

const (
	// EventBillOverdue fires when the sweep flags a bill overdue.
	EventBillOverdue EventType = "bill_overdue"
	// EventAutoPayExecuted fires when auto-pay records a payment.
	EventAutoPayExecuted EventType = "autopay_executed"
	// EventPaymentRecorded fires when a manual payment is recorded.
	EventPaymentRecorded EventType = "payment_recorded"
)

// Event carries the facts of a single state change.
type Event struct {
	Type    EventType
	BillID  string
	Title   string
	Amount  int64
	DueDate time.Time
	At      time.Time
}

// Notifier delivers events to the outside world.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log. It stands in for a
// real delivery channel (mail, push) in single-process deployments.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a Notifier backed by the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.log.Info().
		Str("event", string(event.Type)).
		Str("bill_id", event.BillID).
		Str("title", event.Title).
		Int64("amount", event.Amount).
		Time("due_date", event.DueDate).
		Msg("Bill notification")
	return nil
}

// Nop is a Notifier that discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(ctx context.Context, event Event) error {
	return nil
}
