package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency describes how often a bill's obligation repeats.
type Frequency string

const (
	// FrequencyOnce is a one-time obligation with no recurrence cycle.
	FrequencyOnce Frequency = "once"
	// FrequencyWeekly repeats every 7 days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyBiweekly repeats every 14 days.
	FrequencyBiweekly Frequency = "biweekly"
	// FrequencyTwiceMonthly repeats twice a month, treated as a 14-day cycle.
	FrequencyTwiceMonthly Frequency = "twicemonthly"
	// FrequencyMonthly repeats every calendar month.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyBimonthly repeats every two calendar months.
	FrequencyBimonthly Frequency = "bimonthly"
	// FrequencyQuarterly repeats every three calendar months.
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyYearly repeats every calendar year.
	FrequencyYearly Frequency = "yearly"
)

// Frequencies lists every supported frequency value.
var Frequencies = []Frequency{
	FrequencyOnce,
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyTwiceMonthly,
	FrequencyMonthly,
	FrequencyBimonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// Known reports whether f is one of the supported frequency values.
// Cycle arithmetic deliberately tolerates unknown frequencies by
// falling back to monthly, so Known is for validation surfaces only.
func (f Frequency) Known() bool {
	for _, v := range Frequencies {
		if f == v {
			return true
		}
	}
	return false
}

// Recurring reports whether the frequency has a repeat cycle.
func (f Frequency) Recurring() bool {
	return f != FrequencyOnce
}

// ParseFrequency parses a frequency string, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Known() {
		return "", &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", s)}
	}
	return f, nil
}

// Status is the lifecycle state of a bill within its current cycle.
type Status string

const (
	// StatusPending indicates the bill is not yet due.
	StatusPending Status = "pending"
	// StatusDue indicates the bill's due date is today.
	StatusDue Status = "due"
	// StatusOverdue indicates the due date has passed without payment.
	StatusOverdue Status = "overdue"
	// StatusPaid indicates the current cycle's obligation is resolved.
	StatusPaid Status = "paid"
)

// Bill represents one tracked financial obligation. DueDate always
// reflects the next unresolved obligation; once a cycle is paid and
// advanced, DueDate never points at a past cycle.
type Bill struct {
	// ID is the stable identity of the bill (UUID string).
	ID string

	// Title is a human-readable label like "Rent" or "Electricity".
	Title string

	// Amount is the obligation amount in integer minor units (cents).
	Amount int64

	// Frequency controls the recurrence cycle.
	Frequency Frequency

	// DueDate is the current cycle's due date. Calendar date; any
	// time-of-day component is ignored by cycle arithmetic.
	DueDate time.Time

	// Status is the state within the current cycle.
	Status Status

	// AutoPay marks the bill for automatic payment by the scheduler.
	AutoPay bool

	// CategoryID links the bill to a BillCategory, empty if none.
	CategoryID string

	// Tags holds the names of tags attached to the bill.
	Tags []string

	// Archived excludes the bill from scheduling and, by default,
	// from forecasting.
	Archived bool

	// LastProcessedAt is the watermark of the last scheduler pass
	// that touched this bill.
	LastProcessedAt time.Time

	// Version supports optimistic concurrency on writes. Incremented
	// by the store on every committed transition.
	Version int64

	// CreatedAt is when the bill was first recorded.
	CreatedAt time.Time
}

// Clone returns a deep copy of the bill.
func (b *Bill) Clone() *Bill {
	c := *b
	if b.Tags != nil {
		c.Tags = append([]string(nil), b.Tags...)
	}
	return &c
}

// Validate checks the fields mutating operations rely on. A bill that
// fails validation is rejected individually; it never aborts a batch.
func (b *Bill) Validate() error {
	if b.ID == "" {
		return &ValidationError{Field: "id", Reason: "missing bill id"}
	}
	if b.Amount < 0 {
		return &ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}
	if b.DueDate.IsZero() {
		return &ValidationError{Field: "dueDate", Reason: "missing due date"}
	}
	return nil
}

// BillCategory groups bills for reporting and forecasting.
type BillCategory struct {
	ID   string
	Name string
}

// Tag is a free-form label attachable to bills.
type Tag struct {
	ID   string
	Name string
}

// ValidationError describes a single malformed bill field. It rejects
// one bill without failing the batch it arrived in.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
