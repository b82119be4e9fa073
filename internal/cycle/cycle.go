// Package cycle implements the recurrence-date arithmetic behind bill
// scheduling: cycle boundaries, due-date advancement and historical
// payment classification. Everything here is a pure function of its
// inputs; there are no clock reads and no store access.
package cycle

import (
	"time"

	"github.com/dmarkov/duebook/internal/domain"
)

// Window is the ephemeral cycle boundary pair for a recurring bill.
// End is the cycle's due date; Start is one period earlier. Windows
// are recomputed on demand and never persisted.
type Window struct {
	Start time.Time
	End   time.Time
}

// period returns the length of one recurrence cycle. Month-based
// frequencies report whole months and shift with end-of-month
// clamping; the rest shift by whole days. Unknown frequencies
// deliberately fall back to one month instead of failing; callers
// that want strictness validate the frequency first.
func period(f domain.Frequency) (months, days int) {
	switch f {
	case domain.FrequencyWeekly:
		return 0, 7
	case domain.FrequencyBiweekly, domain.FrequencyTwiceMonthly:
		return 0, 14
	case domain.FrequencyMonthly:
		return 1, 0
	case domain.FrequencyBimonthly:
		return 2, 0
	case domain.FrequencyQuarterly:
		return 3, 0
	case domain.FrequencyYearly:
		return 12, 0
	default:
		return 1, 0
	}
}

// addMonths moves a calendar day by a whole number of months, clamping
// to the last day of the target month. AddDate would normalize the
// overflow instead: Jan 31 plus one month must land on Feb 28, not
// Mar 3, or a monthly bill due at month end skips February entirely.
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	d := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// shift moves a day by n recurrence periods of f. t must already be
// day-truncated.
func shift(t time.Time, f domain.Frequency, n int) time.Time {
	m, d := period(f)
	if m != 0 {
		return addMonths(t, n*m)
	}
	return t.AddDate(0, 0, n*d)
}

// Day truncates t to its calendar date in UTC. All cycle comparisons
// happen at day granularity so that time-of-day and timezone offsets
// never flip a boundary decision.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Start returns the first day of the cycle ending at dueDate. The
// second return is false for one-time bills, which have no cycle.
func Start(dueDate time.Time, f domain.Frequency) (time.Time, bool) {
	if !f.Recurring() {
		return time.Time{}, false
	}
	return shift(Day(dueDate), f, -1), true
}

// CurrentWindow returns the cycle window ending at the bill's due
// date, or false for one-time bills.
func CurrentWindow(dueDate time.Time, f domain.Frequency) (Window, bool) {
	start, ok := Start(dueDate, f)
	if !ok {
		return Window{}, false
	}
	return Window{Start: start, End: Day(dueDate)}, true
}

// Next advances a due date by one recurrence period. It inverts
// Start's subtraction exactly except where end-of-month clamping
// shortens the day. For one-time bills there is no next cycle and the
// due date is returned unchanged.
func Next(dueDate time.Time, f domain.Frequency) time.Time {
	if !f.Recurring() {
		return Day(dueDate)
	}
	return shift(Day(dueDate), f, 1)
}

// IsHistorical reports whether a payment dated paidAt belongs to a
// cycle before the bill's current one. One-time bills have no prior
// cycle, so any payment against them is current. For recurring bills
// the payment is historical iff its calendar day falls strictly
// before the current cycle's start day.
func IsHistorical(dueDate time.Time, f domain.Frequency, paidAt time.Time) bool {
	start, ok := Start(dueDate, f)
	if !ok {
		return false
	}
	return Day(paidAt).Before(start)
}
