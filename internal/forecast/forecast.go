// Package forecast expands bills into projected future occurrences
// for budgeting. Projection is read-only: it never touches persisted
// state, so it can run against the same bill set the scheduler owns.
package forecast

import (
	"sort"
	"time"

	"github.com/dmarkov/duebook/internal/cycle"
	"github.com/dmarkov/duebook/internal/domain"
)

// Occurrence is one projected obligation inside a forecast window.
// Occurrences are generated fresh per request and never persisted.
type Occurrence struct {
	BillID    string
	Title     string
	DueDate   time.Time
	Amount    int64
	Frequency domain.Frequency

	// AmortizedAmount is the per-month share of the amount for
	// multi-month frequencies, filled only when Options.Amortize is
	// set. It is a presentation figure layered over the occurrence;
	// Amount stays the raw obligation.
	AmortizedAmount int64
}

// Summary aggregates a projection.
type Summary struct {
	TotalAmount int64
	Count       int
	ByCategory  map[string]int64
}

// Projection is the result of one forecast request.
type Projection struct {
	Occurrences []Occurrence
	Summary     Summary
}

// Options adjusts projection behavior.
type Options struct {
	// IncludeArchived includes archived bills, excluded by default.
	IncludeArchived bool

	// Amortize fills Occurrence.AmortizedAmount.
	Amortize bool
}

// monthsPerPeriod returns how many whole months one cycle spans, used
// for amortization. Sub-monthly frequencies amortize to their own
// amount.
func monthsPerPeriod(f domain.Frequency) int64 {
	switch f {
	case domain.FrequencyBimonthly:
		return 2
	case domain.FrequencyQuarterly:
		return 3
	case domain.FrequencyYearly:
		return 12
	default:
		return 1
	}
}

// Project expands the given bills across the inclusive window
// [start, end]. Each recurring bill contributes every cycle date that
// falls inside the window, starting from its current due date; a
// one-time bill contributes its single due date, and only while
// unpaid. An empty or inverted window yields an empty projection, not
// an error.
func Project(bills []*domain.Bill, start, end time.Time, opts Options) Projection {
	p := Projection{Summary: Summary{ByCategory: make(map[string]int64)}}

	from := cycle.Day(start)
	to := cycle.Day(end)
	if !from.Before(to) {
		return p
	}

	for _, bill := range bills {
		if bill.Archived && !opts.IncludeArchived {
			continue
		}
		projectBill(&p, bill, from, to, opts)
	}

	sort.Slice(p.Occurrences, func(i, j int) bool {
		if !p.Occurrences[i].DueDate.Equal(p.Occurrences[j].DueDate) {
			return p.Occurrences[i].DueDate.Before(p.Occurrences[j].DueDate)
		}
		return p.Occurrences[i].BillID < p.Occurrences[j].BillID
	})
	return p
}

func projectBill(p *Projection, bill *domain.Bill, from, to time.Time, opts Options) {
	if !bill.Frequency.Recurring() {
		due := cycle.Day(bill.DueDate)
		if bill.Status != domain.StatusPaid && !due.Before(from) && !due.After(to) {
			add(p, bill, due, opts)
		}
		return
	}

	d := cycle.Day(bill.DueDate)
	for d.Before(from) {
		d = cycle.Next(d, bill.Frequency)
	}
	for !d.After(to) {
		add(p, bill, d, opts)
		d = cycle.Next(d, bill.Frequency)
	}
}

func add(p *Projection, bill *domain.Bill, due time.Time, opts Options) {
	occ := Occurrence{
		BillID:    bill.ID,
		Title:     bill.Title,
		DueDate:   due,
		Amount:    bill.Amount,
		Frequency: bill.Frequency,
	}
	if opts.Amortize {
		occ.AmortizedAmount = bill.Amount / monthsPerPeriod(bill.Frequency)
	}
	p.Occurrences = append(p.Occurrences, occ)
	p.Summary.TotalAmount += bill.Amount
	p.Summary.Count++
	if bill.CategoryID != "" {
		p.Summary.ByCategory[bill.CategoryID] += bill.Amount
	}
}
