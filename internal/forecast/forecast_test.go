package forecast

import (
	"testing"
	"time"

	"github.com/dmarkov/duebook/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProjectWeeklyBillAcrossMonth(t *testing.T) {
	bills := []*domain.Bill{{
		ID:        "b1",
		Title:     "Cleaning",
		Amount:    2500,
		Frequency: domain.FrequencyWeekly,
		DueDate:   date(2025, time.March, 3),
		Status:    domain.StatusPending,
	}}

	p := Project(bills, date(2025, time.March, 1), date(2025, time.March, 31), Options{})

	want := []time.Time{
		date(2025, time.March, 3),
		date(2025, time.March, 10),
		date(2025, time.March, 17),
		date(2025, time.March, 24),
		date(2025, time.March, 31),
	}
	if len(p.Occurrences) != len(want) {
		t.Fatalf("occurrences = %d, want %d", len(p.Occurrences), len(want))
	}
	for i, w := range want {
		if !p.Occurrences[i].DueDate.Equal(w) {
			t.Errorf("occurrence %d = %s, want %s", i, p.Occurrences[i].DueDate.Format(time.DateOnly), w.Format(time.DateOnly))
		}
	}
	if p.Summary.Count != 5 || p.Summary.TotalAmount != 5*2500 {
		t.Fatalf("summary = %+v, want 5 occurrences at 2500", p.Summary)
	}
}

func TestProjectStartsInsideWindowWithoutMutation(t *testing.T) {
	bill := &domain.Bill{
		ID:        "b1",
		Title:     "Rent",
		Amount:    120000,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.January, 10),
		Status:    domain.StatusPending,
	}

	p := Project([]*domain.Bill{bill}, date(2025, time.March, 1), date(2025, time.April, 30), Options{})

	if len(p.Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2 (Mar 10, Apr 10)", len(p.Occurrences))
	}
	if !p.Occurrences[0].DueDate.Equal(date(2025, time.March, 10)) {
		t.Fatalf("first occurrence = %s", p.Occurrences[0].DueDate.Format(time.DateOnly))
	}

	// Projection is read-only.
	if !bill.DueDate.Equal(date(2025, time.January, 10)) {
		t.Fatalf("projection mutated bill due date to %s", bill.DueDate.Format(time.DateOnly))
	}
}

func TestProjectOnceBill(t *testing.T) {
	unpaid := &domain.Bill{
		ID:        "unpaid",
		Amount:    9900,
		Frequency: domain.FrequencyOnce,
		DueDate:   date(2025, time.March, 20),
		Status:    domain.StatusPending,
	}
	paid := &domain.Bill{
		ID:        "paid",
		Amount:    5000,
		Frequency: domain.FrequencyOnce,
		DueDate:   date(2025, time.March, 21),
		Status:    domain.StatusPaid,
	}
	outside := &domain.Bill{
		ID:        "outside",
		Amount:    1000,
		Frequency: domain.FrequencyOnce,
		DueDate:   date(2025, time.June, 1),
		Status:    domain.StatusPending,
	}

	p := Project([]*domain.Bill{unpaid, paid, outside}, date(2025, time.March, 1), date(2025, time.March, 31), Options{})

	if len(p.Occurrences) != 1 || p.Occurrences[0].BillID != "unpaid" {
		t.Fatalf("occurrences = %+v, want only the unpaid in-window bill", p.Occurrences)
	}
}

func TestProjectEmptyAndInvertedWindows(t *testing.T) {
	bills := []*domain.Bill{{
		ID:        "b1",
		Amount:    2500,
		Frequency: domain.FrequencyWeekly,
		DueDate:   date(2025, time.March, 3),
		Status:    domain.StatusPending,
	}}

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{name: "inverted", start: date(2025, time.March, 31), end: date(2025, time.March, 1)},
		{name: "zero length", start: date(2025, time.March, 3), end: date(2025, time.March, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(bills, tt.start, tt.end, Options{})
			if len(p.Occurrences) != 0 {
				t.Fatalf("occurrences = %d, want 0", len(p.Occurrences))
			}
			if p.Summary.Count != 0 || p.Summary.TotalAmount != 0 {
				t.Fatalf("summary = %+v, want empty", p.Summary)
			}
		})
	}
}

func TestProjectExcludesArchivedByDefault(t *testing.T) {
	bills := []*domain.Bill{{
		ID:        "b1",
		Amount:    2500,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
		Archived:  true,
	}}

	window := []time.Time{date(2025, time.March, 1), date(2025, time.March, 31)}

	p := Project(bills, window[0], window[1], Options{})
	if len(p.Occurrences) != 0 {
		t.Fatalf("archived bill projected by default: %+v", p.Occurrences)
	}

	p = Project(bills, window[0], window[1], Options{IncludeArchived: true})
	if len(p.Occurrences) != 1 {
		t.Fatalf("archived bill missing under IncludeArchived: %+v", p.Occurrences)
	}
}

func TestProjectAmortization(t *testing.T) {
	bills := []*domain.Bill{{
		ID:        "yearly",
		Amount:    120000,
		Frequency: domain.FrequencyYearly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
	}, {
		ID:        "quarterly",
		Amount:    9000,
		Frequency: domain.FrequencyQuarterly,
		DueDate:   date(2025, time.March, 20),
		Status:    domain.StatusPending,
	}, {
		ID:        "monthly",
		Amount:    3500,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 25),
		Status:    domain.StatusPending,
	}}

	p := Project(bills, date(2025, time.March, 1), date(2025, time.March, 31), Options{Amortize: true})

	byID := make(map[string]Occurrence)
	for _, occ := range p.Occurrences {
		byID[occ.BillID] = occ
	}

	if got := byID["yearly"].AmortizedAmount; got != 10000 {
		t.Errorf("yearly amortized = %d, want 10000", got)
	}
	if got := byID["quarterly"].AmortizedAmount; got != 3000 {
		t.Errorf("quarterly amortized = %d, want 3000", got)
	}
	if got := byID["monthly"].AmortizedAmount; got != 3500 {
		t.Errorf("monthly amortized = %d, want raw amount 3500", got)
	}
	// Raw amounts stay untouched alongside the amortized view.
	if got := byID["yearly"].Amount; got != 120000 {
		t.Errorf("yearly raw amount = %d, want 120000", got)
	}
}

func TestProjectGroupsByCategory(t *testing.T) {
	bills := []*domain.Bill{{
		ID:         "a",
		Amount:     1000,
		Frequency:  domain.FrequencyMonthly,
		DueDate:    date(2025, time.March, 5),
		CategoryID: "utilities",
	}, {
		ID:         "b",
		Amount:     2000,
		Frequency:  domain.FrequencyMonthly,
		DueDate:    date(2025, time.March, 6),
		CategoryID: "utilities",
	}, {
		ID:        "c",
		Amount:    4000,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 7),
	}}

	p := Project(bills, date(2025, time.March, 1), date(2025, time.March, 31), Options{})

	if got := p.Summary.ByCategory["utilities"]; got != 3000 {
		t.Fatalf("utilities total = %d, want 3000", got)
	}
	if p.Summary.TotalAmount != 7000 {
		t.Fatalf("total = %d, want 7000", p.Summary.TotalAmount)
	}
}
