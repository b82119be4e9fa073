package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "monthly", want: FrequencyMonthly},
		{in: "  Weekly ", want: FrequencyWeekly},
		{in: "TWICEMONTHLY", want: FrequencyTwiceMonthly},
		{in: "once", want: FrequencyOnce},
		{in: "fortnight", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("error = %v, want ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrequency: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFrequencyRecurring(t *testing.T) {
	if FrequencyOnce.Recurring() {
		t.Fatal("once reported as recurring")
	}
	for _, f := range Frequencies {
		if f == FrequencyOnce {
			continue
		}
		if !f.Recurring() {
			t.Fatalf("%s reported as non-recurring", f)
		}
	}
}

func TestBillValidate(t *testing.T) {
	valid := Bill{
		ID:        "b1",
		Title:     "Rent",
		Amount:    100,
		Frequency: FrequencyMonthly,
		DueDate:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid bill rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Bill)
	}{
		{name: "missing id", mutate: func(b *Bill) { b.ID = "" }},
		{name: "negative amount", mutate: func(b *Bill) { b.Amount = -1 }},
		{name: "zero due date", mutate: func(b *Bill) { b.DueDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			var vErr *ValidationError
			if err := b.Validate(); !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestBillClone(t *testing.T) {
	b := &Bill{ID: "b1", Tags: []string{"a", "b"}}
	c := b.Clone()
	c.Tags[0] = "mangled"
	if b.Tags[0] != "a" {
		t.Fatal("Clone shares tag backing array")
	}
}
