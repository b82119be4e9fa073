package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dmarkov/duebook/internal/clock"
	"github.com/dmarkov/duebook/internal/domain"
	"github.com/dmarkov/duebook/internal/engine"
	"github.com/dmarkov/duebook/internal/logger"
	"github.com/dmarkov/duebook/internal/store"
	"github.com/dmarkov/duebook/internal/store/inmemory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newRunner(st store.Store, clk clock.Clock, cfg Config) *Runner {
	eng := engine.New(st, engine.Options{Clock: clk})
	log := logger.NewWithWriter(io.Discard)
	return New(eng, st, clk, log, cfg)
}

func TestTickAdvancesWatermarkAfterEffects(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewStore()
	now := date(2025, time.March, 20)
	clk := clock.NewManual(now)
	r := newRunner(st, clk, Config{Interval: time.Hour})

	if err := st.CreateBill(ctx, &domain.Bill{
		ID:        "b1",
		Title:     "Electricity",
		Amount:    4200,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
	}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	report, err := r.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.OverdueUpdated != 1 {
		t.Fatalf("OverdueUpdated = %d, want 1", report.OverdueUpdated)
	}

	wm, ok, err := st.ReadWatermark(ctx)
	if err != nil || !ok {
		t.Fatalf("ReadWatermark = (%v, %v), want written", ok, err)
	}
	if !wm.Equal(now) {
		t.Fatalf("watermark = %s, want tick time %s", wm, now)
	}
}

// unavailableStore fails bill reads while letting watermark reads
// succeed, simulating the database dropping mid-operation.
type unavailableStore struct {
	store.Store
}

func (u *unavailableStore) FindActiveBills(ctx context.Context, asOf time.Time) ([]*domain.Bill, error) {
	return nil, store.ErrUnavailable
}

func TestTickKeepsWatermarkWhenStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	base := inmemory.NewStore()
	st := &unavailableStore{Store: base}
	clk := clock.NewManual(date(2025, time.March, 20))
	r := newRunner(st, clk, Config{Interval: time.Hour})

	if _, err := r.Tick(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Tick error = %v, want ErrUnavailable", err)
	}

	if _, ok, _ := base.ReadWatermark(ctx); ok {
		t.Fatal("watermark advanced despite aborted tick")
	}
}

// commitFailStore lets reads succeed but fails every transition
// commit, simulating the database dropping after the bill listing.
type commitFailStore struct {
	store.Store
}

func (c *commitFailStore) CommitTransition(ctx context.Context, billID string, expectedVersion int64, next store.Transition, txn *domain.Transaction) error {
	return store.ErrUnavailable
}

func TestTickKeepsWatermarkWhenCommitsFail(t *testing.T) {
	ctx := context.Background()
	base := inmemory.NewStore()
	st := &commitFailStore{Store: base}
	clk := clock.NewManual(date(2025, time.March, 20))
	r := newRunner(st, clk, Config{Interval: time.Hour})

	if err := base.CreateBill(ctx, &domain.Bill{
		ID:        "b1",
		Title:     "Electricity",
		Amount:    4200,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
	}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	prior := date(2025, time.March, 19)
	if err := base.WriteWatermark(ctx, prior); err != nil {
		t.Fatalf("WriteWatermark: %v", err)
	}

	if _, err := r.Tick(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Tick error = %v, want ErrUnavailable", err)
	}

	// Nothing committed, so the missed window must stay replayable.
	wm, ok, err := base.ReadWatermark(ctx)
	if err != nil || !ok {
		t.Fatalf("ReadWatermark = (%v, %v)", ok, err)
	}
	if !wm.Equal(prior) {
		t.Fatalf("watermark = %s, want untouched %s", wm.Format(time.DateOnly), prior.Format(time.DateOnly))
	}
}

func TestCatchUpAdvancesWeeklyBillOneCycle(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewStore()

	// Weekly auto-pay bill due March 3; last successful run March 3,
	// then a 10-day outage.
	due := date(2025, time.March, 3)
	if err := st.CreateBill(ctx, &domain.Bill{
		ID:        "b1",
		Title:     "Groceries box",
		Amount:    4500,
		Frequency: domain.FrequencyWeekly,
		DueDate:   due,
		Status:    domain.StatusPending,
		AutoPay:   true,
	}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if err := st.WriteWatermark(ctx, due); err != nil {
		t.Fatalf("WriteWatermark: %v", err)
	}

	now := due.AddDate(0, 0, 10) // March 13
	clk := clock.NewManual(now)
	r := newRunner(st, clk, Config{Interval: time.Hour, CatchUp: true})

	report, err := r.CatchUp(ctx)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if report.AutopayProcessed != 1 {
		t.Fatalf("AutopayProcessed = %d, want 1", report.AutopayProcessed)
	}

	// One consolidated pass advances exactly one cycle, not ten ticks
	// worth. The bill lands on March 10, still past due, so the next
	// regular tick reprocesses it.
	bill, _ := st.GetBill(ctx, "b1")
	if want := date(2025, time.March, 10); !bill.DueDate.Equal(want) {
		t.Fatalf("due date = %s, want one cycle forward %s", bill.DueDate.Format(time.DateOnly), want.Format(time.DateOnly))
	}

	report, err = r.Tick(ctx)
	if err != nil {
		t.Fatalf("follow-up Tick: %v", err)
	}
	if report.AutopayProcessed != 1 {
		t.Fatalf("follow-up AutopayProcessed = %d, want 1", report.AutopayProcessed)
	}
	bill, _ = st.GetBill(ctx, "b1")
	if want := date(2025, time.March, 17); !bill.DueDate.Equal(want) {
		t.Fatalf("due date after follow-up = %s, want %s", bill.DueDate.Format(time.DateOnly), want.Format(time.DateOnly))
	}

	txns, _ := st.ListTransactions(ctx, "b1")
	if len(txns) != 2 {
		t.Fatalf("transactions = %d, want 2 (one per pass)", len(txns))
	}
}

func TestCatchUpFirstStartWithoutWatermark(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewStore()
	now := date(2025, time.March, 20)
	clk := clock.NewManual(now)
	r := newRunner(st, clk, Config{Interval: time.Hour, CatchUp: true})

	if err := st.CreateBill(ctx, &domain.Bill{
		ID:        "b1",
		Title:     "Electricity",
		Amount:    4200,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
	}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	report, err := r.CatchUp(ctx)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if report.OverdueUpdated != 1 {
		t.Fatalf("OverdueUpdated = %d, want 1", report.OverdueUpdated)
	}

	if _, ok, _ := st.ReadWatermark(ctx); !ok {
		t.Fatal("watermark not initialized after first catch-up")
	}
}

func TestStartSurvivesCatchUpFailure(t *testing.T) {
	ctx := context.Background()
	st := &unavailableStore{Store: inmemory.NewStore()}
	clk := clock.NewManual(date(2025, time.March, 20))
	r := newRunner(st, clk, Config{Interval: time.Hour, CatchUp: true})

	// A failed catch-up must not fail startup.
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = r.Stop(ctx) }()

	if err := r.Start(ctx); err == nil {
		t.Fatal("second Start unexpectedly succeeded")
	}
}

func TestTickerLoopProcessesBills(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewStore()
	now := date(2025, time.March, 20)
	clk := clock.NewManual(now)
	r := newRunner(st, clk, Config{Interval: time.Hour})

	if err := st.CreateBill(ctx, &domain.Bill{
		ID:        "b1",
		Title:     "Electricity",
		Amount:    4200,
		Frequency: domain.FrequencyMonthly,
		DueDate:   date(2025, time.March, 15),
		Status:    domain.StatusPending,
	}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The loop goroutine may not have created its ticker yet, so keep
	// firing until the sweep lands.
	deadline := time.After(2 * time.Second)
	for {
		clk.Tick()
		bill, err := st.GetBill(ctx, "b1")
		if err != nil {
			t.Fatalf("GetBill: %v", err)
		}
		if bill.Status == domain.StatusOverdue {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("bill never swept, status = %s", bill.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Stop is idempotent.
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
