// Package engine implements the bill state machine: the overdue
// sweep, auto-pay execution and manual payment recording. It owns no
// schedule of its own; the scheduler package drives it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmarkov/duebook/internal/clock"
	"github.com/dmarkov/duebook/internal/notify"
	"github.com/dmarkov/duebook/internal/store"
)

// defaultWorkers bounds concurrent per-bill evaluation within a tick.
const defaultWorkers = 5

// Options configures an Engine. Zero values get sensible defaults.
type Options struct {
	// Notifier receives best-effort events after state changes.
	Notifier notify.Notifier

	// Clock supplies timestamps for auto-pay transactions.
	Clock clock.Clock

	// Logger is the structured logger for tick diagnostics.
	Logger zerolog.Logger

	// Workers bounds concurrent bill evaluation within one tick.
	Workers int
}

// Engine applies cycle transitions to persisted bills.
type Engine struct {
	store    store.Store
	notifier notify.Notifier
	clock    clock.Clock
	log      zerolog.Logger
	workers  int

	notifyWG sync.WaitGroup
}

// New creates an Engine over the given store.
func New(st store.Store, opts Options) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Engine{
		store:    st,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		log:      opts.Logger,
		workers:  opts.Workers,
	}
}

// Close waits for in-flight notification deliveries to finish.
func (e *Engine) Close() error {
	e.notifyWG.Wait()
	return nil
}

// BillError is a per-bill failure surfaced from a tick. Per-bill
// failures never abort the rest of the batch.
type BillError struct {
	BillID string
	Reason string
}

// TickReport summarizes one scheduler pass over all active bills.
type TickReport struct {
	// OverdueUpdated counts bills newly flagged overdue.
	OverdueUpdated int

	// DueMarked counts bills moved from pending to due.
	DueMarked int

	// AutopayProcessed counts bills paid by auto-pay this pass.
	AutopayProcessed int

	// Errors holds the per-bill failures collected during the pass.
	Errors []BillError
}

// RunTick evaluates every active bill against the reference instant
// now: flags overdue bills, marks bills due today, and executes
// auto-pay. Bills are processed concurrently; a failure on one bill
// is recorded and the rest of the batch continues. RunTick returns a
// non-nil error only when the store itself is unreachable, whether on
// the initial listing or mid-pass; in either case the caller must not
// advance the scheduler watermark.
func (e *Engine) RunTick(ctx context.Context, now time.Time) (TickReport, error) {
	bills, err := e.store.FindActiveBills(ctx, now)
	if err != nil {
		return TickReport{}, fmt.Errorf("find active bills: %w", err)
	}

	var (
		mu     sync.Mutex
		report TickReport
		fatal  error
		wg     sync.WaitGroup
	)

	jobs := make(chan int)
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcome := e.processBill(ctx, bills[idx], now)
				mu.Lock()
				switch outcome.kind {
				case transitionOverdue:
					report.OverdueUpdated++
				case transitionDue:
					report.DueMarked++
				case transitionAutoPay:
					report.AutopayProcessed++
				}
				if outcome.err != nil {
					report.Errors = append(report.Errors, *outcome.err)
				}
				if outcome.fatal != nil && fatal == nil {
					fatal = outcome.fatal
				}
				mu.Unlock()
			}
		}()
	}

	for i := range bills {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return report, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if fatal != nil {
		return report, fmt.Errorf("commit transitions: %w", fatal)
	}

	e.log.Info().
		Int("bills", len(bills)).
		Int("overdue_updated", report.OverdueUpdated).
		Int("due_marked", report.DueMarked).
		Int("autopay_processed", report.AutopayProcessed).
		Int("errors", len(report.Errors)).
		Time("now", now).
		Msg("Tick completed")

	return report, nil
}

// notifyAsync delivers an event without blocking or failing the
// transition that produced it.
func (e *Engine) notifyAsync(event notify.Event) {
	e.notifyWG.Add(1)
	go func() {
		defer e.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, event); err != nil {
			e.log.Warn().
				Err(err).
				Str("bill_id", event.BillID).
				Str("event", string(event.Type)).
				Msg("Notification delivery failed")
		}
	}()
}

// classifyReason renders a per-bill error for the tick report.
func classifyReason(err error) string {
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Sprintf("conflict: %v", err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("not found: %v", err)
	default:
		return err.Error()
	}
}
