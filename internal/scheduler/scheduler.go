// Package scheduler owns the recurring evaluation of all bills: a
// ticker-driven runner that invokes the engine on a fixed cadence,
// and a catch-up reconciler that compensates at startup for ticks
// missed while the process was down.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmarkov/duebook/internal/clock"
	"github.com/dmarkov/duebook/internal/engine"
	"github.com/dmarkov/duebook/internal/store"
)

// TickRunner is the slice of the engine the scheduler drives.
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) (engine.TickReport, error)
}

// Config controls the runner cadence.
type Config struct {
	// Interval between ticks. Defaults to 15 minutes.
	Interval time.Duration

	// CatchUp enables the startup reconciliation pass. Read once at
	// construction; there is no runtime toggle.
	CatchUp bool
}

// Runner drives the engine on a fixed real-time cadence. One logical
// runner exists per process; the catch-up pass and the ticker loop
// never overlap because Start runs catch-up to completion before the
// ticker is created.
type Runner struct {
	engine TickRunner
	store  store.Store
	clock  clock.Clock
	log    zerolog.Logger
	cfg    Config

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a Runner. The runner does nothing until Start.
func New(eng TickRunner, st store.Store, clk clock.Clock, log zerolog.Logger, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Runner{
		engine: eng,
		store:  st,
		clock:  clk,
		log:    log,
		cfg:    cfg,
	}
}

// Start runs the catch-up pass (when enabled), then launches the
// ticker loop. A catch-up failure is logged and swallowed: the next
// scheduled tick self-corrects, and a failed boot would cost more
// than a delayed sweep.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.mu.Unlock()

	if r.cfg.CatchUp {
		if _, err := r.CatchUp(ctx); err != nil {
			r.log.Error().Err(err).Msg("Catch-up pass failed, continuing startup")
		}
	}

	go r.loop(ctx)
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("Scheduler started")
	return nil
}

// Stop halts the ticker loop between ticks and waits for it to exit.
// An in-flight tick runs to completion first.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		r.log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := r.Tick(ctx); err != nil {
				r.log.Error().Err(err).Msg("Tick aborted")
			}
		}
	}
}

// Tick performs one full scheduler pass at the clock's current time
// and, only after the pass committed, advances the watermark. When
// the store is unreachable the watermark stays put, so the missed
// window is replayed by a later tick or by catch-up after a restart.
func (r *Runner) Tick(ctx context.Context) (engine.TickReport, error) {
	now := r.clock.Now()

	report, err := r.engine.RunTick(ctx, now)
	if err != nil {
		return report, fmt.Errorf("tick at %s: %w", now.Format(time.RFC3339), err)
	}

	if err := r.store.WriteWatermark(ctx, now); err != nil {
		// Effects are committed; a stale watermark only means the
		// idempotent pass reruns after a restart.
		r.log.Warn().Err(err).Msg("Watermark write failed after committed tick")
	}
	return report, nil
}
