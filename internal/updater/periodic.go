package updater

import (
	"context"
	"math/rand/v2"
	"time"
)

// RunPeriodic ticks every period, building up to the master bookmark each
// time, until ctx is cancelled. The first tick fires after a delay drawn
// uniformly from [period, 2*period) so that many repositories started
// together don't all poll in lockstep. Errors are logged and counted, never
// propagated: a transient collaborator failure should not kill the
// background updater. If tick is non-nil it receives a pulse after every
// attempted tick (successful or not), for tests to synchronize on.
func (u *Updater) RunPeriodic(ctx context.Context, period time.Duration, tick chan<- struct{}) {
	if period <= 0 {
		return
	}

	timer := time.NewTimer(period + rand.N(period))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			u.tickOnce(ctx)
			if tick != nil {
				select {
				case tick <- struct{}{}:
				default:
				}
			}
			timer.Reset(period)
		}
	}
}

func (u *Updater) tickOnce(ctx context.Context) {
	u.metrics.PeriodicTicksTotal.Inc()
	if err := u.BuildUpToBookmark(ctx); err != nil {
		u.metrics.PeriodicTickErrorsTotal.Inc()
		if u.logger != nil {
			u.logger.Errorw("periodic update failed", "error", err)
		}
	}
}
