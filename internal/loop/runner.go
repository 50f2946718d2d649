// internal/loop/runner.go
package loop

import (
	"context"
	"errors"
	"time"
)

// Start connects the transport and begins the periodic cycle.
// Only a Stopped loop can start. A failed initial connect is retried
// once through the transport's bounded reconnect policy before
// giving up.
func (l *Loop) Start(ctx context.Context) error {
	l.lifeMu.Lock()
	if !l.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		l.lifeMu.Unlock()
		return errors.New("loop: not stopped")
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stopCh, doneCh := l.stopCh, l.doneCh
	l.lifeMu.Unlock()

	// Stop may run from here on: a concurrent Stop cancels runCtx,
	// which aborts the dial below, and then waits on doneCh.
	if err := l.tr.Connect(runCtx); err != nil {
		l.log.Warn("connect failed, retrying", "error", err)
		if rerr := l.tr.Reconnect(runCtx); rerr != nil {
			l.state.Store(int32(Stopped))
			cancel()
			close(doneCh)
			return rerr
		}
	}

	go l.run(runCtx, cancel, stopCh, doneCh)

	l.log.Info("control loop started", "period", l.period)
	return nil
}

// Stop drives Running → Stopping → Stopped. The current cycle is
// allowed to finish and the transport is closed before Stop returns;
// cancellation also interrupts an in-flight reconnect backoff.
// Safe to call at any time, any number of times.
func (l *Loop) Stop() error {
	for {
		switch State(l.state.Load()) {
		case Stopped:
			// Never started, or already wound down (possibly by a
			// fatal connectivity loss). Re-assert transport release.
			return l.tr.Close()

		case Stopping:
			l.lifeMu.Lock()
			ch := l.doneCh
			l.lifeMu.Unlock()
			if ch != nil {
				<-ch
			}
			return nil

		case Running:
			if !l.state.CompareAndSwap(int32(Running), int32(Stopping)) {
				continue
			}
			l.lifeMu.Lock()
			cancel, stopCh, doneCh := l.cancel, l.stopCh, l.doneCh
			l.lifeMu.Unlock()
			cancel()
			close(stopCh)
			<-doneCh
			l.log.Info("control loop stopped")
			return nil
		}
	}
}

// run is the loop goroutine. Cycle start times self-pace on a ticker;
// a cycle that runs past the period is recorded as an overrun, not an
// error. The stop signal is honored at cycle boundaries only.
func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer l.state.Store(int32(Stopped))
	defer l.tr.Close()
	defer cancel()

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			start := time.Now()

			if err := l.cycle(ctx); err != nil {
				// A cycle aborted by Stop or parent cancellation is a
				// shutdown, not a connectivity failure.
				if ctx.Err() == nil {
					l.reportFatal(err)
				}
				return
			}

			l.cycles.Add(1)
			l.met.IncCycle()

			elapsed := time.Since(start)
			l.met.ObserveCycle(elapsed)
			if elapsed > l.period {
				l.overruns.Add(1)
				l.met.IncOverrun()
				l.warn("control cycle overrun", "elapsed", elapsed, "period", l.period)
			}
		}
	}
}
