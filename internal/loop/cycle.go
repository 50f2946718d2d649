// internal/loop/cycle.go
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/hexfellow/liftlink/internal/lift"
	"github.com/hexfellow/liftlink/internal/wire"
)

// cycle performs exactly one control cycle: dispatch the pending
// command first, then drain inbound telemetry and keep the newest
// valid frame. A non-nil error means connectivity is gone for good.
func (l *Loop) cycle(ctx context.Context) error {
	if err := l.dispatch(ctx); err != nil {
		return err
	}
	if err := l.ingest(ctx); err != nil {
		return err
	}
	l.checkHealth(time.Now())
	return nil
}

// dispatch encodes and sends the pending command, at most one frame
// per cycle. The slot is cleared only after a successful send; on a
// transport fault the command stays pending for the next cycle.
func (l *Loop) dispatch(ctx context.Context) error {
	cmd, ok := l.peekCommand()
	if !ok {
		return nil
	}

	wcmd, ok := l.selectWire(cmd)
	if !ok {
		return nil
	}

	b, err := wire.EncodeCommand(wcmd)
	if err != nil {
		// Malformed command: reject locally, keep the loop running.
		l.log.Error("command rejected", "error", err)
		l.dropCommand()
		return nil
	}

	if err := l.tr.Send(b); err != nil {
		l.log.Warn("send failed", "error", err)
		return l.recover(ctx, err)
	}

	l.met.IncCommandSent()
	l.clearSent(cmd)
	return nil
}

// selectWire picks what this cycle's downlink frame carries.
// Precedence: calibrate, then brake, then position and speed together.
// Position and speed are held back while the lift reports itself
// uncalibrated; calibrate and brake always go through.
func (l *Loop) selectWire(c lift.Command) (wire.Command, bool) {
	if c.Calibrate {
		return wire.Command{Calibrate: true}, true
	}
	if c.Brake {
		return wire.Command{Brake: true}, true
	}

	if snap := l.snap.Load(); snap != nil && !snap.Calibrated {
		l.warn("lift is not calibrated, holding motion commands")
		return wire.Command{}, false
	}

	var w wire.Command
	if c.TargetPos != nil {
		p := lift.MetersToPulses(*c.TargetPos, l.ppm.Load())
		w.TargetPos = &p
	}
	if c.MaxSpeed != nil {
		w.SetSpeed = c.MaxSpeed
	}
	return w, !w.Empty()
}

// ingest drains the frames that arrived since the last cycle and
// applies only the newest valid one. Older frames are superseded,
// malformed frames are dropped and the current snapshot kept.
func (l *Loop) ingest(ctx context.Context) error {
	var latest *lift.Telemetry

	for i := 0; i < l.cfg.MaxFramesPerCycle; i++ {
		b, err := l.tr.Receive()
		if err != nil {
			l.log.Warn("receive failed", "error", err)
			if rerr := l.recover(ctx, err); rerr != nil {
				return rerr
			}
			break
		}
		if b == nil {
			break
		}

		st, err := wire.DecodeStatus(b)
		if err != nil {
			l.met.IncDecodeDrop()
			l.warn("telemetry frame dropped", "error", err)
			continue
		}
		t, err := lift.FromWire(st, time.Now())
		if err != nil {
			l.met.IncDecodeDrop()
			l.warn("telemetry frame dropped", "error", err)
			continue
		}

		if latest == nil || t.Seq >= latest.Seq {
			keep := t
			latest = &keep
		}
	}

	if latest != nil {
		l.ppm.Store(latest.PulsePerMeter)
		l.snap.Store(latest)
		l.met.IncFrameKept()
	}
	return nil
}

// recover runs the transport's bounded reconnect policy after a
// send/receive fault. Exhausting the budget is fatal.
func (l *Loop) recover(ctx context.Context, cause error) error {
	if err := l.tr.Reconnect(ctx); err != nil {
		return fmt.Errorf("loop: session lost (%v): %w", cause, err)
	}
	return nil
}

// checkHealth reports device-level trouble visible in the snapshot:
// an engaged parking stop and stale telemetry. Warnings are
// rate-limited to one per WarnEvery.
func (l *Loop) checkHealth(now time.Time) {
	snap := l.snap.Load()
	if snap == nil {
		return
	}

	if snap.ParkingStop.Engaged() {
		l.warnAt(now, "emergency stop engaged, reinitialize the lift to clear it",
			"detail", uint64(snap.ParkingStop))
		return
	}

	if age := now.Sub(snap.ReceivedAt); age > l.cfg.StaleAfter {
		l.warnAt(now, "telemetry is stale, lift may be dead", "age", age)
	}
}

func (l *Loop) warn(msg string, args ...any) {
	l.warnAt(time.Now(), msg, args...)
}

func (l *Loop) warnAt(now time.Time, msg string, args ...any) {
	if now.Sub(l.lastWarn) < l.cfg.WarnEvery {
		return
	}
	l.lastWarn = now
	l.log.Warn(msg, args...)
}
