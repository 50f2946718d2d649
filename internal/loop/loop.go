// internal/loop/loop.go
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hexfellow/liftlink/internal/lift"
	"github.com/hexfellow/liftlink/internal/metrics"
)

// Loop synchronizes lift state over a Transport at a fixed period.
// The telemetry snapshot is a single atomically swapped slot; the
// pending command is a single last-write-wins slot. Readers never
// observe a torn value of either.
type Loop struct {
	cfg    Config
	period time.Duration
	tr     Transport
	log    *slog.Logger
	met    *metrics.Set

	state atomic.Int32
	snap  atomic.Pointer[lift.Telemetry]
	ppm   atomic.Int64

	cmdMu   sync.Mutex
	pending lift.Command

	cycles   atomic.Uint64
	overruns atomic.Uint64

	fatalOnce sync.Once
	fatalCh   chan error

	// lifeMu guards the handoff of the fields below between Start and
	// Stop. They are assigned in the same critical section that
	// publishes Running, so Stop never observes Running with nil
	// shutdown plumbing.
	lifeMu sync.Mutex
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}

	// lastWarn is touched only by the loop goroutine.
	lastWarn time.Time
}

// New creates a stopped loop with immutable config.
func New(cfg Config, tr Transport, log *slog.Logger, met *metrics.Set) (*Loop, error) {
	if tr == nil {
		return nil, errors.New("loop: transport required")
	}
	if cfg.ControlHz <= 0 {
		return nil, errors.New("loop: control frequency must be > 0")
	}
	if cfg.ControlHz > MaxControlHz {
		return nil, fmt.Errorf("loop: control frequency %d exceeds limit %d", cfg.ControlHz, MaxControlHz)
	}

	if cfg.PulsePerMeter <= 0 {
		cfg.PulsePerMeter = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Second
	}
	if cfg.WarnEvery <= 0 {
		cfg.WarnEvery = time.Second
	}
	if cfg.MaxFramesPerCycle <= 0 {
		cfg.MaxFramesPerCycle = 32
	}

	if log == nil {
		log = slog.Default()
	}

	l := &Loop{
		cfg:     cfg,
		period:  time.Second / time.Duration(cfg.ControlHz),
		tr:      tr,
		log:     log.With("component", "loop"),
		met:     met,
		fatalCh: make(chan error, 1),
	}
	l.ppm.Store(cfg.PulsePerMeter)
	return l, nil
}

// State returns the loop's lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Period returns the nominal cycle duration.
func (l *Loop) Period() time.Duration {
	return l.period
}

// Snapshot returns the current telemetry, or nil before the first
// valid frame. The returned value is never mutated; a later cycle
// swaps in a fresh one instead.
func (l *Loop) Snapshot() *lift.Telemetry {
	return l.snap.Load()
}

// PulsePerMeter returns the effective conversion scale: the device's
// reported value once telemetry has arrived, the configured fallback
// before that.
func (l *Loop) PulsePerMeter() int64 {
	return l.ppm.Load()
}

// Cycles returns the number of completed control cycles.
func (l *Loop) Cycles() uint64 {
	return l.cycles.Load()
}

// Overruns returns the number of cycles that missed their deadline.
func (l *Loop) Overruns() uint64 {
	return l.overruns.Load()
}

// Fatal delivers the single fatal connectivity failure, if one occurs.
func (l *Loop) Fatal() <-chan error {
	return l.fatalCh
}

// UpdateCommand applies fn to the pending command slot.
// Callers validate before writing; newer writes overwrite unsent ones.
func (l *Loop) UpdateCommand(fn func(*lift.Command)) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()
	fn(&l.pending)
}

// peekCommand copies the pending command for dispatch.
func (l *Loop) peekCommand() (lift.Command, bool) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	if l.pending.Empty() {
		return lift.Command{}, false
	}

	c := l.pending
	if l.pending.TargetPos != nil {
		p := *l.pending.TargetPos
		c.TargetPos = &p
	}
	if l.pending.MaxSpeed != nil {
		s := *l.pending.MaxSpeed
		c.MaxSpeed = &s
	}
	return c, true
}

// clearSent clears the parts of the pending slot that were dispatched,
// unless a newer write replaced them mid-send. Brake is a mode, not a
// one-shot: it stays pending and is re-asserted every cycle until
// released.
func (l *Loop) clearSent(sent lift.Command) {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()

	if sent.Calibrate {
		l.pending.Calibrate = false
	}
	if sent.TargetPos != nil && l.pending.TargetPos != nil && *l.pending.TargetPos == *sent.TargetPos {
		l.pending.TargetPos = nil
	}
	if sent.MaxSpeed != nil && l.pending.MaxSpeed != nil && *l.pending.MaxSpeed == *sent.MaxSpeed {
		l.pending.MaxSpeed = nil
	}
}

// dropCommand discards the whole pending slot after a local rejection.
func (l *Loop) dropCommand() {
	l.cmdMu.Lock()
	defer l.cmdMu.Unlock()
	l.pending = lift.Command{}
}

// reportFatal surfaces a fatal connectivity failure exactly once.
func (l *Loop) reportFatal(err error) {
	l.fatalOnce.Do(func() {
		l.log.Error("connectivity lost", "error", err)
		l.fatalCh <- err
	})
}
