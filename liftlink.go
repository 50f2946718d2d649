// liftlink.go

// Package liftlink is a client for hex lift devices speaking
// Protocol-Buffer messages over a persistent WebSocket session.
//
// A Client owns a background control loop that runs at a fixed
// frequency: each cycle it dispatches the pending command and applies
// the newest inbound telemetry frame to an atomically swapped
// snapshot. Setters queue commands (last write wins), getters read the
// snapshot and never block.
//
//	client, err := liftlink.New(liftlink.Config{
//		URL:       "ws://172.18.20.80:8439",
//		ControlHz: 100,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Stop()
//
//	client.Calibrate()
//	if err := client.SetTargetPos(-0.3); err != nil {
//		log.Print(err)
//	}
//	if st, ok := client.Status(); ok {
//		log.Printf("lift at %.3f m, state %s", st.CurrentPos, st.State)
//	}
//
// Client is safe for concurrent use.
package liftlink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hexfellow/liftlink/internal/lift"
	"github.com/hexfellow/liftlink/internal/loop"
	"github.com/hexfellow/liftlink/internal/metrics"
	"github.com/hexfellow/liftlink/internal/transport"
)

// LiftState is the device's reported control state.
type LiftState = lift.State

const (
	LiftBrake            = lift.StateBrake
	LiftCalibrating      = lift.StateCalibrating
	LiftAlgorithmControl = lift.StateAlgorithmControl
	LiftOvertakeControl  = lift.StateOvertakeControl
	LiftEmergencyStop    = lift.StateEmergencyStop
)

// SessionState is the WebSocket session lifecycle state.
type SessionState = transport.SessionState

const (
	Disconnected = transport.Disconnected
	Connecting   = transport.Connecting
	Connected    = transport.Connected
	Closing      = transport.Closing
)

// MaxControlHz bounds Config.ControlHz.
const MaxControlHz = loop.MaxControlHz

// Config configures a Client. URL and ControlHz are required; zero
// values elsewhere take conservative defaults. Immutable after New.
type Config struct {
	// URL is the lift endpoint, e.g. "ws://host:port".
	URL string

	// ControlHz is the control loop frequency, 1..MaxControlHz.
	ControlHz int

	// DialTimeout bounds each connection attempt. Default 5s.
	DialTimeout time.Duration

	// WriteTimeout bounds each outbound frame. Default 1s.
	WriteTimeout time.Duration

	// MaxReconnects bounds reconnect attempts after a session fault
	// before the failure is reported as fatal. Default 5.
	MaxReconnects int

	// ReconnectBase is the backoff base delay, doubled per attempt.
	// Default 1s.
	ReconnectBase time.Duration

	// MinPos/MaxPos are the travel limits in meters used to validate
	// SetTargetPos before the device has reported its own range.
	// Both zero means no configured limits: validation then relies on
	// device-reported travel and rejects commands until telemetry
	// arrives.
	MinPos float64
	MaxPos float64

	// PulsePerMeter converts positions to wire units until telemetry
	// reports the device's own scale.
	PulsePerMeter int64

	// StaleAfter is the telemetry age that triggers a staleness
	// warning. Default 1s.
	StaleAfter time.Duration

	// Logger receives structured logs. Default slog.Default().
	Logger *slog.Logger

	// Metrics, when set, registers the client's Prometheus
	// collectors. Nil disables instrumentation.
	Metrics prometheus.Registerer
}

// StatusRecord is a copy of the lift-level fields of the current
// telemetry snapshot.
type StatusRecord struct {
	Seq        uint64
	ReceivedAt time.Time

	State      LiftState
	Calibrated bool

	CurrentPos float64 // m
	MaxPos     float64 // m

	EmergencyStop       bool
	StopDetail          uint64
	CustomButtonPressed bool
}

// Fresh reports whether the record is younger than maxAge.
func (r StatusRecord) Fresh(maxAge time.Duration) bool {
	return time.Since(r.ReceivedAt) <= maxAge
}

// MotorDataRecord is a copy of the motor-level fields of the current
// telemetry snapshot.
type MotorDataRecord struct {
	Seq        uint64
	ReceivedAt time.Time

	Speed         int64 // pulse/s
	MaxSpeed      int64 // pulse/s
	PulsePerMeter int64
}

// Fresh reports whether the record is younger than maxAge.
func (r MotorDataRecord) Fresh(maxAge time.Duration) bool {
	return time.Since(r.ReceivedAt) <= maxAge
}

// Client is the public entry point. It composes the transport channel
// and the control loop; there are no process-wide singletons.
type Client struct {
	cfg Config
	log *slog.Logger
	ch  *transport.Channel
	lp  *loop.Loop
}

// New validates cfg and builds a stopped client.
func New(cfg Config) (*Client, error) {
	if cfg.MinPos > cfg.MaxPos {
		return nil, errors.New("liftlink: MinPos must not exceed MaxPos")
	}
	if !validFinite(cfg.MinPos) || !validFinite(cfg.MaxPos) {
		return nil, errors.New("liftlink: travel limits must be finite")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var met *metrics.Set
	if cfg.Metrics != nil {
		met = metrics.New(cfg.Metrics)
	}

	ch, err := transport.New(transport.Config{
		URL:           cfg.URL,
		DialTimeout:   cfg.DialTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectBase: cfg.ReconnectBase,
	}, log, met)
	if err != nil {
		return nil, err
	}

	lp, err := loop.New(loop.Config{
		ControlHz:     cfg.ControlHz,
		PulsePerMeter: cfg.PulsePerMeter,
		StaleAfter:    cfg.StaleAfter,
	}, ch, log, met)
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, log: log, ch: ch, lp: lp}, nil
}

// Start connects to the lift and starts the control loop.
func (c *Client) Start(ctx context.Context) error {
	return c.lp.Start(ctx)
}

// Stop shuts the control loop down and releases the session before
// returning. Safe to call at any time, any number of times.
func (c *Client) Stop() error {
	return c.lp.Stop()
}

// Fatal delivers the single fatal connectivity failure, if the
// transport's reconnect budget is ever exhausted. After a fatal the
// loop has already stopped; Stop remains safe to call.
func (c *Client) Fatal() <-chan error {
	return c.lp.Fatal()
}

// Session returns the WebSocket session state.
func (c *Client) Session() SessionState {
	return c.ch.State()
}

// Overruns returns the number of control cycles that missed their
// deadline. Observable, non-fatal.
func (c *Client) Overruns() uint64 {
	return c.lp.Overruns()
}

// SetTargetPos queues a target position command in meters.
// The value is validated against the device-reported travel range, or
// the configured limits before telemetry arrives; out-of-range values
// are rejected with a *ValidationError and the pending command is left
// untouched. A newer target overwrites an unsent one.
func (c *Client) SetTargetPos(pos float64) error {
	if !validFinite(pos) {
		return &ValidationError{Field: "target_pos", Value: pos, Reason: "must be finite"}
	}

	min, max, ok := c.travelBounds()
	if !ok {
		return &ValidationError{Field: "target_pos", Value: pos,
			Reason: "travel range unknown, no limits configured and no telemetry yet"}
	}
	if pos < min || pos > max {
		return &ValidationError{Field: "target_pos", Value: pos, Min: min, Max: max}
	}

	c.lp.UpdateCommand(func(cmd *lift.Command) {
		p := pos
		cmd.TargetPos = &p
	})
	return nil
}

// travelBounds resolves the validation range: device-reported travel
// wins once telemetry has arrived, configured limits apply before
// that. The device reports a signed max; negative travel means the
// valid range is [max, 0].
func (c *Client) travelBounds() (min, max float64, ok bool) {
	if snap := c.lp.Snapshot(); snap != nil {
		if snap.MaxPos < 0 {
			return snap.MaxPos, 0, true
		}
		return 0, snap.MaxPos, true
	}
	if c.cfg.MinPos != 0 || c.cfg.MaxPos != 0 {
		return c.cfg.MinPos, c.cfg.MaxPos, true
	}
	return 0, 0, false
}

// SetMaxSpeed queues a speed limit command in pulses per second.
// Values above the device-reported maximum are clamped to it.
func (c *Client) SetMaxSpeed(speed int64) error {
	if speed < 0 {
		return &ValidationError{Field: "max_speed", Value: float64(speed), Reason: "must be >= 0"}
	}
	if snap := c.lp.Snapshot(); snap != nil && snap.MaxSpeed > 0 && speed > snap.MaxSpeed {
		speed = snap.MaxSpeed
	}

	c.lp.UpdateCommand(func(cmd *lift.Command) {
		s := speed
		cmd.MaxSpeed = &s
	})
	return nil
}

// SetBrake engages the brake. The loop re-asserts it every cycle
// until ReleaseBrake; sending a target position also releases it on
// the device side.
func (c *Client) SetBrake() {
	c.lp.UpdateCommand(func(cmd *lift.Command) { cmd.Brake = true })
}

// ReleaseBrake stops re-asserting the brake.
func (c *Client) ReleaseBrake() {
	c.lp.UpdateCommand(func(cmd *lift.Command) { cmd.Brake = false })
}

// Calibrate queues a one-shot calibration command. The lift must be
// calibrated before it accepts motion commands.
func (c *Client) Calibrate() {
	c.lp.UpdateCommand(func(cmd *lift.Command) { cmd.Calibrate = true })
}

// Status returns the lift-level view of the current snapshot.
// It never blocks; ok is false before the first valid frame.
// The data may be momentarily stale, bounded by the control period
// plus network latency.
func (c *Client) Status() (StatusRecord, bool) {
	snap := c.lp.Snapshot()
	if snap == nil {
		return StatusRecord{}, false
	}
	return StatusRecord{
		Seq:                 snap.Seq,
		ReceivedAt:          snap.ReceivedAt,
		State:               snap.State,
		Calibrated:          snap.Calibrated,
		CurrentPos:          snap.CurrentPos,
		MaxPos:              snap.MaxPos,
		EmergencyStop:       snap.ParkingStop.Engaged(),
		StopDetail:          uint64(snap.ParkingStop),
		CustomButtonPressed: snap.CustomButtonPressed,
	}, true
}

// MotorData returns the motor-level view of the current snapshot.
// It never blocks; ok is false before the first valid frame.
func (c *Client) MotorData() (MotorDataRecord, bool) {
	snap := c.lp.Snapshot()
	if snap == nil {
		return MotorDataRecord{}, false
	}
	return MotorDataRecord{
		Seq:           snap.Seq,
		ReceivedAt:    snap.ReceivedAt,
		Speed:         snap.Speed,
		MaxSpeed:      snap.MaxSpeed,
		PulsePerMeter: snap.PulsePerMeter,
	}, true
}
