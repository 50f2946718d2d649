// internal/loop/types.go
package loop

import (
	"context"
	"fmt"
	"time"
)

// Transport abstracts the session operations the loop needs.
// The loop depends on framing only: bytes out, bytes in.
type Transport interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Send(b []byte) error
	Receive() ([]byte, error)
	Close() error
}

// State is the loop's lifecycle state.
type State int32

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// MaxControlHz bounds the control frequency.
const MaxControlHz = 1000

// Config is the minimal runtime config the loop needs.
type Config struct {
	// ControlHz is the cycle frequency, 1..MaxControlHz.
	ControlHz int

	// PulsePerMeter converts command positions until the device
	// reports its own scale. Defaults to 1.
	PulsePerMeter int64

	// StaleAfter is the telemetry age that triggers a staleness
	// warning. Defaults to 1s.
	StaleAfter time.Duration

	// WarnEvery rate-limits repeated health warnings. Defaults to 1s.
	WarnEvery time.Duration

	// MaxFramesPerCycle bounds the inbound drain per cycle.
	// Defaults to 32.
	MaxFramesPerCycle int
}
