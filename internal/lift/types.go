// internal/lift/types.go
package lift

import (
	"fmt"
	"time"

	"github.com/hexfellow/liftlink/internal/wire"
)

// State is the lift's reported control state.
type State int

const (
	StateBrake State = iota
	StateCalibrating
	StateAlgorithmControl
	StateOvertakeControl
	StateEmergencyStop
)

func (s State) String() string {
	switch s {
	case StateBrake:
		return "brake"
	case StateCalibrating:
		return "calibrating"
	case StateAlgorithmControl:
		return "algorithm-control"
	case StateOvertakeControl:
		return "overtake-control"
	case StateEmergencyStop:
		return "emergency-stop"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParkingStop is the device's emergency-stop detail bitmask.
// Zero means no parking stop is engaged; non-zero bits are device-defined.
type ParkingStop uint64

// Engaged reports whether any parking-stop bit is set.
func (p ParkingStop) Engaged() bool { return p != 0 }

// Telemetry is one decoded uplink frame in engineering units.
// It is a value: the loop replaces the current snapshot wholesale,
// never mutates it in place.
type Telemetry struct {
	Seq        uint64
	ReceivedAt time.Time

	State      State
	Calibrated bool

	CurrentPos float64 // m
	MaxPos     float64 // m

	Speed         int64 // pulse/s
	MaxSpeed      int64 // pulse/s
	PulsePerMeter int64

	ParkingStop         ParkingStop
	CustomButtonPressed bool
}

// FromWire converts a decoded wire status into engineering units.
// receivedAt is stamped by the receiver, not carried on the wire.
func FromWire(ws wire.Status, receivedAt time.Time) (Telemetry, error) {
	if ws.PulsePerMeter <= 0 {
		return Telemetry{}, fmt.Errorf("lift: pulse_per_meter %d out of range", ws.PulsePerMeter)
	}
	if ws.State > uint64(StateEmergencyStop) {
		return Telemetry{}, fmt.Errorf("lift: unknown lift state %d", ws.State)
	}

	return Telemetry{
		Seq:                 ws.Seq,
		ReceivedAt:          receivedAt,
		State:               State(ws.State),
		Calibrated:          ws.Calibrated,
		CurrentPos:          PulsesToMeters(ws.CurrentPos, ws.PulsePerMeter),
		MaxPos:              PulsesToMeters(ws.MaxPos, ws.PulsePerMeter),
		Speed:               ws.Speed,
		MaxSpeed:            ws.MaxSpeed,
		PulsePerMeter:       ws.PulsePerMeter,
		ParkingStop:         ParkingStop(ws.ParkingStop),
		CustomButtonPressed: ws.CustomButtonPressed,
	}, nil
}

// Command is the pending downlink instruction slot.
// Nil pointer fields mean "not requested"; the whole value is swapped,
// newest write wins.
type Command struct {
	TargetPos *float64 // m
	MaxSpeed  *int64   // pulse/s
	Brake     bool
	Calibrate bool
}

// Empty reports whether the command requests nothing.
func (c Command) Empty() bool {
	return c.TargetPos == nil && c.MaxSpeed == nil && !c.Brake && !c.Calibrate
}
