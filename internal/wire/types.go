// internal/wire/types.go
package wire

// Command is a downlink instruction in wire units (pulses).
// Nil pointer fields are omitted from the encoded frame.
type Command struct {
	TargetPos *int64 // pulses
	SetSpeed  *int64 // pulse/s
	Brake     bool
	Calibrate bool
}

// Empty reports whether the command encodes no fields.
func (c Command) Empty() bool {
	return c.TargetPos == nil && c.SetSpeed == nil && !c.Brake && !c.Calibrate
}

// Status is one decoded uplink frame, raw wire units.
// Unit conversion belongs to later stages.
type Status struct {
	RobotType uint64

	State      uint64
	Calibrated bool

	CurrentPos int64 // pulses
	MaxPos     int64 // pulses

	Speed         int64 // pulse/s
	MaxSpeed      int64 // pulse/s
	PulsePerMeter int64

	ParkingStop         uint64
	CustomButtonPressed bool

	Seq uint64
}

// EncodeError reports a command that cannot be represented on the wire.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string { return "wire: encode: " + e.Reason }

// DecodeError reports a malformed or schema-mismatched uplink frame.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "wire: decode: " + e.Reason }
