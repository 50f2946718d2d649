// internal/wire/encode.go
package wire

import "google.golang.org/protobuf/encoding/protowire"

// EncodeCommand serializes a downlink command into an APIDown frame.
// Pure transform. No IO. Deterministic for a given command.
func EncodeCommand(c Command) ([]byte, error) {
	if c.Empty() {
		return nil, &EncodeError{Reason: "empty command"}
	}

	var pdu []byte

	if c.TargetPos != nil {
		pdu = protowire.AppendTag(pdu, FieldCmdTargetPos, protowire.VarintType)
		pdu = protowire.AppendVarint(pdu, protowire.EncodeZigZag(*c.TargetPos))
	}
	if c.SetSpeed != nil {
		if *c.SetSpeed < 0 {
			return nil, &EncodeError{Reason: "set_speed must be >= 0"}
		}
		pdu = protowire.AppendTag(pdu, FieldCmdSetSpeed, protowire.VarintType)
		pdu = protowire.AppendVarint(pdu, uint64(*c.SetSpeed))
	}
	if c.Brake {
		pdu = protowire.AppendTag(pdu, FieldCmdBrake, protowire.VarintType)
		pdu = protowire.AppendVarint(pdu, 1)
	}
	if c.Calibrate {
		pdu = protowire.AppendTag(pdu, FieldCmdCalibrate, protowire.VarintType)
		pdu = protowire.AppendVarint(pdu, 1)
	}

	var msg []byte
	msg = protowire.AppendTag(msg, FieldDownLiftCommand, protowire.BytesType)
	msg = protowire.AppendBytes(msg, pdu)
	return msg, nil
}

// EncodeStatus serializes a Status into an APIUp frame. This is the
// device side of the contract; the client uses it only to simulate a
// lift in tests and tooling. DecodeStatus(EncodeStatus(s)) == s for
// any valid status.
func EncodeStatus(st Status) []byte {
	var pdu []byte
	appendVarint := func(num protowire.Number, v uint64) {
		pdu = protowire.AppendTag(pdu, num, protowire.VarintType)
		pdu = protowire.AppendVarint(pdu, v)
	}

	appendVarint(FieldStatusState, st.State)
	if st.Calibrated {
		appendVarint(FieldStatusCalibrated, 1)
	}
	appendVarint(FieldStatusCurrentPos, protowire.EncodeZigZag(st.CurrentPos))
	appendVarint(FieldStatusMaxPos, protowire.EncodeZigZag(st.MaxPos))
	appendVarint(FieldStatusSpeed, uint64(st.Speed))
	appendVarint(FieldStatusMaxSpeed, uint64(st.MaxSpeed))
	appendVarint(FieldStatusPulsePerMeter, uint64(st.PulsePerMeter))
	appendVarint(FieldStatusParkingStop, st.ParkingStop)
	if st.CustomButtonPressed {
		appendVarint(FieldStatusCustomButton, 1)
	}
	appendVarint(FieldStatusSeq, st.Seq)

	var msg []byte
	msg = protowire.AppendTag(msg, FieldUpRobotType, protowire.VarintType)
	msg = protowire.AppendVarint(msg, st.RobotType)
	msg = protowire.AppendTag(msg, FieldUpLiftStatus, protowire.BytesType)
	msg = protowire.AppendBytes(msg, pdu)
	return msg
}
