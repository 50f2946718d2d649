// internal/wire/decode.go
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeStatus parses an APIUp frame into a raw Status.
// Unknown fields are skipped for forward compatibility; a missing
// robot type or lift-status submessage is a hard failure, as is any
// robot type other than the linear lift this schema revision covers.
func DecodeStatus(b []byte) (Status, error) {
	var st Status
	var haveType, haveStatus bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Status{}, &DecodeError{Reason: "malformed tag"}
		}
		b = b[n:]

		switch {
		case num == FieldUpRobotType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Status{}, &DecodeError{Reason: "malformed robot_type"}
			}
			st.RobotType = v
			haveType = true
			b = b[n:]

		case num == FieldUpLiftStatus && typ == protowire.BytesType:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Status{}, &DecodeError{Reason: "malformed lift_status"}
			}
			if err := decodeLiftStatus(sub, &st); err != nil {
				return Status{}, err
			}
			haveStatus = true
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Status{}, &DecodeError{Reason: fmt.Sprintf("malformed field %d", num)}
			}
			b = b[n:]
		}
	}

	if !haveType {
		return Status{}, &DecodeError{Reason: "missing robot_type"}
	}
	if st.RobotType != RobotTypeLinearLift {
		return Status{}, &DecodeError{Reason: fmt.Sprintf("unsupported robot_type %d", st.RobotType)}
	}
	if !haveStatus {
		return Status{}, &DecodeError{Reason: "missing lift_status"}
	}

	return st, nil
}

func decodeLiftStatus(b []byte, st *Status) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{Reason: "lift_status: malformed tag"}
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return &DecodeError{Reason: fmt.Sprintf("lift_status: malformed field %d", num)}
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return &DecodeError{Reason: fmt.Sprintf("lift_status: malformed varint field %d", num)}
		}
		b = b[n:]

		switch num {
		case FieldStatusState:
			st.State = v
		case FieldStatusCalibrated:
			st.Calibrated = v != 0
		case FieldStatusCurrentPos:
			st.CurrentPos = protowire.DecodeZigZag(v)
		case FieldStatusMaxPos:
			st.MaxPos = protowire.DecodeZigZag(v)
		case FieldStatusSpeed:
			st.Speed = int64(v)
		case FieldStatusMaxSpeed:
			st.MaxSpeed = int64(v)
		case FieldStatusPulsePerMeter:
			st.PulsePerMeter = int64(v)
		case FieldStatusParkingStop:
			st.ParkingStop = v
		case FieldStatusCustomButton:
			st.CustomButtonPressed = v != 0
		case FieldStatusSeq:
			st.Seq = v
		default:
			// Unknown varint field: skipped.
		}
	}
	return nil
}
