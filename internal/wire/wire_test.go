// internal/wire/wire_test.go
package wire

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// decodeCommand parses an APIDown frame back into a Command for tests.
func decodeCommand(t *testing.T, b []byte) Command {
	t.Helper()

	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 || num != FieldDownLiftCommand || typ != protowire.BytesType {
		t.Fatalf("unexpected envelope: num=%d typ=%d n=%d", num, typ, n)
	}
	pdu, n2 := protowire.ConsumeBytes(b[n:])
	if n2 < 0 {
		t.Fatalf("malformed command submessage")
	}
	if n+n2 != len(b) {
		t.Fatalf("trailing bytes after command submessage")
	}

	var c Command
	for len(pdu) > 0 {
		num, typ, n := protowire.ConsumeTag(pdu)
		if n < 0 || typ != protowire.VarintType {
			t.Fatalf("malformed command field")
		}
		pdu = pdu[n:]
		v, n := protowire.ConsumeVarint(pdu)
		if n < 0 {
			t.Fatalf("malformed command varint")
		}
		pdu = pdu[n:]

		switch num {
		case FieldCmdTargetPos:
			p := protowire.DecodeZigZag(v)
			c.TargetPos = &p
		case FieldCmdSetSpeed:
			s := int64(v)
			c.SetSpeed = &s
		case FieldCmdBrake:
			c.Brake = v != 0
		case FieldCmdCalibrate:
			c.Calibrate = v != 0
		default:
			t.Fatalf("unexpected command field %d", num)
		}
	}
	return c
}

func i64(v int64) *int64 { return &v }

// ---- tests ----

func TestEncodeCommand_Empty(t *testing.T) {
	if _, err := EncodeCommand(Command{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestEncodeCommand_NegativeSpeedRejected(t *testing.T) {
	if _, err := EncodeCommand(Command{SetSpeed: i64(-1)}); err == nil {
		t.Fatalf("expected error for negative speed")
	}
}

func TestEncodeCommand_RoundTrip(t *testing.T) {
	in := Command{
		TargetPos: i64(-300),
		SetSpeed:  i64(75000),
		Brake:     true,
		Calibrate: true,
	}

	b, err := EncodeCommand(in)
	if err != nil {
		t.Fatalf("EncodeCommand err=%v", err)
	}

	out := decodeCommand(t, b)
	if out.TargetPos == nil || *out.TargetPos != -300 {
		t.Fatalf("target_pos mismatch: %+v", out)
	}
	if out.SetSpeed == nil || *out.SetSpeed != 75000 {
		t.Fatalf("set_speed mismatch: %+v", out)
	}
	if !out.Brake || !out.Calibrate {
		t.Fatalf("flag mismatch: %+v", out)
	}
}

func TestEncodeCommand_Deterministic(t *testing.T) {
	in := Command{TargetPos: i64(42)}

	a, err := EncodeCommand(in)
	if err != nil {
		t.Fatalf("EncodeCommand err=%v", err)
	}
	b, err := EncodeCommand(in)
	if err != nil {
		t.Fatalf("EncodeCommand err=%v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding not deterministic: %x vs %x", a, b)
	}
}

func TestDecodeStatus_RoundTrip(t *testing.T) {
	in := Status{
		RobotType:           RobotTypeLinearLift,
		State:               2,
		Calibrated:          true,
		CurrentPos:          -1500,
		MaxPos:              -300000,
		Speed:               20000,
		MaxSpeed:            75000,
		PulsePerMeter:       1000000,
		ParkingStop:         0,
		CustomButtonPressed: true,
		Seq:                 17,
	}

	out, err := DecodeStatus(EncodeStatus(in))
	if err != nil {
		t.Fatalf("DecodeStatus err=%v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestDecodeStatus_UnknownFieldsSkipped(t *testing.T) {
	in := Status{
		RobotType:     RobotTypeLinearLift,
		PulsePerMeter: 1000,
		Seq:           1,
	}
	b := EncodeStatus(in)

	// Future schema revision: extra varint and length-delimited fields.
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 12345)
	b = protowire.AppendTag(b, 100, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	out, err := DecodeStatus(b)
	if err != nil {
		t.Fatalf("DecodeStatus err=%v", err)
	}
	if out.Seq != 1 || out.PulsePerMeter != 1000 {
		t.Fatalf("known fields lost: %+v", out)
	}
}

func TestDecodeStatus_MissingRobotType(t *testing.T) {
	var msg []byte
	msg = protowire.AppendTag(msg, FieldUpLiftStatus, protowire.BytesType)
	msg = protowire.AppendBytes(msg, nil)

	if _, err := DecodeStatus(msg); err == nil {
		t.Fatalf("expected error for missing robot_type")
	}
}

func TestDecodeStatus_UnsupportedRobotType(t *testing.T) {
	in := Status{RobotType: RobotTypeUnknown, PulsePerMeter: 1000}
	if _, err := DecodeStatus(EncodeStatus(in)); err == nil {
		t.Fatalf("expected error for unsupported robot_type")
	}
}

func TestDecodeStatus_MissingLiftStatus(t *testing.T) {
	var msg []byte
	msg = protowire.AppendTag(msg, FieldUpRobotType, protowire.VarintType)
	msg = protowire.AppendVarint(msg, RobotTypeLinearLift)

	if _, err := DecodeStatus(msg); err == nil {
		t.Fatalf("expected error for missing lift_status")
	}
}

func TestDecodeStatus_Malformed(t *testing.T) {
	cases := [][]byte{
		{0xff},
		{0x0a, 0x7f, 0x00}, // length past end
		{0x08},             // tag without value
	}
	for i, b := range cases {
		if _, err := DecodeStatus(b); err == nil {
			t.Fatalf("case %d: expected error for malformed frame %x", i, b)
		}
	}
}
