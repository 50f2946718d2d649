// internal/wire/constants.go
package wire

import "google.golang.org/protobuf/encoding/protowire"

// Wire schema layout constants, revision 1.
// These values define the protocol and MUST NOT be configurable.
// The codec is built against exactly this revision and fails loudly
// on frames that do not satisfy it.

// SchemaRevision is the uplink/downlink message layout this codec implements.
const SchemaRevision = 1

// ---- DOWNLINK (APIDown) ----

// FieldDownLiftCommand carries the LinearLiftCommand submessage.
const FieldDownLiftCommand protowire.Number = 1

// LinearLiftCommand fields.
const (
	FieldCmdTargetPos protowire.Number = 1 // sint64, pulses
	FieldCmdSetSpeed  protowire.Number = 2 // int64, pulse/s
	FieldCmdBrake     protowire.Number = 3 // bool
	FieldCmdCalibrate protowire.Number = 4 // bool
)

// ---- UPLINK (APIUp) ----

// FieldUpRobotType carries the device type discriminator.
const FieldUpRobotType protowire.Number = 1

// FieldUpLiftStatus carries the LinearLiftStatus submessage.
const FieldUpLiftStatus protowire.Number = 2

// LinearLiftStatus fields.
const (
	FieldStatusState         protowire.Number = 1  // enum varint
	FieldStatusCalibrated    protowire.Number = 2  // bool
	FieldStatusCurrentPos    protowire.Number = 3  // sint64, pulses
	FieldStatusMaxPos        protowire.Number = 4  // sint64, pulses
	FieldStatusSpeed         protowire.Number = 5  // int64, pulse/s
	FieldStatusMaxSpeed      protowire.Number = 6  // int64, pulse/s
	FieldStatusPulsePerMeter protowire.Number = 7  // int64
	FieldStatusParkingStop   protowire.Number = 8  // uint64 bitmask
	FieldStatusCustomButton  protowire.Number = 9  // bool
	FieldStatusSeq           protowire.Number = 10 // uint64, frame sequence
)

// ---- ROBOT TYPES ----

// RobotTypeUnknown is the device's boot/unidentified type.
const RobotTypeUnknown uint64 = 0

// RobotTypeLinearLift is the only device type this client supports.
const RobotTypeLinearLift uint64 = 3
