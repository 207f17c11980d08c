// Package wire implements the EGM wire schema: the proto2 messages the ABB
// robot controller exchanges with an EGM server over UDP.
//
// The schema is fixed by the controller (egm.proto, RobotWare). Inbound
// EgmRobot messages carry the controller's feedback and status; outbound
// EgmSensor messages carry the motion references. The messages are small and
// frozen, so they are encoded and decoded directly with
// google.golang.org/protobuf/encoding/protowire instead of generated code.
package wire

// MessageType mirrors EgmHeader.MessageType.
type MessageType uint32

const (
	MsgUndefined      MessageType = 0
	MsgCommand        MessageType = 1
	MsgData           MessageType = 2
	MsgCorrection     MessageType = 3
	MsgPathCorrection MessageType = 4
)

// MotorState mirrors EgmMotorState.MotorStateType.
type MotorState uint32

const (
	MotorsUndefined MotorState = 0
	MotorsOn        MotorState = 1
	MotorsOff       MotorState = 2
)

// MCIState mirrors EgmMCIState.MCIStateType (the EGM motion control
// interface state).
type MCIState uint32

const (
	MCIUndefined MCIState = 0
	MCIError     MCIState = 1
	MCIStopped   MCIState = 2
	MCIRunning   MCIState = 3
)

// RapidExecState mirrors EgmRapidCtrlExecState.RapidCtrlExecStateType.
type RapidExecState uint32

const (
	RapidUndefined RapidExecState = 0
	RapidStopped   RapidExecState = 1
	RapidRunning   RapidExecState = 2
)

// Header is the EgmHeader message. SeqNo restarts from zero on each EGM
// activation; Timestamp is controller time in milliseconds.
type Header struct {
	SeqNo       uint32
	Timestamp   uint32
	MessageType MessageType
}

// Joints is the EgmJoints message: joint values in degrees (positions) or
// degrees/s (speed references), one per axis.
type Joints struct {
	Values []float64
}

// Cartesian is the EgmCartesian message: a position in millimetres.
type Cartesian struct {
	X, Y, Z float64
}

// Quaternion is the EgmQuaternion message (u0 scalar, u1..u3 vector).
type Quaternion struct {
	U0, U1, U2, U3 float64
}

// Euler is the EgmEuler message: ZYX Euler angles in degrees.
type Euler struct {
	X, Y, Z float64
}

// Pose is the EgmPose message. The controller populates Position and
// Orientation; Euler is an alternative orientation representation accepted
// on outbound poses.
type Pose struct {
	Position    *Cartesian
	Orientation *Quaternion
	Euler       *Euler
}

// Clock is the EgmClock message (seconds and microseconds since epoch).
type Clock struct {
	Sec  uint64
	USec uint64
}

// Feedback is the EgmFeedBack message: measured robot state.
type Feedback struct {
	Joints         *Joints
	Cartesian      *Pose
	ExternalJoints *Joints
	Time           *Clock
}

// Planned is the EgmPlanned message: on inbound messages the controller's
// planned (reference) state, on outbound messages the position references.
type Planned struct {
	Joints         *Joints
	Cartesian      *Pose
	ExternalJoints *Joints
	Time           *Clock
}

// CartesianSpeed is the EgmCartesianSpeed message: linear speed in mm/s and
// angular speed in deg/s, laid out [vx vy vz wx wy wz].
type CartesianSpeed struct {
	Values []float64
}

// SpeedRef is the EgmSpeedRef message: velocity references.
type SpeedRef struct {
	Joints         *Joints
	Cartesians     *CartesianSpeed
	ExternalJoints *Joints
}

// MotorStateMsg is the EgmMotorState message.
type MotorStateMsg struct {
	State MotorState
}

// MCIStateMsg is the EgmMCIState message.
type MCIStateMsg struct {
	State MCIState
}

// RapidExecStateMsg is the EgmRapidCtrlExecState message.
type RapidExecStateMsg struct {
	State RapidExecState
}

// TestSignals is the EgmTestSignals message.
type TestSignals struct {
	Signals []float64
}

// Robot is the EgmRobot message: one inbound datagram from the controller.
type Robot struct {
	Header            *Header
	Feedback          *Feedback
	Planned           *Planned
	MotorState        *MotorStateMsg
	MCIState          *MCIStateMsg
	MCIConvergenceMet *bool
	TestSignals       *TestSignals
	RapidExecState    *RapidExecStateMsg
	UTCTime           *Clock
}

// Sensor is the EgmSensor message: one outbound reply to the controller.
type Sensor struct {
	Header   *Header
	Planned  *Planned
	SpeedRef *SpeedRef
}
