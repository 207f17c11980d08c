package egm

import (
	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

// Input is one decoded controller message: measured joint state, optional
// Cartesian pose, controller status and the velocities derived from the
// previous message. Velocities are zero until two messages of the same
// session have been received.
type Input struct {
	Header wire.Header
	Status Status

	// Joints are the measured robot joint positions [deg].
	Joints []float64
	// ExternalJoints are the measured external axis positions [deg or mm].
	ExternalJoints []float64

	// HasCartesian reports whether the controller sent Cartesian feedback.
	HasCartesian bool
	Position     wire.Cartesian
	Orientation  wire.Quaternion

	JointVelocities         []float64
	ExternalJointVelocities []float64
	// LinearVelocity is the Cartesian linear velocity [mm/s].
	LinearVelocity [3]float64
	// AngularVelocity is the Euler angle rates [deg/s].
	AngularVelocity [3]float64
}

// clone returns a deep copy so snapshot rotation never aliases slices.
func (in Input) clone() Input {
	out := in
	out.Joints = append([]float64(nil), in.Joints...)
	out.ExternalJoints = append([]float64(nil), in.ExternalJoints...)
	out.JointVelocities = append([]float64(nil), in.JointVelocities...)
	out.ExternalJointVelocities = append([]float64(nil), in.ExternalJointVelocities...)
	return out
}

// inputContainer holds the decoded messages of the current session: the
// fixed initial message, the current message and the previous one. It is
// owned by the cycle execution context; nothing here is safe for concurrent
// use.
type inputContainer struct {
	// robot is the most recently parsed raw message, valid between a
	// successful parse and the next datagram.
	robot *wire.Robot

	initial  Input
	current  Input
	previous Input

	// hasAccepted is true once any message has been accepted since the
	// interface started; the session-boundary predicate needs it.
	hasAccepted bool
	// firstMessage is true while the current message is the first of its
	// session.
	firstMessage bool
	// estimatedSampleTime is the elapsed time [s] between previous and
	// current, or the nominal fallback.
	estimatedSampleTime float64
}

// parseFrom decodes a raw datagram against the wire schema. On failure
// nothing is mutated and the previous parse result is discarded from use by
// returning false.
func (c *inputContainer) parseFrom(data []byte) bool {
	r, err := wire.DecodeRobot(data)
	if err != nil {
		return false
	}
	c.robot = r
	return true
}

// sessionBoundary applies the new-session predicate to the parsed message.
// Must be called after a successful parseFrom.
func (c *inputContainer) sessionBoundary() bool {
	if c.robot == nil || c.robot.Header == nil {
		return false
	}
	return isNewSession(c.previous.Header, *c.robot.Header, c.hasAccepted)
}

// extract maps the parsed message into the current Input snapshot,
// validating it against the robot geometry and estimating velocities.
// On failure the previous/current snapshots are left untouched.
func (c *inputContainer) extract(cfg Configuration, boundary bool) bool {
	r := c.robot
	if r == nil || r.Header == nil || r.Feedback == nil {
		return false
	}
	if r.Feedback.Joints == nil && r.Feedback.Cartesian == nil {
		return false
	}

	in := Input{Header: *r.Header}

	if r.Feedback.Joints != nil {
		in.Joints = append([]float64(nil), r.Feedback.Joints.Values...)
	}
	if r.Feedback.ExternalJoints != nil {
		in.ExternalJoints = append([]float64(nil), r.Feedback.ExternalJoints.Values...)
	}
	if p := r.Feedback.Cartesian; p != nil && p.Position != nil && p.Orientation != nil {
		in.HasCartesian = true
		in.Position = *p.Position
		in.Orientation = *p.Orientation
	}

	if !validAxes(cfg.Axes, in) {
		return false
	}

	if r.MotorState != nil {
		in.Status.MotorState = r.MotorState.State
	}
	if r.MCIState != nil {
		in.Status.MCIState = r.MCIState.State
	}
	if r.RapidExecState != nil {
		in.Status.RapidExecState = r.RapidExecState.State
	}
	if r.MCIConvergenceMet != nil {
		in.Status.ConvergenceMet = *r.MCIConvergenceMet
	}

	nominal := cfg.nominalSeconds()
	first := boundary || !c.hasAccepted

	if first {
		// No valid history: zero velocities, nominal sample time.
		c.estimatedSampleTime = nominal
		in.JointVelocities = make([]float64, len(in.Joints))
		in.ExternalJointVelocities = make([]float64, len(in.ExternalJoints))
		c.initial = in.clone()
		c.previous = in.clone()
	} else {
		c.estimatedSampleTime = estimateSampleTime(
			c.previous.Header.Timestamp, in.Header.Timestamp, nominal)
		dt := c.estimatedSampleTime
		in.JointVelocities = estimateVelocities(nil, c.previous.Joints, in.Joints, dt)
		in.ExternalJointVelocities = estimateVelocities(
			nil, c.previous.ExternalJoints, in.ExternalJoints, dt)
		if in.HasCartesian && c.previous.HasCartesian {
			in.LinearVelocity = estimateLinearVelocity(c.previous.Position, in.Position, dt)
			in.AngularVelocity = estimateAngularVelocity(c.previous.Orientation, in.Orientation, dt)
		}
	}

	c.current = in
	c.firstMessage = first
	c.hasAccepted = true
	return true
}

// validAxes checks the feedback against the configured robot geometry.
// Seven axis robots report six robot joints plus at least one external
// axis; AxesNone skips the check.
func validAxes(axes RobotAxes, in Input) bool {
	switch axes {
	case AxesNone:
		return true
	case AxesSix:
		return len(in.Joints) == 6
	case AxesSeven:
		return len(in.Joints) == 6 && len(in.ExternalJoints) >= 1
	default:
		return false
	}
}

// statesOK reports whether the controller was ready in the current message.
func (c *inputContainer) statesOK() bool {
	return c.current.Status.StatesOK()
}

// updatePrevious rotates current into previous. Runs exactly once per
// accepted cycle, after every consumer of current-vs-previous has read
// them; rotating earlier would put velocity estimation one cycle behind.
func (c *inputContainer) updatePrevious() {
	c.previous = c.current.clone()
}
