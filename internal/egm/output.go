package egm

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

// Demo trajectory tuning. The demo is a diagnostic sweep, not a system
// invariant: joints ramp by a fixed amplitude and back, the Cartesian pose
// lifts in Z while rotating about it.
const (
	demoSweepDuration     = 10.0 // s, one full 0 -> 1 sweep
	demoJointAmplitude    = 10.0 // deg
	demoPositionAmplitude = 50.0 // mm, applied to Z
	demoRotationAngle     = 45.0 // deg, about Z
)

// Output is the motion reference for one cycle: the reply header, joint
// and/or Cartesian references and optional speed references.
type Output struct {
	Header wire.Header

	Joints         []float64
	ExternalJoints []float64

	JointVelocities         []float64
	ExternalJointVelocities []float64

	HasCartesian bool
	Position     wire.Cartesian
	Orientation  wire.Quaternion

	// LinearVelocity is the Cartesian speed reference [mm/s].
	LinearVelocity [3]float64
	// AngularVelocity is the angular speed reference [deg/s].
	AngularVelocity [3]float64
}

func (o Output) clone() Output {
	out := o
	out.Joints = append([]float64(nil), o.Joints...)
	out.ExternalJoints = append([]float64(nil), o.ExternalJoints...)
	out.JointVelocities = append([]float64(nil), o.JointVelocities...)
	out.ExternalJointVelocities = append([]float64(nil), o.ExternalJointVelocities...)
	return out
}

// outputContainer builds the reply for each cycle and retains the previous
// reply for the hold fallback. Owned by the cycle execution context.
type outputContainer struct {
	current  Output
	previous Output

	// sequenceNumber is the per-session reply counter. The first reply of
	// a session carries 1.
	sequenceNumber uint32

	// reply is the encoded bytes most recently sent; resent verbatim when
	// a cycle cannot produce a new reply.
	reply []byte

	// demoT is the demo interpolation parameter in [0, 1]; demoDir flips
	// at the ends so the sweep ping-pongs.
	demoT   float64
	demoDir float64
}

// resetSession clears per-session state at a session boundary.
func (c *outputContainer) resetSession() {
	c.sequenceNumber = 0
	c.demoT = 0
	c.demoDir = 1
}

// prepareOutputs is the default reference behaviour when no strategy is
// injected: mirror the measured feedback while the controller is not ready
// or demo mode is off, otherwise advance the demo trajectory.
func (c *outputContainer) prepareOutputs(in *inputContainer, cfg Configuration) {
	if in.firstMessage || !in.statesOK() || !cfg.UseDemoOutputs {
		c.holdAtFeedback(in)
		return
	}
	c.generateDemoOutputs(in)
}

// holdAtFeedback sets the references to the measured state with zero
// velocities, the safe neutral reply.
func (c *outputContainer) holdAtFeedback(in *inputContainer) {
	cur := &in.current
	c.current = Output{
		Joints:                  append([]float64(nil), cur.Joints...),
		ExternalJoints:          append([]float64(nil), cur.ExternalJoints...),
		JointVelocities:         make([]float64, len(cur.Joints)),
		ExternalJointVelocities: make([]float64, len(cur.ExternalJoints)),
		HasCartesian:            cur.HasCartesian,
		Position:                cur.Position,
		Orientation:             cur.Orientation,
	}
}

// generateDemoOutputs advances the interpolation parameter by one sample
// and produces a smoothly varying reference anchored at the session's
// initial feedback. Orientation uses spherical interpolation so the output
// is a unit quaternion at every step.
func (c *outputContainer) generateDemoOutputs(in *inputContainer) {
	dt := in.estimatedSampleTime
	c.demoT += c.demoDir * dt / demoSweepDuration
	if c.demoT >= 1 {
		c.demoT, c.demoDir = 1, -1
	} else if c.demoT <= 0 {
		c.demoT, c.demoDir = 0, 1
	}

	// Smooth the parameter so velocity is zero at both ends of the sweep.
	s := 0.5 * (1 - math.Cos(math.Pi*c.demoT))

	init := &in.initial
	out := Output{
		Joints:                  make([]float64, len(init.Joints)),
		ExternalJoints:          make([]float64, len(init.ExternalJoints)),
		JointVelocities:         make([]float64, len(init.Joints)),
		ExternalJointVelocities: make([]float64, len(init.ExternalJoints)),
	}
	for i, p := range init.Joints {
		out.Joints[i] = p + demoJointAmplitude*s
	}
	copy(out.ExternalJoints, init.ExternalJoints)

	if init.HasCartesian {
		out.HasCartesian = true
		out.Position = init.Position
		out.Position.Z += demoPositionAmplitude * s
		out.Orientation = slerp(init.Orientation, demoTargetOrientation(init.Orientation), s)
	}

	// Speed references by finite difference against the previous output,
	// consistent with how input velocities are estimated.
	if dt > 0 && len(c.previous.Joints) == len(out.Joints) {
		out.JointVelocities = estimateVelocities(out.JointVelocities, c.previous.Joints, out.Joints, dt)
		if out.HasCartesian && c.previous.HasCartesian {
			out.LinearVelocity = estimateLinearVelocity(c.previous.Position, out.Position, dt)
			out.AngularVelocity = estimateAngularVelocity(c.previous.Orientation, out.Orientation, dt)
		}
	}

	c.current = out
}

// demoTargetOrientation is the initial orientation rotated by the demo
// angle about the base Z axis.
func demoTargetOrientation(initial wire.Quaternion) wire.Quaternion {
	half := demoRotationAngle * math.Pi / 180 / 2
	rz := quat.Number{Real: math.Cos(half), Kmag: math.Sin(half)}
	q := quat.Mul(rz, toQuat(initial))
	return fromQuat(q)
}

func toQuat(q wire.Quaternion) quat.Number {
	return quat.Number{Real: q.U0, Imag: q.U1, Jmag: q.U2, Kmag: q.U3}
}

func fromQuat(q quat.Number) wire.Quaternion {
	return wire.Quaternion{U0: q.Real, U1: q.Imag, U2: q.Jmag, U3: q.Kmag}
}

// slerp interpolates between two unit quaternions along the great circle
// and normalizes the result, so every step is unit-norm within floating
// tolerance.
func slerp(a, b wire.Quaternion, t float64) wire.Quaternion {
	qa, qb := toQuat(a), toQuat(b)

	// Take the short way around.
	dot := qa.Real*qb.Real + qa.Imag*qb.Imag + qa.Jmag*qb.Jmag + qa.Kmag*qb.Kmag
	if dot < 0 {
		qb = quat.Scale(-1, qb)
	}

	q := quat.Mul(qa, quat.PowReal(quat.Mul(quat.Inv(qa), qb), t))
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	return fromQuat(q)
}

// constructReply builds and encodes the reply for the current cycle. The
// sequence number is incremented exactly once per constructed reply. It
// fails, leaving the previous reply in place, when the configured mode
// needs input the controller did not send.
func (c *outputContainer) constructReply(cfg Configuration, in *inputContainer) bool {
	if cfg.UseCartesianOutputs && !in.current.HasCartesian {
		return false
	}

	seq := c.sequenceNumber + 1
	header := wire.Header{
		SeqNo:       seq,
		Timestamp:   in.current.Header.Timestamp,
		MessageType: wire.MsgCorrection,
	}

	sensor := &wire.Sensor{Header: &header, Planned: &wire.Planned{}}
	if cfg.UseCartesianOutputs {
		c.constructCartesianBody(sensor, cfg)
	} else {
		c.constructJointBody(sensor, cfg)
	}

	c.current.Header = header
	c.sequenceNumber = seq
	c.reply = wire.EncodeSensor(sensor)
	return true
}

func (c *outputContainer) constructJointBody(sensor *wire.Sensor, cfg Configuration) {
	sensor.Planned.Joints = &wire.Joints{Values: c.current.Joints}
	if len(c.current.ExternalJoints) > 0 {
		sensor.Planned.ExternalJoints = &wire.Joints{Values: c.current.ExternalJoints}
	}
	if cfg.UseVelocityOutputs {
		sensor.SpeedRef = &wire.SpeedRef{
			Joints: &wire.Joints{Values: c.current.JointVelocities},
		}
		if len(c.current.ExternalJointVelocities) > 0 {
			sensor.SpeedRef.ExternalJoints = &wire.Joints{Values: c.current.ExternalJointVelocities}
		}
	}
}

func (c *outputContainer) constructCartesianBody(sensor *wire.Sensor, cfg Configuration) {
	pos := c.current.Position
	orient := c.current.Orientation
	sensor.Planned.Cartesian = &wire.Pose{
		Position:    &pos,
		Orientation: &orient,
	}
	if cfg.UseVelocityOutputs {
		v := c.current.LinearVelocity
		w := c.current.AngularVelocity
		sensor.SpeedRef = &wire.SpeedRef{
			Cartesians: &wire.CartesianSpeed{
				Values: []float64{v[0], v[1], v[2], w[0], w[1], w[2]},
			},
		}
	}
}

// updatePrevious rotates current into previous, after encoding.
func (c *outputContainer) updatePrevious() {
	c.previous = c.current.clone()
}
