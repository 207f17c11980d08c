package egm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

func quatNorm(q wire.Quaternion) float64 {
	return math.Sqrt(q.U0*q.U0 + q.U1*q.U1 + q.U2*q.U2 + q.U3*q.U3)
}

func TestSlerp_UnitNormAtEveryStep(t *testing.T) {
	t.Parallel()

	a := wire.Quaternion{U0: 1}
	b := wire.Quaternion{U0: math.Cos(math.Pi / 4), U3: math.Sin(math.Pi / 4)} // 90 deg about Z

	for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
		q := slerp(a, b, tt)
		assert.InDelta(t, 1.0, quatNorm(q), 1e-9, "t=%v", tt)
	}
}

func TestSlerp_Endpoints(t *testing.T) {
	t.Parallel()

	a := wire.Quaternion{U0: math.Cos(0.3), U1: math.Sin(0.3)}
	b := wire.Quaternion{U0: math.Cos(1.1), U2: math.Sin(1.1)}

	start := slerp(a, b, 0)
	assert.InDelta(t, a.U0, start.U0, 1e-9)
	assert.InDelta(t, a.U1, start.U1, 1e-9)

	end := slerp(a, b, 1)
	assert.InDelta(t, b.U0, end.U0, 1e-9)
	assert.InDelta(t, b.U2, end.U2, 1e-9)
}

func TestSlerp_TakesShortPath(t *testing.T) {
	t.Parallel()

	a := wire.Quaternion{U0: 1}
	// -q represents the same rotation as q; slerp must not take the long
	// way around to reach it.
	b := wire.Quaternion{U0: -math.Cos(0.1), U3: -math.Sin(0.1)}

	mid := slerp(a, b, 0.5)
	assert.InDelta(t, 1.0, quatNorm(mid), 1e-9)
	// Midpoint of a 0.2 rad rotation, not of a 2*pi-0.2 one.
	assert.Greater(t, math.Abs(mid.U0), math.Cos(0.2))
}

// readyInputs builds an input container two messages into a session.
func readyInputs(t *testing.T, cartesian bool) *inputContainer {
	t.Helper()
	cfg := DefaultConfiguration()
	var c inputContainer

	first := feedbackMsg{seq: 0, tm: 1000, joints: sixJoints(10), ready: true, cartesian: cartesian,
		position: wireCartesian(400, 0, 600)}
	require.True(t, c.parseFrom(first.encode()))
	require.True(t, c.extract(cfg, true))
	c.updatePrevious()

	second := first
	second.seq, second.tm = 1, 1004
	require.True(t, c.parseFrom(second.encode()))
	require.True(t, c.extract(cfg, false))
	return &c
}

func TestPrepareOutputs_HoldsFeedbackWhenDemoOff(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, false)
	var out outputContainer
	out.demoDir = 1

	out.prepareOutputs(in, DefaultConfiguration())

	assert.Equal(t, sixJoints(10), out.current.Joints)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, out.current.JointVelocities)
}

func TestGenerateDemoOutputs_AdvancesAndStaysUnit(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, true)
	cfg := DefaultConfiguration()
	cfg.UseDemoOutputs = true

	var out outputContainer
	out.demoDir = 1

	var lastT float64
	for i := 0; i < 100; i++ {
		out.prepareOutputs(in, cfg)
		require.GreaterOrEqual(t, out.demoT, lastT)
		lastT = out.demoT
		assert.InDelta(t, 1.0, quatNorm(out.current.Orientation), 1e-9)
		out.updatePrevious()
	}

	// Joints ramp away from the initial position, bounded by the
	// amplitude.
	assert.Greater(t, out.current.Joints[0], 10.0)
	assert.LessOrEqual(t, out.current.Joints[0], 10.0+demoJointAmplitude)
	assert.Greater(t, out.current.Position.Z, 600.0)
}

func TestGenerateDemoOutputs_PingPongsAtEnds(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, false)
	cfg := DefaultConfiguration()
	cfg.UseDemoOutputs = true

	var out outputContainer
	out.demoDir = 1
	out.demoT = 0.9999
	in.estimatedSampleTime = demoSweepDuration // forces overshoot in one step

	out.prepareOutputs(in, cfg)
	assert.Equal(t, 1.0, out.demoT)
	assert.Equal(t, -1.0, out.demoDir)

	out.prepareOutputs(in, cfg)
	assert.Equal(t, 0.0, out.demoT)
	assert.Equal(t, 1.0, out.demoDir)
}

func TestPrepareOutputs_HoldsWhenNotReady(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfiguration()
	cfg.UseDemoOutputs = true

	var c inputContainer
	require.True(t, c.parseFrom(feedbackMsg{seq: 0, tm: 1000, joints: sixJoints(3)}.encode()))
	require.True(t, c.extract(cfg, true))
	c.updatePrevious()
	require.True(t, c.parseFrom(feedbackMsg{seq: 1, tm: 1004, joints: sixJoints(3)}.encode()))
	require.True(t, c.extract(cfg, false))

	var out outputContainer
	out.demoDir = 1
	out.prepareOutputs(&c, cfg)

	// Controller not ready: no demo motion, mirror the feedback.
	assert.Equal(t, 0.0, out.demoT)
	assert.Equal(t, sixJoints(3), out.current.Joints)
}

func TestConstructReply_JointBody(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, false)
	cfg := DefaultConfiguration()
	cfg.UseVelocityOutputs = true

	var out outputContainer
	out.demoDir = 1
	out.prepareOutputs(in, cfg)
	require.True(t, out.constructReply(cfg, in))

	sensor, err := wire.DecodeSensor(out.reply)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sensor.Header.SeqNo)
	assert.Equal(t, wire.MsgCorrection, sensor.Header.MessageType)
	require.NotNil(t, sensor.Planned.Joints)
	assert.Equal(t, sixJoints(10), sensor.Planned.Joints.Values)
	require.NotNil(t, sensor.SpeedRef)
	assert.Len(t, sensor.SpeedRef.Joints.Values, 6)

	// The next cycle's reply carries the next sequence number.
	require.True(t, out.constructReply(cfg, in))
	sensor, err = wire.DecodeSensor(out.reply)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), sensor.Header.SeqNo)
}

func TestConstructReply_CartesianBody(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, true)
	cfg := DefaultConfiguration()
	cfg.UseCartesianOutputs = true

	var out outputContainer
	out.demoDir = 1
	out.prepareOutputs(in, cfg)
	require.True(t, out.constructReply(cfg, in))

	sensor, err := wire.DecodeSensor(out.reply)
	require.NoError(t, err)
	require.NotNil(t, sensor.Planned.Cartesian)
	assert.InDelta(t, 400.0, sensor.Planned.Cartesian.Position.X, 1e-9)
	assert.InDelta(t, 1.0, quatNorm(*sensor.Planned.Cartesian.Orientation), 1e-9)
}

func TestConstructReply_CartesianModeWithoutCartesianInput(t *testing.T) {
	t.Parallel()

	in := readyInputs(t, false)
	cfg := DefaultConfiguration()
	cfg.UseCartesianOutputs = true

	var out outputContainer
	out.demoDir = 1
	out.prepareOutputs(in, cfg)

	prevReply := append([]byte(nil), out.reply...)
	prevSeq := out.sequenceNumber

	assert.False(t, out.constructReply(cfg, in))
	assert.Equal(t, prevReply, out.reply)
	assert.Equal(t, prevSeq, out.sequenceNumber)
}

func TestResetSession(t *testing.T) {
	t.Parallel()

	out := outputContainer{sequenceNumber: 42, demoT: 0.7, demoDir: -1}
	out.resetSession()
	assert.Equal(t, uint32(0), out.sequenceNumber)
	assert.Equal(t, 0.0, out.demoT)
	assert.Equal(t, 1.0, out.demoDir)
}
