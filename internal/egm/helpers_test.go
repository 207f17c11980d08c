package egm

import (
	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

// feedbackMsg builds an encoded EgmRobot datagram for tests.
type feedbackMsg struct {
	seq       uint32
	tm        uint32
	joints    []float64
	external  []float64
	cartesian bool
	position  wire.Cartesian
	orient    wire.Quaternion
	ready     bool
}

func (m feedbackMsg) encode() []byte {
	fb := &wire.Feedback{}
	if m.joints != nil {
		fb.Joints = &wire.Joints{Values: m.joints}
	}
	if m.external != nil {
		fb.ExternalJoints = &wire.Joints{Values: m.external}
	}
	if m.cartesian {
		pos := m.position
		orient := m.orient
		if orient == (wire.Quaternion{}) {
			orient = wire.Quaternion{U0: 1}
		}
		fb.Cartesian = &wire.Pose{Position: &pos, Orientation: &orient}
	}

	motor := wire.MotorsOff
	mci := wire.MCIStopped
	rapid := wire.RapidStopped
	if m.ready {
		motor = wire.MotorsOn
		mci = wire.MCIRunning
		rapid = wire.RapidRunning
	}

	return wire.EncodeRobot(&wire.Robot{
		Header:         &wire.Header{SeqNo: m.seq, Timestamp: m.tm, MessageType: wire.MsgData},
		Feedback:       fb,
		MotorState:     &wire.MotorStateMsg{State: motor},
		MCIState:       &wire.MCIStateMsg{State: mci},
		RapidExecState: &wire.RapidExecStateMsg{State: rapid},
	})
}

func sixJoints(v float64) []float64 {
	return []float64{v, v, v, v, v, v}
}

func wireCartesian(x, y, z float64) wire.Cartesian {
	return wire.Cartesian{X: x, Y: y, Z: z}
}
