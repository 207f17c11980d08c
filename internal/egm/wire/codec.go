package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// EgmRobot field numbers. Fixed by the controller's egm.proto; do not
// renumber.
const (
	robotFieldHeader         = 1
	robotFieldFeedback       = 2
	robotFieldPlanned        = 3
	robotFieldMotorState     = 4
	robotFieldMCIState       = 5
	robotFieldConvergenceMet = 6
	robotFieldTestSignals    = 7
	robotFieldRapidExecState = 8
	robotFieldUTCTime        = 10
)

// EgmSensor field numbers.
const (
	sensorFieldHeader   = 1
	sensorFieldPlanned  = 2
	sensorFieldSpeedRef = 3
)

// DecodeRobot decodes one EgmRobot datagram. Unknown fields are skipped so
// newer RobotWare releases stay decodable. On any malformed or truncated
// input it returns an error and no message; it never returns a partially
// decoded Robot.
func DecodeRobot(data []byte) (*Robot, error) {
	var r Robot
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("egm robot: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			if num == robotFieldConvergenceMet && typ == protowire.VarintType {
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return nil, fmt.Errorf("egm robot: field %d: %w", num, protowire.ParseError(n))
				}
				b = b[n:]
				met := v != 0
				r.MCIConvergenceMet = &met
				continue
			}
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("egm robot: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("egm robot: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch num {
		case robotFieldHeader:
			r.Header, err = decodeHeader(v)
		case robotFieldFeedback:
			var fb *Planned
			fb, err = decodePlanned(v)
			if fb != nil {
				r.Feedback = (*Feedback)(fb)
			}
		case robotFieldPlanned:
			r.Planned, err = decodePlanned(v)
		case robotFieldMotorState:
			var s uint64
			s, err = decodeStateMsg(v)
			r.MotorState = &MotorStateMsg{State: MotorState(s)}
		case robotFieldMCIState:
			var s uint64
			s, err = decodeStateMsg(v)
			r.MCIState = &MCIStateMsg{State: MCIState(s)}
		case robotFieldTestSignals:
			var sig []float64
			sig, err = decodeDoubleList(v)
			r.TestSignals = &TestSignals{Signals: sig}
		case robotFieldRapidExecState:
			var s uint64
			s, err = decodeStateMsg(v)
			r.RapidExecState = &RapidExecStateMsg{State: RapidExecState(s)}
		case robotFieldUTCTime:
			r.UTCTime, err = decodeClock(v)
		}
		if err != nil {
			return nil, fmt.Errorf("egm robot: field %d: %w", num, err)
		}
	}

	return &r, nil
}

func decodeHeader(b []byte) (*Header, error) {
	var h Header
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case 1:
				h.SeqNo = uint32(v)
			case 2:
				h.Timestamp = uint32(v)
			case 3:
				h.MessageType = MessageType(v)
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return &h, nil
}

// decodePlanned decodes the shared joints/cartesian/externalJoints/time
// layout used by both EgmFeedBack and EgmPlanned.
func decodePlanned(b []byte) (*Planned, error) {
	var p Planned
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		var err error
		switch num {
		case 1:
			var vals []float64
			vals, err = decodeDoubleList(v)
			p.Joints = &Joints{Values: vals}
		case 2:
			p.Cartesian, err = decodePose(v)
		case 3:
			var vals []float64
			vals, err = decodeDoubleList(v)
			p.ExternalJoints = &Joints{Values: vals}
		case 4:
			p.Time, err = decodeClock(v)
		}
		if err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func decodePose(b []byte) (*Pose, error) {
	var p Pose
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		vals, err := decodeDoubleFields(v, 4)
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			p.Position = &Cartesian{X: vals[1], Y: vals[2], Z: vals[3]}
		case 2:
			p.Orientation = &Quaternion{U0: vals[1], U1: vals[2], U2: vals[3], U3: vals[4]}
		case 3:
			p.Euler = &Euler{X: vals[1], Y: vals[2], Z: vals[3]}
		}
	}
	return &p, nil
}

func decodeClock(b []byte) (*Clock, error) {
	var c Clock
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case 1:
				c.Sec = v
			case 2:
				c.USec = v
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return &c, nil
}

// decodeStateMsg decodes the single-enum-field messages (EgmMotorState,
// EgmMCIState, EgmRapidCtrlExecState all have "state = 1").
func decodeStateMsg(b []byte) (uint64, error) {
	var state uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		b = b[n:]
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			b = b[n:]
			state = v
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return state, nil
}

// decodeDoubleList decodes a repeated double field (number 1), accepting
// both the unpacked encoding the controller emits and the packed form.
func decodeDoubleList(b []byte) ([]float64, error) {
	var vals []float64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			vals = append(vals, math.Float64frombits(v))
		case num == 1 && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed64(packed)
				if n < 0 {
					return nil, protowire.ParseError(n)
				}
				packed = packed[n:]
				vals = append(vals, math.Float64frombits(v))
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return vals, nil
}

// decodeDoubleFields decodes a message whose fields 1..max are all doubles
// (EgmCartesian, EgmQuaternion, EgmEuler). Index 0 of the result is unused.
func decodeDoubleFields(b []byte, max protowire.Number) ([]float64, error) {
	vals := make([]float64, max+1)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num >= 1 && num <= max && typ == protowire.Fixed64Type {
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			vals[num] = math.Float64frombits(v)
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return vals, nil
}

// DecodeSensor decodes one EgmSensor message. Used by the replay tooling
// and the simulator side of tests; the bridge itself only encodes sensors.
func DecodeSensor(data []byte) (*Sensor, error) {
	var s Sensor
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("egm sensor: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("egm sensor: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("egm sensor: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch num {
		case sensorFieldHeader:
			s.Header, err = decodeHeader(v)
		case sensorFieldPlanned:
			s.Planned, err = decodePlanned(v)
		case sensorFieldSpeedRef:
			s.SpeedRef, err = decodeSpeedRef(v)
		}
		if err != nil {
			return nil, fmt.Errorf("egm sensor: field %d: %w", num, err)
		}
	}
	return &s, nil
}

func decodeSpeedRef(b []byte) (*SpeedRef, error) {
	var s SpeedRef
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		vals, err := decodeDoubleList(v)
		if err != nil {
			return nil, err
		}
		switch num {
		case 1:
			s.Joints = &Joints{Values: vals}
		case 2:
			s.Cartesians = &CartesianSpeed{Values: vals}
		case 3:
			s.ExternalJoints = &Joints{Values: vals}
		}
	}
	return &s, nil
}

// EncodeRobot encodes one EgmRobot message. The bridge only decodes robots;
// the encoder exists for the controller side of tests and simulators.
func EncodeRobot(r *Robot) []byte {
	var b []byte
	if r.Header != nil {
		b = appendMessage(b, robotFieldHeader, appendHeader(nil, r.Header))
	}
	if r.Feedback != nil {
		b = appendMessage(b, robotFieldFeedback, appendPlanned(nil, (*Planned)(r.Feedback)))
	}
	if r.Planned != nil {
		b = appendMessage(b, robotFieldPlanned, appendPlanned(nil, r.Planned))
	}
	if r.MotorState != nil {
		b = appendMessage(b, robotFieldMotorState, appendStateMsg(nil, uint64(r.MotorState.State)))
	}
	if r.MCIState != nil {
		b = appendMessage(b, robotFieldMCIState, appendStateMsg(nil, uint64(r.MCIState.State)))
	}
	if r.MCIConvergenceMet != nil {
		b = protowire.AppendTag(b, robotFieldConvergenceMet, protowire.VarintType)
		v := uint64(0)
		if *r.MCIConvergenceMet {
			v = 1
		}
		b = protowire.AppendVarint(b, v)
	}
	if r.TestSignals != nil {
		b = appendMessage(b, robotFieldTestSignals, appendDoubleList(nil, r.TestSignals.Signals))
	}
	if r.RapidExecState != nil {
		b = appendMessage(b, robotFieldRapidExecState, appendStateMsg(nil, uint64(r.RapidExecState.State)))
	}
	if r.UTCTime != nil {
		b = appendMessage(b, robotFieldUTCTime, appendClock(nil, r.UTCTime))
	}
	return b
}

func appendStateMsg(b []byte, state uint64) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, state)
	return b
}

// EncodeSensor encodes one EgmSensor reply. Fields are emitted in field
// number order; repeated doubles use the unpacked encoding the controller
// expects from proto2.
func EncodeSensor(s *Sensor) []byte {
	var b []byte
	if s.Header != nil {
		b = appendMessage(b, sensorFieldHeader, appendHeader(nil, s.Header))
	}
	if s.Planned != nil {
		b = appendMessage(b, sensorFieldPlanned, appendPlanned(nil, s.Planned))
	}
	if s.SpeedRef != nil {
		b = appendMessage(b, sensorFieldSpeedRef, appendSpeedRef(nil, s.SpeedRef))
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendHeader(b []byte, h *Header) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.SeqNo))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Timestamp))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.MessageType))
	return b
}

func appendPlanned(b []byte, p *Planned) []byte {
	if p.Joints != nil {
		b = appendMessage(b, 1, appendDoubleList(nil, p.Joints.Values))
	}
	if p.Cartesian != nil {
		b = appendMessage(b, 2, appendPose(nil, p.Cartesian))
	}
	if p.ExternalJoints != nil {
		b = appendMessage(b, 3, appendDoubleList(nil, p.ExternalJoints.Values))
	}
	if p.Time != nil {
		b = appendMessage(b, 4, appendClock(nil, p.Time))
	}
	return b
}

func appendSpeedRef(b []byte, s *SpeedRef) []byte {
	if s.Joints != nil {
		b = appendMessage(b, 1, appendDoubleList(nil, s.Joints.Values))
	}
	if s.Cartesians != nil {
		b = appendMessage(b, 2, appendDoubleList(nil, s.Cartesians.Values))
	}
	if s.ExternalJoints != nil {
		b = appendMessage(b, 3, appendDoubleList(nil, s.ExternalJoints.Values))
	}
	return b
}

func appendPose(b []byte, p *Pose) []byte {
	if p.Position != nil {
		b = appendMessage(b, 1, appendDoubles(nil, p.Position.X, p.Position.Y, p.Position.Z))
	}
	if p.Orientation != nil {
		q := p.Orientation
		b = appendMessage(b, 2, appendDoubles(nil, q.U0, q.U1, q.U2, q.U3))
	}
	if p.Euler != nil {
		b = appendMessage(b, 3, appendDoubles(nil, p.Euler.X, p.Euler.Y, p.Euler.Z))
	}
	return b
}

func appendClock(b []byte, c *Clock) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, c.Sec)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, c.USec)
	return b
}

// appendDoubles encodes consecutive double fields numbered from 1.
func appendDoubles(b []byte, vals ...float64) []byte {
	for i, v := range vals {
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// appendDoubleList encodes a repeated double field (number 1), unpacked.
func appendDoubleList(b []byte, vals []float64) []byte {
	for _, v := range vals {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}
