package egm

import (
	"sync"
	"time"

	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

// ConnectionState is the communication session lifecycle state.
type ConnectionState int

const (
	// Disconnected means no session is active.
	Disconnected ConnectionState = iota
	// Connecting means the first message of a session has been accepted
	// but the controller has not reported ready states yet.
	Connecting
	// Connected is the steady state: messages flowing, controller ready.
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is the controller status extracted from the most recent message.
type Status struct {
	MotorState     wire.MotorState
	MCIState       wire.MCIState
	RapidExecState wire.RapidExecState
	ConvergenceMet bool
}

// StatesOK reports whether the controller is ready to follow references:
// motors on, RAPID running and the EGM motion interface running. All three
// are required.
func (s Status) StatesOK() bool {
	return s.MotorState == wire.MotorsOn &&
		s.RapidExecState == wire.RapidRunning &&
		s.MCIState == wire.MCIRunning
}

// SessionData is the most recently received header and status of the
// current (or last) communication session.
type SessionData struct {
	Header wire.Header
	Status Status
}

// isNewSession reports whether header marks the first message of a new
// communication session. The controller restarts its sequence numbering
// from zero on each EGM activation, so a backwards sequence jump is a
// session-start marker; loss or reordering within a session only ever
// produces small forward gaps. With no accepted message yet every header
// starts a session.
func isNewSession(previous, current wire.Header, hasPrevious bool) bool {
	if !hasPrevious {
		return true
	}
	return current.SeqNo < previous.SeqNo
}

// sessionTracker owns the session data shared with client threads. The
// orchestrator is the only writer; readers always get copies, never a live
// reference, so a concurrent update cannot be observed half-written.
type sessionTracker struct {
	mu          sync.Mutex
	data        SessionData
	state       ConnectionState
	lastMessage time.Time
}

// update records the header and status of an accepted message and advances
// the lifecycle state. Called once per accepted cycle.
func (t *sessionTracker) update(h wire.Header, s Status, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = SessionData{Header: h, Status: s}
	t.lastMessage = now
	if t.state == Disconnected {
		t.state = Connecting
	}
	if s.StatesOK() {
		t.state = Connected
	}
}

// reset marks the start of a new session.
func (t *sessionTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Disconnected
}

// snapshot returns a copy of the most recent session data.
func (t *sessionTracker) snapshot() SessionData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// connected reports session liveness: a message was accepted within the
// timeout window. Session end is inferred from silence; there is no
// explicit disconnect event.
func (t *sessionTracker) connected(now time.Time, timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Disconnected || t.lastMessage.IsZero() {
		return false
	}
	return now.Sub(t.lastMessage) <= timeout
}
