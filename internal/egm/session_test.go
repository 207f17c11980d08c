package egm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/motion.bridge/internal/egm/wire"
)

func TestIsNewSession(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		prev     uint32
		cur      uint32
		hasPrev  bool
		boundary bool
	}{
		{"no prior message", 0, 0, false, true},
		{"sequence continues", 10, 11, true, false},
		{"forward gap is not a boundary", 10, 15, true, false},
		{"restart from zero", 500, 0, true, true},
		{"any backwards jump", 500, 3, true, true},
		{"same sequence repeats", 10, 10, true, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := isNewSession(
				wire.Header{SeqNo: tc.prev}, wire.Header{SeqNo: tc.cur}, tc.hasPrev)
			assert.Equal(t, tc.boundary, got)
		})
	}
}

func TestSessionTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	var tr sessionTracker
	now := time.Now()

	assert.False(t, tr.connected(now, 500*time.Millisecond))

	notReady := Status{MotorState: wire.MotorsOff}
	tr.update(wire.Header{SeqNo: 0}, notReady, now)
	assert.Equal(t, Connecting, tr.state)
	assert.True(t, tr.connected(now, 500*time.Millisecond))

	ready := Status{
		MotorState:     wire.MotorsOn,
		MCIState:       wire.MCIRunning,
		RapidExecState: wire.RapidRunning,
	}
	tr.update(wire.Header{SeqNo: 1}, ready, now)
	assert.Equal(t, Connected, tr.state)

	// Silence past the timeout means disconnected, without any event.
	assert.False(t, tr.connected(now.Add(time.Second), 500*time.Millisecond))
	// And a late read within the window still reports connected.
	assert.True(t, tr.connected(now.Add(400*time.Millisecond), 500*time.Millisecond))

	tr.reset()
	assert.Equal(t, Disconnected, tr.state)
}

func TestSessionTracker_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	var tr sessionTracker
	ready := Status{MotorState: wire.MotorsOn, MCIState: wire.MCIRunning, RapidExecState: wire.RapidRunning}
	tr.update(wire.Header{SeqNo: 7, Timestamp: 42}, ready, time.Now())

	snap := tr.snapshot()
	snap.Header.SeqNo = 999

	assert.Equal(t, uint32(7), tr.snapshot().Header.SeqNo)
}

func TestStatusStatesOK(t *testing.T) {
	t.Parallel()

	ok := Status{
		MotorState:     wire.MotorsOn,
		MCIState:       wire.MCIRunning,
		RapidExecState: wire.RapidRunning,
	}
	assert.True(t, ok.StatesOK())

	// All three conditions are required.
	motorsOff := ok
	motorsOff.MotorState = wire.MotorsOff
	assert.False(t, motorsOff.StatesOK())

	mciStopped := ok
	mciStopped.MCIState = wire.MCIStopped
	assert.False(t, mciStopped.StatesOK())

	rapidStopped := ok
	rapidStopped.RapidExecState = wire.RapidStopped
	assert.False(t, rapidStopped.StatesOK())

	assert.False(t, Status{}.StatesOK())
}

func TestConnectionStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
