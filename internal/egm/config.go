package egm

import (
	"fmt"
	"sync"
	"time"
)

// RobotAxes is the number of robot axes the interface expects in feedback
// messages.
type RobotAxes int

const (
	// AxesNone accepts any axis count (external-axes-only setups).
	AxesNone RobotAxes = 0
	// AxesSix is a standard six axis robot.
	AxesSix RobotAxes = 6
	// AxesSeven is a seven axis robot (e.g. IRB 14000).
	AxesSeven RobotAxes = 7
)

// Valid reports whether the axis count is one the interface supports.
func (a RobotAxes) Valid() bool {
	return a == AxesNone || a == AxesSix || a == AxesSeven
}

// Configuration holds the interface's per-session settings. Updates pushed
// with SetConfiguration are staged and take effect at the start of the next
// communication session, never mid-session.
type Configuration struct {
	// Axes is the expected robot axis count, validated against feedback.
	Axes RobotAxes

	// UseDemoOutputs enables the built-in demo trajectory when no custom
	// strategy drives the outputs.
	UseDemoOutputs bool

	// UseVelocityOutputs adds speed references to the reply body.
	UseVelocityOutputs bool

	// UseCartesianOutputs selects the Cartesian reply body instead of the
	// joint body. Requires Cartesian feedback from the controller.
	UseCartesianOutputs bool

	// UseLogging enables the per-cycle telemetry hand-off.
	UseLogging bool

	// MaxLoggingDuration caps how long a session is logged. Zero logs the
	// whole session.
	MaxLoggingDuration time.Duration

	// NominalSampleTime is the sample time assumed until two messages have
	// been received. Zero means LowestSampleTime.
	NominalSampleTime time.Duration

	// ConnectionTimeout is how long after the last accepted message the
	// session still counts as connected.
	ConnectionTimeout time.Duration
}

// DefaultConfiguration returns the configuration used when none is given:
// a six axis robot, joint outputs, demo generation off.
func DefaultConfiguration() Configuration {
	return Configuration{
		Axes:              AxesSix,
		NominalSampleTime: 4 * time.Millisecond,
		ConnectionTimeout: 500 * time.Millisecond,
	}
}

// normalize fills zero-valued durations with defaults and validates the
// axis count.
func (c Configuration) normalize() (Configuration, error) {
	if !c.Axes.Valid() {
		return c, fmt.Errorf("egm: unsupported axis count %d", c.Axes)
	}
	if c.NominalSampleTime <= 0 {
		c.NominalSampleTime = 4 * time.Millisecond
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 500 * time.Millisecond
	}
	return c, nil
}

// nominalSeconds is the nominal sample time in seconds, the unit the
// estimator works in.
func (c Configuration) nominalSeconds() float64 {
	if c.NominalSampleTime <= 0 {
		return LowestSampleTime
	}
	return c.NominalSampleTime.Seconds()
}

// configContainer stages configuration updates so an in-flight session
// never observes a change. active is read each cycle by the orchestrator;
// update holds the staged value until the next session boundary.
type configContainer struct {
	mu               sync.Mutex
	active           Configuration
	update           Configuration
	hasPendingUpdate bool
}

func newConfigContainer(initial Configuration) *configContainer {
	return &configContainer{active: initial, update: initial}
}

// activeCopy returns the configuration in effect.
func (c *configContainer) activeCopy() Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// pendingCopy returns the configuration that would take effect at the next
// session boundary: the staged update if one is pending, otherwise the
// active configuration. It never consumes the staged update.
func (c *configContainer) pendingCopy() Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasPendingUpdate {
		return c.update
	}
	return c.active
}

// stage stores cfg as the pending update without touching active.
func (c *configContainer) stage(cfg Configuration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update = cfg
	c.hasPendingUpdate = true
}

// applyPending swaps the staged update into active, if any, and returns the
// configuration now in effect. Called by the orchestrator only, at a
// session boundary.
func (c *configContainer) applyPending() Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasPendingUpdate {
		c.active = c.update
		c.hasPendingUpdate = false
	}
	return c.active
}
