// Package egm implements the session and message-processing core of an EGM
// (Externally Guided Motion) bridge: it decodes the robot controller's
// periodic telemetry datagrams, tracks the communication session, and
// synthesizes the motion-reference reply the controller blocks on.
//
// The processing is strictly request/reply: every inbound datagram produces
// exactly one reply, at worst a verbatim resend of the previous one. The
// transport (see the network package) invokes HandleDatagram once per
// datagram from a single goroutine; the client API methods are safe to call
// from any goroutine at any time.
package egm

import (
	"sync"
	"time"
)

// CycleInputs is the read-only view of the input snapshots handed to an
// injected output strategy.
type CycleInputs struct {
	// Initial is the first message of the current session, fixed until the
	// session ends.
	Initial Input
	// Current is the message being processed this cycle.
	Current Input
	// Previous is the message before Current, from the same session.
	Previous Input
	// FirstMessage is true on the first cycle of a session.
	FirstMessage bool
	// SampleTime is the estimated time [s] between Previous and Current.
	SampleTime float64
}

// OutputPreparer drives the reply references for each cycle. Implementations
// replace the built-in hold/demo behaviour; out arrives pre-filled with the
// safe hold-at-feedback reference and may be modified in place. Called from
// the cycle goroutine only and must not block.
type OutputPreparer interface {
	PrepareOutputs(in CycleInputs, out *Output)
}

// CycleRecorder receives the per-cycle telemetry hand-off. The snapshots
// are owned copies; implementations must not block the reply path (see the
// recorder package for a drop-on-full asynchronous implementation).
type CycleRecorder interface {
	RecordCycle(in Input, out Output, elapsed time.Duration)
}

// TransportStatus is the transport's lifecycle signal, surfaced verbatim
// through IsInitialized.
type TransportStatus interface {
	Initialized() bool
}

// Option configures a BaseInterface.
type Option func(*BaseInterface)

// WithOutputPreparer injects a custom control strategy.
func WithOutputPreparer(p OutputPreparer) Option {
	return func(b *BaseInterface) { b.preparer = p }
}

// WithRecorder injects the telemetry collaborator.
func WithRecorder(r CycleRecorder) Option {
	return func(b *BaseInterface) { b.recorder = r }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(b *BaseInterface) { b.now = now }
}

// BaseInterface is the callback orchestrator: it composes the codec, the
// session tracker, the configuration manager and the output synthesizer
// into the per-datagram cycle, and exposes the thread-safe client API.
type BaseInterface struct {
	inputs        inputContainer
	outputs       outputContainer
	session       sessionTracker
	configuration *configContainer

	preparer OutputPreparer
	recorder CycleRecorder

	transportMu sync.Mutex
	transport   TransportStatus

	// sessionStart and now are touched only by the cycle goroutine.
	sessionStart time.Time
	now          func() time.Time
}

// NewBaseInterface creates an interface with the given initial
// configuration.
func NewBaseInterface(cfg Configuration, opts ...Option) (*BaseInterface, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	b := &BaseInterface{
		configuration: newConfigContainer(cfg),
		now:           time.Now,
	}
	b.outputs.demoDir = 1
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// HandleDatagram processes one inbound datagram and returns the reply
// bytes. It is the transport callback: the transport guarantees at most one
// call in flight. Every failure path degrades to resending the previous
// reply so the controller always receives a timely, well-formed message; an
// empty return (possible only before the first accepted message) tells the
// transport there is nothing to send yet.
func (b *BaseInterface) HandleDatagram(data []byte) []byte {
	cycleStart := b.now()

	// (1) Decode. A malformed datagram changes nothing.
	if !b.inputs.parseFrom(data) {
		return b.outputs.reply
	}

	// (2) Session-boundary detection on the decoded header. A boundary
	// cycle is validated against a peek of the staged configuration, so the
	// first message of a session is judged against the geometry it
	// configured without committing anything yet.
	boundary := b.inputs.sessionBoundary()
	cfg := b.configuration.activeCopy()
	if boundary {
		cfg = b.configuration.pendingCopy()
	}

	// (2b) Extract the input snapshot; a semantic mismatch short-circuits
	// like a decode failure, leaving the staged update and the in-flight
	// session untouched.
	if !b.inputs.extract(cfg, boundary) {
		return b.outputs.reply
	}

	// (3) The boundary message was accepted: commit the staged
	// configuration swap and reset the per-session state.
	if boundary {
		cfg = b.configuration.applyPending()
		b.session.reset()
		b.outputs.resetSession()
		b.sessionStart = cycleStart
	}

	// (4) Publish session data for the client threads.
	b.session.update(b.inputs.current.Header, b.inputs.current.Status, cycleStart)

	// (5) Synthesize the reply references.
	if b.preparer != nil {
		b.outputs.holdAtFeedback(&b.inputs)
		b.preparer.PrepareOutputs(b.cycleInputs(), &b.outputs.current)
	} else {
		b.outputs.prepareOutputs(&b.inputs, cfg)
	}
	constructed := b.outputs.constructReply(cfg, &b.inputs)

	// (6) Rotate the snapshots, strictly after every consumer of
	// current-vs-previous has run for this cycle.
	b.inputs.updatePrevious()
	if constructed {
		b.outputs.updatePrevious()
	}

	// (7) Telemetry hand-off, owned copies, never blocking.
	if constructed && cfg.UseLogging && b.recorder != nil {
		elapsed := cycleStart.Sub(b.sessionStart)
		if cfg.MaxLoggingDuration <= 0 || elapsed <= cfg.MaxLoggingDuration {
			b.recorder.RecordCycle(b.inputs.current.clone(), b.outputs.current.clone(), elapsed)
		}
	}

	// (8) Reply. On a construction failure this is still the previous
	// reply, unchanged.
	return b.outputs.reply
}

// cycleInputs snapshots the containers for an injected preparer. The copies
// are deep so a preparer writing into them cannot corrupt the next cycle's
// velocity estimation.
func (b *BaseInterface) cycleInputs() CycleInputs {
	return CycleInputs{
		Initial:      b.inputs.initial.clone(),
		Current:      b.inputs.current.clone(),
		Previous:     b.inputs.previous.clone(),
		FirstMessage: b.inputs.firstMessage,
		SampleTime:   b.inputs.estimatedSampleTime,
	}
}

// BindTransport attaches the transport whose lifecycle IsInitialized
// surfaces. Called by the transport before serving.
func (b *BaseInterface) BindTransport(ts TransportStatus) {
	b.transportMu.Lock()
	defer b.transportMu.Unlock()
	b.transport = ts
}

// IsInitialized reports whether the underlying transport bound its socket
// successfully.
func (b *BaseInterface) IsInitialized() bool {
	b.transportMu.Lock()
	defer b.transportMu.Unlock()
	return b.transport != nil && b.transport.Initialized()
}

// IsConnected reports whether a communication session is live: a message
// was accepted within the configured connection timeout.
func (b *BaseInterface) IsConnected() bool {
	cfg := b.configuration.activeCopy()
	return b.session.connected(b.now(), cfg.ConnectionTimeout)
}

// GetStatus returns a copy of the most recently received header and
// controller status. Empty until a session has been active.
func (b *BaseInterface) GetStatus() SessionData {
	return b.session.snapshot()
}

// GetConfiguration returns a copy of the active configuration.
func (b *BaseInterface) GetConfiguration() Configuration {
	return b.configuration.activeCopy()
}

// SetConfiguration stages a configuration update. The update takes effect
// at the start of the next communication session; the active configuration
// and any in-flight session are untouched until then.
func (b *BaseInterface) SetConfiguration(cfg Configuration) error {
	cfg, err := cfg.normalize()
	if err != nil {
		return err
	}
	b.configuration.stage(cfg)
	return nil
}
