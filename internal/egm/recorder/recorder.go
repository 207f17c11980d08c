// Package recorder persists per-cycle EGM telemetry. It implements the
// core's logging collaborator: cycles are handed off through a buffered
// channel and written out of band, so a slow sink can never stretch the
// control-loop latency; when the buffer is full, records are dropped and
// counted instead.
package recorder

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.bridge/internal/egm"
)

// Record is one flattened cycle: the controller's measured state and the
// references sent back.
type Record struct {
	SessionID string
	// SeqNo is the reply sequence number; FeedbackSeqNo the controller's.
	SeqNo         uint32
	FeedbackSeqNo uint32
	// TimestampMS is the controller timestamp of the feedback message.
	TimestampMS uint32
	// ElapsedSecs is time since the session started.
	ElapsedSecs float64
	StatesOK    bool

	Joints          []float64
	JointVelocities []float64
	RefJoints       []float64
	RefVelocities   []float64

	HasCartesian bool
	Position     [3]float64
	Orientation  [4]float64
	RefPosition  [3]float64
}

// fromCycle flattens a cycle hand-off into a Record.
func fromCycle(in egm.Input, out egm.Output, elapsed time.Duration) Record {
	return Record{
		SeqNo:           out.Header.SeqNo,
		FeedbackSeqNo:   in.Header.SeqNo,
		TimestampMS:     in.Header.Timestamp,
		ElapsedSecs:     elapsed.Seconds(),
		StatesOK:        in.Status.StatesOK(),
		Joints:          in.Joints,
		JointVelocities: in.JointVelocities,
		RefJoints:       out.Joints,
		RefVelocities:   out.JointVelocities,
		HasCartesian:    in.HasCartesian,
		Position:        [3]float64{in.Position.X, in.Position.Y, in.Position.Z},
		Orientation:     [4]float64{in.Orientation.U0, in.Orientation.U1, in.Orientation.U2, in.Orientation.U3},
		RefPosition:     [3]float64{out.Position.X, out.Position.Y, out.Position.Z},
	}
}

// Sink writes records somewhere durable.
type Sink interface {
	WriteRecord(rec Record) error
	Close() error
}

// sessionTagger assigns a fresh id when the reply sequence restarts, which
// marks a new session. Touched only by the cycle goroutine.
type sessionTagger struct {
	sessionID string
	lastSeq   uint32
}

func (t *sessionTagger) tag(seqNo uint32) string {
	if t.sessionID == "" || seqNo <= t.lastSeq {
		t.sessionID = uuid.New().String()
	}
	t.lastSeq = seqNo
	return t.sessionID
}

// Async adapts a Sink into the core's non-blocking CycleRecorder.
type Async struct {
	sink        Sink
	channel     chan Record
	logInterval time.Duration
	tagger      sessionTagger
	// dropped counts records lost to a full buffer or sink errors since the
	// last periodic log; exact even under bursts.
	dropped atomic.Int64
}

// NewAsync wraps sink with a buffered hand-off. bufferSize records are held
// before drops begin; 0 picks a default sized for several seconds of 4 ms
// cycles.
func NewAsync(sink Sink, bufferSize int) *Async {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Async{
		sink:        sink,
		channel:     make(chan Record, bufferSize),
		logInterval: time.Minute,
	}
}

// Start begins the goroutine draining records into the sink.
func (a *Async) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if err := a.sink.Close(); err != nil {
					log.Printf("Telemetry sink close failed: %v", err)
				}
				return
			case rec := <-a.channel:
				if err := a.sink.WriteRecord(rec); err != nil {
					a.dropped.Add(1)
				}
			case <-ticker.C:
				if n := a.dropped.Swap(0); n > 0 {
					log.Printf("Dropped %d telemetry records (buffer full or sink errors)", n)
				}
			}
		}
	}()
}

// RecordCycle implements egm.CycleRecorder. It never blocks: when the
// buffer is full the record is dropped and counted.
func (a *Async) RecordCycle(in egm.Input, out egm.Output, elapsed time.Duration) {
	rec := fromCycle(in, out, elapsed)
	rec.SessionID = a.tagger.tag(out.Header.SeqNo)

	select {
	case a.channel <- rec:
	default:
		a.dropped.Add(1)
	}
}

// Sync writes records inline. For offline tools (capture replay) where
// there is no latency budget to protect.
type Sync struct {
	sink   Sink
	tagger sessionTagger
}

// NewSync wraps sink without any buffering.
func NewSync(sink Sink) *Sync {
	return &Sync{sink: sink}
}

// RecordCycle implements egm.CycleRecorder.
func (s *Sync) RecordCycle(in egm.Input, out egm.Output, elapsed time.Duration) {
	rec := fromCycle(in, out, elapsed)
	rec.SessionID = s.tagger.tag(out.Header.SeqNo)
	if err := s.sink.WriteRecord(rec); err != nil {
		log.Printf("Telemetry write failed: %v", err)
	}
}
