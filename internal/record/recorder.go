// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package record

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/timeline/internal/ids"
	"github.com/holomush/timeline/internal/seed"
	"github.com/holomush/timeline/internal/simerr"
)

// SnapshotFunc returns the encoded session for a checkpoint.
type SnapshotFunc func() (json.RawMessage, error)

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithOrigin marks the log as a continuation of another log.
func WithOrigin(origin Origin) Option {
	return func(r *Recorder) { r.origin = &origin }
}

// WithID fixes the recorder (and resulting replay) id.
func WithID(id ulid.ULID) Option {
	return func(r *Recorder) { r.id = id }
}

// Recorder is the append-only log owned by exactly one session.
//
// Writes are applied in the order they are issued. A write that fails
// leaves the log unchanged. The mutex only guards against concurrent
// readers such as a background Save; the owning session is the sole writer.
type Recorder struct {
	mu sync.Mutex

	id          ulid.ULID
	origin      *Origin
	now         func() time.Time
	idSource    *ids.Source
	logger      *slog.Logger
	initialized bool
	rootSeed    int64

	lastFrame      uint64
	lastCheckpoint uint64

	events      []Event
	calls       []GeneratorCall
	checkpoints []Checkpoint
	callIndex   seed.Counter
}

// New creates an uninitialized recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		now: func() time.Time { return time.Now().UTC().Round(0) },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.idSource = ids.NewSource(r.now)
	if r.id.IsZero() {
		r.id = r.idSource.New()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// ID returns the recorder id, which becomes the replay id on save.
func (r *Recorder) ID() ulid.ULID {
	return r.id
}

// Origin returns the fork origin, or nil for a root log.
func (r *Recorder) Origin() *Origin {
	if r.origin == nil {
		return nil
	}
	o := *r.origin
	return &o
}

// RootSeed returns the root seed given to Initialize.
func (r *Recorder) RootSeed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rootSeed
}

// Initialize tags the log with its root seed and records the initial
// checkpoint at frame. It must be called exactly once, before any write.
func (r *Recorder) Initialize(rootSeed int64, frame uint64, snapshot SnapshotFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return simerr.AlreadyInitialized(r.id.String())
	}
	if snapshot == nil {
		return simerr.InvalidArgument("nil snapshot function")
	}
	doc, err := snapshot()
	if err != nil {
		return err
	}

	r.initialized = true
	r.rootSeed = rootSeed
	r.lastFrame = frame
	r.lastCheckpoint = frame
	r.checkpoints = append(r.checkpoints, Checkpoint{
		Frame:     frame,
		Snapshot:  doc,
		Timestamp: r.now(),
	})
	checkpointsTaken.Inc()

	r.logger.Debug("recorder initialized",
		"recorder_id", r.id.String(),
		"root_seed", rootSeed,
		"frame", frame,
	)
	return nil
}

// checkWrite validates a write at frame. Callers hold r.mu.
func (r *Recorder) checkWrite(op string, frame uint64) error {
	if !r.initialized {
		return simerr.NotInitialized(r.id.String(), op)
	}
	if frame < r.lastFrame {
		rejectedWrites.WithLabelValues(op).Inc()
		return simerr.NonMonotonicFrame(op, frame, r.lastFrame)
	}
	return nil
}

// Record appends an event.
func (r *Recorder) Record(frame uint64, kind Kind, actorID string, payload json.RawMessage) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWrite("record", frame); err != nil {
		return Event{}, err
	}
	if kind == "" {
		return Event{}, simerr.InvalidArgument("empty event kind", "frame", frame)
	}

	evt := Event{
		ID:        r.idSource.New(),
		Frame:     frame,
		Kind:      kind,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: r.now(),
	}
	r.events = append(r.events, evt)
	r.lastFrame = frame
	eventsRecorded.WithLabelValues(string(kind)).Inc()
	return evt, nil
}

// DeriveSeed returns the seed and call index the next RecordGeneratorCall
// for (actorID, operation) must carry.
func (r *Recorder) DeriveSeed(actorID, operation string) (int64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return 0, 0, simerr.NotInitialized(r.id.String(), "derive_seed")
	}
	idx := r.callIndex.Peek(actorID, operation)
	s, err := seed.Derive(r.rootSeed, actorID, operation, idx)
	if err != nil {
		return 0, 0, err
	}
	return s, idx, nil
}

// RecordGeneratorCall appends a generator call record after verifying that
// derivedSeed is the seed the deriver yields for the actor's next call index.
func (r *Recorder) RecordGeneratorCall(frame uint64, actorID, operation string, derivedSeed int64, request, response json.RawMessage) (GeneratorCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWrite("record_generator_call", frame); err != nil {
		return GeneratorCall{}, err
	}
	if operation == "" {
		return GeneratorCall{}, simerr.InvalidArgument("empty generator operation", "frame", frame)
	}

	idx := r.callIndex.Peek(actorID, operation)
	want, err := seed.Derive(r.rootSeed, actorID, operation, idx)
	if err != nil {
		return GeneratorCall{}, err
	}
	if derivedSeed != want {
		rejectedWrites.WithLabelValues("record_generator_call").Inc()
		return GeneratorCall{}, simerr.InvalidArgument("seed_mismatch",
			"actor_id", actorID,
			"operation", operation,
			"call_index", idx,
			"expected", want,
			"actual", derivedSeed,
		)
	}

	call := GeneratorCall{
		ID:          r.idSource.New(),
		Frame:       frame,
		ActorID:     actorID,
		Operation:   operation,
		CallIndex:   r.callIndex.Next(actorID, operation),
		DerivedSeed: derivedSeed,
		Request:     request,
		Response:    response,
		Timestamp:   r.now(),
	}
	r.calls = append(r.calls, call)
	r.lastFrame = frame
	generatorCallsRecorded.WithLabelValues(operation).Inc()
	return call, nil
}

// Checkpoint records a full snapshot at frame. The frame is validated before
// snapshot is invoked; a snapshot error leaves the log untouched.
func (r *Recorder) Checkpoint(frame uint64, snapshot SnapshotFunc) (Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWrite("checkpoint", frame); err != nil {
		return Checkpoint{}, err
	}
	if snapshot == nil {
		return Checkpoint{}, simerr.InvalidArgument("nil snapshot function", "frame", frame)
	}
	doc, err := snapshot()
	if err != nil {
		return Checkpoint{}, err
	}

	cp := Checkpoint{
		Frame:      frame,
		EventIndex: len(r.events),
		Snapshot:   doc,
		Timestamp:  r.now(),
	}
	r.checkpoints = append(r.checkpoints, cp)
	r.lastFrame = frame
	r.lastCheckpoint = frame
	checkpointsTaken.Inc()
	return cp, nil
}

// ShouldCheckpoint reports whether at least interval frames have passed
// since the last checkpoint. A non-positive interval disables checkpoints.
func (r *Recorder) ShouldCheckpoint(frame uint64, interval int) bool {
	if interval <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialized || frame < r.lastCheckpoint {
		return false
	}
	return frame-r.lastCheckpoint >= uint64(interval)
}

// LastFrame returns the highest frame written so far.
func (r *Recorder) LastFrame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFrame
}

// Counts returns the current record counts. FrameCount is one past the
// highest frame written, so valid frames are [0, FrameCount).
func (r *Recorder) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countsLocked()
}

func (r *Recorder) countsLocked() Counts {
	c := Counts{
		EventCount:      len(r.events),
		CallCount:       len(r.calls),
		CheckpointCount: len(r.checkpoints),
	}
	if r.initialized {
		c.FrameCount = r.lastFrame + 1
	}
	return c
}

// Log is a consistent copy of a recorder's contents.
type Log struct {
	ID             ulid.ULID
	Origin         *Origin
	RootSeed       int64
	Counts         Counts
	Events         []Event
	GeneratorCalls []GeneratorCall
	Checkpoints    []Checkpoint
}

// Export returns a consistent copy of the log. Records are immutable, so
// the copy shares payload bytes with the recorder.
func (r *Recorder) Export() Log {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Log{
		ID:             r.id,
		Origin:         r.Origin(),
		RootSeed:       r.rootSeed,
		Counts:         r.countsLocked(),
		Events:         append([]Event(nil), r.events...),
		GeneratorCalls: append([]GeneratorCall(nil), r.calls...),
		Checkpoints:    append([]Checkpoint(nil), r.checkpoints...),
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// GeneratorCalls returns a copy of the recorded generator calls.
func (r *Recorder) GeneratorCalls() []GeneratorCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GeneratorCall(nil), r.calls...)
}

// Checkpoints returns a copy of the recorded checkpoints.
func (r *Recorder) Checkpoints() []Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Checkpoint(nil), r.checkpoints...)
}
