// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package reconstruct rebuilds the session at any frame of a replay file
// from its nearest checkpoint plus the events recorded after it.
package reconstruct

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
)

var tracer = otel.Tracer("timeline/reconstruct")

// Applier re-applies a recorded event to a session. Implementations must be
// deterministic: the same event on the same state yields the same state.
// Recorded generator outcomes are read from the event payload, never
// regenerated.
type Applier interface {
	ApplyRecordedEvent(s *session.Session, e record.Event) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(s *session.Session, e record.Event) error

// ApplyRecordedEvent calls f.
func (f ApplierFunc) ApplyRecordedEvent(s *session.Session, e record.Event) error {
	return f(s, e)
}

// Decoder decodes checkpoint snapshots.
type Decoder interface {
	Decode(doc snapshot.Document, formatVersion string) (*session.Session, error)
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithDecoder overrides the snapshot decoder.
func WithDecoder(d Decoder) Option {
	return func(r *Reconstructor) { r.decoder = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconstructor) { r.logger = logger }
}

// Reconstructor rebuilds sessions from replay files. It holds no per-file
// state and is safe for concurrent use when its Applier is.
type Reconstructor struct {
	applier Applier
	decoder Decoder
	logger  *slog.Logger
}

// New creates a reconstructor that applies events through applier.
func New(applier Applier, opts ...Option) *Reconstructor {
	r := &Reconstructor{applier: applier}
	for _, opt := range opts {
		opt(r)
	}
	if r.decoder == nil {
		r.decoder = snapshot.NewCodec()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// NearestCheckpoint returns the index of the last checkpoint whose frame is
// at or before frame.
func NearestCheckpoint(f *replay.File, frame uint64) (int, bool) {
	i := sort.Search(len(f.Checkpoints), func(i int) bool {
		return f.Checkpoints[i].Frame > frame
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// ReconstructAt returns the session as it was at target. The result is only
// returned on complete success; cancellation of ctx is observed between
// events and fails with RECONSTRUCTION_ERROR wrapping ctx.Err().
func (r *Reconstructor) ReconstructAt(ctx context.Context, f *replay.File, target uint64) (s *session.Session, err error) {
	ctx, span := tracer.Start(ctx, "reconstruct.at",
		trace.WithAttributes(
			attribute.String("replay.id", f.Header.ReplayID.String()),
			attribute.Int64("frame", int64(target)), //nolint:gosec // frames fit in int64
		),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			code, _ := simerr.CodeOf(err)
			reconstructFailures.WithLabelValues(code).Inc()
		} else {
			reconstructDuration.Observe(time.Since(start).Seconds())
		}
		span.End()
	}()

	if target >= f.Header.FrameCount {
		return nil, simerr.FrameOutOfRange(target, f.Header.FrameCount)
	}
	idx, ok := NearestCheckpoint(f, target)
	if !ok {
		return nil, simerr.NoCheckpointBeforeFrame(target)
	}

	c, err := r.Open(ctx, f, idx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("checkpoint.frame", int64(c.Frame()))) //nolint:gosec // frames fit in int64

	if _, err := c.Advance(ctx, target); err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "session reconstructed",
		"replay_id", f.Header.ReplayID.String(),
		"frame", target,
		"checkpoint_frame", f.Checkpoints[idx].Frame,
		"events_applied", c.Applied(),
	)
	return c.session, nil
}
