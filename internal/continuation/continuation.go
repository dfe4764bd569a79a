// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package continuation forks new live timelines from recorded ones.
//
// A fork reconstructs the session at a frame, reseeds it and attaches a
// fresh recorder whose log names the parent replay and fork frame. Replay
// files are only read, so any number of forks may run from one file.
package continuation

import (
	"context"
	"log/slog"

	"github.com/holomush/timeline/internal/reconstruct"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
)

// Continuation is a live session forked from a replay, with the recorder
// that will log its new timeline.
type Continuation struct {
	Session  *session.Session
	Recorder *record.Recorder
	Origin   record.Origin
}

// Frame is one played-back frame handed to a PlayThenContinue callback.
// State is a private clone; changing it has no effect on playback or on
// the fork.
type Frame struct {
	Number uint64
	Events []record.Event
	State  *session.Session
}

// FrameFunc observes a played-back frame. A non-nil error aborts playback.
type FrameFunc func(Frame) error

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithRecorderOptions adds options applied to every forked recorder.
func WithRecorderOptions(opts ...record.Option) Option {
	return func(c *Controller) { c.recorderOpts = append(c.recorderOpts, opts...) }
}

// Controller creates continuations. It is safe for concurrent use.
type Controller struct {
	reconstructor *reconstruct.Reconstructor
	codec         *snapshot.Codec
	logger        *slog.Logger
	recorderOpts  []record.Option
}

// NewController creates a controller that rebuilds sessions with
// reconstructor and checkpoints forks with codec.
func NewController(reconstructor *reconstruct.Reconstructor, codec *snapshot.Codec, opts ...Option) *Controller {
	c := &Controller{
		reconstructor: reconstructor,
		codec:         codec,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.codec == nil {
		c.codec = snapshot.NewCodec()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ContinueFromFrame forks f at target. The returned session carries
// newRootSeed and its recorder is initialized at target with that state as
// the first checkpoint. On error nothing is returned.
func (c *Controller) ContinueFromFrame(ctx context.Context, f *replay.File, target uint64, newRootSeed int64) (*Continuation, error) {
	s, err := c.reconstructor.ReconstructAt(ctx, f, target)
	if err != nil {
		forkFailures.Inc()
		return nil, err
	}
	s.RootSeed = newRootSeed

	origin := record.Origin{ParentReplayID: f.Header.ReplayID, ForkFrame: target}
	opts := make([]record.Option, 0, len(c.recorderOpts)+2)
	opts = append(opts, record.WithLogger(c.logger))
	opts = append(opts, c.recorderOpts...)
	opts = append(opts, record.WithOrigin(origin))
	rec := record.New(opts...)

	if err := rec.Initialize(newRootSeed, target, c.codec.SnapshotFunc(s)); err != nil {
		forkFailures.Inc()
		return nil, simerr.Reconstruction(target, err)
	}

	forksCreated.Inc()
	c.logger.InfoContext(ctx, "timeline forked",
		"parent_replay_id", origin.ParentReplayID.String(),
		"fork_frame", target,
		"replay_id", rec.ID().String(),
		"root_seed", newRootSeed,
	)
	return &Continuation{Session: s, Recorder: rec, Origin: origin}, nil
}

// PlayThenContinue plays f from its first checkpoint through framesToReplay,
// calling callback once per frame in order, then forks at framesToReplay
// exactly as ContinueFromFrame does. Playback runs on its own session, so
// callbacks cannot influence the fork.
func (c *Controller) PlayThenContinue(ctx context.Context, f *replay.File, framesToReplay uint64, callback FrameFunc, newRootSeed int64) (*Continuation, error) {
	if framesToReplay >= f.Header.FrameCount {
		return nil, simerr.FrameOutOfRange(framesToReplay, f.Header.FrameCount)
	}
	if len(f.Checkpoints) == 0 || f.Checkpoints[0].Frame > framesToReplay {
		return nil, simerr.NoCheckpointBeforeFrame(framesToReplay)
	}

	cursor, err := c.reconstructor.Open(ctx, f, 0)
	if err != nil {
		return nil, err
	}
	for frame := cursor.Frame(); ; frame++ {
		events, err := cursor.Advance(ctx, frame)
		if err != nil {
			return nil, err
		}
		if callback != nil {
			if err := callback(Frame{Number: frame, Events: events, State: cursor.Session().Clone()}); err != nil {
				return nil, err
			}
		}
		framesPlayed.Inc()
		if frame == framesToReplay {
			break
		}
	}
	return c.ContinueFromFrame(ctx, f, framesToReplay, newRootSeed)
}
