// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package reconstruct

import (
	"context"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
)

// Cursor steps a session forward through a replay file. It owns its
// session; callers that hand state to other code should Clone it.
//
// A Cursor that returns an error is spent: every later call fails with the
// same error.
type Cursor struct {
	r       *Reconstructor
	f       *replay.File
	session *session.Session
	pos     int
	frame   uint64
	applied int
	err     error
}

// Open decodes checkpoint idx of f and positions a cursor just after it.
// Events recorded at the checkpoint frame after the checkpoint was taken
// are not yet applied; the first Advance applies them.
func (r *Reconstructor) Open(ctx context.Context, f *replay.File, idx int) (*Cursor, error) {
	if idx < 0 || idx >= len(f.Checkpoints) {
		return nil, simerr.InvalidArgument("checkpoint index out of range",
			"index", idx, "checkpoints", len(f.Checkpoints))
	}
	cp := f.Checkpoints[idx]
	if cp.EventIndex < 0 || cp.EventIndex > len(f.Events) {
		return nil, simerr.Reconstruction(cp.Frame,
			simerr.CorruptReplay(replay.InvariantCheckpointIndex, len(f.Events), cp.EventIndex))
	}
	if err := ctx.Err(); err != nil {
		return nil, simerr.Reconstruction(cp.Frame, err)
	}

	s, err := r.decoder.Decode(cp.Snapshot, f.Header.FormatVersion)
	if err != nil {
		return nil, simerr.Reconstruction(cp.Frame, err)
	}
	if err := s.Validate(); err != nil {
		return nil, simerr.Reconstruction(cp.Frame, simerr.InvalidSnapshot(f.Header.FormatVersion, err))
	}
	s.Frame = cp.Frame

	return &Cursor{
		r:       r,
		f:       f,
		session: s,
		pos:     cp.EventIndex,
		frame:   cp.Frame,
	}, nil
}

// Frame returns the frame the cursor's session is at.
func (c *Cursor) Frame() uint64 {
	return c.frame
}

// Session returns the cursor's session. It must not be modified.
func (c *Cursor) Session() *session.Session {
	return c.session
}

// Applied returns the number of events applied since Open.
func (c *Cursor) Applied() int {
	return c.applied
}

// Advance applies every remaining event with frame <= to, in log order, and
// returns them. to may equal the current frame to flush events recorded at
// that frame after the checkpoint.
func (c *Cursor) Advance(ctx context.Context, to uint64) ([]record.Event, error) {
	if c.err != nil {
		return nil, c.err
	}
	if to < c.frame {
		c.err = simerr.InvalidArgument("cursor cannot move backwards", "frame", to, "current_frame", c.frame)
		return nil, c.err
	}
	if to >= c.f.Header.FrameCount {
		c.err = simerr.FrameOutOfRange(to, c.f.Header.FrameCount)
		return nil, c.err
	}

	start := c.pos
	for c.pos < len(c.f.Events) {
		e := c.f.Events[c.pos]
		if e.Frame > to {
			break
		}
		if err := ctx.Err(); err != nil {
			c.err = simerr.Reconstruction(to, err)
			return nil, c.err
		}
		c.session.Frame = e.Frame
		if err := c.r.applier.ApplyRecordedEvent(c.session, e); err != nil {
			c.err = simerr.Reconstruction(to, err)
			return nil, c.err
		}
		c.pos++
		c.applied++
		eventsReplayed.Inc()
	}
	c.session.Frame = to
	c.frame = to
	return c.f.Events[start:c.pos:c.pos], nil
}

// AdvanceToCheckpoint applies events up to checkpoint idx's event index
// and moves to its frame, leaving the session in the state the checkpoint
// captured.
func (c *Cursor) AdvanceToCheckpoint(ctx context.Context, idx int) error {
	if c.err != nil {
		return c.err
	}
	if idx < 0 || idx >= len(c.f.Checkpoints) {
		c.err = simerr.InvalidArgument("checkpoint index out of range",
			"index", idx, "checkpoints", len(c.f.Checkpoints))
		return c.err
	}
	cp := c.f.Checkpoints[idx]
	if cp.EventIndex > len(c.f.Events) {
		c.err = simerr.Reconstruction(cp.Frame,
			simerr.CorruptReplay(replay.InvariantCheckpointIndex, len(c.f.Events), cp.EventIndex))
		return c.err
	}
	if cp.EventIndex < c.pos || cp.Frame < c.frame {
		c.err = simerr.InvalidArgument("cursor cannot move backwards",
			"checkpoint_frame", cp.Frame, "current_frame", c.frame)
		return c.err
	}

	for c.pos < cp.EventIndex {
		if err := ctx.Err(); err != nil {
			c.err = simerr.Reconstruction(cp.Frame, err)
			return c.err
		}
		e := c.f.Events[c.pos]
		c.session.Frame = e.Frame
		if err := c.r.applier.ApplyRecordedEvent(c.session, e); err != nil {
			c.err = simerr.Reconstruction(cp.Frame, err)
			return c.err
		}
		c.pos++
		c.applied++
		eventsReplayed.Inc()
	}
	c.session.Frame = cp.Frame
	c.frame = cp.Frame
	return nil
}
