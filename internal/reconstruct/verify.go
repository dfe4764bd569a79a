// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package reconstruct

import (
	"bytes"
	"context"

	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
)

// InvariantCheckpointReproduced names the CORRUPT_REPLAY failure raised
// when replay does not reproduce a recorded checkpoint.
const InvariantCheckpointReproduced = "checkpoint_reproduced"

// Encoder encodes a session the way checkpoints were encoded.
type Encoder interface {
	Encode(s *session.Session) (snapshot.Document, error)
}

// CheckpointCheck is the outcome of replaying into one checkpoint.
type CheckpointCheck struct {
	Index         int    `json:"index"`
	Frame         uint64 `json:"frame"`
	EventsApplied int    `json:"events_applied"`
	Match         bool   `json:"match"`
}

// VerifyCheckpoints replays f from each checkpoint to the next and checks
// that the encoded result equals the next checkpoint byte for byte. It
// returns every check made and, on the first mismatch, a CORRUPT_REPLAY
// error.
func (r *Reconstructor) VerifyCheckpoints(ctx context.Context, f *replay.File, enc Encoder) ([]CheckpointCheck, error) {
	checks := make([]CheckpointCheck, 0, len(f.Checkpoints))
	for i := 1; i < len(f.Checkpoints); i++ {
		c, err := r.Open(ctx, f, i-1)
		if err != nil {
			return checks, err
		}
		if err := c.AdvanceToCheckpoint(ctx, i); err != nil {
			return checks, err
		}
		doc, err := enc.Encode(c.Session())
		if err != nil {
			return checks, simerr.Reconstruction(f.Checkpoints[i].Frame, err)
		}

		check := CheckpointCheck{
			Index:         i,
			Frame:         f.Checkpoints[i].Frame,
			EventsApplied: c.Applied(),
			Match:         bytes.Equal(doc, f.Checkpoints[i].Snapshot),
		}
		checks = append(checks, check)
		if !check.Match {
			return checks, simerr.CorruptReplay(InvariantCheckpointReproduced,
				len(f.Checkpoints[i].Snapshot), len(doc))
		}
		r.logger.DebugContext(ctx, "checkpoint reproduced",
			"replay_id", f.Header.ReplayID.String(),
			"checkpoint", i,
			"frame", check.Frame,
		)
	}
	return checks, nil
}
