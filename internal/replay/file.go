// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package replay persists simulation logs as self-validating replay files.
//
// A replay file is one zstd stream of JSON lines. The first line is the
// header; every further line is a tagged record in the order events,
// generator calls, checkpoints.
package replay

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/seed"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
)

// FormatVersion is the format written by Save. It also selects the snapshot
// codec revision used for checkpoints.
const FormatVersion = snapshot.CurrentVersion

// Invariant names reported in CORRUPT_REPLAY error context.
const (
	InvariantHeader          = "header"
	InvariantRecordType      = "record_type"
	InvariantEventCount      = "event_count"
	InvariantCallCount       = "call_count"
	InvariantCheckpointCount = "checkpoint_count"
	InvariantFrameOrder      = "frame_order"
	InvariantCheckpointOrder = "checkpoint_order"
	InvariantCheckpointIndex = "checkpoint_event_index"
	InvariantFrameRange      = "frame_range"
	InvariantSeedDerivation  = "seed_derivation"
)

// Header describes a replay file. Counts must equal the record array lengths.
type Header struct {
	FormatVersion   string         `json:"format_version" yaml:"format_version"`
	ReplayID        ulid.ULID      `json:"replay_id" yaml:"replay_id"`
	RootSeed        int64          `json:"root_seed" yaml:"root_seed"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at"`
	FrameCount      uint64         `json:"frame_count" yaml:"frame_count"`
	EventCount      int            `json:"event_count" yaml:"event_count"`
	CallCount       int            `json:"call_count" yaml:"call_count"`
	CheckpointCount int            `json:"checkpoint_count" yaml:"checkpoint_count"`
	Origin          *record.Origin `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// File is a fully loaded replay. A loaded File is immutable; readers must
// not modify its slices.
type File struct {
	Header         Header
	Events         []record.Event
	GeneratorCalls []record.GeneratorCall
	Checkpoints    []record.Checkpoint
}

// FromLog builds a File from an exported recorder log.
func FromLog(log record.Log, createdAt time.Time) *File {
	return &File{
		Header: Header{
			FormatVersion:   FormatVersion,
			ReplayID:        log.ID,
			RootSeed:        log.RootSeed,
			CreatedAt:       createdAt,
			FrameCount:      log.Counts.FrameCount,
			EventCount:      log.Counts.EventCount,
			CallCount:       log.Counts.CallCount,
			CheckpointCount: log.Counts.CheckpointCount,
			Origin:          log.Origin,
		},
		Events:         log.Events,
		GeneratorCalls: log.GeneratorCalls,
		Checkpoints:    log.Checkpoints,
	}
}

// EventsInFrame returns the events recorded at frame, in log order.
func (f *File) EventsInFrame(frame uint64) []record.Event {
	var out []record.Event
	for _, e := range f.Events {
		if e.Frame == frame {
			out = append(out, e)
		}
		if e.Frame > frame {
			break
		}
	}
	return out
}

// Validate checks every structural invariant of f. The first violation is
// returned as CORRUPT_REPLAY naming the invariant; an unknown format version
// is UNSUPPORTED_FORMAT.
func (f *File) Validate() error {
	if err := validateHeader(&f.Header); err != nil {
		return err
	}

	h := f.Header
	if h.EventCount != len(f.Events) {
		return simerr.CorruptReplay(InvariantEventCount, h.EventCount, len(f.Events))
	}
	if h.CallCount != len(f.GeneratorCalls) {
		return simerr.CorruptReplay(InvariantCallCount, h.CallCount, len(f.GeneratorCalls))
	}
	if h.CheckpointCount != len(f.Checkpoints) {
		return simerr.CorruptReplay(InvariantCheckpointCount, h.CheckpointCount, len(f.Checkpoints))
	}

	var (
		maxFrame uint64
		seen     bool
	)
	observe := func(frame uint64) {
		if !seen || frame > maxFrame {
			maxFrame = frame
		}
		seen = true
	}

	for i, e := range f.Events {
		if i > 0 && e.Frame < f.Events[i-1].Frame {
			return simerr.CorruptReplay(InvariantFrameOrder, f.Events[i-1].Frame, e.Frame)
		}
		observe(e.Frame)
	}
	for i, c := range f.GeneratorCalls {
		if i > 0 && c.Frame < f.GeneratorCalls[i-1].Frame {
			return simerr.CorruptReplay(InvariantFrameOrder, f.GeneratorCalls[i-1].Frame, c.Frame)
		}
		observe(c.Frame)
	}
	for i, cp := range f.Checkpoints {
		if i > 0 {
			prev := f.Checkpoints[i-1]
			if cp.Frame < prev.Frame || cp.EventIndex < prev.EventIndex {
				return simerr.CorruptReplay(InvariantCheckpointOrder, prev.Frame, cp.Frame)
			}
		}
		if cp.EventIndex < 0 || cp.EventIndex > len(f.Events) {
			return simerr.CorruptReplay(InvariantCheckpointIndex, len(f.Events), cp.EventIndex)
		}
		// Events before the checkpoint position may not be later than the
		// checkpoint; events after it may not be earlier.
		if cp.EventIndex > 0 && f.Events[cp.EventIndex-1].Frame > cp.Frame {
			return simerr.CorruptReplay(InvariantCheckpointOrder, cp.Frame, f.Events[cp.EventIndex-1].Frame)
		}
		if cp.EventIndex < len(f.Events) && f.Events[cp.EventIndex].Frame < cp.Frame {
			return simerr.CorruptReplay(InvariantCheckpointOrder, cp.Frame, f.Events[cp.EventIndex].Frame)
		}
		observe(cp.Frame)
	}

	var wantFrames uint64
	if seen {
		wantFrames = maxFrame + 1
	}
	if h.FrameCount != wantFrames {
		return simerr.CorruptReplay(InvariantFrameRange, wantFrames, h.FrameCount)
	}

	var counter seed.Counter
	for _, c := range f.GeneratorCalls {
		idx := counter.Next(c.ActorID, c.Operation)
		if c.CallIndex != idx {
			return simerr.CorruptReplay(InvariantSeedDerivation, idx, c.CallIndex)
		}
		want, err := seed.Derive(h.RootSeed, c.ActorID, c.Operation, idx)
		if err != nil {
			return simerr.CorruptReplayCause(InvariantSeedDerivation, err)
		}
		if c.DerivedSeed != want {
			return simerr.CorruptReplay(InvariantSeedDerivation, want, c.DerivedSeed)
		}
	}
	return nil
}

func validateHeader(h *Header) error {
	if h.FormatVersion == "" {
		return simerr.CorruptReplay(InvariantHeader, "format_version", "missing")
	}
	if _, err := snapshot.ParseVersion(h.FormatVersion); err != nil {
		return err
	}
	if h.ReplayID.IsZero() {
		return simerr.CorruptReplay(InvariantHeader, "replay_id", "missing")
	}
	if h.EventCount < 0 || h.CallCount < 0 || h.CheckpointCount < 0 {
		return simerr.CorruptReplay(InvariantHeader, "non-negative counts",
			[]int{h.EventCount, h.CallCount, h.CheckpointCount})
	}
	return nil
}
