// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package record contains the append-only simulation log: events, generator
// call records and checkpoints keyed by monotonic frame numbers.
package record

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the kind of event. Kinds are an open set owned by the
// domain layer; the log never interprets them.
type Kind string

// Event is an immutable record of a domain-significant state change.
type Event struct {
	ID        ulid.ULID       `json:"id"`
	Frame     uint64          `json:"frame"`
	Kind      Kind            `json:"kind"`
	ActorID   string          `json:"actor_id,omitempty"` // empty when no actor caused it
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// GeneratorCall pairs a derived seed with one external generator round trip.
type GeneratorCall struct {
	ID          ulid.ULID       `json:"id"`
	Frame       uint64          `json:"frame"`
	ActorID     string          `json:"actor_id"`
	Operation   string          `json:"operation"`
	CallIndex   int             `json:"call_index"`
	DerivedSeed int64           `json:"derived_seed"`
	Request     json.RawMessage `json:"request,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Checkpoint is a full encoded session at Frame. EventIndex is the number of
// events in the log when the checkpoint was taken; replay resumes there.
type Checkpoint struct {
	Frame      uint64          `json:"frame"`
	EventIndex int             `json:"event_index"`
	Snapshot   json.RawMessage `json:"snapshot"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Origin links a continued log to the log it was forked from.
type Origin struct {
	ParentReplayID ulid.ULID `json:"parent_replay_id" yaml:"parent_replay_id"`
	ForkFrame      uint64    `json:"fork_frame" yaml:"fork_frame"`
}

// Counts summarises a log for header construction.
type Counts struct {
	FrameCount      uint64
	EventCount      int
	CallCount       int
	CheckpointCount int
}
