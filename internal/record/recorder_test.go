// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package record_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/timeline/internal/ids"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/seed"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/simerr/simerrtest"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshotOf(s string) record.SnapshotFunc {
	return func() (json.RawMessage, error) {
		return json.RawMessage(s), nil
	}
}

func newRecorder(t *testing.T) *record.Recorder {
	t.Helper()
	r := record.New(record.WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, r.Initialize(42, 0, snapshotOf(`{"frame":0}`)))
	return r
}

func TestInitialize_RecordsInitialCheckpoint(t *testing.T) {
	r := newRecorder(t)

	cps := r.Checkpoints()
	require.Len(t, cps, 1)
	assert.Equal(t, uint64(0), cps[0].Frame)
	assert.Equal(t, 0, cps[0].EventIndex)
	assert.JSONEq(t, `{"frame":0}`, string(cps[0].Snapshot))
	assert.Equal(t, int64(42), r.RootSeed())
	assert.Equal(t, record.Counts{FrameCount: 1, CheckpointCount: 1}, r.Counts())
}

func TestInitialize_Twice(t *testing.T) {
	r := newRecorder(t)

	err := r.Initialize(7, 0, snapshotOf(`{}`))
	simerrtest.AssertCode(t, err, simerr.CodeAlreadyInitialized)
	assert.Equal(t, int64(42), r.RootSeed())
	assert.Len(t, r.Checkpoints(), 1)
}

func TestInitialize_SnapshotError(t *testing.T) {
	r := record.New()
	boom := errors.New("encode failed")

	err := r.Initialize(1, 0, func() (json.RawMessage, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	// A failed initialize does not consume the single allowed call.
	require.NoError(t, r.Initialize(1, 0, snapshotOf(`{}`)))
}

func TestWritesBeforeInitialize(t *testing.T) {
	r := record.New()

	_, err := r.Record(0, "dialogue_turn", "npc", nil)
	simerrtest.AssertCode(t, err, simerr.CodeNotInitialized)

	_, err = r.Checkpoint(0, snapshotOf(`{}`))
	simerrtest.AssertCode(t, err, simerr.CodeNotInitialized)

	_, _, err = r.DeriveSeed("npc", "dialogue")
	simerrtest.AssertCode(t, err, simerr.CodeNotInitialized)
}

func TestRecord_AppendsInOrder(t *testing.T) {
	r := newRecorder(t)

	for frame, kind := range []record.Kind{"a", "b", "c"} {
		evt, err := r.Record(uint64(frame), kind, "npc:mira", json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.Equal(t, kind, evt.Kind)
		assert.Equal(t, fixedTime, evt.Timestamp)
		assert.False(t, evt.ID.IsZero())
	}
	// Same frame keeps insertion order.
	_, err := r.Record(2, "d", "", nil)
	require.NoError(t, err)

	events := r.Events()
	require.Len(t, events, 4)
	kinds := make([]record.Kind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []record.Kind{"a", "b", "c", "d"}, kinds)
	assert.Equal(t, uint64(3), r.Counts().FrameCount)
}

func TestRecord_NonMonotonicFrame(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Record(5, "a", "", nil)
	require.NoError(t, err)

	_, err = r.Record(4, "b", "", nil)
	simerrtest.AssertCode(t, err, simerr.CodeNonMonotonicFrame)
	simerrtest.AssertContext(t, err, "frame", uint64(4))
	simerrtest.AssertContext(t, err, "last_frame", uint64(5))

	assert.Len(t, r.Events(), 1, "rejected event must not remain in the log")
	assert.Equal(t, uint64(5), r.LastFrame())
}

func TestRecord_EmptyKind(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Record(0, "", "", nil)
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
	assert.Empty(t, r.Events())
}

func TestCheckpoint_NonMonotonicSkipsSnapshot(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Record(8, "a", "", nil)
	require.NoError(t, err)

	called := false
	_, err = r.Checkpoint(3, func() (json.RawMessage, error) {
		called = true
		return json.RawMessage(`{}`), nil
	})
	simerrtest.AssertCode(t, err, simerr.CodeNonMonotonicFrame)
	assert.False(t, called)
	assert.Len(t, r.Checkpoints(), 1)
}

func TestCheckpoint_SnapshotErrorLeavesLogUntouched(t *testing.T) {
	r := newRecorder(t)
	boom := errors.New("encode failed")

	_, err := r.Checkpoint(4, func() (json.RawMessage, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.Checkpoints(), 1)
	assert.Equal(t, uint64(0), r.LastFrame())
}

func TestCheckpoint_CapturesEventIndex(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Record(1, "a", "", nil)
	require.NoError(t, err)
	_, err = r.Record(2, "b", "", nil)
	require.NoError(t, err)

	cp, err := r.Checkpoint(2, snapshotOf(`{"frame":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, cp.EventIndex)
	assert.Equal(t, uint64(2), cp.Frame)
}

func TestShouldCheckpoint(t *testing.T) {
	r := newRecorder(t)

	assert.False(t, r.ShouldCheckpoint(5, 10))
	assert.True(t, r.ShouldCheckpoint(10, 10))
	assert.False(t, r.ShouldCheckpoint(10, 0))
	assert.False(t, r.ShouldCheckpoint(10, -1))

	_, err := r.Checkpoint(10, snapshotOf(`{}`))
	require.NoError(t, err)
	assert.False(t, r.ShouldCheckpoint(15, 10))
	assert.True(t, r.ShouldCheckpoint(20, 10))

	assert.False(t, record.New().ShouldCheckpoint(10, 1))
}

func TestGeneratorCall_SeedDerivation(t *testing.T) {
	r := newRecorder(t)

	for i := range 3 {
		s, idx, err := r.DeriveSeed("npc:mira", "dialogue")
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		assert.Equal(t, seed.MustDerive(42, "npc:mira", "dialogue", i), s)

		call, err := r.RecordGeneratorCall(uint64(i), "npc:mira", "dialogue", s,
			json.RawMessage(`{"prompt":"hi"}`), json.RawMessage(`{"text":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, i, call.CallIndex)
		assert.Equal(t, s, call.DerivedSeed)
	}

	// Counters are per (actor, operation).
	_, idx, err := r.DeriveSeed("npc:mira", "combat")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 3, r.Counts().CallCount)
}

func TestGeneratorCall_SeedMismatch(t *testing.T) {
	r := newRecorder(t)
	s, _, err := r.DeriveSeed("npc:mira", "dialogue")
	require.NoError(t, err)

	_, err = r.RecordGeneratorCall(0, "npc:mira", "dialogue", s+1, nil, nil)
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
	simerrtest.AssertContext(t, err, "reason", "seed_mismatch")

	// The counter was not consumed.
	_, idx, err := r.DeriveSeed("npc:mira", "dialogue")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Empty(t, r.GeneratorCalls())
}

func TestGeneratorCall_NonMonotonicFrame(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Record(3, "a", "", nil)
	require.NoError(t, err)

	s, _, err := r.DeriveSeed("npc", "dialogue")
	require.NoError(t, err)
	_, err = r.RecordGeneratorCall(2, "npc", "dialogue", s, nil, nil)
	simerrtest.AssertCode(t, err, simerr.CodeNonMonotonicFrame)
	assert.Empty(t, r.GeneratorCalls())
}

func TestExport_IsACopy(t *testing.T) {
	origin := record.Origin{ParentReplayID: ids.New(), ForkFrame: 9}
	r := record.New(record.WithOrigin(origin))
	require.NoError(t, r.Initialize(5, 9, snapshotOf(`{}`)))
	_, err := r.Record(9, "a", "", nil)
	require.NoError(t, err)

	log := r.Export()
	assert.Equal(t, r.ID(), log.ID)
	require.NotNil(t, log.Origin)
	assert.Equal(t, origin, *log.Origin)
	assert.Equal(t, int64(5), log.RootSeed)
	assert.Equal(t, record.Counts{FrameCount: 10, EventCount: 1, CheckpointCount: 1}, log.Counts)

	_, err = r.Record(10, "b", "", nil)
	require.NoError(t, err)
	assert.Len(t, log.Events, 1)
}

func TestRecord_IDsFollowClockInOrder(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := record.New(record.WithClock(func() time.Time { return at }))
	require.NoError(t, r.Initialize(1, 0, snapshotOf(`{}`)))

	first, err := r.Record(0, "a", "", nil)
	require.NoError(t, err)
	second, err := r.Record(0, "b", "", nil)
	require.NoError(t, err)

	assert.Equal(t, ulid.Timestamp(at), first.ID.Time())
	assert.Equal(t, ulid.Timestamp(at), r.ID().Time())
	assert.Equal(t, 1, second.ID.Compare(first.ID))
}
