// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/timeline/internal/continuation"
	"github.com/holomush/timeline/internal/generator"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/reconstruct"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/simerr/simerrtest"
	"github.com/holomush/timeline/internal/snapshot"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, rootSeed int64, gen generator.Generator, opts ...Option) *Engine {
	t.Helper()
	rec := record.New(record.WithClock(func() time.Time { return fixedTime }))
	return NewEngine(session.New(rootSeed), rec, gen, opts...)
}

// eventKey is the part of an event that must be identical across runs.
type eventKey struct {
	Frame   uint64
	Kind    record.Kind
	ActorID string
	Payload string
}

func keys(events []record.Event) []eventKey {
	out := make([]eventKey, len(events))
	for i, e := range events {
		out[i] = eventKey{e.Frame, e.Kind, e.ActorID, string(e.Payload)}
	}
	return out
}

func TestEngine_Bootstrap(t *testing.T) {
	e := newEngine(t, 42, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(context.Background(), DefaultSetup))

	s := e.Session()
	require.NoError(t, s.Validate())
	assert.Len(t, s.Locations, DefaultSetup.Locations)
	assert.Len(t, s.Actors, DefaultSetup.NPCs+1)
	assert.Equal(t, PlayerID, s.PlayerID)
	assert.Equal(t, "Wanderer", s.Actors[PlayerID].Name)
	require.Len(t, s.Quests, 1)
	for _, q := range s.Quests {
		assert.Equal(t, "npc-1", q.GiverID)
		assert.NotEmpty(t, q.Objectives)
	}

	kinds := map[record.Kind]int{}
	for _, evt := range e.Recorder().Events() {
		assert.Equal(t, uint64(0), evt.Frame)
		kinds[evt.Kind]++
	}
	assert.Equal(t, 1, kinds[KindWorldGenerated])
	assert.Equal(t, DefaultSetup.NPCs+1, kinds[KindActorSpawned])
	assert.Equal(t, 1, kinds[KindQuestAccepted])
	assert.Len(t, e.Recorder().Checkpoints(), 1)
}

func TestEngine_BootstrapRejectsBadSetup(t *testing.T) {
	e := newEngine(t, 1, generator.NewDeterministic())
	err := e.Bootstrap(context.Background(), Setup{Locations: 0})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	err = e.Bootstrap(context.Background(), Setup{Locations: 2, NPCs: -1})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
}

func TestEngine_BootstrapTwice(t *testing.T) {
	e := newEngine(t, 1, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(context.Background(), DefaultSetup))
	err := e.Bootstrap(context.Background(), DefaultSetup)
	simerrtest.AssertCode(t, err, simerr.CodeAlreadyInitialized)
}

func TestEngine_RejectedEventIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 7, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 3, NPCs: 1}))
	before := e.Recorder().Counts()

	err := e.Move(ctx, PlayerID, "up")
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	err = e.Spawn(ctx, "npc-1", ActorSpawned{Kind: "npc", LocationID: e.Session().Actors[PlayerID].LocationID, Health: 3})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	err = e.Talk(ctx, PlayerID, PlayerID)
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	_, err = e.GenerateWorld(ctx, 3)
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	assert.Equal(t, before, e.Recorder().Counts())
}

func TestEngine_MoveCompletesQuest(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 3, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 2, NPCs: 1}))

	s := e.Session()
	require.Len(t, s.Quests, 1)
	var q *session.Quest
	for _, quest := range s.Quests {
		q = quest
	}
	require.Len(t, q.Objectives, 1, "only one location is not the player's")

	require.NoError(t, e.AdvanceFrame(ctx))
	require.NoError(t, e.Move(ctx, PlayerID, "east"))

	assert.True(t, q.Objectives[0].Completed)
	assert.Equal(t, session.QuestCompleted, q.Status)
	assert.Equal(t, uint64(1), q.CompletedFrame)

	last := e.Recorder().Events()
	require.GreaterOrEqual(t, len(last), 2)
	assert.Equal(t, KindObjectiveCompleted, last[len(last)-2].Kind)
	assert.Equal(t, KindQuestCompleted, last[len(last)-1].Kind)
}

func TestEngine_GiverDeathFailsQuest(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 9, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 3, NPCs: 1}))

	for i := 0; i < 50 && e.Session().Actors["npc-1"].Alive; i++ {
		require.NoError(t, e.Attack(ctx, PlayerID, "npc-1"))
	}
	require.False(t, e.Session().Actors["npc-1"].Alive)
	for _, q := range e.Session().Quests {
		assert.Equal(t, session.QuestFailed, q.Status)
	}

	err := e.Attack(ctx, PlayerID, "npc-1")
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
}

func TestEngine_TalkRecordsGeneratorCall(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 5, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 2, NPCs: 1}))

	require.NoError(t, e.Talk(ctx, PlayerID, "npc-1"))
	require.NoError(t, e.Talk(ctx, PlayerID, "npc-1"))

	var dialogue []record.GeneratorCall
	for _, c := range e.Recorder().GeneratorCalls() {
		if c.Operation == generator.OpDialogue {
			dialogue = append(dialogue, c)
		}
	}
	require.Len(t, dialogue, 2)
	assert.Equal(t, 0, dialogue[0].CallIndex)
	assert.Equal(t, 1, dialogue[1].CallIndex)
	assert.NotEqual(t, dialogue[0].DerivedSeed, dialogue[1].DerivedSeed)

	mems := e.Session().Actors["npc-1"].Memories
	require.Len(t, mems, 2)
	assert.Equal(t, "mem-player-0", mems[0].ID)
	assert.Equal(t, "mem-player-0-2", mems[1].ID, "a second line in the same frame gets a suffix")

	require.NoError(t, e.AdvanceFrame(ctx))
	require.NoError(t, e.Talk(ctx, PlayerID, "npc-1"))
	mems = e.Session().Actors["npc-1"].Memories
	require.Len(t, mems, 3)
	assert.Equal(t, "mem-player-1", mems[2].ID)
}

func TestEngine_AttackWithNonPositiveStrength(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 5, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 2, NPCs: 1}))

	for _, str := range []int{-3, -10, 0} {
		e.Session().Actors[PlayerID].Attributes["str"] = str
		e.Session().Actors["npc-1"].Health = 100
		e.Session().Actors["npc-1"].Alive = true
		require.NotPanics(t, func() {
			require.NoError(t, e.Attack(ctx, PlayerID, "npc-1"))
		})
		events := e.Recorder().Events()
		var round CombatRound
		require.NoError(t, json.Unmarshal(events[len(events)-1].Payload, &round))
		assert.GreaterOrEqual(t, round.Damage, 1)
		assert.LessOrEqual(t, round.Damage, max(str+3, 1))
	}
}

func TestEngine_SpawnRejectsNegativeAttributes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, 5, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 2, NPCs: 1}))
	before := e.Recorder().Counts()

	err := e.Spawn(ctx, "npc-weak", ActorSpawned{
		Kind: "npc", LocationID: e.Session().Actors[PlayerID].LocationID, Health: 3,
		Attributes: map[string]int{"str": -3},
	})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
	assert.NotContains(t, e.Session().Actors, "npc-weak")
	assert.Equal(t, before, e.Recorder().Counts())
}

func TestEngine_GeneratorFailureRecordsNothing(t *testing.T) {
	ctx := context.Background()
	gen := generator.Func(func(ctx context.Context, req generator.Request) (generator.Response, error) {
		return generator.Response{}, assert.AnError
	})
	e := newEngine(t, 5, gen)
	err := e.Bootstrap(ctx, DefaultSetup)
	require.ErrorIs(t, err, assert.AnError)

	counts := e.Recorder().Counts()
	assert.Zero(t, counts.EventCount)
	assert.Zero(t, counts.CallCount)
}

func TestEngine_CheckpointsOnInterval(t *testing.T) {
	e := newEngine(t, 11, generator.NewDeterministic(), WithCheckpointInterval(5))
	require.NoError(t, e.Bootstrap(context.Background(), DefaultSetup))
	require.NoError(t, e.Run(context.Background(), 12))

	var frames []uint64
	for _, cp := range e.Recorder().Checkpoints() {
		frames = append(frames, cp.Frame)
	}
	assert.Equal(t, []uint64{0, 5, 10}, frames)
	assert.Equal(t, uint64(12), e.Frame())
	assert.Equal(t, uint64(12), e.Recorder().LastFrame())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newEngine(t, 11, generator.NewDeterministic())
	require.NoError(t, e.Bootstrap(ctx, DefaultSetup))
	cancel()
	require.ErrorIs(t, e.Run(ctx, 3), context.Canceled)
	assert.Equal(t, uint64(0), e.Frame())
}

func TestEngine_SameSeedSameTimeline(t *testing.T) {
	run := func(rootSeed int64) []eventKey {
		e := newEngine(t, rootSeed, generator.NewDeterministic())
		require.NoError(t, e.Bootstrap(context.Background(), DefaultSetup))
		require.NoError(t, e.Run(context.Background(), 25))
		return keys(e.Recorder().Events())
	}
	a, b := run(1234), run(1234)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, run(4321))
}

func TestEngine_PlaybackReproducesTimeline(t *testing.T) {
	ctx := context.Background()
	first := newEngine(t, 77, generator.NewDeterministic())
	require.NoError(t, first.Bootstrap(ctx, DefaultSetup))
	require.NoError(t, first.Run(ctx, 20))
	calls := first.Recorder().GeneratorCalls()

	playback := generator.NewPlayback(calls)
	second := newEngine(t, 77, playback)
	require.NoError(t, second.Bootstrap(ctx, DefaultSetup))
	require.NoError(t, second.Run(ctx, 20))

	assert.Equal(t, keys(first.Recorder().Events()), keys(second.Recorder().Events()))

	rolls := 0
	for _, c := range calls {
		switch c.Operation {
		case generator.OpWorld, generator.OpDialogue, generator.OpQuest:
		default:
			rolls++
		}
	}
	assert.Equal(t, rolls, playback.Remaining(), "every generator response was served from the log")
}

func TestEngine_ReplayFidelity(t *testing.T) {
	ctx := context.Background()
	codec := snapshot.NewCodec()
	e := newEngine(t, 2026, generator.NewDeterministic(), WithCodec(codec), WithCheckpointInterval(10))
	require.NoError(t, e.Bootstrap(ctx, DefaultSetup))

	const frames = 35
	live := make(map[uint64]snapshot.Document, frames+1)
	doc, err := codec.Encode(e.Session())
	require.NoError(t, err)
	live[0] = doc
	for range frames {
		require.NoError(t, e.Step(ctx))
		doc, err := codec.Encode(e.Session())
		require.NoError(t, err)
		live[e.Frame()] = doc
	}

	path := t.TempDir() + "/run" + replay.Extension
	_, err = replay.Save(ctx, path, e.Recorder())
	require.NoError(t, err)
	f, err := replay.Load(ctx, path)
	require.NoError(t, err)
	require.Equal(t, uint64(frames+1), f.Header.FrameCount)
	require.Len(t, f.Checkpoints, 4)

	r := reconstruct.New(Rules{}, reconstruct.WithDecoder(codec))
	for frame := uint64(0); frame <= frames; frame++ {
		s, err := r.ReconstructAt(ctx, f, frame)
		require.NoError(t, err, "frame %d", frame)
		got, err := codec.Encode(s)
		require.NoError(t, err)
		assert.JSONEq(t, string(live[frame]), string(got), "frame %d", frame)
	}
}

func TestEngine_Publishes(t *testing.T) {
	ctx := context.Background()
	pub := publish.New()
	defer pub.Close()

	var (
		mu     sync.Mutex
		kinds  []string
		frames []uint64
	)
	_, err := pub.Subscribe(publish.Subscription{
		Name:  "quests",
		Kinds: []string{"quest_*", "world_generated"},
		OnState: func(ctx context.Context, u publish.StateUpdate) error {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, u.Kind)
			frames = append(frames, u.Frame)
			assert.NotEmpty(t, u.Metadata["event_id"])
			return nil
		},
	})
	require.NoError(t, err)

	e := newEngine(t, 3, generator.NewDeterministic(), WithPublisher(pub))
	require.NoError(t, e.Bootstrap(ctx, Setup{Locations: 2, NPCs: 1}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"world_generated", "quest_accepted"}, kinds)
	assert.Equal(t, []uint64{0, 0}, frames)
}

func TestEngine_ContinuesFork(t *testing.T) {
	ctx := context.Background()
	codec := snapshot.NewCodec()
	parent := newEngine(t, 10, generator.NewDeterministic(), WithCodec(codec))
	require.NoError(t, parent.Bootstrap(ctx, DefaultSetup))
	require.NoError(t, parent.Run(ctx, 20))
	f := replay.FromLog(parent.Recorder().Export(), fixedTime)
	require.NoError(t, f.Validate())

	ctrl := continuation.NewController(reconstruct.New(Rules{}, reconstruct.WithDecoder(codec)), codec)
	fork, err := ctrl.ContinueFromFrame(ctx, f, 10, 999)
	require.NoError(t, err)

	child := FromContinuation(fork, generator.NewDeterministic(), WithCodec(codec))
	require.NoError(t, child.Run(ctx, 5))
	assert.Equal(t, uint64(15), child.Frame())

	events := child.Recorder().Events()
	require.NotEmpty(t, events)
	assert.Equal(t, KindFrameAdvanced, events[0].Kind)
	assert.Equal(t, uint64(11), events[0].Frame)
	require.NotNil(t, child.Recorder().Origin())
	assert.Equal(t, f.Header.ReplayID, child.Recorder().Origin().ParentReplayID)

	var seed struct {
		Seed int64 `json:"seed"`
	}
	for _, c := range child.Recorder().GeneratorCalls() {
		if c.Operation == "intent" {
			require.NoError(t, json.Unmarshal(c.Request, &seed))
			assert.Equal(t, c.DerivedSeed, seed.Seed)
		}
	}
	assert.Equal(t, int64(999), child.Recorder().RootSeed())
	assert.Equal(t, uint64(20), parent.Frame(), "the parent is untouched")
}

func firstLivingNPC(s *session.Session) string {
	for _, id := range s.ActorIDs() {
		if a := s.Actors[id]; a.Kind == session.ActorNPC && a.Alive {
			return id
		}
	}
	return ""
}

func TestEngine_ForksNeverReuseIDs(t *testing.T) {
	ctx := context.Background()
	codec := snapshot.NewCodec()
	parent := newEngine(t, 10, generator.NewDeterministic(), WithCodec(codec))
	require.NoError(t, parent.Bootstrap(ctx, DefaultSetup))
	require.NoError(t, parent.Run(ctx, 30))
	f := replay.FromLog(parent.Recorder().Export(), fixedTime)
	require.NoError(t, f.Validate())
	ctrl := continuation.NewController(reconstruct.New(Rules{}, reconstruct.WithDecoder(codec)), codec)

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			fork, err := ctrl.ContinueFromFrame(ctx, f, 25, seed)
			require.NoError(t, err)
			inherited := fork.Session.Clone()
			child := FromContinuation(fork, generator.NewDeterministic(), WithCodec(codec))

			// The first per-actor call index in the fork matches the
			// parent's, so an offer straight away must still get a new id.
			if giver := firstLivingNPC(child.Session()); giver != "" {
				questID, err := child.OfferQuest(ctx, giver)
				require.NoError(t, err)
				assert.NotContains(t, inherited.Quests, questID)
			}
			require.NoError(t, child.Run(ctx, 100))
			assert.Equal(t, uint64(125), child.Frame())

			for _, ev := range child.Recorder().Events() {
				switch ev.Kind {
				case KindQuestAccepted:
					var p QuestAccepted
					require.NoError(t, json.Unmarshal(ev.Payload, &p))
					assert.NotContains(t, inherited.Quests, p.QuestID)
				case KindDialogueTurn:
					var p DialogueTurn
					require.NoError(t, json.Unmarshal(ev.Payload, &p))
					if listener, ok := inherited.Actors[p.ListenerID]; ok {
						_, seen := listener.Memory(p.MemoryID)
						assert.False(t, seen, "memory %s reissued", p.MemoryID)
					}
				}
			}
		})
	}
}
