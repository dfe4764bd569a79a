// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/simerr/simerrtest"
)

func testState() *session.Session {
	s := session.New(1)
	s.Frame = 4
	s.Flags["door"] = "open"
	s.Actors["mira"] = &session.Actor{ID: "mira", Name: "Mira", Kind: session.ActorNPC, Alive: true}
	return s
}

func TestSubscribe_Validation(t *testing.T) {
	p := New()

	_, err := p.Subscribe(Subscription{Name: "empty"})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)

	_, err = p.Subscribe(Subscription{
		Name:    "bad pattern",
		Kinds:   []string{"quest_[a"},
		OnState: func(context.Context, StateUpdate) error { return nil },
	})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
	simerrtest.AssertContext(t, err, "pattern", "quest_[a")

	assert.Equal(t, 0, p.Len())
}

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	p := New()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		_, err := p.Subscribe(Subscription{
			Name: name,
			OnState: func(_ context.Context, u StateUpdate) error {
				order = append(order, name+":"+u.Kind)
				return nil
			},
		})
		require.NoError(t, err)
	}

	p.Publish(context.Background(), testState(), "actor_moved", nil)
	p.Publish(context.Background(), testState(), "frame_advanced", nil)

	assert.Equal(t, []string{
		"a:actor_moved", "b:actor_moved", "c:actor_moved",
		"a:frame_advanced", "b:frame_advanced", "c:frame_advanced",
	}, order)
}

func TestPublish_EachSubscriberGetsOwnClone(t *testing.T) {
	p := New()
	state := testState()
	var seen []*session.Session

	for range 2 {
		_, err := p.Subscribe(Subscription{
			OnState: func(_ context.Context, u StateUpdate) error {
				u.State.Flags["door"] = "smashed"
				u.State.Actors["mira"].Name = "Changed"
				u.Metadata["touched"] = true
				seen = append(seen, u.State)
				return nil
			},
		})
		require.NoError(t, err)
	}

	meta := map[string]any{"source": "test"}
	p.Publish(context.Background(), state, "dialogue_turn", meta)

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.Equal(t, "open", state.Flags["door"])
	assert.Equal(t, "Mira", state.Actors["mira"].Name)
	assert.NotContains(t, meta, "touched")
}

func TestPublish_UpdateFields(t *testing.T) {
	p := New()
	var got StateUpdate
	_, err := p.Subscribe(Subscription{OnState: func(_ context.Context, u StateUpdate) error {
		got = u
		return nil
	}})
	require.NoError(t, err)

	p.Publish(context.Background(), testState(), "quest_accepted", map[string]any{"quest_id": "q1"})
	assert.Equal(t, "quest_accepted", got.Kind)
	assert.Equal(t, uint64(4), got.Frame)
	assert.Equal(t, "q1", got.Metadata["quest_id"])

	p.Publish(context.Background(), nil, "ignored", nil)
	assert.Equal(t, "quest_accepted", got.Kind)
}

func TestPublish_KindFilters(t *testing.T) {
	p := New()
	var quests, all []string
	_, err := p.Subscribe(Subscription{
		Name:  "quests",
		Kinds: []string{"quest_*", "objective_completed"},
		OnState: func(_ context.Context, u StateUpdate) error {
			quests = append(quests, u.Kind)
			return nil
		},
	})
	require.NoError(t, err)
	_, err = p.Subscribe(Subscription{
		Name: "all",
		OnState: func(_ context.Context, u StateUpdate) error {
			all = append(all, u.Kind)
			return nil
		},
	})
	require.NoError(t, err)

	for _, kind := range []string{"quest_accepted", "actor_moved", "objective_completed", "quest_failed"} {
		p.Publish(context.Background(), testState(), kind, nil)
	}

	assert.Equal(t, []string{"quest_accepted", "objective_completed", "quest_failed"}, quests)
	assert.Len(t, all, 4)
}

func TestSubscriberIsolation_ErrorsAndPanics(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	delivered := 0
	_, err := p.Subscribe(Subscription{Name: "failing", OnState: func(context.Context, StateUpdate) error {
		return errors.New("handler broke")
	}})
	require.NoError(t, err)
	_, err = p.Subscribe(Subscription{Name: "panicking", OnState: func(context.Context, StateUpdate) error {
		panic("kaboom")
	}})
	require.NoError(t, err)
	_, err = p.Subscribe(Subscription{Name: "healthy", OnState: func(context.Context, StateUpdate) error {
		delivered++
		return nil
	}})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), testState(), "combat_round", nil)
	})
	assert.Equal(t, 1, delivered)

	logs := buf.String()
	assert.Contains(t, logs, "handler broke")
	assert.Contains(t, logs, "kaboom")
	assert.Contains(t, logs, `"subscription":"panicking"`)
}

func TestBroadcast(t *testing.T) {
	p := New()
	var got []CustomEvent
	_, err := p.Subscribe(Subscription{
		Name:  "events",
		Kinds: []string{"ui.*"},
		OnEvent: func(_ context.Context, e CustomEvent) error {
			got = append(got, e)
			e.Payload[0] = 'X'
			return nil
		},
	})
	require.NoError(t, err)
	stateCalls := 0
	_, err = p.Subscribe(Subscription{OnState: func(context.Context, StateUpdate) error {
		stateCalls++
		return nil
	}})
	require.NoError(t, err)

	payload := json.RawMessage(`{"toast":"saved"}`)
	p.Broadcast(context.Background(), CustomEvent{Name: "ui.toast", Frame: 3, Payload: payload})
	p.Broadcast(context.Background(), CustomEvent{Name: "debug.dump", Frame: 3})

	require.Len(t, got, 1)
	assert.Equal(t, "ui.toast", got[0].Name)
	assert.Equal(t, `{"toast":"saved"}`, string(payload))
	assert.Zero(t, stateCalls)
}

func TestUnsubscribe(t *testing.T) {
	p := New()
	calls := 0
	id, err := p.Subscribe(Subscription{OnState: func(context.Context, StateUpdate) error {
		calls++
		return nil
	}})
	require.NoError(t, err)

	assert.True(t, p.Unsubscribe(id))
	assert.False(t, p.Unsubscribe(id))
	assert.False(t, p.Unsubscribe(ulid.ULID{}))

	p.Publish(context.Background(), testState(), "k", nil)
	assert.Zero(t, calls)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	p := New()
	var order []string
	var secondID ulid.ULID

	_, err := p.Subscribe(Subscription{Name: "first", OnState: func(context.Context, StateUpdate) error {
		order = append(order, "first")
		p.Unsubscribe(secondID)
		_, err := p.Subscribe(Subscription{Name: "late", OnState: func(context.Context, StateUpdate) error {
			order = append(order, "late")
			return nil
		}})
		return err
	}})
	require.NoError(t, err)
	secondID, err = p.Subscribe(Subscription{Name: "second", OnState: func(context.Context, StateUpdate) error {
		order = append(order, "second")
		return nil
	}})
	require.NoError(t, err)

	p.Publish(context.Background(), testState(), "k", nil)
	// Delivery uses the list as it was when Publish started.
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 2, p.Len())
}

func TestClose(t *testing.T) {
	p := New()
	calls := 0
	_, err := p.Subscribe(Subscription{OnState: func(context.Context, StateUpdate) error {
		calls++
		return nil
	}})
	require.NoError(t, err)

	p.Close()
	p.Publish(context.Background(), testState(), "k", nil)
	assert.Zero(t, calls)
	assert.Equal(t, 0, p.Len())

	_, err = p.Subscribe(Subscription{OnState: func(context.Context, StateUpdate) error { return nil }})
	simerrtest.AssertCode(t, err, simerr.CodeInvalidArgument)
}

func TestPublish_ConcurrentSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New()
	var mu sync.Mutex
	total := 0
	_, err := p.Subscribe(Subscription{OnState: func(context.Context, StateUpdate) error {
		mu.Lock()
		total++
		mu.Unlock()
		return nil
	}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			p.Publish(context.Background(), testState(), "tick", nil)
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			id, err := p.Subscribe(Subscription{OnEvent: func(context.Context, CustomEvent) error { return nil }})
			if err == nil {
				p.Unsubscribe(id)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 200, total)
}
