// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package domain

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
)

var tracer = otel.Tracer("timeline/domain")

// Director cadence, in frames.
const (
	decayEvery     = 5
	questEvery     = 7
	decayThreshold = 0.05
)

var (
	npcNames = []string{"Ada", "Bram", "Cass", "Doro", "Elin", "Fen", "Gale", "Hollis", "Ivo", "Juno"}
	moods    = []string{"calm", "wary", "cheerful", "restless", "grim"}
)

// Setup sizes a new world.
type Setup struct {
	Locations  int
	NPCs       int
	PlayerName string
}

// DefaultSetup is a small world suitable for demos and tests.
var DefaultSetup = Setup{Locations: 5, NPCs: 4, PlayerName: "Wanderer"}

// PlayerID is the id given to the player actor.
const PlayerID = "player"

// Bootstrap initializes the recorder, generates the world, spawns the
// player and NPCs and has the first NPC offer a quest. Everything happens
// at the session's current frame.
func (e *Engine) Bootstrap(ctx context.Context, setup Setup) error {
	if setup.Locations <= 0 {
		return simerr.InvalidArgument("setup needs at least one location", "locations", setup.Locations)
	}
	if setup.NPCs < 0 {
		return simerr.InvalidArgument("negative npc count", "npcs", setup.NPCs)
	}
	if err := e.Begin(); err != nil {
		return err
	}
	locations, err := e.GenerateWorld(ctx, setup.Locations)
	if err != nil {
		return err
	}

	name := setup.PlayerName
	if name == "" {
		name = DefaultSetup.PlayerName
	}
	if err := e.Spawn(ctx, PlayerID, ActorSpawned{
		Name:       name,
		Kind:       string(session.ActorPlayer),
		LocationID: locations[0],
		Health:     20,
		Attributes: map[string]int{"str": 3},
	}); err != nil {
		return err
	}

	for i := range setup.NPCs {
		spec, err := roll(e, "", "spawn", func(rng *rand.Rand) ActorSpawned {
			return ActorSpawned{
				Name:       npcNames[rng.IntN(len(npcNames))],
				Kind:       string(session.ActorNPC),
				LocationID: locations[rng.IntN(len(locations))],
				Health:     8 + rng.IntN(8),
				Attributes: map[string]int{"str": 1 + rng.IntN(4)},
				Traits: map[string]float64{
					"aggression": hundredths(rng.Float64()),
					"openness":   hundredths(rng.Float64()),
				},
				Mood: moods[rng.IntN(len(moods))],
			}
		})
		if err != nil {
			return err
		}
		if err := e.Spawn(ctx, fmt.Sprintf("npc-%d", i+1), spec); err != nil {
			return err
		}
	}

	if setup.NPCs > 0 && len(locations) > 1 {
		if _, err := e.OfferQuest(ctx, "npc-1"); err != nil {
			return err
		}
	}
	e.logger.Info("world bootstrapped",
		"root_seed", e.session.RootSeed,
		"locations", len(locations),
		"npcs", setup.NPCs,
	)
	return nil
}

func hundredths(v float64) float64 {
	return math.Round(v*100) / 100
}

// Intent is an actor's decision for one frame.
type Intent struct {
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// Intent actions.
const (
	ActionRest   = "rest"
	ActionMove   = "move"
	ActionTalk   = "talk"
	ActionAttack = "attack"
)

// decideIntent picks what a living actor does this frame. Aggressive NPCs
// may attack someone sharing their location; everyone may talk, wander
// or rest.
func decideIntent(rng *rand.Rand, s *session.Session, a *session.Actor) Intent {
	var others []string
	for _, id := range s.ActorIDs() {
		o := s.Actors[id]
		if id != a.ID && o.Alive && o.LocationID == a.LocationID {
			others = append(others, id)
		}
	}
	var exits []string
	if loc, ok := s.Locations[a.LocationID]; ok {
		exits = sortedExits(loc)
	}

	r := rng.Float64()
	switch {
	case len(others) > 0 && a.Kind == session.ActorNPC && r < a.Personality.Traits["aggression"]*0.3:
		return Intent{Action: ActionAttack, Target: others[rng.IntN(len(others))]}
	case len(others) > 0 && r < 0.6:
		return Intent{Action: ActionTalk, Target: others[rng.IntN(len(others))]}
	case len(exits) > 0 && r < 0.9:
		return Intent{Action: ActionMove, Direction: exits[rng.IntN(len(exits))]}
	default:
		return Intent{Action: ActionRest}
	}
}

// Step advances one frame and lets every living actor act once, in actor
// id order. Memories decay and new quests are offered on a fixed cadence.
func (e *Engine) Step(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "engine.step",
		trace.WithAttributes(attribute.Int64("frame", int64(e.session.Frame+1)))) //nolint:gosec // frames fit in int64
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.AdvanceFrame(ctx); err != nil {
		return err
	}
	frame := e.session.Frame

	for _, id := range e.session.ActorIDs() {
		a := e.session.Actors[id]
		if !a.Alive {
			continue
		}
		intent, err := roll(e, id, "intent", func(rng *rand.Rand) Intent {
			return decideIntent(rng, e.session, a)
		})
		if err != nil {
			return err
		}
		if err := e.act(ctx, id, intent); err != nil {
			return err
		}
	}

	if frame%decayEvery == 0 {
		if err := e.DecayMemories(ctx, decayThreshold); err != nil {
			return err
		}
	}
	if frame%questEvery == 0 {
		if err := e.maybeOfferQuest(ctx); err != nil {
			return err
		}
	}
	framesStepped.Inc()
	return nil
}

func (e *Engine) act(ctx context.Context, actorID string, intent Intent) error {
	switch intent.Action {
	case ActionMove:
		return e.Move(ctx, actorID, intent.Direction)
	case ActionTalk:
		return e.Talk(ctx, actorID, intent.Target)
	case ActionAttack:
		return e.Attack(ctx, actorID, intent.Target)
	default:
		return nil
	}
}

// maybeOfferQuest has a random living NPC offer a quest when the player is
// alive and has none active.
func (e *Engine) maybeOfferQuest(ctx context.Context) error {
	player, ok := e.session.Actor(e.session.PlayerID)
	if !ok || !player.Alive || len(e.session.Locations) < 2 {
		return nil
	}
	for _, q := range e.session.Quests {
		if q.Status == session.QuestActive {
			return nil
		}
	}
	var givers []string
	for _, id := range e.session.ActorIDs() {
		a := e.session.Actors[id]
		if a.Kind == session.ActorNPC && a.Alive {
			givers = append(givers, id)
		}
	}
	if len(givers) == 0 {
		return nil
	}
	giver, err := roll(e, "", "quest_giver", func(rng *rand.Rand) string {
		return givers[rng.IntN(len(givers))]
	})
	if err != nil {
		return err
	}
	_, err = e.OfferQuest(ctx, giver)
	return err
}

// Run steps frames times.
func (e *Engine) Run(ctx context.Context, frames int) error {
	for range frames {
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}
