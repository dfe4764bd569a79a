// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/timeline/internal/continuation"
	"github.com/holomush/timeline/internal/generator"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
)

// DefaultCheckpointInterval is the number of frames between checkpoints.
const DefaultCheckpointInterval = 10

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher publishes every applied event's resulting state.
func WithPublisher(p *publish.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithCodec sets the snapshot codec used for checkpoints.
func WithCodec(c *snapshot.Codec) Option {
	return func(e *Engine) { e.codec = c }
}

// WithCheckpointInterval sets the checkpoint interval. Zero disables
// periodic checkpoints.
func WithCheckpointInterval(frames int) Option {
	return func(e *Engine) { e.interval = frames }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine drives a session. Every operation decides an outcome, records it,
// applies it through Apply, checkpoints when due and publishes the result.
// An Engine is not safe for concurrent use.
type Engine struct {
	session  *session.Session
	rec      *record.Recorder
	gen      generator.Generator
	pub      *publish.Publisher
	codec    *snapshot.Codec
	interval int
	logger   *slog.Logger
}

// NewEngine creates an engine over s logging to rec.
func NewEngine(s *session.Session, rec *record.Recorder, gen generator.Generator, opts ...Option) *Engine {
	e := &Engine{
		session:  s,
		rec:      rec,
		gen:      gen,
		interval: DefaultCheckpointInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		e.codec = snapshot.NewCodec()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// FromContinuation creates an engine that keeps playing a forked session.
// The continuation's recorder is already initialized.
func FromContinuation(c *continuation.Continuation, gen generator.Generator, opts ...Option) *Engine {
	return NewEngine(c.Session, c.Recorder, gen, opts...)
}

// Session returns the live session.
func (e *Engine) Session() *session.Session {
	return e.session
}

// Recorder returns the engine's recorder.
func (e *Engine) Recorder() *record.Recorder {
	return e.rec
}

// Frame returns the current frame.
func (e *Engine) Frame() uint64 {
	return e.session.Frame
}

// Begin initializes the recorder with the session as its first checkpoint.
func (e *Engine) Begin() error {
	return e.rec.Initialize(e.session.RootSeed, e.session.Frame, e.codec.SnapshotFunc(e.session))
}

// emit validates payload against a clone of the session, then records and
// applies it. A rejected event is never recorded.
func (e *Engine) emit(ctx context.Context, frame uint64, kind record.Kind, actorID string, payload any) (record.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return record.Event{}, oops.In("domain").With("kind", kind).Wrapf(err, "encode payload")
	}
	probe := e.session.Clone()
	probe.Frame = frame
	if err := Apply(probe, record.Event{Frame: frame, Kind: kind, ActorID: actorID, Payload: data}); err != nil {
		eventsRejected.WithLabelValues(string(kind)).Inc()
		return record.Event{}, simerr.InvalidArgument(err.Error(), "kind", string(kind), "actor_id", actorID)
	}

	evt, err := e.rec.Record(frame, kind, actorID, data)
	if err != nil {
		return record.Event{}, err
	}
	e.session.Frame = frame
	if err := Apply(e.session, evt); err != nil {
		return evt, oops.In("domain").With("event_id", evt.ID.String()).Wrapf(err, "apply recorded event")
	}

	if e.rec.ShouldCheckpoint(frame, e.interval) {
		if _, err := e.rec.Checkpoint(frame, e.codec.SnapshotFunc(e.session)); err != nil {
			return evt, err
		}
		e.logger.Debug("checkpoint taken", "frame", frame)
	}
	if e.pub != nil {
		e.pub.Publish(ctx, e.session, string(kind), map[string]any{
			"event_id": evt.ID.String(),
			"actor_id": actorID,
		})
	}
	return evt, nil
}

// generate consults the generator with the next derived seed for
// (actorID, op) and records the round trip.
func (e *Engine) generate(ctx context.Context, actorID, op, prompt string, params map[string]string) (generator.Response, error) {
	derived, _, err := e.rec.DeriveSeed(actorID, op)
	if err != nil {
		return generator.Response{}, err
	}
	req := generator.Request{Operation: op, ActorID: actorID, Seed: derived, Prompt: prompt, Params: params}
	resp, err := e.gen.Generate(ctx, req)
	if err != nil {
		return generator.Response{}, oops.
			In("domain").
			With("operation", op).
			With("actor_id", actorID).
			Wrapf(err, "generate")
	}
	reqData, err := json.Marshal(req)
	if err != nil {
		return generator.Response{}, err
	}
	respData, err := json.Marshal(resp)
	if err != nil {
		return generator.Response{}, err
	}
	if _, err := e.rec.RecordGeneratorCall(e.session.Frame, actorID, op, derived, reqData, respData); err != nil {
		return generator.Response{}, err
	}
	return resp, nil
}

type rollRequest struct {
	Seed int64 `json:"seed"`
}

// roll makes a seeded random decision and records it as a generator call,
// so the decision is visible in the log and reproducible from the seed.
func roll[T any](e *Engine, actorID, op string, decide func(*rand.Rand) T) (T, error) {
	var zero T
	derived, _, err := e.rec.DeriveSeed(actorID, op)
	if err != nil {
		return zero, err
	}
	out := decide(generator.Rand(derived))
	reqData, err := json.Marshal(rollRequest{Seed: derived})
	if err != nil {
		return zero, err
	}
	respData, err := json.Marshal(out)
	if err != nil {
		return zero, err
	}
	if _, err := e.rec.RecordGeneratorCall(e.session.Frame, actorID, op, derived, reqData, respData); err != nil {
		return zero, err
	}
	return out, nil
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// GenerateWorld asks the generator for a region of count locations and
// links them east to west in order, closing the loop north to south when
// there are at least three.
func (e *Engine) GenerateWorld(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return nil, simerr.InvalidArgument("location count must be positive", "count", count)
	}
	if len(e.session.Locations) > 0 {
		return nil, simerr.InvalidArgument("world already generated")
	}
	resp, err := e.generate(ctx, "", generator.OpWorld, "", map[string]string{"count": strconv.Itoa(count)})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, simerr.InvalidArgument("generator returned no locations")
	}

	specs := make([]LocationSpec, 0, len(resp.Items))
	seen := make(map[string]bool, len(resp.Items))
	for i, name := range resp.Items {
		id := slug(name)
		if id == "" || seen[id] {
			id = fmt.Sprintf("%s-%d", id, i+1)
		}
		seen[id] = true
		specs = append(specs, LocationSpec{
			ID:          id,
			Name:        name,
			Description: fmt.Sprintf("%s, in %s.", name, resp.Text),
			Exits:       map[string]string{},
		})
	}
	for i := 0; i+1 < len(specs); i++ {
		specs[i].Exits["east"] = specs[i+1].ID
		specs[i+1].Exits["west"] = specs[i].ID
	}
	if n := len(specs); n >= 3 {
		specs[0].Exits["north"] = specs[n-1].ID
		specs[n-1].Exits["south"] = specs[0].ID
	}

	if _, err := e.emit(ctx, e.session.Frame, KindWorldGenerated, "", WorldGenerated{Region: resp.Text, Locations: specs}); err != nil {
		return nil, err
	}
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids, nil
}

// Spawn adds an actor with id.
func (e *Engine) Spawn(ctx context.Context, id string, spec ActorSpawned) error {
	_, err := e.emit(ctx, e.session.Frame, KindActorSpawned, id, spec)
	return err
}

// Move moves actorID through the exit named direction. When the player
// arrives somewhere an active quest asks them to visit, the objective and,
// if it was the last one, the quest complete.
func (e *Engine) Move(ctx context.Context, actorID, direction string) error {
	a, ok := e.session.Actor(actorID)
	if !ok {
		return simerr.InvalidArgument("unknown actor", "actor_id", actorID)
	}
	loc, ok := e.session.Location(a.LocationID)
	if !ok {
		return simerr.InvalidArgument("actor has no location", "actor_id", actorID)
	}
	to, ok := loc.Exits[direction]
	if !ok {
		return simerr.InvalidArgument("no exit", "location_id", loc.ID, "direction", direction)
	}
	if _, err := e.emit(ctx, e.session.Frame, KindActorMoved, actorID, ActorMoved{From: loc.ID, To: to, Direction: direction}); err != nil {
		return err
	}
	if actorID != e.session.PlayerID {
		return nil
	}
	for _, qid := range e.session.QuestIDs() {
		q := e.session.Quests[qid]
		if q.Status != session.QuestActive {
			continue
		}
		if o, ok := q.Objective(visitObjective(to)); ok && !o.Completed {
			if err := e.CompleteObjective(ctx, qid, o.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func visitObjective(locationID string) string {
	return "visit:" + locationID
}

// Talk has speakerID say a generated line to listenerID.
func (e *Engine) Talk(ctx context.Context, speakerID, listenerID string) error {
	if speakerID == listenerID {
		return simerr.InvalidArgument("actor cannot talk to itself", "actor_id", speakerID)
	}
	if _, err := livingActor(e.session, speakerID); err != nil {
		return simerr.InvalidArgument(err.Error())
	}
	if _, err := livingActor(e.session, listenerID); err != nil {
		return simerr.InvalidArgument(err.Error())
	}
	resp, err := e.generate(ctx, speakerID, generator.OpDialogue,
		speakerID+" speaks to "+listenerID, map[string]string{"listener": listenerID})
	if err != nil {
		return err
	}
	importance := resp.Scores["importance"]
	if importance <= 0 {
		importance = 0.5
	}
	listener := e.session.Actors[listenerID]
	memoryID := freshID(fmt.Sprintf("mem-%s-%d", speakerID, e.session.Frame), func(id string) bool {
		_, ok := listener.Memory(id)
		return ok
	})
	_, err = e.emit(ctx, e.session.Frame, KindDialogueTurn, speakerID, DialogueTurn{
		ListenerID: listenerID,
		Line:       resp.Text,
		Affinity:   resp.Scores["affinity"],
		Trust:      resp.Scores["trust"],
		Fear:       resp.Scores["fear"],
		MemoryID:   memoryID,
		Importance: importance,
		Decay:      memoryDecay,
	})
	return err
}

const memoryDecay = 0.1

// freshID returns base, or base with the smallest numeric suffix taken does
// not report. IDs derive from the frame and the live session, so a fork
// continuing from inherited state never reissues one.
func freshID(base string, taken func(string) bool) string {
	id := base
	for n := 2; taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// Attack has attackerID strike defenderID for a rolled amount of damage.
// Quests given by a defender who dies fail.
func (e *Engine) Attack(ctx context.Context, attackerID, defenderID string) error {
	if attackerID == defenderID {
		return simerr.InvalidArgument("actor cannot attack itself", "actor_id", attackerID)
	}
	attacker, err := livingActor(e.session, attackerID)
	if err != nil {
		return simerr.InvalidArgument(err.Error())
	}
	if _, err := livingActor(e.session, defenderID); err != nil {
		return simerr.InvalidArgument(err.Error())
	}
	strength := attacker.Attributes["str"]
	damage, err := roll(e, attackerID, "damage", func(rng *rand.Rand) int {
		return 1 + rng.IntN(max(strength+3, 1))
	})
	if err != nil {
		return err
	}
	if _, err := e.emit(ctx, e.session.Frame, KindCombatRound, attackerID, CombatRound{DefenderID: defenderID, Damage: damage}); err != nil {
		return err
	}
	if e.session.Actors[defenderID].Alive {
		return nil
	}
	for _, qid := range e.session.QuestIDs() {
		q := e.session.Quests[qid]
		if q.Status == session.QuestActive && q.GiverID == defenderID {
			if err := e.FailQuest(ctx, qid, "quest giver died"); err != nil {
				return err
			}
		}
	}
	return nil
}

// OfferQuest has giverID hand the player a generated quest to visit one or
// more locations the player is not standing in.
func (e *Engine) OfferQuest(ctx context.Context, giverID string) (string, error) {
	if _, err := livingActor(e.session, giverID); err != nil {
		return "", simerr.InvalidArgument(err.Error())
	}
	player, ok := e.session.Actor(e.session.PlayerID)
	if !ok {
		return "", simerr.InvalidArgument("no player")
	}
	var candidates []string
	for _, id := range e.session.LocationIDs() {
		if id != player.LocationID {
			candidates = append(candidates, id)
		}
	}
	resp, err := e.generate(ctx, giverID, generator.OpQuest, "quest from "+giverID,
		map[string]string{"locations": strings.Join(candidates, ",")})
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", simerr.InvalidArgument("generator returned no objectives", "giver_id", giverID)
	}
	objectives := make([]ObjectiveSpec, 0, len(resp.Items))
	for _, locID := range resp.Items {
		name := locID
		if l, ok := e.session.Location(locID); ok {
			name = l.Name
		}
		objectives = append(objectives, ObjectiveSpec{ID: visitObjective(locID), Description: "Visit " + name})
	}
	questID := freshID(fmt.Sprintf("quest-%s-%d", giverID, e.session.Frame), func(id string) bool {
		_, ok := e.session.Quests[id]
		return ok
	})
	_, err = e.emit(ctx, e.session.Frame, KindQuestAccepted, giverID, QuestAccepted{
		QuestID:    questID,
		Title:      resp.Text,
		GiverID:    giverID,
		Objectives: objectives,
	})
	if err != nil {
		return "", err
	}
	return questID, nil
}

// CompleteObjective marks an objective done and completes the quest when
// nothing is left open.
func (e *Engine) CompleteObjective(ctx context.Context, questID, objectiveID string) error {
	if _, err := e.emit(ctx, e.session.Frame, KindObjectiveCompleted, e.session.PlayerID,
		ObjectiveCompleted{QuestID: questID, ObjectiveID: objectiveID}); err != nil {
		return err
	}
	if !e.session.Quests[questID].AllObjectivesComplete() {
		return nil
	}
	_, err := e.emit(ctx, e.session.Frame, KindQuestCompleted, e.session.PlayerID, QuestCompleted{QuestID: questID})
	return err
}

// FailQuest fails an active quest.
func (e *Engine) FailQuest(ctx context.Context, questID, reason string) error {
	_, err := e.emit(ctx, e.session.Frame, KindQuestFailed, "", QuestFailed{QuestID: questID, Reason: reason})
	return err
}

// DecayMemories ages every memory once and forgets those at or below
// threshold.
func (e *Engine) DecayMemories(ctx context.Context, threshold float64) error {
	_, err := e.emit(ctx, e.session.Frame, KindMemoryDecayed, "", MemoryDecayed{Threshold: threshold})
	return err
}

// AdvanceFrame moves the session to the next frame.
func (e *Engine) AdvanceFrame(ctx context.Context) error {
	next := e.session.Frame + 1
	_, err := e.emit(ctx, next, KindFrameAdvanced, "", FrameAdvanced{Frame: next})
	return err
}

// sortedExits returns the exit directions of loc in order.
func sortedExits(loc *session.Location) []string {
	dirs := make([]string, 0, len(loc.Exits))
	for d := range loc.Exits {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}
