// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/session"
)

// Rules applies recorded events. It is the Applier used for reconstruction.
type Rules struct{}

// ApplyRecordedEvent applies e to s.
func (Rules) ApplyRecordedEvent(s *session.Session, e record.Event) error {
	return Apply(s, e)
}

// Apply is the single state transition for every event kind. Live play and
// reconstruction both go through it, so equal logs give equal sessions.
func Apply(s *session.Session, e record.Event) error {
	switch e.Kind {
	case KindWorldGenerated:
		return applyPayload(e, func(p WorldGenerated) error { return applyWorld(s, p) })
	case KindActorSpawned:
		return applyPayload(e, func(p ActorSpawned) error { return applySpawn(s, e.ActorID, p) })
	case KindActorMoved:
		return applyPayload(e, func(p ActorMoved) error { return applyMove(s, e.ActorID, p) })
	case KindDialogueTurn:
		return applyPayload(e, func(p DialogueTurn) error { return applyDialogue(s, e.ActorID, e.Frame, p) })
	case KindCombatRound:
		return applyPayload(e, func(p CombatRound) error { return applyCombat(s, e.ActorID, p) })
	case KindQuestAccepted:
		return applyPayload(e, func(p QuestAccepted) error { return applyQuestAccepted(s, e.Frame, p) })
	case KindObjectiveCompleted:
		return applyPayload(e, func(p ObjectiveCompleted) error { return applyObjective(s, p) })
	case KindQuestCompleted:
		return applyPayload(e, func(p QuestCompleted) error { return applyQuestCompleted(s, e.Frame, p) })
	case KindQuestFailed:
		return applyPayload(e, func(p QuestFailed) error { return applyQuestFailed(s, e.Frame, p) })
	case KindMemoryDecayed:
		return applyPayload(e, func(p MemoryDecayed) error { applyDecay(s, p); return nil })
	case KindFrameAdvanced:
		return applyPayload(e, func(p FrameAdvanced) error {
			if p.Frame < s.Frame {
				return fmt.Errorf("frame_advanced to %d behind session frame %d", p.Frame, s.Frame)
			}
			s.Frame = p.Frame
			return nil
		})
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

func applyPayload[T any](e record.Event, fn func(T) error) error {
	var p T
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("%s payload: %w", e.Kind, err)
	}
	if err := fn(p); err != nil {
		return fmt.Errorf("%s: %w", e.Kind, err)
	}
	return nil
}

func applyWorld(s *session.Session, p WorldGenerated) error {
	for _, l := range p.Locations {
		if _, ok := s.Locations[l.ID]; ok {
			return fmt.Errorf("location %q already exists", l.ID)
		}
	}
	for _, l := range p.Locations {
		s.Locations[l.ID] = &session.Location{
			ID:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Region:      p.Region,
			Exits:       cloneExits(l.Exits),
		}
	}
	s.Flags["region"] = p.Region
	return nil
}

func cloneExits(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func applySpawn(s *session.Session, id string, p ActorSpawned) error {
	if id == "" {
		return fmt.Errorf("missing actor id")
	}
	if _, ok := s.Actors[id]; ok {
		return fmt.Errorf("actor %q already exists", id)
	}
	loc, ok := s.Locations[p.LocationID]
	if !ok {
		return fmt.Errorf("unknown location %q", p.LocationID)
	}
	kind := session.ActorKind(p.Kind)
	if kind != session.ActorPlayer && kind != session.ActorNPC {
		return fmt.Errorf("unknown actor kind %q", p.Kind)
	}
	for name, v := range p.Attributes {
		if v < 0 {
			return fmt.Errorf("actor %q attribute %q is negative: %d", id, name, v)
		}
	}
	s.Actors[id] = &session.Actor{
		ID:         id,
		Name:       p.Name,
		Kind:       kind,
		LocationID: p.LocationID,
		Health:     p.Health,
		MaxHealth:  p.Health,
		Alive:      p.Health > 0,
		Attributes: p.Attributes,
		Personality: session.Personality{
			Traits: p.Traits,
			Mood:   p.Mood,
			Goals:  p.Goals,
		},
	}
	if kind == session.ActorPlayer {
		s.PlayerID = id
		loc.Discovered = true
	}
	return nil
}

func livingActor(s *session.Session, id string) (*session.Actor, error) {
	a, ok := s.Actors[id]
	if !ok {
		return nil, fmt.Errorf("unknown actor %q", id)
	}
	if !a.Alive {
		return nil, fmt.Errorf("actor %q is dead", id)
	}
	return a, nil
}

func applyMove(s *session.Session, id string, p ActorMoved) error {
	a, err := livingActor(s, id)
	if err != nil {
		return err
	}
	if a.LocationID != p.From {
		return fmt.Errorf("actor %q is at %q, not %q", id, a.LocationID, p.From)
	}
	to, ok := s.Locations[p.To]
	if !ok {
		return fmt.Errorf("unknown location %q", p.To)
	}
	a.LocationID = p.To
	if id == s.PlayerID {
		to.Discovered = true
	}
	return nil
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func applyDialogue(s *session.Session, speakerID string, frame uint64, p DialogueTurn) error {
	speaker, err := livingActor(s, speakerID)
	if err != nil {
		return err
	}
	listener, err := livingActor(s, p.ListenerID)
	if err != nil {
		return err
	}
	if _, ok := listener.Memory(p.MemoryID); ok {
		return fmt.Errorf("actor %q already remembers %q", p.ListenerID, p.MemoryID)
	}
	if listener.Relationships == nil {
		listener.Relationships = make(map[string]session.Relationship)
	}
	r := listener.Relationships[speakerID]
	r.Affinity = clamp(r.Affinity + p.Affinity)
	r.Trust = clamp(r.Trust + p.Trust)
	r.Fear = clamp(r.Fear + p.Fear)
	listener.Relationships[speakerID] = r

	listener.Memories = append(listener.Memories, session.Memory{
		ID:         p.MemoryID,
		Frame:      frame,
		Content:    speaker.Name + ": " + p.Line,
		Importance: p.Importance,
		Decay:      p.Decay,
		Tags:       []string{"dialogue", speakerID},
	})
	return nil
}

func applyCombat(s *session.Session, attackerID string, p CombatRound) error {
	if _, err := livingActor(s, attackerID); err != nil {
		return err
	}
	defender, err := livingActor(s, p.DefenderID)
	if err != nil {
		return err
	}
	defender.Health -= p.Damage
	if defender.Health <= 0 {
		defender.Health = 0
		defender.Alive = false
	}
	if defender.Relationships == nil {
		defender.Relationships = make(map[string]session.Relationship)
	}
	r := defender.Relationships[attackerID]
	r.Affinity = clamp(r.Affinity - 0.25)
	r.Fear = clamp(r.Fear + 0.25)
	defender.Relationships[attackerID] = r
	return nil
}

func applyQuestAccepted(s *session.Session, frame uint64, p QuestAccepted) error {
	if _, ok := s.Quests[p.QuestID]; ok {
		return fmt.Errorf("quest %q already exists", p.QuestID)
	}
	if _, ok := s.Actors[p.GiverID]; !ok {
		return fmt.Errorf("unknown quest giver %q", p.GiverID)
	}
	q := &session.Quest{
		ID:            p.QuestID,
		Title:         p.Title,
		GiverID:       p.GiverID,
		Status:        session.QuestActive,
		AcceptedFrame: frame,
	}
	for _, o := range p.Objectives {
		q.Objectives = append(q.Objectives, session.Objective{ID: o.ID, Description: o.Description})
	}
	s.Quests[p.QuestID] = q
	return nil
}

func activeQuest(s *session.Session, id string) (*session.Quest, error) {
	q, ok := s.Quests[id]
	if !ok {
		return nil, fmt.Errorf("unknown quest %q", id)
	}
	if q.Status != session.QuestActive {
		return nil, fmt.Errorf("quest %q is %s", id, q.Status)
	}
	return q, nil
}

func applyObjective(s *session.Session, p ObjectiveCompleted) error {
	q, err := activeQuest(s, p.QuestID)
	if err != nil {
		return err
	}
	o, ok := q.Objective(p.ObjectiveID)
	if !ok {
		return fmt.Errorf("quest %q has no objective %q", p.QuestID, p.ObjectiveID)
	}
	o.Completed = true
	return nil
}

func applyQuestCompleted(s *session.Session, frame uint64, p QuestCompleted) error {
	q, err := activeQuest(s, p.QuestID)
	if err != nil {
		return err
	}
	if !q.AllObjectivesComplete() {
		return fmt.Errorf("quest %q has open objectives", p.QuestID)
	}
	q.Status = session.QuestCompleted
	q.CompletedFrame = frame
	return nil
}

func applyQuestFailed(s *session.Session, frame uint64, p QuestFailed) error {
	q, err := activeQuest(s, p.QuestID)
	if err != nil {
		return err
	}
	q.Status = session.QuestFailed
	q.CompletedFrame = frame
	return nil
}

func applyDecay(s *session.Session, p MemoryDecayed) {
	for _, id := range s.ActorIDs() {
		a := s.Actors[id]
		if len(a.Memories) == 0 {
			continue
		}
		kept := a.Memories[:0]
		for _, m := range a.Memories {
			m.Importance -= m.Decay
			if m.Importance > p.Threshold {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		a.Memories = kept
	}
}
