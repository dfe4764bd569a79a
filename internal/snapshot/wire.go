// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package snapshot

import (
	"fmt"

	"github.com/holomush/timeline/internal/session"
)

// Wire structs for the current layout. Empty collections are omitted so the
// generated schema can stay strict about types; entity sets are id-sorted
// arrays so encoding is byte-deterministic.

type documentV2 struct {
	Version string    `json:"version" jsonschema:"enum=2.0.0"`
	Session sessionV2 `json:"session"`
}

type sessionV2 struct {
	Frame     uint64            `json:"frame"`
	RootSeed  int64             `json:"root_seed"`
	PlayerID  string            `json:"player_id,omitempty"`
	Actors    []actorV2         `json:"actors,omitempty"`
	Locations []locationV2      `json:"locations,omitempty"`
	Quests    []questV2         `json:"quests,omitempty"`
	Flags     map[string]string `json:"flags,omitempty"`
}

type personalityV2 struct {
	Traits map[string]float64 `json:"traits,omitempty"`
	Mood   string             `json:"mood,omitempty"`
	Goals  []string           `json:"goals,omitempty"`
}

type memoryV2 struct {
	ID         string   `json:"id" jsonschema:"minLength=1"`
	Frame      uint64   `json:"frame"`
	Content    string   `json:"content"`
	Importance float64  `json:"importance"`
	Decay      float64  `json:"decay"`
	Tags       []string `json:"tags,omitempty"`
}

type relationshipV2 struct {
	Affinity float64 `json:"affinity"`
	Trust    float64 `json:"trust"`
	Fear     float64 `json:"fear"`
}

type actorV2 struct {
	ID            string                    `json:"id" jsonschema:"minLength=1"`
	Name          string                    `json:"name"`
	Kind          string                    `json:"kind" jsonschema:"enum=player,enum=npc"`
	LocationID    string                    `json:"location_id,omitempty"`
	Health        int                       `json:"health"`
	MaxHealth     int                       `json:"max_health"`
	Alive         bool                      `json:"alive"`
	Attributes    map[string]int            `json:"attributes,omitempty"`
	Personality   personalityV2             `json:"personality"`
	Memories      []memoryV2                `json:"memories,omitempty"`
	Relationships map[string]relationshipV2 `json:"relationships,omitempty"`
	Inventory     []string                  `json:"inventory,omitempty"`
}

type locationV2 struct {
	ID          string            `json:"id" jsonschema:"minLength=1"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Region      string            `json:"region,omitempty"`
	Exits       map[string]string `json:"exits,omitempty"`
	Discovered  bool              `json:"discovered"`
	Tags        []string          `json:"tags,omitempty"`
}

type objectiveV2 struct {
	ID          string `json:"id" jsonschema:"minLength=1"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type questV2 struct {
	ID             string        `json:"id" jsonschema:"minLength=1"`
	Title          string        `json:"title"`
	GiverID        string        `json:"giver_id,omitempty"`
	Status         string        `json:"status" jsonschema:"enum=active,enum=completed,enum=failed"`
	Objectives     []objectiveV2 `json:"objectives,omitempty"`
	AcceptedFrame  uint64        `json:"accepted_frame"`
	CompletedFrame uint64        `json:"completed_frame,omitempty"`
}

// Wire structs for the 1.x layout. Only decoded, never written.

type documentV1 struct {
	Version string    `json:"version"`
	Session sessionV1 `json:"session"`
}

type sessionV1 struct {
	Frame     uint64            `json:"frame"`
	RootSeed  int64             `json:"root_seed"`
	PlayerID  string            `json:"player_id,omitempty"`
	Actors    []actorV1         `json:"actors,omitempty"`
	Locations []locationV2      `json:"locations,omitempty"`
	Quests    []questV1         `json:"quests,omitempty"`
	Flags     map[string]string `json:"flags,omitempty"`
}

type memoryV1 struct {
	ID         string  `json:"id"`
	Frame      uint64  `json:"frame"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

type actorV1 struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	LocationID  string         `json:"location_id,omitempty"`
	Health      int            `json:"health"`
	MaxHealth   int            `json:"max_health"`
	Alive       bool           `json:"alive"`
	Attributes  map[string]int `json:"attributes,omitempty"`
	Personality personalityV2  `json:"personality"`
	Memories    []memoryV1     `json:"memories,omitempty"`
	// Affinity by other actor id.
	Relationships map[string]float64 `json:"relationships,omitempty"`
	Inventory     []string           `json:"inventory,omitempty"`
}

type questV1 struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	GiverID        string        `json:"giver_id,omitempty"`
	Status         string        `json:"status"`
	Objectives     []objectiveV2 `json:"objectives,omitempty"`
	AcceptedFrame  uint64        `json:"accepted_frame"`
	CompletedFrame uint64        `json:"completed_frame,omitempty"`
}

func toWire(s *session.Session) documentV2 {
	out := sessionV2{
		Frame:    s.Frame,
		RootSeed: s.RootSeed,
		PlayerID: s.PlayerID,
		Flags:    nilIfEmpty(s.Flags),
	}
	for _, id := range s.ActorIDs() {
		a := s.Actors[id]
		w := actorV2{
			ID:         a.ID,
			Name:       a.Name,
			Kind:       string(a.Kind),
			LocationID: a.LocationID,
			Health:     a.Health,
			MaxHealth:  a.MaxHealth,
			Alive:      a.Alive,
			Attributes: nilIfEmpty(a.Attributes),
			Personality: personalityV2{
				Traits: nilIfEmpty(a.Personality.Traits),
				Mood:   a.Personality.Mood,
				Goals:  a.Personality.Goals,
			},
			Inventory: a.Inventory,
		}
		for _, m := range a.Memories {
			w.Memories = append(w.Memories, memoryV2{
				ID:         m.ID,
				Frame:      m.Frame,
				Content:    m.Content,
				Importance: m.Importance,
				Decay:      m.Decay,
				Tags:       m.Tags,
			})
		}
		if len(a.Relationships) > 0 {
			w.Relationships = make(map[string]relationshipV2, len(a.Relationships))
			for other, r := range a.Relationships {
				w.Relationships[other] = relationshipV2(r)
			}
		}
		out.Actors = append(out.Actors, w)
	}
	for _, id := range s.LocationIDs() {
		l := s.Locations[id]
		out.Locations = append(out.Locations, locationV2{
			ID:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Region:      l.Region,
			Exits:       nilIfEmpty(l.Exits),
			Discovered:  l.Discovered,
			Tags:        l.Tags,
		})
	}
	for _, id := range s.QuestIDs() {
		q := s.Quests[id]
		w := questV2{
			ID:             q.ID,
			Title:          q.Title,
			GiverID:        q.GiverID,
			Status:         string(q.Status),
			AcceptedFrame:  q.AcceptedFrame,
			CompletedFrame: q.CompletedFrame,
		}
		for _, o := range q.Objectives {
			w.Objectives = append(w.Objectives, objectiveV2(o))
		}
		out.Quests = append(out.Quests, w)
	}
	return documentV2{Version: CurrentVersion, Session: out}
}

func fromWireV2(w sessionV2) (*session.Session, error) {
	s := session.New(w.RootSeed)
	s.Frame = w.Frame
	s.PlayerID = w.PlayerID
	for k, v := range w.Flags {
		s.Flags[k] = v
	}
	for _, a := range w.Actors {
		if _, dup := s.Actors[a.ID]; dup {
			return nil, fmt.Errorf("duplicate actor %q", a.ID)
		}
		actor := &session.Actor{
			ID:         a.ID,
			Name:       a.Name,
			Kind:       session.ActorKind(a.Kind),
			LocationID: a.LocationID,
			Health:     a.Health,
			MaxHealth:  a.MaxHealth,
			Alive:      a.Alive,
			Attributes: nilIfEmpty(a.Attributes),
			Personality: session.Personality{
				Traits: nilIfEmpty(a.Personality.Traits),
				Mood:   a.Personality.Mood,
				Goals:  nilIfEmptySlice(a.Personality.Goals),
			},
			Inventory: nilIfEmptySlice(a.Inventory),
		}
		for _, m := range a.Memories {
			actor.Memories = append(actor.Memories, session.Memory{
				ID:         m.ID,
				Frame:      m.Frame,
				Content:    m.Content,
				Importance: m.Importance,
				Decay:      m.Decay,
				Tags:       nilIfEmptySlice(m.Tags),
			})
		}
		if len(a.Relationships) > 0 {
			actor.Relationships = make(map[string]session.Relationship, len(a.Relationships))
			for other, r := range a.Relationships {
				actor.Relationships[other] = session.Relationship(r)
			}
		}
		s.Actors[a.ID] = actor
	}
	if err := addLocations(s, w.Locations); err != nil {
		return nil, err
	}
	for _, q := range w.Quests {
		if err := addQuest(s, questV1(q)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func fromWireV1(w sessionV1) (*session.Session, error) {
	s := session.New(w.RootSeed)
	s.Frame = w.Frame
	s.PlayerID = w.PlayerID
	for k, v := range w.Flags {
		s.Flags[k] = v
	}
	for _, a := range w.Actors {
		if _, dup := s.Actors[a.ID]; dup {
			return nil, fmt.Errorf("duplicate actor %q", a.ID)
		}
		actor := &session.Actor{
			ID:         a.ID,
			Name:       a.Name,
			Kind:       session.ActorKind(a.Kind),
			LocationID: a.LocationID,
			Health:     a.Health,
			MaxHealth:  a.MaxHealth,
			Alive:      a.Alive,
			Attributes: nilIfEmpty(a.Attributes),
			Personality: session.Personality{
				Traits: nilIfEmpty(a.Personality.Traits),
				Mood:   a.Personality.Mood,
				Goals:  nilIfEmptySlice(a.Personality.Goals),
			},
			Inventory: nilIfEmptySlice(a.Inventory),
		}
		for _, m := range a.Memories {
			actor.Memories = append(actor.Memories, session.Memory{
				ID:         m.ID,
				Frame:      m.Frame,
				Content:    m.Content,
				Importance: m.Importance,
			})
		}
		if len(a.Relationships) > 0 {
			actor.Relationships = make(map[string]session.Relationship, len(a.Relationships))
			for other, affinity := range a.Relationships {
				actor.Relationships[other] = session.Relationship{Affinity: affinity}
			}
		}
		s.Actors[a.ID] = actor
	}
	if err := addLocations(s, w.Locations); err != nil {
		return nil, err
	}
	for _, q := range w.Quests {
		if q.Status == string(session.QuestFailed) {
			return nil, fmt.Errorf("quest %q: status %q not valid in %s", q.ID, q.Status, VersionV1)
		}
		if err := addQuest(s, q); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func addLocations(s *session.Session, locs []locationV2) error {
	for _, l := range locs {
		if _, dup := s.Locations[l.ID]; dup {
			return fmt.Errorf("duplicate location %q", l.ID)
		}
		s.Locations[l.ID] = &session.Location{
			ID:          l.ID,
			Name:        l.Name,
			Description: l.Description,
			Region:      l.Region,
			Exits:       nilIfEmpty(l.Exits),
			Discovered:  l.Discovered,
			Tags:        nilIfEmptySlice(l.Tags),
		}
	}
	return nil
}

func addQuest(s *session.Session, q questV1) error {
	if _, dup := s.Quests[q.ID]; dup {
		return fmt.Errorf("duplicate quest %q", q.ID)
	}
	switch session.QuestStatus(q.Status) {
	case session.QuestActive, session.QuestCompleted, session.QuestFailed:
	default:
		return fmt.Errorf("quest %q: unknown status %q", q.ID, q.Status)
	}
	quest := &session.Quest{
		ID:             q.ID,
		Title:          q.Title,
		GiverID:        q.GiverID,
		Status:         session.QuestStatus(q.Status),
		AcceptedFrame:  q.AcceptedFrame,
		CompletedFrame: q.CompletedFrame,
	}
	for _, o := range q.Objectives {
		quest.Objectives = append(quest.Objectives, session.Objective(o))
	}
	s.Quests[q.ID] = quest
	return nil
}

func nilIfEmpty[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	return m
}

func nilIfEmptySlice[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
