// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session defines the mutable simulation state that the log
// checkpoints, reconstructs and forks.
package session

import (
	"sort"

	"github.com/samber/oops"
)

// ActorKind distinguishes the player from NPCs.
type ActorKind string

// Actor kinds.
const (
	ActorPlayer ActorKind = "player"
	ActorNPC    ActorKind = "npc"
)

// QuestStatus is the lifecycle state of a quest.
type QuestStatus string

// Quest statuses.
const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
)

// Session is the complete simulation state at one frame.
//
// A Session is owned by a single controller and is not safe for concurrent
// use. Hand other goroutines a Clone.
type Session struct {
	Frame     uint64
	RootSeed  int64
	PlayerID  string
	Actors    map[string]*Actor
	Locations map[string]*Location
	Quests    map[string]*Quest
	// Flags holds world-level facts set by domain events.
	Flags map[string]string
}

// Personality is the actor's trait vector plus its current disposition.
type Personality struct {
	Traits map[string]float64
	Mood   string
	Goals  []string
}

// Memory is one remembered fact with its salience bookkeeping.
type Memory struct {
	ID         string
	Frame      uint64
	Content    string
	Importance float64
	Decay      float64
	Tags       []string
}

// Relationship holds the pairwise scalars an actor keeps about another.
type Relationship struct {
	Affinity float64
	Trust    float64
	Fear     float64
}

// Actor is the player or an NPC.
type Actor struct {
	ID            string
	Name          string
	Kind          ActorKind
	LocationID    string
	Health        int
	MaxHealth     int
	Alive         bool
	Attributes    map[string]int
	Personality   Personality
	Memories      []Memory
	Relationships map[string]Relationship // keyed by other actor id
	Inventory     []string
}

// Location is a node of the world graph.
type Location struct {
	ID          string
	Name        string
	Description string
	Region      string
	Exits       map[string]string // direction -> location id
	Discovered  bool
	Tags        []string
}

// Objective is one step of a quest.
type Objective struct {
	ID          string
	Description string
	Completed   bool
}

// Quest is an active or finished quest record.
type Quest struct {
	ID             string
	Title          string
	GiverID        string
	Status         QuestStatus
	Objectives     []Objective
	AcceptedFrame  uint64
	CompletedFrame uint64
}

// New creates an empty session.
func New(rootSeed int64) *Session {
	return &Session{
		RootSeed:  rootSeed,
		Actors:    make(map[string]*Actor),
		Locations: make(map[string]*Location),
		Quests:    make(map[string]*Quest),
		Flags:     make(map[string]string),
	}
}

// Actor returns the actor with the given id.
func (s *Session) Actor(id string) (*Actor, bool) {
	a, ok := s.Actors[id]
	return a, ok
}

// Location returns the location with the given id.
func (s *Session) Location(id string) (*Location, bool) {
	l, ok := s.Locations[id]
	return l, ok
}

// Quest returns the quest with the given id.
func (s *Session) Quest(id string) (*Quest, bool) {
	q, ok := s.Quests[id]
	return q, ok
}

// ActorIDs returns actor ids in sorted order.
func (s *Session) ActorIDs() []string {
	return sortedKeys(s.Actors)
}

// LocationIDs returns location ids in sorted order.
func (s *Session) LocationIDs() []string {
	return sortedKeys(s.Locations)
}

// QuestIDs returns quest ids in sorted order.
func (s *Session) QuestIDs() []string {
	return sortedKeys(s.Quests)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Memory returns the memory with the given id.
func (a *Actor) Memory(id string) (*Memory, bool) {
	for i := range a.Memories {
		if a.Memories[i].ID == id {
			return &a.Memories[i], true
		}
	}
	return nil, false
}

// Objective returns the objective with the given id.
func (q *Quest) Objective(id string) (*Objective, bool) {
	for i := range q.Objectives {
		if q.Objectives[i].ID == id {
			return &q.Objectives[i], true
		}
	}
	return nil, false
}

// AllObjectivesComplete reports whether every objective is completed.
func (q *Quest) AllObjectivesComplete() bool {
	for _, o := range q.Objectives {
		if !o.Completed {
			return false
		}
	}
	return true
}

// Validate checks referential integrity: every id a record points at must
// resolve inside the session.
func (s *Session) Validate() error {
	errb := oops.In("session").With("frame", s.Frame)
	if s.PlayerID != "" {
		p, ok := s.Actors[s.PlayerID]
		if !ok {
			return errb.With("actor_id", s.PlayerID).Errorf("player %q is not an actor", s.PlayerID)
		}
		if p.Kind != ActorPlayer {
			return errb.With("actor_id", s.PlayerID).Errorf("player %q has kind %q", s.PlayerID, p.Kind)
		}
	}
	for _, id := range s.ActorIDs() {
		a := s.Actors[id]
		ab := errb.With("actor_id", id)
		if a == nil {
			return ab.Errorf("actor %q is nil", id)
		}
		if a.ID != id {
			return ab.Errorf("actor keyed %q has id %q", id, a.ID)
		}
		if a.LocationID != "" {
			if _, ok := s.Locations[a.LocationID]; !ok {
				return ab.With("location_id", a.LocationID).
					Errorf("actor %q is at unknown location %q", id, a.LocationID)
			}
		}
		for other := range a.Relationships {
			if _, ok := s.Actors[other]; !ok {
				return ab.With("other_actor_id", other).
					Errorf("actor %q has relationship with unknown actor %q", id, other)
			}
		}
	}
	for _, id := range s.LocationIDs() {
		l := s.Locations[id]
		lb := errb.With("location_id", id)
		if l == nil {
			return lb.Errorf("location %q is nil", id)
		}
		if l.ID != id {
			return lb.Errorf("location keyed %q has id %q", id, l.ID)
		}
		for dir, to := range l.Exits {
			if _, ok := s.Locations[to]; !ok {
				return lb.With("direction", dir, "to", to).
					Errorf("location %q exit %q leads to unknown location %q", id, dir, to)
			}
		}
	}
	for _, id := range s.QuestIDs() {
		q := s.Quests[id]
		qb := errb.With("quest_id", id)
		if q == nil {
			return qb.Errorf("quest %q is nil", id)
		}
		if q.ID != id {
			return qb.Errorf("quest keyed %q has id %q", id, q.ID)
		}
		if q.GiverID != "" {
			if _, ok := s.Actors[q.GiverID]; !ok {
				return qb.With("giver_id", q.GiverID).
					Errorf("quest %q given by unknown actor %q", id, q.GiverID)
			}
		}
	}
	return nil
}
