// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package domain is the reference simulation built on the timeline core:
// a small world of locations, a player and NPCs who talk, fight and hand
// out quests. Every change is an event whose payload carries the decided
// outcome, so Apply can replay it without consulting any generator.
package domain

import "github.com/holomush/timeline/internal/record"

// Event kinds.
const (
	KindWorldGenerated     record.Kind = "world_generated"
	KindActorSpawned       record.Kind = "actor_spawned"
	KindActorMoved         record.Kind = "actor_moved"
	KindDialogueTurn       record.Kind = "dialogue_turn"
	KindCombatRound        record.Kind = "combat_round"
	KindQuestAccepted      record.Kind = "quest_accepted"
	KindObjectiveCompleted record.Kind = "objective_completed"
	KindQuestCompleted     record.Kind = "quest_completed"
	KindQuestFailed        record.Kind = "quest_failed"
	KindMemoryDecayed      record.Kind = "memory_decayed"
	KindFrameAdvanced      record.Kind = "frame_advanced"
)

// LocationSpec describes a generated location.
type LocationSpec struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Exits       map[string]string `json:"exits,omitempty"`
}

// WorldGenerated installs the location graph.
type WorldGenerated struct {
	Region    string         `json:"region"`
	Locations []LocationSpec `json:"locations"`
}

// ActorSpawned adds an actor. The event's ActorID is the new actor.
type ActorSpawned struct {
	Name       string             `json:"name"`
	Kind       string             `json:"kind"`
	LocationID string             `json:"location_id"`
	Health     int                `json:"health"`
	Attributes map[string]int     `json:"attributes,omitempty"`
	Traits     map[string]float64 `json:"traits,omitempty"`
	Mood       string             `json:"mood,omitempty"`
	Goals      []string           `json:"goals,omitempty"`
}

// ActorMoved moves the event's actor along an exit.
type ActorMoved struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction"`
}

// DialogueTurn is one generated line spoken by the event's actor. The
// listener's relationship toward the speaker moves by the deltas and the
// listener remembers the line.
type DialogueTurn struct {
	ListenerID string  `json:"listener_id"`
	Line       string  `json:"line"`
	Affinity   float64 `json:"affinity"`
	Trust      float64 `json:"trust"`
	Fear       float64 `json:"fear"`
	MemoryID   string  `json:"memory_id"`
	Importance float64 `json:"importance"`
	Decay      float64 `json:"decay"`
}

// CombatRound is one attack by the event's actor.
type CombatRound struct {
	DefenderID string `json:"defender_id"`
	Damage     int    `json:"damage"`
}

// ObjectiveSpec describes a quest objective.
type ObjectiveSpec struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// QuestAccepted records the player taking a quest.
type QuestAccepted struct {
	QuestID    string          `json:"quest_id"`
	Title      string          `json:"title"`
	GiverID    string          `json:"giver_id"`
	Objectives []ObjectiveSpec `json:"objectives"`
}

// ObjectiveCompleted marks an objective done.
type ObjectiveCompleted struct {
	QuestID     string `json:"quest_id"`
	ObjectiveID string `json:"objective_id"`
}

// QuestCompleted closes a quest whose objectives are all done.
type QuestCompleted struct {
	QuestID string `json:"quest_id"`
}

// QuestFailed closes a quest unsuccessfully.
type QuestFailed struct {
	QuestID string `json:"quest_id"`
	Reason  string `json:"reason"`
}

// MemoryDecayed lowers every memory's importance by its decay and forgets
// memories that drop to Threshold or below.
type MemoryDecayed struct {
	Threshold float64 `json:"threshold"`
}

// FrameAdvanced moves the session to Frame.
type FrameAdvanced struct {
	Frame uint64 `json:"frame"`
}
