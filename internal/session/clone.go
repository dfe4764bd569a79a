// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

// Clone returns a deep copy. Nil maps and slices stay nil so a clone is
// structurally identical to its source.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		Frame:    s.Frame,
		RootSeed: s.RootSeed,
		PlayerID: s.PlayerID,
		Flags:    cloneMap(s.Flags),
	}
	if s.Actors != nil {
		out.Actors = make(map[string]*Actor, len(s.Actors))
		for k, v := range s.Actors {
			out.Actors[k] = v.Clone()
		}
	}
	if s.Locations != nil {
		out.Locations = make(map[string]*Location, len(s.Locations))
		for k, v := range s.Locations {
			out.Locations[k] = v.Clone()
		}
	}
	if s.Quests != nil {
		out.Quests = make(map[string]*Quest, len(s.Quests))
		for k, v := range s.Quests {
			out.Quests[k] = v.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}
	out := *a
	out.Attributes = cloneMap(a.Attributes)
	out.Personality = Personality{
		Traits: cloneMap(a.Personality.Traits),
		Mood:   a.Personality.Mood,
		Goals:  cloneSlice(a.Personality.Goals),
	}
	if a.Memories != nil {
		out.Memories = make([]Memory, len(a.Memories))
		for i, m := range a.Memories {
			m.Tags = cloneSlice(m.Tags)
			out.Memories[i] = m
		}
	}
	out.Relationships = cloneMap(a.Relationships)
	out.Inventory = cloneSlice(a.Inventory)
	return &out
}

// Clone returns a deep copy of the location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	out.Exits = cloneMap(l.Exits)
	out.Tags = cloneSlice(l.Tags)
	return &out
}

// Clone returns a deep copy of the quest.
func (q *Quest) Clone() *Quest {
	if q == nil {
		return nil
	}
	out := *q
	out.Objectives = cloneSlice(q.Objectives)
	return &out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
