// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ids issues the ULIDs that name replays, log records and feed
// subscribers.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source issues ULIDs that sort in issue order. Timestamps come from its
// clock; a clock that steps back is held at the last issued millisecond.
type Source struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
	lastMS  uint64
}

// NewSource returns a Source stamping ids with now.
func NewSource(now func() time.Time) *Source {
	return &Source{now: now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns the next id.
func (s *Source) New() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := max(ulid.Timestamp(s.now()), s.lastMS)
	for {
		id, err := ulid.New(ms, s.entropy)
		if err == nil {
			s.lastMS = ms
			return id
		}
		// Entropy for this millisecond is spent; borrow the next one.
		ms++
	}
}

var process = NewSource(time.Now)

// New returns an id from the process-wide wall-clock source.
func New() ulid.ULID {
	return process.New()
}
