// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed derives the deterministic seeds handed to the external text
// generator. A derived seed depends only on the root seed, the actor, the
// operation kind and the actor's call index for that operation, so a
// recorded run can be reproduced call for call.
package seed

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/holomush/timeline/internal/simerr"
)

// Modulus bounds every derived seed. It is the largest prime below 2^31-1,
// the maximum seed most generator backends accept.
const Modulus = 2147483629

// Derive maps (rootSeed, actorID, operation, callIndex) to a seed in
// [1, Modulus]. It fails with INVALID_ARGUMENT for a negative call index.
func Derive(rootSeed int64, actorID, operation string, callIndex int) (int64, error) {
	if callIndex < 0 {
		return 0, simerr.InvalidArgument("negative call index",
			"actor_id", actorID,
			"operation", operation,
			"call_index", callIndex,
		)
	}

	buf := make([]byte, 0, 8+4+len(actorID)+4+len(operation)+8)
	buf = binary.BigEndian.AppendUint64(buf, uint64(rootSeed))
	buf = appendField(buf, actorID)
	buf = appendField(buf, operation)
	buf = binary.BigEndian.AppendUint64(buf, uint64(callIndex))

	sum := blake2b.Sum256(buf)
	h := binary.BigEndian.Uint64(sum[:8])
	return int64(h%Modulus) + 1, nil
}

// MustDerive is Derive for call sites where a negative index is a bug.
func MustDerive(rootSeed int64, actorID, operation string, callIndex int) int64 {
	s, err := Derive(rootSeed, actorID, operation, callIndex)
	if err != nil {
		panic(err)
	}
	return s
}

// appendField length-prefixes s so ("ab","c") and ("a","bc") never collide.
func appendField(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// NewRoot generates a random root seed using crypto/rand.
func NewRoot() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1), nil
}

// Key identifies one call-index stream.
type Key struct {
	ActorID   string
	Operation string
}

// Counter tracks per-(actor, operation) call indices.
// The zero value is ready to use.
type Counter struct {
	mu     sync.Mutex
	counts map[Key]int
}

// Peek returns the next call index without consuming it.
func (c *Counter) Peek(actorID, operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[Key{ActorID: actorID, Operation: operation}]
}

// Next consumes and returns the next call index.
func (c *Counter) Next(actorID, operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Key]int)
	}
	k := Key{ActorID: actorID, Operation: operation}
	idx := c.counts[k]
	c.counts[k] = idx + 1
	return idx
}

// Snapshot returns a copy of all counters.
func (c *Counter) Snapshot() map[Key]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Key]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
