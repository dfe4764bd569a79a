// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package generator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/simerr"
)

// Playback serves responses recorded in generator call records instead of
// generating anything. A request matches the first unconsumed record with
// the same actor, operation and seed.
type Playback struct {
	mu       sync.Mutex
	calls    []record.GeneratorCall
	consumed []bool
}

// NewPlayback creates a playback generator over calls.
func NewPlayback(calls []record.GeneratorCall) *Playback {
	return &Playback{
		calls:    calls,
		consumed: make([]bool, len(calls)),
	}
}

// Generate implements Generator.
func (p *Playback) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.calls {
		if p.consumed[i] || c.ActorID != req.ActorID || c.Operation != req.Operation || c.DerivedSeed != req.Seed {
			continue
		}
		var resp Response
		if err := json.Unmarshal(c.Response, &resp); err != nil {
			return Response{}, simerr.InvalidArgument("recorded response does not decode",
				"call_id", c.ID.String(), "cause", err.Error())
		}
		p.consumed[i] = true
		return resp, nil
	}
	return Response{}, simerr.InvalidArgument("no recorded generator call",
		"actor_id", req.ActorID,
		"operation", req.Operation,
		"seed", req.Seed,
	)
}

// Remaining returns the number of recorded calls not yet served.
func (p *Playback) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.consumed {
		if !c {
			n++
		}
	}
	return n
}
