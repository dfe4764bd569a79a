// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

var (
	placeAdjectives = []string{"Ashen", "Hollow", "Gilded", "Sunken", "Whispering", "Frozen", "Crimson", "Quiet"}
	placeNouns      = []string{"Market", "Crossing", "Watchtower", "Orchard", "Harbor", "Chapel", "Mill", "Archive"}
	regionNames     = []string{"Vale of Ember", "Greywater Reach", "The Salt Steppe", "Lanternwood"}
	openers         = []string{"Listen,", "Well,", "Hm.", "Strange times.", "Between us,"}
	topics          = []string{"the harvest failed", "the bridge is out", "someone took the ledger", "the bells rang twice", "a stranger came at dusk"}
	closers         = []string{"Keep your eyes open.", "Not that anyone asked.", "Mark my words.", "Or so they say."}
	questVerbs      = []string{"Recover", "Escort", "Find", "Silence", "Deliver"}
	questObjects    = []string{"the lost ledger", "the miller's daughter", "a cracked bell", "the smuggler's map", "a sealed letter"}
)

// Deterministic generates content purely from the request seed. Equal
// requests always produce equal responses.
type Deterministic struct{}

// NewDeterministic creates a deterministic generator.
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// Rand returns the PCG stream for seed. The same seed yields the same stream.
func Rand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9E3779B97F4A7C15)) //nolint:gosec // seeds are non-negative
}

// Generate implements Generator.
func (d *Deterministic) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	rng := Rand(req.Seed)
	switch req.Operation {
	case OpWorld:
		return world(rng, req), nil
	case OpDialogue:
		return dialogue(rng), nil
	case OpQuest:
		return quest(rng, req), nil
	default:
		return Response{}, fmt.Errorf("unknown generator operation %q", req.Operation)
	}
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

// world returns a region name as Text and distinct location names as Items.
func world(rng *rand.Rand, req Request) Response {
	count := 4
	if v, err := strconv.Atoi(req.Params["count"]); err == nil && v > 0 {
		count = v
	}
	seen := make(map[string]bool, count)
	items := make([]string, 0, count)
	for len(items) < count {
		name := pick(rng, placeAdjectives) + " " + pick(rng, placeNouns)
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, len(items)+1)
		}
		seen[name] = true
		items = append(items, name)
	}
	return Response{Text: pick(rng, regionNames), Items: items}
}

// dialogue returns a spoken line and relationship deltas in [-0.2, 0.2].
func dialogue(rng *rand.Rand) Response {
	line := strings.Join([]string{pick(rng, openers), pick(rng, topics) + ".", pick(rng, closers)}, " ")
	delta := func() float64 {
		return float64(rng.IntN(41)-20) / 100
	}
	return Response{
		Text: line,
		Scores: map[string]float64{
			"affinity":   delta(),
			"trust":      delta(),
			"fear":       delta(),
			"importance": float64(rng.IntN(10)+1) / 10,
		},
	}
}

// quest returns a title and objective location hints. Params["locations"]
// is a comma separated list the objectives are drawn from.
func quest(rng *rand.Rand, req Request) Response {
	title := pick(rng, questVerbs) + " " + pick(rng, questObjects)
	var candidates []string
	if locs := req.Params["locations"]; locs != "" {
		candidates = strings.Split(locs, ",")
	}
	n := 2
	if len(candidates) < n {
		n = len(candidates)
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	return Response{Text: title, Items: candidates[:n]}
}
