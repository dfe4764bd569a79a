// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package generator defines the content generator the simulation consults
// for world text, dialogue and quests, with deterministic, retrying and
// playback implementations.
package generator

import (
	"context"
	"errors"
)

// Operations understood by the built-in generators.
const (
	OpWorld    = "world"
	OpDialogue = "dialogue"
	OpQuest    = "quest"
)

// Request asks the generator for content. Seed is the derived seed for this
// call; a deterministic generator's output depends only on the request.
type Request struct {
	Operation string            `json:"operation"`
	ActorID   string            `json:"actor_id,omitempty"`
	Seed      int64             `json:"seed"`
	Prompt    string            `json:"prompt,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// Response is generated content.
type Response struct {
	Text   string             `json:"text"`
	Items  []string           `json:"items,omitempty"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Generator produces content for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
