// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package publish fans session updates and custom events out to in-process
// subscribers such as UIs, loggers and the live feed.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/timeline/internal/ids"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
)

// StateUpdate is delivered to state handlers after a domain change.
type StateUpdate struct {
	Kind     string
	Frame    uint64
	State    *session.Session // private to the receiving subscriber
	Metadata map[string]any
}

// CustomEvent is an application-defined notification.
type CustomEvent struct {
	Name    string
	Frame   uint64
	Payload json.RawMessage
}

// StateHandler receives state updates.
type StateHandler func(ctx context.Context, u StateUpdate) error

// EventHandler receives custom events.
type EventHandler func(ctx context.Context, e CustomEvent) error

// Subscription describes a subscriber. At least one handler is required.
// Kinds holds glob patterns (for example "quest_*") matched against the
// update kind or event name; empty means everything.
type Subscription struct {
	Name    string
	Kinds   []string
	OnState StateHandler
	OnEvent EventHandler
}

type subscriber struct {
	id    ulid.ULID
	name  string
	kinds []glob.Glob
	sub   Subscription
}

func (s *subscriber) matches(kind string) bool {
	if len(s.kinds) == 0 {
		return true
	}
	for _, g := range s.kinds {
		if g.Match(kind) {
			return true
		}
	}
	return false
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for subscriber failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// Publisher delivers updates synchronously, in subscription order, on the
// caller's goroutine. Subscriber failures are logged and never returned.
type Publisher struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool
	logger *slog.Logger
}

// New creates a publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Subscribe registers sub and returns its id.
func (p *Publisher) Subscribe(sub Subscription) (ulid.ULID, error) {
	if sub.OnState == nil && sub.OnEvent == nil {
		return ulid.ULID{}, simerr.InvalidArgument("subscription has no handler", "name", sub.Name)
	}
	kinds := make([]glob.Glob, 0, len(sub.Kinds))
	for _, pattern := range sub.Kinds {
		g, err := glob.Compile(pattern)
		if err != nil {
			return ulid.ULID{}, simerr.InvalidArgument("invalid kind pattern",
				"name", sub.Name, "pattern", pattern, "cause", err.Error())
		}
		kinds = append(kinds, g)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ulid.ULID{}, simerr.InvalidArgument("publisher closed", "name", sub.Name)
	}
	s := &subscriber{id: ids.New(), name: sub.Name, kinds: kinds, sub: sub}
	p.subs = append(p.subs, s)
	activeSubscribers.Inc()
	return s.id, nil
}

// Unsubscribe removes the subscription with id. It reports whether one was
// removed. It is safe to call from inside a handler.
func (p *Publisher) Unsubscribe(id ulid.ULID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.subs {
		if s.id == id {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			activeSubscribers.Dec()
			return true
		}
	}
	return false
}

// Len returns the number of subscriptions.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// snapshotSubs copies the subscriber list so handlers may subscribe or
// unsubscribe during delivery.
func (p *Publisher) snapshotSubs() []*subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	return append([]*subscriber(nil), p.subs...)
}

// Publish delivers state to every matching state handler. Each handler gets
// its own deep clone of state and its own copy of metadata.
func (p *Publisher) Publish(ctx context.Context, state *session.Session, kind string, metadata map[string]any) {
	if state == nil {
		return
	}
	for _, s := range p.snapshotSubs() {
		if s.sub.OnState == nil || !s.matches(kind) {
			continue
		}
		u := StateUpdate{
			Kind:     kind,
			Frame:    state.Frame,
			State:    state.Clone(),
			Metadata: copyMetadata(metadata),
		}
		p.deliver(ctx, s, kind, func() error { return s.sub.OnState(ctx, u) })
	}
}

// Broadcast delivers e to every matching event handler.
func (p *Publisher) Broadcast(ctx context.Context, e CustomEvent) {
	for _, s := range p.snapshotSubs() {
		if s.sub.OnEvent == nil || !s.matches(e.Name) {
			continue
		}
		evt := e
		evt.Payload = append(json.RawMessage(nil), e.Payload...)
		p.deliver(ctx, s, e.Name, func() error { return s.sub.OnEvent(ctx, evt) })
	}
}

func (p *Publisher) deliver(ctx context.Context, s *subscriber, kind string, call func() error) {
	var handlerErr error
	panicErr := oops.
		In("publish").
		With("subscription_id", s.id.String()).
		With("subscription", s.name).
		With("kind", kind).
		Recoverf(func() { handlerErr = call() }, "subscriber %q panicked", s.name)

	switch {
	case panicErr != nil:
		subscriberFailures.WithLabelValues("panic").Inc()
		simerr.LogError(p.logger, "subscriber panicked", panicErr,
			"subscription", s.name, "kind", kind)
	case handlerErr != nil:
		subscriberFailures.WithLabelValues("error").Inc()
		p.logger.WarnContext(ctx, "subscriber failed",
			"subscription", s.name,
			"subscription_id", s.id.String(),
			"kind", kind,
			"error", handlerErr,
		)
	default:
		deliveries.Inc()
	}
}

// Close drops every subscription. Later publishes deliver nothing and later
// subscriptions fail.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	activeSubscribers.Sub(float64(len(p.subs)))
	p.subs = nil
	p.closed = true
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
