// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retrying retries transient failures of another generator with
// exponential backoff. Errors not marked Transient are returned at once.
type Retrying struct {
	next       Generator
	maxRetries uint64
	baseDelay  time.Duration
	logger     *slog.Logger
}

// RetryOption configures a Retrying generator.
type RetryOption func(*Retrying)

// WithRetryLogger sets the logger for retry attempts.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) { r.logger = logger }
}

// NewRetrying wraps next. baseDelay must be positive.
func NewRetrying(next Generator, maxRetries uint64, baseDelay time.Duration, opts ...RetryOption) *Retrying {
	r := &Retrying{next: next, maxRetries: maxRetries, baseDelay: baseDelay}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Generate implements Generator.
func (r *Retrying) Generate(ctx context.Context, req Request) (Response, error) {
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))
	attempt := 0
	return retry.DoValue(ctx, b, func(ctx context.Context) (Response, error) {
		attempt++
		resp, err := r.next.Generate(ctx, req)
		if err != nil && IsTransient(err) {
			generatorRetries.WithLabelValues(req.Operation).Inc()
			r.logger.DebugContext(ctx, "generator call failed, retrying",
				"operation", req.Operation,
				"actor_id", req.ActorID,
				"attempt", attempt,
				"error", err,
			)
			return Response{}, retry.RetryableError(err)
		}
		return resp, err
	})
}
