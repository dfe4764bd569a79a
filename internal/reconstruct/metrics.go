// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package reconstruct

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_events_replayed_total",
		Help: "Total number of recorded events re-applied during reconstruction",
	})

	reconstructDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_reconstruct_duration_seconds",
		Help:    "Time taken to reconstruct a session at a frame",
		Buckets: prometheus.DefBuckets,
	})

	reconstructFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_reconstruct_failures_total",
		Help: "Total number of failed reconstructions by error code",
	}, []string{"code"})
)
