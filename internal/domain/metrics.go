// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package domain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesStepped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_engine_frames_total",
		Help: "Total number of frames stepped by the engine",
	})

	eventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_engine_events_rejected_total",
		Help: "Total number of decided events rejected before recording",
	}, []string{"kind"})
)
