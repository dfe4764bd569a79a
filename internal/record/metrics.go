// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package record

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_events_recorded_total",
		Help: "Total number of events appended to recorders by kind",
	}, []string{"kind"})

	generatorCallsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_generator_calls_recorded_total",
		Help: "Total number of generator call records appended by operation",
	}, []string{"operation"})

	checkpointsTaken = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_checkpoints_total",
		Help: "Total number of checkpoints recorded",
	})

	// rejectedWrites counts writes refused for frame order or seed mismatch.
	rejectedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_recorder_rejected_writes_total",
		Help: "Total number of recorder writes rejected by operation",
	}, []string{"op"})
)
