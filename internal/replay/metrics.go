// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package replay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_replay_saves_total",
		Help: "Total number of replay files written",
	})

	filesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_replay_loads_total",
		Help: "Total number of replay load attempts by result",
	}, []string{"result"})

	corruptFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_replay_corrupt_total",
		Help: "Total number of replay files rejected by violated invariant",
	}, []string{"invariant"})

	bytesWritten = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_replay_file_bytes",
		Help:    "Compressed size of written replay files",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})
)
