// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package continuation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	forksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_forks_total",
		Help: "Total number of continuations forked from replays",
	})

	forkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_fork_failures_total",
		Help: "Total number of failed fork attempts",
	})

	framesPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_frames_played_total",
		Help: "Total number of frames delivered during playback before a fork",
	})
)
