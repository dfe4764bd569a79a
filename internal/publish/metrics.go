// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_publisher_deliveries_total",
		Help: "Total number of successful subscriber deliveries",
	})

	subscriberFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_publisher_subscriber_failures_total",
		Help: "Total number of subscriber failures by reason",
	}, []string{"reason"})

	activeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timeline_publisher_subscribers",
		Help: "Current number of publisher subscriptions",
	})
)
