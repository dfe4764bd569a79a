// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timeline_feed_clients",
		Help: "Number of connected feed clients",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_messages_total",
		Help: "Total number of messages queued to feed clients",
	})

	clientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeline_feed_clients_dropped_total",
		Help: "Total number of feed clients dropped for falling behind",
	})
)
