// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generatorRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "timeline_generator_retries_total",
	Help: "Total number of transient generator failures retried by operation",
}, []string{"operation"})
