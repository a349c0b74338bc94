// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

var (
	// operationsTotal counts backend operations by outcome.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierkit",
			Subsystem: "archival",
			Name:      "operations_total",
			Help:      "Total number of backend operations",
		},
		[]string{"operation", "status"},
	)

	// throttleRetriesTotal counts retries triggered by backend throttling.
	throttleRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierkit",
			Subsystem: "archival",
			Name:      "throttle_retries_total",
			Help:      "Total number of retries caused by backend throttling",
		},
		[]string{"operation"},
	)

	// waitDuration tracks how long visibility waits take to resolve.
	waitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierkit",
			Subsystem: "archival",
			Name:      "wait_duration_seconds",
			Help:      "Duration of object visibility waits",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
		},
		[]string{"condition"},
	)

	// waitTimeoutsTotal counts visibility waits that expired.
	waitTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierkit",
			Subsystem: "archival",
			Name:      "wait_timeouts_total",
			Help:      "Total number of visibility waits that timed out",
		},
		[]string{"condition"},
	)
)
