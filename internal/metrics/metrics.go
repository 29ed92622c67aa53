// Package metrics holds the Prometheus collectors exported by wpn-provisioner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Network management API metrics
	APICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpn",
			Subsystem: "meraki",
			Name:      "api_calls_total",
			Help:      "Total number of network management API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	APIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpn",
			Subsystem: "meraki",
			Name:      "api_retries_total",
			Help:      "Total number of retried network management API attempts by operation",
		},
		[]string{"operation"},
	)

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wpn",
			Subsystem: "meraki",
			Name:      "api_latency_seconds",
			Help:      "Latency of network management API calls including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"operation"},
	)

	// Provisioning metrics
	ProvisioningRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpn",
			Subsystem: "provisioning",
			Name:      "runs_total",
			Help:      "Total number of apply runs by result",
		},
		[]string{"result"},
	)

	ProvisioningRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wpn",
			Subsystem: "provisioning",
			Name:      "run_duration_seconds",
			Help:      "Duration of apply runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	StatusChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wpn",
			Subsystem: "status",
			Name:      "checks_total",
			Help:      "Total number of SSID status evaluations by overall status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		APICallsTotal,
		APIRetriesTotal,
		APILatency,
		ProvisioningRunsTotal,
		ProvisioningRunDuration,
		StatusChecksTotal,
	)
}
