// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsTotal counts frames by pipeline outcome
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmsniff_packets_total",
			Help: "Total number of captured frames by pipeline outcome",
		},
		[]string{"interface", "outcome"},
	)

	// CaptureErrorsTotal counts capture source failures
	CaptureErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmsniff_capture_errors_total",
			Help: "Total number of capture source errors",
		},
		[]string{"interface", "op"},
	)

	// SourceRestartsTotal counts supervisor restarts of the capture source
	SourceRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmsniff_source_restarts_total",
			Help: "Total number of capture source restarts",
		},
		[]string{"interface"},
	)

	// UDPTruncatedTotal counts reports whose declared length exceeds the captured bytes
	UDPTruncatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmsniff_udp_truncated_total",
			Help: "Total number of reported datagrams whose declared UDP length exceeds the captured bytes",
		},
		[]string{"interface"},
	)
)
