package serving

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	routesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serving",
			Subsystem: "core",
			Name:      "routes_total",
			Help:      "Total routed calls by operation and outcome",
		},
		[]string{"model", "operation", "outcome"},
	)

	routeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "serving",
			Subsystem: "core",
			Name:      "route_duration_seconds",
			Help:      "Duration of routed calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	openStreamsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "serving",
			Subsystem: "core",
			Name:      "open_streams",
			Help:      "Streaming sessions currently open",
		},
	)

	lifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serving",
			Subsystem: "core",
			Name:      "lifecycle_transitions_total",
			Help:      "Total lifecycle transitions by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(routesTotal, routeDuration, openStreamsGauge, lifecycleTotal)
}
