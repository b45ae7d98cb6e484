// Package metrics registers the Prometheus collectors the barrier manager
// reports progress and latency through. Callers supply their own
// prometheus.Registerer rather than relying on the global default registry,
// matching the convention used across the broader streaming-engine pack for
// testable metric registration.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set bundles the three named collectors from the barrier manager's
// external-interfaces contract: a progress counter incremented whenever the
// earliest in-flight epoch makes forward progress, an inflight-latency
// histogram timed from issue to AllCollected, and a sync-latency histogram
// timed around each checkpoint sync call.
type Set struct {
	Progress        *prometheus.CounterVec
	InflightLatency *prometheus.HistogramVec
	SyncLatency     *prometheus.HistogramVec
}

// NewSet constructs and registers a Set against reg, with every collector
// prefixed by namespace (typically config.Config.MetricsNamespace).
// Registration failures (e.g. duplicate registration in tests that share a
// registry) are ignored by re-using the already-registered collector,
// matching prometheus.Registerer's documented AlreadyRegisteredError
// pattern.
func NewSet(reg prometheus.Registerer, namespace string) *Set {
	var s = &Set{
		Progress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress",
			Help:      "Count of epochs for which the earliest in-flight barrier advanced to AllCollected.",
		}, []string{"partial_graph_id"}),
		InflightLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inflight_latency_seconds",
			Help:      "Latency from a barrier's issue to all actors collecting it.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"partial_graph_id"}),
		SyncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_latency_seconds",
			Help:      "Latency of a checkpoint barrier's state-store sync call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"partial_graph_id"}),
	}

	s.Progress = registerOrReuseCounter(reg, s.Progress)
	s.InflightLatency = registerOrReuseHistogram(reg, s.InflightLatency)
	s.SyncLatency = registerOrReuseHistogram(reg, s.SyncLatency)
	return s
}

func registerOrReuseCounter(reg prometheus.Registerer, cv *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return cv
}

func registerOrReuseHistogram(reg prometheus.Registerer, hv *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return hv
}
