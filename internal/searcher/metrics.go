package searcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "seedsift"

// Metrics are the counters a search updates. They are registered on the
// registerer handed to NewMetrics; a nil registerer leaves them
// unregistered.
type Metrics struct {
	WorldsSearched prometheus.Counter
	WorldsMatched  prometheus.Counter
	WorldsSkipped  prometheus.Counter
	RegionsSampled prometheus.Counter
	EvalSeconds    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WorldsSearched: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worlds_searched_total",
			Help:      "Worlds evaluated, whatever the outcome.",
		}),
		WorldsMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worlds_matched_total",
			Help:      "Worlds that satisfied the match criterion.",
		}),
		WorldsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worlds_skipped_total",
			Help:      "Worlds that could not be created or fully evaluated.",
		}),
		RegionsSampled: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regions_sampled_total",
			Help:      "Cells handed to criteria, goals included.",
		}),
		EvalSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "world_eval_seconds",
			Help:      "Time to create and evaluate one world.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
}
