// Package metrics registers the prometheus collectors the On-Demand Updater
// and Segment Store report through. One Metrics value is shared across a
// Repo's components; NewMetrics registers all collectors against the given
// registerer exactly once.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters and gauges the changelog reports.
type Metrics struct {
	UpdatesTotal          prometheus.Counter
	UpdateTriesTotal       prometheus.Counter
	UpdateDurationSeconds  prometheus.Histogram
	PeriodicTicksTotal     prometheus.Counter
	PeriodicTickErrorsTotal prometheus.Counter
	SegmentAppendsTotal    prometheus.Counter
	SegmentRewritesTotal   prometheus.Counter
	IdMapInsertsTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics bundle. If reg is nil, the
// prometheus default registerer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		UpdatesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_updates_total",
			Help: "segchangelog_updates_total counts completed on-demand update runs" +
				" (actual_update invocations, not single-flight waits).",
		}),
		UpdateTriesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_update_tries_total",
			Help: "segchangelog_update_tries_total counts iterations of the build-up-to-cs" +
				" retry loop, including iterations where the caller only waited on" +
				" another goroutine's in-flight update.",
		}),
		UpdateDurationSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "segchangelog_update_duration_seconds",
			Help:    "segchangelog_update_duration_seconds times a full actual_update run, from prepare through persist.",
			Buckets: prometheus.DefBuckets,
		}),
		PeriodicTicksTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_periodic_ticks_total",
			Help: "segchangelog_periodic_ticks_total counts periodic updater ticks.",
		}),
		PeriodicTickErrorsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_periodic_tick_errors_total",
			Help: "segchangelog_periodic_tick_errors_total counts periodic updater ticks" +
				" that returned an error. Errors are logged, never propagated.",
		}),
		SegmentAppendsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_segment_appends_total",
			Help: "segchangelog_segment_appends_total counts plain segment records appended" +
				" to the log (excludes rewrites and magic records).",
		}),
		SegmentRewritesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "segchangelog_segment_rewrites_total",
			Help: "segchangelog_segment_rewrites_total counts REWRITE_LAST_FLAT records" +
				" appended by the flat-segment merge optimization.",
		}),
		IdMapInsertsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "segchangelog_idmap_inserts_total",
			Help: "segchangelog_idmap_inserts_total counts IdMap insertions by group.",
		}, []string{"group"}),
	}
}
