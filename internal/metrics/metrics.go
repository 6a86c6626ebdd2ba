// Package metrics implements a reference switchyard.PerfObserver that
// publishes per-stage hash/backup/swap timings as Prometheus histograms,
// grounded on the backup/restore metric names used for CRS persistence in
// the retrieval pack (crs_backup_duration_seconds and siblings).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

// Observer records PerfAgg samples into per-stage, per-phase histograms.
type Observer struct {
	hash   *prometheus.HistogramVec
	backup *prometheus.HistogramVec
	swap   *prometheus.HistogramVec
}

var _ switchyard.PerfObserver = (*Observer)(nil)

// NewObserver registers the switchyard_* histograms against reg. Pass
// prometheus.DefaultRegisterer to publish on the default /metrics endpoint.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		hash: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchyard_hash_duration_seconds",
			Help:    "Time spent hashing before/after swap content",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		backup: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchyard_backup_duration_seconds",
			Help:    "Time spent snapshotting a target before mutation",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		swap: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchyard_swap_duration_seconds",
			Help:    "Time spent performing the atomic symlink swap",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Observe records one stage's aggregated perf sample.
func (o *Observer) Observe(stage string, perf switchyard.PerfAgg) {
	if perf.HashMs > 0 {
		o.hash.WithLabelValues(stage).Observe(float64(perf.HashMs) / 1000)
	}
	if perf.BackupMs > 0 {
		o.backup.WithLabelValues(stage).Observe(float64(perf.BackupMs) / 1000)
	}
	if perf.SwapMs > 0 {
		o.swap.WithLabelValues(stage).Observe(float64(perf.SwapMs) / 1000)
	}
}
