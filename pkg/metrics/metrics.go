package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "actions_cache"

	metricLabelResult    = "result"
	metricLabelStatus    = "status"
	metricLabelOperation = "operation"

	// PushJob is the job label used when pushing to a pushgateway
	PushJob = "actions_cache"
)

// Metrics is the structure that holds all prometheus metrics
var (
	// RestoreCounter counts restores by outcome (exact, prefix, fallback, miss)
	RestoreCounter = newCounterVec(
		"restore_count",
		"Number of restores by outcome",
		metricLabelResult,
	)
	// SaveCounter counts saves by outcome (uploaded, skipped, fallback, failed)
	SaveCounter = newCounterVec(
		"save_count",
		"Number of saves by outcome",
		metricLabelResult,
	)
	// DownloadAttemptCounter counts single download attempts
	DownloadAttemptCounter = newCounterVec(
		"download_attempt_count",
		"Number of download attempts by status",
		metricLabelStatus,
	)
	// TransferDuration observes the duration of downloads, uploads and archive operations
	TransferDuration = newSummaryVec(
		"transfer_duration_seconds",
		"Duration in seconds of each transfer or archive operation",
		metricLabelOperation,
	)
	// ArchiveSizeGauge keeps the size of the last restored or saved archive
	ArchiveSizeGauge = newGaugeVec(
		"archive_size_bytes",
		"Size of the last restored or saved archive",
		metricLabelOperation,
	)
)

// Push sends all registered metrics to a prometheus pushgateway.
func Push(ctx context.Context, url string) error {
	return push.New(url, PushJob).Gatherer(prometheus.DefaultGatherer).PushContext(ctx)
}

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
