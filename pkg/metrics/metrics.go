// Package metrics counts retrieval and upload activity for export as a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bookmark outcome label values.
const (
	OutcomeRetrieved = "retrieved"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
)

// Document outcome label values.
const (
	DocumentUploaded    = "uploaded"
	DocumentRateLimited = "rate_limited"
	DocumentFailed      = "failed"
)

// Metrics holds the counters of one process. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	TweetsFetched    prometheus.Counter
	FetchFailures    prometheus.Counter
	ImagesDownloaded prometheus.Counter
	ImagesSkipped    prometheus.Counter
	ImageFailures    prometheus.Counter
	Bookmarks        *prometheus.CounterVec
	Documents        *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge
}

// New creates and registers all counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TweetsFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "fxthreads_tweets_fetched_total",
			Help: "Tweets fetched from the remote source.",
		}),
		FetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "fxthreads_fetch_failures_total",
			Help: "Thread walks that stopped on a failed fetch.",
		}),
		ImagesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "fxthreads_images_downloaded_total",
			Help: "Images downloaded and recorded.",
		}),
		ImagesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "fxthreads_images_skipped_total",
			Help: "Images skipped because the file already existed.",
		}),
		ImageFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "fxthreads_image_failures_total",
			Help: "Image downloads that failed.",
		}),
		Bookmarks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxthreads_bookmarks_total",
			Help: "Bookmarks processed, by outcome.",
		}, []string{"outcome"}),
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxthreads_documents_total",
			Help: "Documents sent to the indexing service, by outcome.",
		}, []string{"outcome"}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxthreads_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
