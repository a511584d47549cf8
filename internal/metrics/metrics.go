// Package metrics provides Prometheus metrics for paperback runs.
//
// paperback is a short-lived command, so metrics are not served over HTTP;
// they are written once at exit in the text exposition format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Prometheus registry for all paperback metrics.
var Registry = prometheus.NewRegistry()

// Scan statuses used as the "status" label of ImagesScanned.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Metrics holds all Prometheus metrics for one paperback run.
type Metrics struct {
	// Create
	ChunksEncoded prometheus.Counter
	PagesRendered prometheus.Counter
	BytesEncoded  prometheus.Counter

	// Restore
	ImagesScanned   *prometheus.CounterVec // labels: status
	ChunksDecoded   prometheus.Counter
	DuplicateShards prometheus.Counter
	BytesRestored   prometheus.Counter

	// Timing
	OperationDuration *prometheus.HistogramVec // labels: operation

	BuildInfo *prometheus.GaugeVec // labels: version, commit
}

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// InitMetrics registers all metrics on Registry.
func InitMetrics(version, commit string) *Metrics {
	m := &Metrics{
		ChunksEncoded: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_chunks_encoded_total",
			Help: "Total chunks (payload and meta) encoded into symbols",
		}),
		PagesRendered: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_pages_rendered_total",
			Help: "Total pages rendered",
		}),
		BytesEncoded: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_bytes_encoded_total",
			Help: "Total input bytes encoded",
		}),

		ImagesScanned: promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
			Name: "paperback_images_scanned_total",
			Help: "Total images scanned by result (ok, empty, failed)",
		}, []string{"status"}),
		ChunksDecoded: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_chunks_decoded_total",
			Help: "Total chunks read from scanned symbols",
		}),
		DuplicateShards: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_duplicate_shards_total",
			Help: "Total identical duplicate shards dropped during restore",
		}),
		BytesRestored: promauto.With(Registry).NewCounter(prometheus.CounterOpts{
			Name: "paperback_bytes_restored_total",
			Help: "Total bytes written by restore",
		}),

		OperationDuration: promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paperback_operation_duration_seconds",
			Help:    "Duration of paperback operations",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"operation"}),

		BuildInfo: promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "paperback_build_info",
			Help: "Build information (value is always 1)",
		}, []string{"version", "commit"}),
	}

	m.BuildInfo.WithLabelValues(version, commit).Set(1)

	return m
}

// WriteTextfile writes every metric in Registry to path.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
