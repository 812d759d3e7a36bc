package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	filesWritten   prometheus.Counter
	bytesWritten   prometheus.Counter
	filesDeleted   prometheus.Counter
	operations     *prometheus.CounterVec
	activeSessions prometheus.Gauge
	applyDuration  prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		filesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_files_written_total",
			Help: "Files written by livesync sessions",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_bytes_written_total",
			Help: "Bytes written by livesync sessions",
		}),
		filesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "livesync_files_deleted_total",
			Help: "Files deleted by livesync sessions",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livesync_operations_total",
			Help: "Sync operations by mode and result",
		}, []string{"mode", "result"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livesync_sessions_active",
			Help: "Open livesync websocket sessions",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livesync_apply_duration_seconds",
			Help:    "Time taken to apply a sync operation",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func syncMode(fastSync bool) string {
	if fastSync {
		return "fast"
	}
	return "full"
}
