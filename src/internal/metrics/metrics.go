package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// LGL API client
	LGLRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lglsync_lgl_requests_total",
		Help: "LGL API requests by endpoint and status code",
	}, []string{"endpoint", "status"})

	LGLRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_lgl_retries_total",
		Help: "LGL API request retry attempts",
	})

	LGLRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lglsync_lgl_request_duration_seconds",
		Help:    "LGL API request latency by endpoint",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Sync flows
	SyncFlows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lglsync_sync_flows_total",
		Help: "Sync flow executions by flow type and outcome",
	}, []string{"flow", "outcome"})

	// Debug log parser
	ParserEntriesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_parser_entries_flushed_total",
		Help: "Debug log entries reconstructed by the parser",
	})

	ParserEntriesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_parser_entries_filtered_total",
		Help: "Debug log entries dropped by level or search filters at flush time",
	})

	// Settings cache
	SettingsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_settings_cache_hits_total",
		Help: "Settings loads served from the environment-keyed cache",
	})

	SettingsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_settings_cache_misses_total",
		Help: "Settings loads that fell through to the store",
	})

	SettingsCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_settings_cache_invalidations_total",
		Help: "Settings cache purges (delete-on-write and SIGHUP)",
	})

	// Admin HTTP API
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lglsync_http_requests_total",
		Help: "Admin API requests by method, path and status code",
	}, []string{"method", "path", "status"})

	// TCP live tail
	StreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lglsync_stream_connections",
		Help: "Currently connected TCP live-tail clients",
	})

	StreamEntriesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lglsync_stream_entries_sent_total",
		Help: "Debug log entries broadcast to TCP live-tail clients",
	})
)

// Handler adapts the Prometheus HTTP handler to fasthttp for the
// /metrics route.
func Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}
