// Package metrics holds the prometheus registry of the process.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/shares").Inc()
//	metrics.UploadsTotal.WithLabelValues("committed").Inc()
package metrics

import (
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on http.DefaultServeMux
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/sharevault/pkg/configs"
)

const namespace = configs.AppName

// HTTP metrics.
var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)
)

// Domain metrics. Counters are always safe to touch; they are only exported
// once InitMetrics registered them.
var (
	QuotaRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_rejections_total",
		Help:      "Reservations refused because they would pass the plan ceiling",
	})

	SignaturesIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signatures_issued_total",
		Help:      "Upload and download signatures issued",
	}, []string{"kind"})

	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Finished upload attempts by result",
	}, []string{"result"})

	UploadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Bytes written to the object store by uploads",
	})

	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Download authorizations by result",
	}, []string{"result"})

	VisitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "visits_total",
		Help:      "Share page visits by result",
	}, []string{"result"})

	SweepReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_released_mb_total",
		Help:      "MB returned to users by the expiry sweep",
	})
)

var (
	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// InitMetrics registers every collector. Labels from the config are attached
// to all series. Calling it more than once is a no-op.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		if config.RuntimeMetrics {
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		reg.MustRegister(
			RequestCounter, RequestDuration, ActiveConnections,
			QuotaRejections, SignaturesIssued, UploadsTotal, UploadedBytes,
			DownloadsTotal, VisitsTotal, SweepReleased,
		)
	})

	return nil
}

// Handler serves the registry in the prometheus text format. The default
// gatherer is included for collectors that register globally, e.g. the gorm plugin.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{Registry: registry},
	)
}

// StartMetricsServer exposes /metrics, and /debug/pprof when enabled. With an
// Endpoint configured it listens there and returns the server so the caller
// can shut it down; otherwise the routes go on engine and the server is nil.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) (*http.Server, error) {
	if !config.Enabled {
		return nil, nil
	}

	if config.Endpoint == "" {
		engine.GET("/metrics", gin.WrapH(Handler()))

		if config.Pprof {
			engine.Any("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
		}

		return nil, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	if config.Pprof {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	ln, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() { _ = srv.Serve(ln) }()

	return srv, nil
}

// GetRegistry returns the process registry.
func GetRegistry() *prometheus.Registry {
	return registry
}
