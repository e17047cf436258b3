package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every jobsweep collector. It is kept apart from the default
// registry so a push only carries sweep metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	SearchRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_search_requests_total",
			Help: "Total number of search page requests issued",
		},
		[]string{"provider", "status"},
	)

	SearchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobsweep_search_duration_seconds",
			Help:    "Duration of search page requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_items_total",
			Help: "Search results seen, by filter outcome",
		},
		[]string{"outcome"},
	)

	FindingsSaved = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "jobsweep_findings_saved_total",
			Help: "Findings written to the result sink",
		},
	)

	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_runs_total",
			Help: "Completed invocations by status code and error kind",
		},
		[]string{"status", "kind"},
	)

	ProxyFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsweep_proxy_failures_total",
			Help: "Searches through a proxy that were blocked or failed in transport",
		},
		[]string{"proxy"},
	)

	LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobsweep_last_run_timestamp_seconds",
			Help: "Unix time the last invocation finished",
		},
	)
)

// RecordSearch updates the request counters for one search page.
func RecordSearch(provider string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SearchRequestsTotal.WithLabelValues(provider, status).Inc()
	SearchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordItem counts one filtered search result.
func RecordItem(outcome string) {
	ItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordProxyFailure counts a blocked or failed search through the proxy at
// host.
func RecordProxyFailure(host string) {
	ProxyFailures.WithLabelValues(host).Inc()
}

// RecordRun counts a finished invocation. kind is empty on success.
func RecordRun(status int, kind string, saved int, finished time.Time) {
	if kind == "" {
		kind = "none"
	}
	RunsTotal.WithLabelValues(strconv.Itoa(status), kind).Inc()
	FindingsSaved.Add(float64(saved))
	LastRunTimestamp.Set(float64(finished.Unix()))
}

// Push replaces the Pushgateway group for job, and instance when it is
// non-empty, with the current registry. The grouping key must stay the same
// across runs: counters are cumulative for the process, so each push
// supersedes the last one from the same process.
func Push(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return errors.New("metrics: pushgateway url is empty")
	}
	p := push.New(url, job).Gatherer(Registry)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
