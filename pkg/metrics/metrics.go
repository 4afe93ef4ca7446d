// Package metrics holds the Prometheus instrumentation shared by the API
// client, the thread enrichment engine and the message store.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// API metrics
	apiRequests *prometheus.CounterVec   // by endpoint and status class
	apiDuration *prometheus.HistogramVec // by endpoint

	// Thread list metrics
	threadsLoaded      prometheus.Gauge
	threadLoadFailures prometheus.Counter
	enrichSuccess      prometheus.Counter
	enrichFailures     prometheus.Counter
	enrichQueueDepth   prometheus.Gauge

	// Message metrics
	messagesMerged       prometheus.Counter
	messagesAccumulated  prometheus.Gauge
	messageFetchFailures *prometheus.CounterVec // by fetch kind
}

// New creates a metrics instance registered with reg.
// Tests pass prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afternoon_api_requests_total",
				Help: "Total number of REST API requests by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "afternoon_api_request_duration_seconds",
				Help:    "Latency of REST API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		threadsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "afternoon_threads_loaded",
				Help: "Number of threads in the current forum snapshot",
			},
		),
		threadLoadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "afternoon_thread_list_failures_total",
				Help: "Total number of failed thread list loads",
			},
		),
		enrichSuccess: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "afternoon_enrichments_total",
				Help: "Total number of threads enriched with their originating post",
			},
		),
		enrichFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "afternoon_enrichment_failures_total",
				Help: "Total number of failed originating post lookups",
			},
		),
		enrichQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "afternoon_enrichment_queue_depth",
				Help: "Number of threads waiting for enrichment",
			},
		),
		messagesMerged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "afternoon_messages_merged_total",
				Help: "Total number of new messages merged into the open channel",
			},
		),
		messagesAccumulated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "afternoon_messages_accumulated",
				Help: "Number of messages held for the open channel",
			},
		),
		messageFetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afternoon_message_fetch_failures_total",
				Help: "Total number of failed message fetches by kind",
			},
			[]string{"kind"}, // "initial", "more" or "op"
		),
	}
}

// RecordAPIRequest records one API round trip. status 0 means a transport failure.
func (m *Metrics) RecordAPIRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, statusClass(status)).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordThreadsLoaded sets the size of the current thread snapshot
func (m *Metrics) RecordThreadsLoaded(count int) {
	if m == nil {
		return
	}
	m.threadsLoaded.Set(float64(count))
}

// RecordThreadLoadFailure increments the thread list failure counter
func (m *Metrics) RecordThreadLoadFailure() {
	if m == nil {
		return
	}
	m.threadLoadFailures.Inc()
}

// RecordEnrichment counts one enrichment attempt
func (m *Metrics) RecordEnrichment(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.enrichSuccess.Inc()
	} else {
		m.enrichFailures.Inc()
	}
}

// RecordQueueDepth updates the pending enrichment count
func (m *Metrics) RecordQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.enrichQueueDepth.Set(float64(depth))
}

// RecordMerge records how many messages a fetch added and the new total
func (m *Metrics) RecordMerge(added, total int) {
	if m == nil {
		return
	}
	m.messagesMerged.Add(float64(added))
	m.messagesAccumulated.Set(float64(total))
}

// RecordMessageFetchFailure increments the failure counter for a fetch kind
func (m *Metrics) RecordMessageFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.messageFetchFailures.WithLabelValues(kind).Inc()
}

// statusClass collapses a status code into a low-cardinality label
func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Serve exposes the gatherer on addr at /metrics until ctx is cancelled
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
