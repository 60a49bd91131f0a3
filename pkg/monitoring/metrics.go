package monitoring

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baas_provider_requests_total",
		Help: "Total number of requests issued to the banking provider.",
	}, []string{"operation", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "baas_provider_request_latency_seconds",
		Help:    "Latency of banking provider requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	WebhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baas_webhooks_processed_total",
		Help: "Total number of webhook messages processed from the queue.",
	}, []string{"type", "outcome"})

	NotificationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baas_notifications_pending",
		Help: "Current number of notifications awaiting delivery or retry.",
	})

	IntegrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "baas_provider_integrity_failures_total",
		Help: "Total number of provider responses rejected by envelope verification.",
	})
)

// StartMetricsServer exposes /metrics on the given address in a background goroutine.
func StartMetricsServer(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("Metrics server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}
