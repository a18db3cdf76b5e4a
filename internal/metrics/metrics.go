// Package metrics holds the Prometheus collectors for the storefront API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OffersEvaluated counts negotiation outcomes: accepted, rejected,
	// special_offer, exhausted, already_accepted, invalid.
	OffersEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "offers_evaluated_total", Help: "Negotiation rounds evaluated by outcome."},
		[]string{"outcome"},
	)

	// WebhookEvents counts inbound webhook processing by event type and status.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_total", Help: "Inbound webhook events by type and status."},
		[]string{"event_type", "status"},
	)
)

var regOnce sync.Once

// Register registers all collectors on the package registry.
// Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OffersEvaluated)
		Registry.MustRegister(WebhookEvents)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
