package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	ListingMutations   *prometheus.CounterVec
	Purchases          *prometheus.CounterVec
	PurchaseAmount     prometheus.Counter
	Withdrawals        *prometheus.CounterVec
	ChatMessages       *prometheus.CounterVec
	ImageUploads       *prometheus.CounterVec
	ImageUploadLatency *prometheus.HistogramVec
	WebhookEvents      *prometheus.CounterVec
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			ListingMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listing_mutations_total",
				Help:      "Total listing mutations by operation and outcome.",
			}, []string{"operation", "status"}),
			Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purchases_total",
				Help:      "Total purchase attempts by outcome.",
			}, []string{"status"}),
			PurchaseAmount: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purchase_amount_total",
				Help:      "Cumulative amount of completed purchases in minor units.",
			}),
			Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "withdrawals_total",
				Help:      "Total withdrawal attempts by outcome.",
			}, []string{"status"}),
			ChatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_total",
				Help:      "Total chat messages accepted or rejected.",
			}, []string{"status"}),
			ImageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_uploads_total",
				Help:      "Total image store uploads by outcome.",
			}, []string{"status"}),
			ImageUploadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_upload_duration_seconds",
				Help:      "Latency distribution for image store uploads.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total identity webhook events by type and outcome.",
			}, []string{"event", "status"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.ListingMutations,
			metricsInstance.Purchases,
			metricsInstance.PurchaseAmount,
			metricsInstance.Withdrawals,
			metricsInstance.ChatMessages,
			metricsInstance.ImageUploads,
			metricsInstance.ImageUploadLatency,
			metricsInstance.WebhookEvents,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
