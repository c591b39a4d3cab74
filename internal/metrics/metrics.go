package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailscan"

var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_processed_total",
			Help:      "Emails handled by the pipeline",
		},
		[]string{"status"}, // status: saved, duplicate, skipped
	)

	AttachmentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_total",
			Help:      "Attachments handled by the pipeline",
		},
		[]string{"kind", "result"}, // result: invoice, not_invoice, unavailable
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Text extraction duration per attachment",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"kind", "status"},
	)

	PageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_page_failures_total",
			Help:      "PDF pages that could not be rendered or recognized",
		},
	)

	BatchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Pipeline runs by terminal state",
		},
		[]string{"state"},
	)
)

func IncrementEmailProcessed(status string) {
	EmailsProcessed.WithLabelValues(status).Inc()
}

func IncrementAttachment(kind, result string) {
	AttachmentsProcessed.WithLabelValues(kind, result).Inc()
}

func RecordExtractionDuration(kind, status string, duration time.Duration) {
	ExtractionDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

func IncrementBatch(state string) {
	BatchesCompleted.WithLabelValues(state).Inc()
}

func IncrementPageFailure() {
	PageFailures.Inc()
}
