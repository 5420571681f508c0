package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_created_total",
		Help: "Messages persisted to the conversation store",
	})
	AttachmentsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attachments_rejected_total",
		Help: "Attachment descriptors rejected by policy",
	})
	UnreadSourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unread_source_failures_total",
		Help: "Unread-count source queries that failed and contributed 0",
	}, []string{"source"})
)

func Init() {
	prometheus.MustRegister(MessagesCreated, AttachmentsRejected, UnreadSourceFailures)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
