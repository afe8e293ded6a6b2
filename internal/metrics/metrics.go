package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

// Conversation kinds used as label values.
const (
	KindSession = "session"
	KindGroup   = "group"
)

type Metrics struct {
	MessagesAppended *prometheus.CounterVec
	MessagesDeleted  *prometheus.CounterVec
	MessagesRead     prometheus.Counter
	SessionsCreated  prometheus.Counter
	GroupsCreated    prometheus.Counter

	EventsPublished *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Connections     prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages appended to a ledger.",
		}, []string{"kind"}),
		MessagesDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Messages soft deleted.",
		}, []string{"kind"}),
		MessagesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      "Messages flipped to read.",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Two-party sessions created.",
		}),
		GroupsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_created_total",
			Help:      "Groups created.",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Realtime events handed to the bus.",
		}, []string{"event"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Realtime events the bus refused.",
		}, []string{"event"}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewNop returns collectors registered nowhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
