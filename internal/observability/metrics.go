package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the chat collectors. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry setup.
type Metrics struct {
	SessionsActive    prometheus.Gauge
	NoticesSent       prometheus.Counter
	NoticesDropped    prometheus.Counter
	SessionsKicked    prometheus.Counter
	MessagesPersisted prometheus.Counter
	Rejections        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Current number of connected chat sessions",
		}),
		NoticesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_notices_sent_total",
			Help: "Notices enqueued on a session outbound queue",
		}),
		NoticesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_notices_dropped_total",
			Help: "Notices refused by a full or closed outbound queue",
		}),
		SessionsKicked: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_sessions_kicked_total",
			Help: "Sessions disconnected by the backpressure policy",
		}),
		MessagesPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Chat messages appended to the message store",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_rejections_total",
			Help: "Events rejected back to their sender, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) Delivered(sent, dropped int) {
	if m != nil {
		m.NoticesSent.Add(float64(sent))
		m.NoticesDropped.Add(float64(dropped))
	}
}

func (m *Metrics) Kicked() {
	if m != nil {
		m.SessionsKicked.Inc()
	}
}

func (m *Metrics) Persisted() {
	if m != nil {
		m.MessagesPersisted.Inc()
	}
}

func (m *Metrics) Rejected(kind string) {
	if m != nil {
		m.Rejections.WithLabelValues(kind).Inc()
	}
}
