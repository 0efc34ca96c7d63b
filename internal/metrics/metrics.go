package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fulfillment collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Reconciliations *prometheus.CounterVec
	OrderCreateTime prometheus.Histogram
	WebhookEvents   *prometheus.CounterVec
	HoldOrders      *prometheus.CounterVec
	StatusPolls     *prometheus.CounterVec
	SweptRecords    *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciliation attempts by outcome",
		}, []string{"outcome"}),
		OrderCreateTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_create_seconds",
			Help:      "Latency of instant order creation against the inventory API",
			Buckets:   prometheus.DefBuckets,
		}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound payment webhook deliveries by result",
		}, []string{"result"}),
		HoldOrders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hold_orders_total",
			Help:      "Hold order requests by result",
		}, []string{"result"}),
		StatusPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Booking status polls by the source that answered them",
		}, []string{"source"}),
		SweptRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_records_total",
			Help:      "Stale processing records handled by the sweeper",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOrderCreate(d time.Duration) {
	if m == nil {
		return
	}
	m.OrderCreateTime.Observe(d.Seconds())
}

func (m *Metrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHold(result string) {
	if m == nil {
		return
	}
	m.HoldOrders.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStatusPoll(source string) {
	if m == nil {
		return
	}
	m.StatusPolls.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSweep(result string) {
	if m == nil {
		return
	}
	m.SweptRecords.WithLabelValues(result).Inc()
}
