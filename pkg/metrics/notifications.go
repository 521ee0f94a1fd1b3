package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics counts best-effort deliveries per channel and event.
type NotificationMetrics struct {
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "delivered_total",
		Help:      "Notifications delivered.",
	}, []string{"channel", "event"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "failed_total",
		Help:      "Notification deliveries that failed or panicked.",
	}, []string{"channel", "event"})
	reg.MustRegister(delivered, failed)
	return &NotificationMetrics{delivered: delivered, failed: failed}
}

func (n *NotificationMetrics) IncDelivered(channel, event string) {
	if n == nil || n.delivered == nil {
		return
	}
	n.delivered.WithLabelValues(normalizeLabel(channel), normalizeLabel(event)).Inc()
}

func (n *NotificationMetrics) IncFailed(channel, event string) {
	if n == nil || n.failed == nil {
		return
	}
	n.failed.WithLabelValues(normalizeLabel(channel), normalizeLabel(event)).Inc()
}
