package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks payment state transitions and wallet credits.
type PaymentMetrics struct {
	transitions *prometheus.CounterVec
	credited    *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "transitions_total",
		Help:      "Payment status transitions that affected a row.",
	}, []string{"channel", "to"})
	credited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "credited_paise_total",
		Help:      "Paise credited to farmer wallets.",
	}, []string{"channel"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "webhooks_total",
		Help:      "Gateway webhook deliveries by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, credited, webhooks)
	return &PaymentMetrics{transitions: transitions, credited: credited, webhooks: webhooks}
}

func (p *PaymentMetrics) IncTransition(channel, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(channel), normalizeLabel(to)).Inc()
}

func (p *PaymentMetrics) AddCredited(channel string, paise int64) {
	if p == nil || p.credited == nil || paise <= 0 {
		return
	}
	p.credited.WithLabelValues(normalizeLabel(channel)).Add(float64(paise))
}

func (p *PaymentMetrics) IncWebhook(outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}
