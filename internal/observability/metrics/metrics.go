package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "vatosalfa"

// MessagingMetrics exposes counters/histograms for the provider webhook and
// outbound sends.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Twilio webhooks by channel and outcome",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound Twilio sends",
		}, []string{"status", "template"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Twilio webhook handling up to the acknowledgement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string, template bool) {
	if m == nil {
		return
	}
	label := "false"
	if template {
		label = "true"
	}
	m.outboundTotal.WithLabelValues(status, label).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

// InboundMetrics tracks what the processor did with each inbound message.
type InboundMetrics struct {
	intents         *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	latency         prometheus.Histogram
}

func NewInboundMetrics(reg prometheus.Registerer) *InboundMetrics {
	m := &InboundMetrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "intents_total",
			Help:      "Classified inbound intents",
		}, []string{"intent"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "lookups_total",
			Help:      "Reservation lookups by result (found, no_client, no_reservation, error)",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "transitions_total",
			Help:      "Reservation status transitions applied",
		}, []string{"status", "result"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "persist_failures_total",
			Help:      "Store failures during inbound processing by step",
		}, []string{"step"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "processing_seconds",
			Help:      "Time spent processing one inbound message",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intents, m.lookups, m.transitions, m.persistFailures, m.latency)
	return m
}

func (m *InboundMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

func (m *InboundMetrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *InboundMetrics) ObserveTransition(status, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, result).Inc()
}

func (m *InboundMetrics) ObservePersistFailure(step string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(step).Inc()
}

func (m *InboundMetrics) ObserveProcessing(seconds float64) {
	if m == nil {
		return
	}
	m.latency.Observe(seconds)
}
