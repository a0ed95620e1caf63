package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the conversation
// engine. All methods are safe on a nil receiver so callers can run
// without metrics wired.
type ConversationMetrics struct {
	inboundTotal     *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	handlerLatency   *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowhaven",
			Subsystem: "conversation",
			Name:      "inbound_total",
			Help:      "Total inbound messages processed",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowhaven",
			Subsystem: "conversation",
			Name:      "outbound_total",
			Help:      "Total outbound messages sent",
		}, []string{"kind", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowhaven",
			Subsystem: "conversation",
			Name:      "transitions_total",
			Help:      "Total state transitions, including rejected ones",
		}, []string{"from", "to", "status"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glowhaven",
			Subsystem: "conversation",
			Name:      "handler_latency_seconds",
			Help:      "Latency of per-state handler execution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.transitionsTotal, m.handlerLatency)
	return m
}

func (m *ConversationMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *ConversationMetrics) ObserveTransition(from, to, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, status).Inc()
}

func (m *ConversationMetrics) ObserveHandlerLatency(state string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(state).Observe(seconds)
}

// PaymentMetrics tracks payment gateway interactions.
type PaymentMetrics struct {
	pushTotal     *prometheus.CounterVec
	callbackTotal *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		pushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowhaven",
			Subsystem: "payments",
			Name:      "stk_push_total",
			Help:      "Total STK push initiations",
		}, []string{"status"}),
		callbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowhaven",
			Subsystem: "payments",
			Name:      "callback_total",
			Help:      "Total payment gateway callbacks",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pushTotal, m.callbackTotal)
	return m
}

func (m *PaymentMetrics) ObservePush(status string) {
	if m == nil {
		return
	}
	m.pushTotal.WithLabelValues(status).Inc()
}

func (m *PaymentMetrics) ObserveCallback(result string) {
	if m == nil {
		return
	}
	m.callbackTotal.WithLabelValues(result).Inc()
}
