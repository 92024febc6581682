package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for the assistant pipeline.
type AssistantMetrics struct {
	requestsTotal   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	directivesTotal *prometheus.CounterVec
	alertsTotal     prometheus.Counter
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Total assistant requests by endpoint and HTTP status",
		}, []string{"endpoint", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "assistant",
			Name:      "provider_latency_seconds",
			Help:      "Latency of language model provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		directivesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "assistant",
			Name:      "directives_total",
			Help:      "Parsed directives by type and outcome",
		}, []string{"type", "outcome"}),
		alertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "assistant",
			Name:      "proactive_alerts_total",
			Help:      "Proactive alerts appended to replies",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.providerLatency, m.directivesTotal, m.alertsTotal)
	return m
}

func (m *AssistantMetrics) ObserveRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, statusLabel(status)).Inc()
}

func (m *AssistantMetrics) ObserveProviderLatency(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider, outcome).Observe(seconds)
}

// ObserveDirective counts a directive outcome: executed, failed, awaiting_confirmation,
// cancelled or rejected.
func (m *AssistantMetrics) ObserveDirective(directiveType, outcome string) {
	if m == nil {
		return
	}
	m.directivesTotal.WithLabelValues(directiveType, outcome).Inc()
}

func (m *AssistantMetrics) ObserveAlerts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.alertsTotal.Add(float64(n))
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
