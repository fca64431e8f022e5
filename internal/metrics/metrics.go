// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records PromptCraft metrics. It implements chat.Recorder and the
// status hook used by the request logging middleware.
type Collector struct {
	messages          *prometheus.CounterVec
	completions       *prometheus.CounterVec
	completionLatency prometheus.Histogram
	logins            *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptcraft_chat_messages_total",
			Help: "Chat messages submitted, by intent gate result.",
		}, []string{"intent"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptcraft_ai_completions_total",
			Help: "AI completion calls, by outcome.",
		}, []string{"outcome"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptcraft_ai_completion_seconds",
			Help:    "Latency of AI completion calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10, 15},
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptcraft_logins_total",
			Help: "Login attempts, by method and result.",
		}, []string{"method", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptcraft_http_responses_total",
			Help: "HTTP responses, by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.messages,
		c.completions,
		c.completionLatency,
		c.logins,
		c.httpStatus,
	)

	return c
}

// ObserveMessage counts a submitted message.
func (c *Collector) ObserveMessage(intent string) {
	c.messages.WithLabelValues(intent).Inc()
}

// ObserveCompletion counts an AI call and records its latency.
func (c *Collector) ObserveCompletion(outcome string, duration time.Duration) {
	c.completions.WithLabelValues(outcome).Inc()
	c.completionLatency.Observe(duration.Seconds())
}

// ObserveLogin counts a login attempt. method is "password", "google" or
// "signup"; result is "success" or "failure".
func (c *Collector) ObserveLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordHTTPStatus counts a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler serves the metrics registered in g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
