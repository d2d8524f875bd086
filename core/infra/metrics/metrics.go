package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayMetrics captures request metrics for the HTTP surface.
type GatewayMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// FlowMetrics captures intent matching and workflow dispatch counters.
type FlowMetrics interface {
	IncIntentMatched(outcome string)
	IncWorkflowExecuted(status string)
}

// OAuthMetrics captures authorization flow outcomes per provider.
type OAuthMetrics interface {
	IncAuthorize(provider string)
	IncCallback(provider, status string)
}

// Noop implements every metrics interface without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncIntentMatched(string)                        {}
func (Noop) IncWorkflowExecuted(string)                     {}
func (Noop) IncAuthorize(string)                            {}
func (Noop) IncCallback(string, string)                     {}

// Prom implements the metrics interfaces backed by Prometheus collectors.
type Prom struct {
	requests         *prometheus.HistogramVec
	intentMatched    *prometheus.CounterVec
	workflowExecuted *prometheus.CounterVec
	oauthAuthorize   *prometheus.CounterVec
	oauthCallback    *prometheus.CounterVec
	once             sync.Once
}

// NewProm registers and returns Prometheus-backed metrics under a namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by method, route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		intentMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_matched_total",
			Help:      "Intent match results by outcome (matched, fallback, none, invalid)",
		}, []string{"outcome"}),
		workflowExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executed_total",
			Help:      "Workflow executions by status",
		}, []string{"status"}),
		oauthAuthorize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_authorize_total",
			Help:      "Authorization requests by provider",
		}, []string{"provider"}),
		oauthCallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callback_total",
			Help:      "OAuth callbacks by provider and status",
		}, []string{"provider", "status"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.requests, p.intentMatched, p.workflowExecuted, p.oauthAuthorize, p.oauthCallback)
	})
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Observe(durationSeconds)
}

func (p *Prom) IncIntentMatched(outcome string) {
	p.intentMatched.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncWorkflowExecuted(status string) {
	p.workflowExecuted.WithLabelValues(status).Inc()
}

func (p *Prom) IncAuthorize(provider string) {
	p.oauthAuthorize.WithLabelValues(provider).Inc()
}

func (p *Prom) IncCallback(provider, status string) {
	p.oauthCallback.WithLabelValues(provider, status).Inc()
}

// Handler exposes the default registry over HTTP for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
