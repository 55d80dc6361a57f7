// Package metrics exposes board activity as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	IdeasSubmitted *prometheus.CounterVec
	Votes          *prometheus.CounterVec
	StatusChanges  *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	Sessions       prometheus.Gauge
	RateLimited    prometheus.Counter
	Requests       *prometheus.HistogramVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		IdeasSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeboard",
			Name:      "ideas_submitted_total",
			Help:      "Ideas submitted, by category.",
		}, []string{"category"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeboard",
			Name:      "votes_total",
			Help:      "Vote toggles, by action (cast or retract).",
		}, []string{"action"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeboard",
			Name:      "status_changes_total",
			Help:      "Idea status changes, by new status.",
		}, []string{"status"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forgeboard",
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forgeboard",
			Name:      "active_sessions",
			Help:      "Session stores currently held in memory.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forgeboard",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		Requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forgeboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.IdeasSubmitted, m.Votes, m.StatusChanges, m.Logins, m.Sessions, m.RateLimited, m.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
