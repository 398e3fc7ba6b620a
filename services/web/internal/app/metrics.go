package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry       *prometheus.Registry
	created        prometheus.Counter
	likes          *prometheus.CounterVec
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	eventFailures  prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		registry: reg,
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forbias",
			Name:      "messages_created_total",
			Help:      "Messages stored.",
		}),
		likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forbias",
			Name:      "message_likes_total",
			Help:      "Like requests by outcome (counted, duplicate, unknown).",
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forbias",
			Name:      "track_searches_total",
			Help:      "Catalog searches by outcome (ok, error).",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forbias",
			Name:      "track_search_duration_seconds",
			Help:      "Catalog search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		eventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forbias",
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered.",
		}),
	}
	reg.MustRegister(
		m.created,
		m.likes,
		m.searches,
		m.searchDuration,
		m.eventFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
