// Package metrics exposes Prometheus counters and gauges for the cache
// and the query/worker pipeline. A Collector is optional: callers that
// never construct one simply get no-op recording, since every method
// returns immediately on a nil *Collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups every counter/gauge this module records. Register it
// once against a prometheus.Registerer (or prometheus.DefaultRegisterer
// via NewCollector) and pass it down to the cache and query layers.
type Collector struct {
	queriesSent       *prometheus.CounterVec
	responsesIngested *prometheus.CounterVec
	recordsCached     prometheus.Gauge
	cacheEvictions    prometheus.Counter
	socketErrors      *prometheus.CounterVec
}

// NewCollector registers the module's metrics against reg and returns a
// Collector ready to pass to Cache, QueryDriver, and the workers. Passing
// prometheus.NewRegistry() isolates the metrics for tests; production
// code typically passes prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		queriesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madness",
			Name:      "queries_sent_total",
			Help:      "Number of mDNS queries sent, by address family.",
		}, []string{"family"}),
		responsesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madness",
			Name:      "responses_ingested_total",
			Help:      "Number of mDNS response messages ingested into the cache, by address family.",
		}, []string{"family"}),
		recordsCached: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "madness",
			Name:      "cache_records",
			Help:      "Current number of resource records held in the cache.",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "madness",
			Name:      "cache_evictions_total",
			Help:      "Number of resource records evicted by the cache's periodic sweep.",
		}),
		socketErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "madness",
			Name:      "socket_errors_total",
			Help:      "Number of per-interface socket errors, by operation.",
		}, []string{"op"}),
	}
}

// ObserveQuerySent records one query sent on the given address family.
func (c *Collector) ObserveQuerySent(family string) {
	if c == nil {
		return
	}
	c.queriesSent.WithLabelValues(family).Inc()
}

// ObserveResponseIngested records one response message ingested into the
// cache on the given address family.
func (c *Collector) ObserveResponseIngested(family string) {
	if c == nil {
		return
	}
	c.responsesIngested.WithLabelValues(family).Inc()
}

// SetCacheSize publishes the cache's current record count.
func (c *Collector) SetCacheSize(n int) {
	if c == nil {
		return
	}
	c.recordsCached.Set(float64(n))
}

// ObserveCacheEviction records n records evicted by a sweep pass.
func (c *Collector) ObserveCacheEviction(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheEvictions.Add(float64(n))
}

// ObserveSocketError records a socket error for op ("open", "send").
func (c *Collector) ObserveSocketError(op string) {
	if c == nil {
		return
	}
	c.socketErrors.WithLabelValues(op).Inc()
}
