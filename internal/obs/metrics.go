package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session and data-resilience metrics.
var (
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	RefreshWaiters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_refresh_waiters",
		Help: "Callers currently parked behind an in-flight refresh.",
	})

	CacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_cache_reads_total",
			Help: "Ticket reads by source (live, cache, cache_stale).",
		},
		[]string{"source"},
	)

	SyncQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Pending sync items awaiting replay.",
	})

	SyncItemsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_items_dropped_total",
		Help: "Sync items dropped after exhausting the retry ceiling.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		RefreshTotal,
		RefreshWaiters,
		CacheReads,
		SyncQueueDepth,
		SyncItemsDropped,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
