package observability

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_invalidations_total",
			Help: "Cache entries marked stale, by key.",
		},
		[]string{"key"},
	)

	PollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_poll_fetches_total",
			Help: "Poll fetch attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	PushEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_push_events_total",
			Help: "Live events received, by type.",
		},
		[]string{"event"},
	)

	PushReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_push_reconnects_total",
			Help: "Reconnection attempts on the live channel.",
		},
	)

	UnreadNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_notifications_unread",
			Help: "Unread notifications for the current user.",
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)

	numGC = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "go_gc_cycles_total",
			Help: "Total number of GC cycles.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.NumGC)
		},
	)
)

func init() {
	prometheus.MustRegister(CacheInvalidations)
	prometheus.MustRegister(PollFetches)
	prometheus.MustRegister(PushEvents)
	prometheus.MustRegister(PushReconnects)
	prometheus.MustRegister(UnreadNotifications)
	prometheus.MustRegister(heapAlloc)
	prometheus.MustRegister(numGC)
}
