package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RecentEventInfo is one live event as shown in the debug UI.
type RecentEventInfo struct {
	Event     string `json:"event"`
	Chat      int64  `json:"chat"`
	Timestamp string `json:"timestamp"`
}

// SyncStats aggregates the counters for the debug UI.
type SyncStats struct {
	PushEvents    uint64 `json:"push_events"`
	Reconnects    uint64 `json:"reconnects"`
	Invalidations uint64 `json:"invalidations"`
	Unread        int64  `json:"unread"`

	AllocMemMb   uint64            `json:"alloc_mem_mb"`
	NumGC        uint32            `json:"num_gc"`
	RecentEvents []RecentEventInfo `json:"recent_events"`
}

// StatsManager keeps the live telemetry the debug server exposes.
type StatsManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats SyncStats

	pushEvents    atomic.Uint64
	reconnects    atomic.Uint64
	invalidations atomic.Uint64
	unread        atomic.Int64
}

func NewStatsManager(log *slog.Logger) *StatsManager {
	return &StatsManager{
		log: log,
		latestStats: SyncStats{
			RecentEvents: make([]RecentEventInfo, 0),
		},
	}
}

func (sm *StatsManager) IncrReconnect() {
	sm.reconnects.Add(1)
	PushReconnects.Inc()
}

func (sm *StatsManager) IncrInvalidation(key string) {
	sm.invalidations.Add(1)
	CacheInvalidations.WithLabelValues(key).Inc()
}

func (sm *StatsManager) SetUnread(n int) {
	sm.unread.Store(int64(n))
	UnreadNotifications.Set(float64(n))
}

// AddEvent records a live event for the debug UI (thread-safe).
func (sm *StatsManager) AddEvent(event string, chat int64) {
	sm.pushEvents.Add(1)
	PushEvents.WithLabelValues(event).Inc()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	info := RecentEventInfo{
		Event:     event,
		Chat:      chat,
		Timestamp: time.Now().Format("15:04:05"),
	}

	sm.latestStats.RecentEvents = append([]RecentEventInfo{info}, sm.latestStats.RecentEvents...)

	// Keep only the last 20
	if len(sm.latestStats.RecentEvents) > 20 {
		sm.latestStats.RecentEvents = sm.latestStats.RecentEvents[:20]
	}
}

// Listen refreshes the aggregated snapshot once per second.
func (sm *StatsManager) Listen(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sm.log.Info("🛑 Stats manager stopped")
			return

		case <-ticker.C:
			sm.updateStats()
		}
	}
}

func (sm *StatsManager) updateStats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.latestStats.PushEvents = sm.pushEvents.Load()
	sm.latestStats.Reconnects = sm.reconnects.Load()
	sm.latestStats.Invalidations = sm.invalidations.Load()
	sm.latestStats.Unread = sm.unread.Load()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	sm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	sm.latestStats.NumGC = m.NumGC
}

func (sm *StatsManager) GetLatest() SyncStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.latestStats
}
