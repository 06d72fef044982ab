package main

import (
	"booking-sync/auth"
	"booking-sync/cache"
	"booking-sync/domain"
	"booking-sync/internal"
	"booking-sync/notify"
	"booking-sync/observability"
	"booking-sync/push"
	"booking-sync/repositories"
	"booking-sync/runtime"
	"booking-sync/runtime/workers"
	"booking-sync/transport"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the client lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the background workers.
func run() error {
	// 1. Configuration & Logger
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	chats, err := internal.ParseChatIDs(config.ChatIDs)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Cache, telemetry and offline seed
	store := cache.NewStore(log)
	stats := observability.NewStatsManager(log)
	store.OnInvalidate(func(key cache.Key) {
		stats.IncrInvalidation(string(key))
	})

	repository := repositories.NewSnapshotRepository(db, log)
	seedFromSnapshot(log, store, repository, chats)

	// 4. Collaborators: REST API and live channel
	client := transport.NewClient(log, config.APIBaseURL, config.AuthToken, config.RequestTimeout)
	api := transport.NewAPI(client)
	session := auth.Session{Token: config.AuthToken}

	manager := push.NewManager(log, push.WebsocketDialer{URL: config.PushURL}, session, store,
		config.HandshakeTimeout,
		push.NewBackoff(config.ReconnectBackoffBase, config.ReconnectBackoffLimit))
	manager.SetTelemetry(stats)

	aggregator := notify.NewAggregator(log, store, api, config.NotifyPollInterval)
	snapshots := workers.NewSnapshotWorker(log, store, repository, chats, config.SnapshotInterval)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(manager, aggregator, snapshots)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()
	go stats.Listen(ctx)
	go watchUnread(ctx, stats, aggregator)

	// 7. Chat views
	coordinator := runtime.NewCoordinator(log, store, api, manager, config.ViewerIsStaff, config.PollInterval)
	for _, chat := range chats {
		coordinator.Mount(ctx, chat)
	}

	// 8. Debug server
	internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, func() map[string]any {
		merged := internal.SelfStats()
		latest := stats.GetLatest()
		merged["push_events"] = latest.PushEvents
		merged["reconnects"] = latest.Reconnects
		merged["invalidations"] = latest.Invalidations
		merged["unread"] = latest.Unread
		return merged
	})
	log.Info("Started", "chats", len(chats), "debug_port", config.DebugPort)

	// 9. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 10. Final Cleanup
	coordinator.Close()
	<-done
	log.Info("Program stopped cleanly")

	return nil
}

// seedFromSnapshot preloads the cache with the last persisted state so
// the first render has content, then marks everything stale to force a
// fresh fetch.
func seedFromSnapshot(log *slog.Logger, store *cache.Store, repository repositories.SnapshotRepository, chats []domain.ChatID) {
	for _, chat := range chats {
		messages, err := repository.GetMessages(chat)
		if err != nil || len(messages) == 0 {
			continue
		}
		key := cache.MessagesKey(chat)
		store.Write(key, messages, time.Time{})
		store.Invalidate(key)
		log.Info("Seeded chat from snapshot", "chat", chat, "messages", len(messages))
	}

	notifications, err := repository.GetNotifications()
	if err == nil && len(notifications) > 0 {
		store.Write(cache.NotificationsKey(), notifications, time.Time{})
		store.Invalidate(cache.NotificationsKey())
		log.Info("Seeded notifications from snapshot", "count", len(notifications))
	}
}

// watchUnread mirrors the recomputed unread count into telemetry.
func watchUnread(ctx context.Context, stats *observability.StatsManager, aggregator *notify.Aggregator) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats.SetUnread(aggregator.UnreadCount())
		}
	}
}
