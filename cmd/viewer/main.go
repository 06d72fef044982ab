package main

import (
	"booking-sync/internal"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the sync daemon) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Start Debug Server Only
	// We provide a minimal stats provider since the daemon isn't running here
	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	internal.Inspect(db, config.DebugPort, "/inspect", SnapshotMapper, viewerStats, "msg:", nil)
}

// SnapshotMapper enriches the default row with the decoded payload.
func SnapshotMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	if strings.HasPrefix(key, "msg:") {
		var m struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
			Private bool   `json:"private"`
		}
		if err := json.Unmarshal(val, &m); err != nil {
			return row
		}
		row.Detail = fmt.Sprintf("%s: %s", m.Sender, m.Content)
		if m.Private {
			row.Detail = "[staff] " + row.Detail
		}
		return row
	}

	if strings.HasPrefix(key, "notif:") {
		var n struct {
			Title string `json:"title"`
			Read  bool   `json:"read"`
		}
		if err := json.Unmarshal(val, &n); err != nil {
			return row
		}
		row.Detail = n.Title
		if !n.Read {
			row.Detail = "● " + row.Detail
		}
	}
	return row
}
