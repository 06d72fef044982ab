package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Default scans messages; use "notif:" for the notification snapshot
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Chat", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			err := item.Value(func(v []byte) error {
				table.Append(renderRow(string(item.Key()), v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func renderRow(key string, val []byte) []string {
	parts := strings.Split(key, ":")
	kind := "RAW"
	ts := "--:--:--"
	entityID := "--------"
	chat := "-"
	detail := fmt.Sprintf("Size: %d bytes", len(val))

	switch {
	case len(parts) == 4 && parts[0] == "msg":
		kind = "MESSAGE"
		chat = parts[1]
		ts = renderTimestamp(parts[2])
		entityID = parts[3]

		var m struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
			Private bool   `json:"private"`
		}
		if err := json.Unmarshal(val, &m); err == nil {
			detail = fmt.Sprintf("%s: %s", m.Sender, m.Content)
			if m.Private {
				detail = color.Yellow.Render("[staff] ") + detail
			}
		}

	case len(parts) == 3 && parts[0] == "notif":
		kind = "NOTIFICATION"
		ts = renderTimestamp(parts[1])
		entityID = parts[2]

		var n struct {
			Title string `json:"title"`
			Read  bool   `json:"read"`
		}
		if err := json.Unmarshal(val, &n); err == nil {
			detail = n.Title
			if !n.Read {
				detail = color.Green.Render("● ") + detail
			}
		}
	}

	// Show the first 8 characters of the entity id for readability
	if len(entityID) > 8 {
		entityID = entityID[:8]
	}

	return []string{key, kind, ts, entityID, chat, detail}
}

func renderTimestamp(padded string) string {
	tsNano, err := strconv.ParseInt(padded, 10, 64)
	if err != nil {
		return "--:--:--"
	}
	return time.Unix(0, tsNano).Format("15:04:05")
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// If truncation is required, open once in write mode to repair
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
