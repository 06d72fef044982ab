package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"booking-sync/domain"
)

type Config struct {
	APIBaseURL string `env:"API_BASE_URL,required=true"`
	PushURL    string `env:"PUSH_URL,required=true"`
	AuthToken  string `env:"AUTH_TOKEN,required=true"`
	ChatIDs    string `env:"CHAT_IDS,required=true"`

	PollInterval          time.Duration `env:"POLL_INTERVAL,required=true"`
	NotifyPollInterval    time.Duration `env:"NOTIFY_POLL_INTERVAL,required=true"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,required=true"`
	HandshakeTimeout      time.Duration `env:"HANDSHAKE_TIMEOUT,required=true"`
	ReconnectBackoffBase  time.Duration `env:"RECONNECT_BACKOFF_BASE,required=true"`
	ReconnectBackoffLimit time.Duration `env:"RECONNECT_BACKOFF_LIMIT,required=true"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,required=true"`
	SnapshotInterval      time.Duration `env:"SNAPSHOT_INTERVAL,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,required=true"`
	ViewerIsStaff  bool   `env:"VIEWER_IS_STAFF"`
}

// ParseChatIDs turns the comma separated CHAT_IDS value into typed ids.
func ParseChatIDs(str string) ([]domain.ChatID, error) {
	var ids []domain.ChatID
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHAT_IDS must be comma separated integers, got %q", part)
		}
		ids = append(ids, domain.ChatID(id))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("CHAT_IDS must name at least one chat")
	}
	return ids, nil
}
