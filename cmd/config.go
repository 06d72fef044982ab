package main

import "time"

type Config struct {
	APIBaseURL string `env:"API_BASE_URL,required=true"`
	PushURL    string `env:"PUSH_URL,required=true"`
	AuthToken  string `env:"AUTH_TOKEN,required=true"`
	ChatIDs    string `env:"CHAT_IDS,required=true"`

	PollInterval          time.Duration `env:"POLL_INTERVAL,default=3s"`
	NotifyPollInterval    time.Duration `env:"NOTIFY_POLL_INTERVAL,default=10s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,default=5s"`
	HandshakeTimeout      time.Duration `env:"HANDSHAKE_TIMEOUT,default=3s"`
	ReconnectBackoffBase  time.Duration `env:"RECONNECT_BACKOFF_BASE,default=250ms"`
	ReconnectBackoffLimit time.Duration `env:"RECONNECT_BACKOFF_LIMIT,default=30s"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,default=1s"`
	SnapshotInterval      time.Duration `env:"SNAPSHOT_INTERVAL,default=30s"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
	ViewerIsStaff  bool   `env:"VIEWER_IS_STAFF"`
}
