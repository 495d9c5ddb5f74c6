package config

// Config is the root of config.json / config.yaml.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram   TelegramConfig    `json:"telegram"`
	Logging    LoggingConfig     `json:"logging"`
	Reminders  RemindersConfig   `json:"reminders"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Notifier   *NotifierConfig   `json:"notifier,omitempty"`
	Storage    *StorageConfig    `json:"storage,omitempty"`
	Ops        OpsConfig         `json:"ops,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty when REMINDBOT_TELEGRAM_TOKEN is set.
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
	// OpsChatID receives the start-up notice and the log sink, 0 disables both.
	OpsChatID int64 `json:"ops_chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors log lines into telegram.ops_chat_id.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// RemindersConfig controls the picker conversation.
//
// Defaults:
//   - timezone: local time of the process
//   - locale: "en"
//   - conversation_ttl: "30m" ("0s" keeps conversations forever)
//   - sweep_interval: "1m"
type RemindersConfig struct {
	Timezone        string `json:"timezone,omitempty"`
	Locale          string `json:"locale,omitempty"`
	ConversationTTL string `json:"conversation_ttl,omitempty"`
	SweepInterval   string `json:"sweep_interval,omitempty"`
}

// TaskEngineConfig controls the worker pool that runs reminder fires and
// housekeeping jobs.
//
// Defaults: workers 2, queue_size 256, default_timeout "30s",
// history_size 200, retry_max 3.
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

type NotifierConfig struct {
	RatePerSec      int    `json:"rate_per_sec"`
	SendTimeout     string `json:"send_timeout,omitempty"`
	QueueSize       int    `json:"queue_size"`
	Workers         int    `json:"workers"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional audit/dedup store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// OpsConfig controls the diagnostics HTTP server.
//
// Prefer binding to localhost. A non-loopback addr requires a token.
type OpsConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"`  // default: "127.0.0.1:6060"
	Token        string `json:"token,omitempty"` // optional bearer token (do not log)
	Pprof        bool   `json:"pprof,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
