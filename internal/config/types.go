package config

// Config is the process-level daemon configuration.
//
// It is distinct from the operator-editable notifier settings, which live in
// the database and are managed through the admin form. This file covers the
// things that need to exist before storage is open: listen address, database
// driver, logging sinks, outbound Telegram behavior and the retention janitor.
//
// All durations are Go duration strings (e.g. "500ms", "3s", "1m").
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Janitor  JanitorConfig  `json:"janitor,omitempty"`
}

// ServerConfig controls the HTTP surface (platform API + admin form).
//
// Security note:
//   - Prefer binding to localhost behind a reverse proxy.
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type ServerConfig struct {
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8080"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// DatabaseConfig selects and configures the storage driver.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL via DSN
type DatabaseConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // sqlite only
	DSN         string `json:"dsn,omitempty"`          // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TelegramConfig controls outbound delivery behavior.
//
// The bot token and chat ID are NOT here: they are operator settings edited
// through the admin form and stored in the database.
type TelegramConfig struct {
	// APIBase overrides the Telegram API endpoint (tests, proxies).
	// Empty means the official https://api.telegram.org.
	APIBase string `json:"api_base,omitempty"`

	// SendTimeout bounds a single sendMessage call. Default "3s".
	SendTimeout string `json:"send_timeout,omitempty"`

	// RatePerSec caps outbound notifications. 0 disables the cap.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JanitorConfig controls delivery-log retention.
//
// The janitor only prunes the notification audit table. The notification
// path itself is synchronous and never scheduled.
type JanitorConfig struct {
	Enabled       bool   `json:"enabled"`
	Schedule      string `json:"schedule,omitempty"`       // cron spec, default "@daily"
	RetentionDays int    `json:"retention_days,omitempty"` // default 30
}
