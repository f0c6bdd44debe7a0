package app

import (
	"fmt"
	"strings"
	"time"

	"flagcast/internal/config"
	"flagcast/internal/janitor"
	"flagcast/internal/notifier"
	"flagcast/internal/storage"
	logx "flagcast/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config) storage.Config {
	busy, _ := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 0)
	return storage.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
		BusyTimeout: busy,
	}
}

func storageDriver(cfg *config.Config) string {
	if d := strings.TrimSpace(cfg.Database.Driver); d != "" {
		return d
	}
	return "sqlite"
}

func mapNotifier(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, 3*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		SendTimeout: timeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, nil
}

func mapJanitor(cfg *config.Config) janitor.Config {
	return janitor.Config{
		Enabled:       cfg.Janitor.Enabled,
		Schedule:      cfg.Janitor.Schedule,
		RetentionDays: cfg.Janitor.RetentionDays,
	}
}

// validate rejects a config before it is committed or hot-applied.
func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.send_timeout", cfg.Telegram.SendTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("database.busy_timeout", cfg.Database.BusyTimeout); err != nil {
		return err
	}
	if cfg.Telegram.RatePerSec < 0 {
		return fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	if cfg.Janitor.RetentionDays < 0 {
		return fmt.Errorf("janitor.retention_days must be >= 0")
	}
	switch strings.TrimSpace(strings.ToLower(cfg.Database.Driver)) {
	case "", "sqlite", "sqlite3":
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver: unsupported %q", cfg.Database.Driver)
	}
	return nil
}
