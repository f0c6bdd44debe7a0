package config

import (
	"sort"
	"strings"

	logx "flagcast/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like tokens
// or database DSNs).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Server (never log token)
	if strings.TrimSpace(oldCfg.Server.Addr) != strings.TrimSpace(newCfg.Server.Addr) ||
		oldCfg.Server.AllowInsecure != newCfg.Server.AllowInsecure ||
		(strings.TrimSpace(oldCfg.Server.Token) != "") != (strings.TrimSpace(newCfg.Server.Token) != "") {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.Bool("server.token_set", strings.TrimSpace(newCfg.Server.Token) != ""),
			logx.Bool("server.allow_insecure", newCfg.Server.AllowInsecure),
		)
	}

	// Database (never log DSN)
	if strings.TrimSpace(oldCfg.Database.Driver) != strings.TrimSpace(newCfg.Database.Driver) ||
		strings.TrimSpace(oldCfg.Database.Path) != strings.TrimSpace(newCfg.Database.Path) ||
		strings.TrimSpace(oldCfg.Database.BusyTimeout) != strings.TrimSpace(newCfg.Database.BusyTimeout) ||
		(strings.TrimSpace(oldCfg.Database.DSN) != "") != (strings.TrimSpace(newCfg.Database.DSN) != "") {
		changed = append(changed, "database")
		attrs = append(attrs,
			logx.String("database.driver", strings.TrimSpace(newCfg.Database.Driver)),
			logx.Bool("database.path_set", strings.TrimSpace(newCfg.Database.Path) != ""),
			logx.Bool("database.dsn_set", strings.TrimSpace(newCfg.Database.DSN) != ""),
		)
	}

	// Telegram (delivery knobs only; the bot token lives in settings, not here)
	if strings.TrimSpace(oldCfg.Telegram.APIBase) != strings.TrimSpace(newCfg.Telegram.APIBase) ||
		strings.TrimSpace(oldCfg.Telegram.SendTimeout) != strings.TrimSpace(newCfg.Telegram.SendTimeout) ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.api_base_set", strings.TrimSpace(newCfg.Telegram.APIBase) != ""),
			logx.String("telegram.send_timeout", strings.TrimSpace(newCfg.Telegram.SendTimeout)),
			logx.Int("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
		)
	}

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Janitor
	if oldCfg.Janitor.Enabled != newCfg.Janitor.Enabled ||
		strings.TrimSpace(oldCfg.Janitor.Schedule) != strings.TrimSpace(newCfg.Janitor.Schedule) ||
		oldCfg.Janitor.RetentionDays != newCfg.Janitor.RetentionDays {
		changed = append(changed, "janitor")
		attrs = append(attrs,
			logx.Bool("janitor.enabled", newCfg.Janitor.Enabled),
			logx.String("janitor.schedule", strings.TrimSpace(newCfg.Janitor.Schedule)),
			logx.Int("janitor.retention_days", newCfg.Janitor.RetentionDays),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
