// Package settings reads and writes the operator-editable notifier settings.
//
// Settings live in the platform key-value store and are edited through the
// admin form. Every key resolves store value -> process environment variable
// (key name upper-cased) -> built-in default, so deployments can pre-seed
// credentials without touching the database.
package settings

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	logx "flagcast/pkg/logx"
)

// Config keys are a wire contract shared with the admin form and with
// pre-existing deployments; the names must be preserved verbatim.
const (
	KeyTelegramEnabled  = "ctfd_notifier_telegram_enabled"
	KeyBotToken         = "ctfd_notifier_telegram_bot_token"
	KeyChatID           = "ctfd_notifier_telegram_chat_id"
	KeyChallengeEnabled = "ctfd_notifier_challenge_enabled"
	KeyChallengeTmpl    = "ctfd_notifier_message_template"
	KeyChallengeThread  = "ctfd_notifier_challenge_thread_id"
	KeySolveEnabled     = "ctfd_notifier_solve_enabled"
	KeyFirstBloodTmpl   = "ctfd_notifier_firstblood_template"
	KeySolveTmpl        = "ctfd_notifier_solve_template"
	KeySolveLimit       = "ctfd_notifier_solve_limit"
	KeySolveThread      = "ctfd_notifier_solve_thread_id"
	KeyBaseURL          = "ctfd_notifier_base_url"
)

// Built-in templates, used when a setting is empty or fails to render.
const (
	DefaultChallengeTemplate  = "*New challenge created*\nName: `{name}`\nCategory: `{category}`\nValue: `{value}`"
	DefaultFirstBloodTemplate = "🩸 First Blood! ⚡️\n{user} solved {challenge}"
	DefaultSolveTemplate      = "{user} solved {challenge} ({num})"
)

// Snapshot is an immutable view of all notifier settings, loaded once per
// event and threaded explicitly into the listeners.
type Snapshot struct {
	TelegramEnabled bool
	BotToken        string
	ChatID          string

	ChallengeEnabled  bool
	ChallengeTemplate string
	ChallengeThreadID int

	SolveEnabled       bool
	FirstBloodTemplate string
	SolveTemplate      string
	SolveLimit         int
	SolveThreadID      int

	BaseURL string
}

// Store is the narrow persistence surface this package needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

type Service struct {
	store Store
	log   logx.Logger

	// lookupEnv is swappable in tests.
	lookupEnv func(string) (string, bool)
}

func New(store Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:     store,
		log:       log.With(logx.String("comp", "settings")),
		lookupEnv: os.LookupEnv,
	}
}

// Load resolves every setting into a Snapshot. Store read errors degrade to
// the env/default fallback; they never propagate to callers.
func (s *Service) Load(ctx context.Context) Snapshot {
	return Snapshot{
		TelegramEnabled: s.boolValue(ctx, KeyTelegramEnabled, false),
		BotToken:        s.value(ctx, KeyBotToken, ""),
		ChatID:          s.value(ctx, KeyChatID, ""),

		ChallengeEnabled:  s.boolValue(ctx, KeyChallengeEnabled, true),
		ChallengeTemplate: s.value(ctx, KeyChallengeTmpl, DefaultChallengeTemplate),
		ChallengeThreadID: s.intValue(ctx, KeyChallengeThread, 0),

		SolveEnabled:       s.boolValue(ctx, KeySolveEnabled, true),
		FirstBloodTemplate: s.value(ctx, KeyFirstBloodTmpl, DefaultFirstBloodTemplate),
		SolveTemplate:      s.value(ctx, KeySolveTmpl, DefaultSolveTemplate),
		SolveLimit:         s.intValue(ctx, KeySolveLimit, 0),
		SolveThreadID:      s.intValue(ctx, KeySolveThread, 0),

		BaseURL: strings.TrimRight(s.value(ctx, KeyBaseURL, ""), "/"),
	}
}

// Set writes one setting.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// value resolves a key with the store -> env -> default chain.
func (s *Service) value(ctx context.Context, key, def string) string {
	v, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		s.log.Warn("setting read failed", logx.String("key", key), logx.Err(err))
	} else if ok && strings.TrimSpace(v) != "" {
		return v
	}
	if env, ok := s.lookupEnv(strings.ToUpper(key)); ok && strings.TrimSpace(env) != "" {
		return env
	}
	return def
}

func (s *Service) boolValue(ctx context.Context, key string, def bool) bool {
	raw := s.value(ctx, key, "")
	if strings.TrimSpace(raw) == "" {
		return def
	}
	return Truthy(raw)
}

// intValue parses an integer setting; unparseable values fall back to def.
// This is the only validation the settings layer does.
func (s *Service) intValue(ctx context.Context, key string, def int) int {
	raw := strings.TrimSpace(s.value(ctx, key, ""))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Debug("setting is not an integer; using default",
			logx.String("key", key), logx.String("value", raw))
		return def
	}
	return n
}

// Truthy reports whether a raw setting value means "on".
// Mirrors the form/env convention: 1, true, yes, on (case-insensitive).
func Truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
