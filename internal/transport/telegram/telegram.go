// Package telegram implements transport.Sender against the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"flagcast/internal/transport"
	logx "flagcast/pkg/logx"
)

type Config struct {
	// APIBase overrides the Telegram API endpoint (tests, proxies).
	// Empty means the official API.
	APIBase string

	// Timeout bounds a single send. Zero defaults to 3s.
	Timeout time.Duration
}

type Sender struct {
	cfg Config
	log logx.Logger

	// The bot client is cached per token; the token is an operator setting
	// and can change between sends.
	mu    sync.Mutex
	token string
	bot   *tele.Bot
}

func New(cfg Config, log logx.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{cfg: cfg, log: log.With(logx.String("comp", "telegram"))}
}

// recipient adapts a raw chat identifier ("-100123..." or "@channel") to
// telebot's Recipient interface without parsing it.
type recipient string

func (r recipient) Recipient() string { return string(r) }

func (s *Sender) client(token string) (*tele.Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("bot token is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot != nil && s.token == token {
		return s.bot, nil
	}

	settings := tele.Settings{
		Token: token,
		// Offline skips the startup getMe call; sends still hit the API.
		Offline: true,
		Client:  &http.Client{Timeout: s.cfg.Timeout},
	}
	if base := strings.TrimSpace(s.cfg.APIBase); base != "" {
		settings.URL = base
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}
	s.token = token
	s.bot = b
	return b, nil
}

// Send posts msg via sendMessage: Markdown parse mode, link preview
// disabled, optional forum thread ID. One attempt, bounded by the
// configured client timeout.
func (s *Sender) Send(ctx context.Context, creds transport.Credentials, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat := strings.TrimSpace(creds.ChatID)
	if chat == "" {
		return errors.New("chat id is empty")
	}
	b, err := s.client(creds.Token)
	if err != nil {
		return err
	}

	opts := &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
		ThreadID:              msg.ThreadID,
	}
	_, err = b.Send(recipient(chat), msg.Text, opts)
	return err
}
