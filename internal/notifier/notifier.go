package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"flagcast/internal/settings"
	"flagcast/internal/storage"
	"flagcast/internal/transport"
	logx "flagcast/pkg/logx"
)

// SettingsSource yields a fresh settings snapshot per event.
type SettingsSource interface {
	Load(ctx context.Context) settings.Snapshot
}

// SolveCounter reads the persisted solve count for a challenge. The count
// is taken after the new solve has committed, so it includes the solver.
type SolveCounter interface {
	CountSolves(ctx context.Context, challengeID int64) (int, error)
}

// DeliveryLog records attempt outcomes for operator visibility. Best-effort:
// a failing log write is itself only logged.
type DeliveryLog interface {
	AppendDelivery(ctx context.Context, d storage.Delivery) error
}

type Config struct {
	// SendTimeout bounds one outbound call. Zero defaults to 3s.
	SendTimeout time.Duration
	// RatePerSec caps outbound sends; over-rate sends are dropped.
	// Zero disables the cap.
	RatePerSec int
}

type Service struct {
	sender     transport.Sender
	settings   SettingsSource
	counter    SolveCounter
	deliveries DeliveryLog
	log        logx.Logger

	mu          sync.Mutex
	sendTimeout time.Duration
	limiter     *rate.Limiter
}

func New(cfg Config, sender transport.Sender, src SettingsSource, counter SolveCounter, deliveries DeliveryLog, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender:     sender,
		settings:   src,
		counter:    counter,
		deliveries: deliveries,
		log:        log.With(logx.String("comp", "notifier")),
	}
	s.Reconfigure(cfg)
	return s
}

// Reconfigure applies delivery knobs at runtime (config hot-reload).
func (s *Service) Reconfigure(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 3 * time.Second
	}
	s.sendTimeout = cfg.SendTimeout
	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else {
		s.limiter = nil
	}
}

// deliver runs the transport gates and performs at most one send attempt.
// It never returns an error: every failure mode terminates here.
func (s *Service) deliver(ctx context.Context, snap settings.Snapshot, kind, text string, threadID int) {
	if text == "" {
		return
	}

	if !snap.TelegramEnabled {
		s.log.Debug("telegram disabled; notification skipped", logx.String("kind", kind))
		s.record(ctx, snap, kind, text, storage.DeliverySkipped, "telegram disabled")
		return
	}
	if snap.BotToken == "" || snap.ChatID == "" {
		s.log.Debug("telegram credentials missing; notification skipped",
			logx.String("kind", kind),
			logx.Bool("token_set", snap.BotToken != ""),
			logx.Bool("chat_id_set", snap.ChatID != ""),
		)
		s.record(ctx, snap, kind, text, storage.DeliverySkipped, "credentials missing")
		return
	}

	s.mu.Lock()
	lim := s.limiter
	timeout := s.sendTimeout
	s.mu.Unlock()

	if lim != nil && !lim.Allow() {
		s.log.Warn("notification rate cap exceeded; dropped", logx.String("kind", kind))
		s.record(ctx, snap, kind, text, storage.DeliverySkipped, "rate capped")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	creds := transport.Credentials{Token: snap.BotToken, ChatID: snap.ChatID}
	err := s.sender.Send(sctx, creds, transport.Message{Text: text, ThreadID: threadID})
	if err != nil {
		// Best-effort delivery: log and swallow.
		s.log.Warn("telegram send failed",
			logx.String("kind", kind),
			logx.Err(err),
		)
		s.record(ctx, snap, kind, text, storage.DeliveryFailed, err.Error())
		return
	}
	s.log.Info("notification sent",
		logx.String("kind", kind),
		logx.Int("thread_id", threadID),
	)
	s.record(ctx, snap, kind, text, storage.DeliverySent, "")
}

func (s *Service) record(ctx context.Context, snap settings.Snapshot, kind, text, outcome, reason string) {
	if s.deliveries == nil {
		return
	}
	d := storage.Delivery{
		ID:      uuid.NewString(),
		At:      time.Now(),
		Kind:    kind,
		Target:  snap.ChatID,
		Outcome: outcome,
		Reason:  reason,
		Excerpt: excerpt(text, 120),
	}
	if err := s.deliveries.AppendDelivery(ctx, d); err != nil {
		s.log.Debug("delivery log write failed", logx.Err(err))
	}
}

func excerpt(s string, maxN int) string {
	if len(s) <= maxN {
		return s
	}
	// Cut on a rune boundary.
	b := []byte(s[:maxN])
	for len(b) > 0 && b[len(b)-1]&0xC0 == 0x80 {
		b = b[:len(b)-1]
	}
	return string(b)
}
