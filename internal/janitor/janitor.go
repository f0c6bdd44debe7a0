// Package janitor prunes old delivery records on a cron schedule.
package janitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "flagcast/pkg/logx"
)

const defaultSchedule = "@daily"

type Config struct {
	Enabled       bool
	Schedule      string
	RetentionDays int
}

// Pruner is the slice of the store the janitor needs.
type Pruner interface {
	PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error)
}

type Service struct {
	log    logx.Logger
	store  Pruner
	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	started bool
}

func New(cfg Config, store Pruner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log.With(logx.String("comp", "janitor")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply swaps the config; a schedule or enable change restarts cron.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Enabled != s.cfg.Enabled || schedule(cfg) != schedule(s.cfg)
	s.cfg = cfg
	if changed && s.started {
		s.stopLocked()
		s.startLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.startLocked()
}

func (s *Service) startLocked() {
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Debug("disabled")
		return
	}

	spec := schedule(s.cfg)
	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		s.log.Error("bad schedule, janitor not started",
			logx.String("schedule", spec), logx.Err(err))
		return
	}
	c.Start()
	s.c = c
	s.log.Info("started",
		logx.String("schedule", spec),
		logx.Int("retention_days", s.retentionDaysLocked()),
	)
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	if s.c == nil {
		return
	}
	done := s.c.Stop().Done()
	s.c = nil
	select {
	case <-done:
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("stopped")
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
}

// runOnce is the cron entry; it is also called directly by tests.
func (s *Service) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.mu.Lock()
	days := s.retentionDaysLocked()
	s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := s.store.PruneDeliveries(ctx, cutoff)
	if err != nil {
		s.log.Warn("delivery prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("pruned old deliveries",
			logx.Int64("removed", n),
			logx.Time("cutoff", cutoff),
		)
	}
}

func (s *Service) retentionDaysLocked() int {
	if s.cfg.RetentionDays <= 0 {
		return 30
	}
	return s.cfg.RetentionDays
}

func schedule(cfg Config) string {
	if v := strings.TrimSpace(cfg.Schedule); v != "" {
		return v
	}
	return defaultSchedule
}
