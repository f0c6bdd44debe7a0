package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "flagcast/pkg/logx"
)

type fakePruner struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) PruneDeliveries(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, olderThan)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestRunOncePrunesWithRetentionCutoff(t *testing.T) {
	p := &fakePruner{}
	s := New(Config{Enabled: true, RetentionDays: 7}, p, logx.Nop())

	s.runOnce()

	if p.calls != 1 {
		t.Fatalf("prune calls = %d, want 1", p.calls)
	}
	want := time.Now().AddDate(0, 0, -7)
	got := p.cutoffs[0]
	if d := got.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", got, want)
	}
}

func TestRunOnceDefaultsRetention(t *testing.T) {
	p := &fakePruner{}
	s := New(Config{Enabled: true}, p, logx.Nop())

	s.runOnce()

	want := time.Now().AddDate(0, 0, -30)
	if d := p.cutoffs[0].Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", p.cutoffs[0], want)
	}
}

func TestRunOnceSwallowsStoreError(t *testing.T) {
	p := &fakePruner{err: errors.New("disk full")}
	s := New(Config{Enabled: true}, p, logx.Nop())

	s.runOnce()

	if p.calls != 1 {
		t.Fatalf("prune calls = %d, want 1", p.calls)
	}
}

func TestDisabledDoesNotStartCron(t *testing.T) {
	p := &fakePruner{}
	s := New(Config{Enabled: false, Schedule: "@every 1ms"}, p, logx.Nop())

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	if s.c != nil {
		t.Fatal("cron started while disabled")
	}
}

func TestStartStopWithSchedule(t *testing.T) {
	p := &fakePruner{}
	s := New(Config{Enabled: true, Schedule: "@every 1h"}, p, logx.Nop())

	ctx := context.Background()
	s.Start(ctx)
	if s.c == nil {
		t.Fatal("cron not running after Start")
	}
	s.Stop(ctx)
	if s.c != nil {
		t.Fatal("cron still set after Stop")
	}
}

func TestApplyRestartsOnScheduleChange(t *testing.T) {
	p := &fakePruner{}
	s := New(Config{Enabled: true, Schedule: "@every 1h"}, p, logx.Nop())

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	s.Apply(Config{Enabled: false})
	if s.c != nil {
		t.Fatal("cron still running after disable")
	}

	s.Apply(Config{Enabled: true, Schedule: "@every 2h"})
	if s.c == nil {
		t.Fatal("cron not restarted after re-enable")
	}
}
