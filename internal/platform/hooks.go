package platform

import (
	"context"
	"sync"

	logx "flagcast/pkg/logx"
)

// ChallengeUpdate describes a persisted challenge update: the state before,
// the state after, and the challenge as written.
type ChallengeUpdate struct {
	Old       State
	New       State
	Challenge Challenge
}

// SolveRecord describes a newly created solve. It fires only for first-time
// (user, challenge) pairs; duplicate submissions never reach listeners.
type SolveRecord struct {
	Challenge Challenge
	Solve     Solve
}

// Hooks is the observer registry for challenge lifecycle events.
//
// Contract:
//   - Dispatch is synchronous and in-line with the triggering operation,
//     after the operation has committed.
//   - Listener panics are recovered and logged; listeners can never change
//     the outcome of the operation that fired them.
type Hooks struct {
	mu  sync.RWMutex
	log logx.Logger

	challengeUpdated []func(context.Context, ChallengeUpdate)
	solveRecorded    []func(context.Context, SolveRecord)
}

func NewHooks(log logx.Logger) *Hooks {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hooks{log: log.With(logx.String("comp", "hooks"))}
}

func (h *Hooks) OnChallengeUpdated(fn func(context.Context, ChallengeUpdate)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.challengeUpdated = append(h.challengeUpdated, fn)
	h.mu.Unlock()
}

func (h *Hooks) OnSolveRecorded(fn func(context.Context, SolveRecord)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.solveRecorded = append(h.solveRecorded, fn)
	h.mu.Unlock()
}

func (h *Hooks) fireChallengeUpdated(ctx context.Context, ev ChallengeUpdate) {
	h.mu.RLock()
	fns := append(([]func(context.Context, ChallengeUpdate))(nil), h.challengeUpdated...)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.safeCall(func() { fn(ctx, ev) }, "challenge_updated")
	}
}

func (h *Hooks) fireSolveRecorded(ctx context.Context, ev SolveRecord) {
	h.mu.RLock()
	fns := append(([]func(context.Context, SolveRecord))(nil), h.solveRecorded...)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.safeCall(func() { fn(ctx, ev) }, "solve_recorded")
	}
}

func (h *Hooks) safeCall(fn func(), hook string) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("hook listener panicked",
				logx.String("hook", hook),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)),
			)
		}
	}()
	fn()
}
