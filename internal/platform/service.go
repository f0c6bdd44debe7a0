package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "flagcast/pkg/logx"
)

// Service owns the challenge registry and solve recording, and fires hooks
// after each committed operation.
type Service struct {
	store Store
	hooks *Hooks
	log   logx.Logger
}

func NewService(store Store, hooks *Hooks, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store: store,
		hooks: hooks,
		log:   log.With(logx.String("comp", "platform")),
	}
}

func (s *Service) Hooks() *Hooks { return s.hooks }

func (s *Service) CreateChallenge(ctx context.Context, ch *Challenge) error {
	if strings.TrimSpace(ch.Name) == "" {
		return fmt.Errorf("challenge name is required")
	}
	st, err := ParseState(string(ch.State))
	if err != nil {
		return fmt.Errorf("state %q: %w", ch.State, err)
	}
	ch.State = st
	if ch.Type == "" {
		ch.Type = "standard"
	}
	now := time.Now()
	ch.CreatedAt = now
	ch.UpdatedAt = now

	if err := s.store.CreateChallenge(ctx, ch); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	s.log.Info("challenge created",
		logx.Int64("id", ch.ID),
		logx.String("name", ch.Name),
		logx.String("state", string(ch.State)),
	)
	return nil
}

// UpdateChallenge persists ch and then fires the challenge-updated hook with
// the state before and after. The hook fires for every update; listeners
// decide which edges they care about.
func (s *Service) UpdateChallenge(ctx context.Context, ch *Challenge) error {
	st, err := ParseState(string(ch.State))
	if err != nil {
		return fmt.Errorf("state %q: %w", ch.State, err)
	}
	ch.State = st

	old, err := s.store.GetChallenge(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("load challenge %d: %w", ch.ID, err)
	}
	ch.CreatedAt = old.CreatedAt
	ch.UpdatedAt = time.Now()

	if err := s.store.UpdateChallenge(ctx, ch); err != nil {
		return fmt.Errorf("update challenge %d: %w", ch.ID, err)
	}
	s.log.Debug("challenge updated",
		logx.Int64("id", ch.ID),
		logx.String("old_state", string(old.State)),
		logx.String("new_state", string(ch.State)),
	)

	// Fired after commit; listener outcome never reaches the caller.
	s.hooks.fireChallengeUpdated(ctx, ChallengeUpdate{Old: old.State, New: ch.State, Challenge: *ch})
	return nil
}

func (s *Service) GetChallenge(ctx context.Context, id int64) (Challenge, error) {
	return s.store.GetChallenge(ctx, id)
}

func (s *Service) ListChallenges(ctx context.Context) ([]Challenge, error) {
	return s.store.ListChallenges(ctx)
}

func (s *Service) CountSolves(ctx context.Context, challengeID int64) (int, error) {
	return s.store.CountSolves(ctx, challengeID)
}

// RecordSolve records a solve for userName on the given challenge.
//
// Recording is insert-once per (user, challenge) pair: a repeat submission
// returns created=false and fires no hook. The solve-recorded hook fires
// only after a new solve has committed.
func (s *Service) RecordSolve(ctx context.Context, challengeID int64, userName string) (Solve, bool, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return Solve{}, false, fmt.Errorf("user name is required")
	}

	ch, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return Solve{}, false, fmt.Errorf("load challenge %d: %w", challengeID, err)
	}

	sv := Solve{
		ID:          uuid.NewString(),
		ChallengeID: challengeID,
		UserName:    userName,
		CreatedAt:   time.Now(),
	}
	created, err := s.store.InsertSolve(ctx, &sv)
	if err != nil {
		return Solve{}, false, fmt.Errorf("record solve: %w", err)
	}
	if !created {
		s.log.Debug("duplicate solve ignored",
			logx.Int64("challenge_id", challengeID),
			logx.String("user", userName),
		)
		return sv, false, nil
	}

	s.log.Info("solve recorded",
		logx.Int64("challenge_id", challengeID),
		logx.String("user", userName),
	)
	s.hooks.fireSolveRecorded(ctx, SolveRecord{Challenge: ch, Solve: sv})
	return sv, true, nil
}
