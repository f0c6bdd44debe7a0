package platform

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("challenge not found")
	ErrInvalidState = errors.New("invalid challenge state")
)

// State is a challenge's visibility state.
//
// Only the transition into StateVisible is observable by listeners; every
// other edge is a plain persisted update.
type State string

const (
	StateHidden  State = "hidden"
	StateLocked  State = "locked"
	StateVisible State = "visible"
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case StateHidden, StateLocked, StateVisible:
		return State(s), nil
	case "":
		return StateHidden, nil
	default:
		return "", ErrInvalidState
	}
}

type Challenge struct {
	ID       int64
	Name     string
	Category string
	Type     string
	Value    int
	State    State

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Solve is created at most once per (user, challenge) pair. The platform
// never mutates or deletes solves.
type Solve struct {
	ID          string
	ChallengeID int64
	UserName    string
	CreatedAt   time.Time
}

// Store is the persistence surface the platform service needs. The full
// storage layer implements it; tests use in-memory fakes.
type Store interface {
	CreateChallenge(ctx context.Context, ch *Challenge) error
	UpdateChallenge(ctx context.Context, ch *Challenge) error
	GetChallenge(ctx context.Context, id int64) (Challenge, error)
	ListChallenges(ctx context.Context) ([]Challenge, error)

	// InsertSolve returns created=false when the (user, challenge) pair
	// already has a solve; the insert is then a no-op.
	InsertSolve(ctx context.Context, sv *Solve) (created bool, err error)
	CountSolves(ctx context.Context, challengeID int64) (int, error)
}
