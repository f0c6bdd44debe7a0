package storage

import (
	"context"
	"time"

	"flagcast/internal/platform"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL via DSN
type Config struct {
	Driver      string
	Path        string        // sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery records one notification attempt outcome.
// Keep it compact and schema-stable.
type Delivery struct {
	ID      string
	At      time.Time
	Kind    string // "challenge" | "solve"
	Target  string // chat id
	Outcome string // "sent" | "failed" | "skipped"
	Reason  string
	Excerpt string // leading part of the message text
}

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Store is the persistence API used by the platform service, the settings
// layer and the notifier's delivery log.
type Store interface {
	platform.Store

	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error

	AppendDelivery(ctx context.Context, d Delivery) error
	ListDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
