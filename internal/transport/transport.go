// Package transport defines the outbound messaging contract.
//
// Delivery is best-effort, at-most-one-attempt: no retries, no backoff,
// no queue. Callers treat every error as log-and-forget.
package transport

import "context"

// Credentials identify the destination for one send. They come from the
// operator settings snapshot, not from process config, because they are
// editable at runtime through the admin form.
type Credentials struct {
	Token  string // bot token
	ChatID string // numeric chat ID or @channel name
}

type Message struct {
	Text string
	// ThreadID targets a forum topic within the chat; 0 means none.
	ThreadID int
}

// Sender delivers one message to one pre-configured destination.
type Sender interface {
	Send(ctx context.Context, creds Credentials, msg Message) error
}
