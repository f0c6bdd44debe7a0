// Package notifier turns challenge lifecycle events into Telegram messages.
//
// It registers listeners on the platform hooks, loads a fresh settings
// snapshot per event, renders an operator-supplied template and hands the
// text to the transport. Everything past the hook boundary is fire-and-
// forget: configuration gaps become silent no-ops, template errors fall
// back to built-in defaults, transport errors are logged and swallowed.
// A notification can never break the competition platform.
package notifier
