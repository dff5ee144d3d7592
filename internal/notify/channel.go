package notify

import "context"

// Channel is one delivery backend for notifications. Implementations must be
// safe for concurrent use.
type Channel interface {
	Name() string
	// Enabled reports whether the channel is configured; disabled channels
	// are skipped without error.
	Enabled() bool
	Send(ctx context.Context, subject, body string) error
}
