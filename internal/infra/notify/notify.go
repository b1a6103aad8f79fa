package notify

import "context"

// Notifier is the out-of-band ops channel: dropped webhook signatures and
// billing run summaries go here, not to the donor.
type Notifier interface {
	Alert(ctx context.Context, message string)
	Summary(ctx context.Context, message string)
}

// Noop is used when no notification channel is configured.
type Noop struct{}

func (Noop) Alert(context.Context, string)   {}
func (Noop) Summary(context.Context, string) {}
