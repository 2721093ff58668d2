// Package notify delivers alert messages to a chat transport. The scanner
// only hands over prebuilt message text; formatting lives in format.go and
// delivery failures are never fatal to a scan cycle.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is the interface for notification transports.
type Notifier interface {
	// Send delivers a message. Returns an error if delivery fails.
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log instead of a transport. Useful for
// dry runs and tests.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, text string) error {
	n.log.Info().Str("component", "notify").Msg(text)
	return nil
}
