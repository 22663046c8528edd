// Package notify holds push-notification delivery. The production
// dispatcher lives behind ports.Notifier; this logging implementation is
// the default until a push provider is wired in.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"flomentum/domain/core"
	"flomentum/ports"
)

// LoggingNotifier records notifications instead of delivering them
type LoggingNotifier struct {
	log zerolog.Logger
}

// NewLoggingNotifier creates the log-only notifier
func NewLoggingNotifier(log zerolog.Logger) ports.Notifier {
	return &LoggingNotifier{log: log.With().Str("component", "notify").Logger()}
}

// Notify logs the notification at info level
func (n *LoggingNotifier) Notify(ctx context.Context, userID core.UserID, title, body string) error {
	n.log.Info().
		Str("user_id", userID.String()).
		Str("title", title).
		Str("body", body).
		Msg("notification (logging only)")
	return nil
}
