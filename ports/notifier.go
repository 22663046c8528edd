package ports

import (
	"context"

	"flomentum/domain/core"
)

// Notifier delivers push notifications. Delivery is best-effort; failures
// are logged, never propagated into the owning pipeline.
type Notifier interface {
	// Notify sends one notification to a user's registered devices
	Notify(ctx context.Context, userID core.UserID, title, body string) error
}
