package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/profile"
)

// ProfileRepository persists user demographic snapshots
type ProfileRepository interface {
	// GetProfile loads a user's profile
	GetProfile(ctx context.Context, userID core.UserID) (*profile.Profile, error)

	// UpsertProfile writes the profile
	UpsertProfile(ctx context.Context, p *profile.Profile) error

	// ListActiveUsers returns users with any recent data, for scheduled
	// jobs that fan out per user
	ListActiveUsers(ctx context.Context, limit int) ([]core.UserID, error)
}
