package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/insight"
)

// InsightCache stores fingerprint-keyed AI insight payloads with a TTL.
// Implementations must keep expired entries retrievable via GetAny so a
// stale fallback can be served, clearly labelled, when live generation
// fails.
type InsightCache interface {
	// Get returns the entry for an exact fingerprint, nil on miss or expiry
	Get(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, fingerprint string) (*insight.CacheEntry, error)

	// GetAny returns the most recent entry for the biomarker regardless
	// of fingerprint or expiry, nil when none exists
	GetAny(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*insight.CacheEntry, error)

	// Put stores an entry until its ExpiresAt
	Put(ctx context.Context, entry *insight.CacheEntry) error
}
