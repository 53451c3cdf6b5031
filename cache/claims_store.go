package cache

import (
	"context"
	"time"

	"go.pilab.hu/patgate/domain"
)

// ClaimsStore caches the principal extracted from a verified
// provider-issued bearer token, keyed by a hash of the raw token. It
// only ever holds results of successful verifications; a cache miss
// simply falls through to the verifier.
type ClaimsStore interface {
	// Set stores the principal for a raw token with the given TTL.
	Set(ctx context.Context, rawToken string, principal *domain.Principal, ttl time.Duration) error

	// Get returns the cached principal for a raw token, if present and
	// not yet expired.
	Get(ctx context.Context, rawToken string) (*domain.Principal, bool)

	// Delete removes a cached entry.
	Delete(ctx context.Context, rawToken string) error
}
