package domain

import "context"

// PATRepository defines persistence for personal access tokens. All
// writes target a single document and are atomic; no cross-document
// invariants exist.
type PATRepository interface {
	// Create persists a new PAT record. Returns ErrSecretHashConflict if
	// another record already holds the same secret hash.
	Create(ctx context.Context, pat *PersonalAccessToken) error

	// ListByOwner returns the owner's non-revoked PATs, newest first.
	ListByOwner(ctx context.Context, ownerSubject string) ([]*PersonalAccessToken, error)

	// FindBySecret rehashes the candidate secret and resolves it to a
	// live record. A miss, a revoked match, and an expired match all
	// return ErrPATNotFound with no distinction.
	FindBySecret(ctx context.Context, rawSecret string) (*PersonalAccessToken, error)

	// Revoke marks the owner's PAT as revoked. Idempotent: revoking an
	// already-revoked PAT succeeds. Returns ErrPATNotFound when the id
	// does not exist or belongs to another owner.
	Revoke(ctx context.Context, ownerSubject, id string) error

	// TouchLastUsed updates last_used_at. Advisory only; callers ignore
	// the error.
	TouchLastUsed(ctx context.Context, id string) error
}
