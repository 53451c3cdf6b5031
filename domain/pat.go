package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrPATNotFound is returned for a missing, revoked, or expired PAT.
	// Callers must not surface which of the three applied.
	ErrPATNotFound = errors.New("personal access token not found")

	// ErrSecretHashConflict is returned when an insert collides with the
	// unique secret_hash index. The caller retries with a fresh secret.
	ErrSecretHashConflict = errors.New("secret hash already exists")

	ErrEmptyPATName = errors.New("personal access token name is empty")
)

// PersonalAccessToken is the durable record of an issued PAT. The raw
// secret is never stored; only SecretHash and the short lookup prefix
// survive creation.
type PersonalAccessToken struct {
	ID           string     `bson:"_id" json:"id"`
	OwnerSubject string     `bson:"owner_subject" json:"owner_subject"`
	Name         string     `bson:"name" json:"name"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	Scopes       []string   `bson:"scopes" json:"scopes"`
	SecretPrefix string     `bson:"secret_prefix" json:"-"`
	SecretHash   string     `bson:"secret_hash" json:"-"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	LastUsedAt   *time.Time `bson:"last_used_at,omitempty" json:"last_used_at,omitempty"`
	IsRevoked    bool       `bson:"is_revoked" json:"is_revoked"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the PAT has an expiry in the past relative to
// now. A PAT without expiry never expires.
func (p *PersonalAccessToken) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// NormalizeScopes trims each scope, drops empty entries, collapses
// duplicates, and returns the result sorted. A nil or all-empty input
// yields an empty (zero-privilege) scope set.
func NormalizeScopes(scopes []string) []string {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		set[scope] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	sort.Strings(out)

	return out
}
