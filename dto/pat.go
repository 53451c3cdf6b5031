package dto

import (
	"time"

	"go.pilab.hu/patgate/domain"
)

// PATCreateRequest is the payload for creating a personal access token.
type PATCreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// PATResponse is a PAT record as returned by list and create. It never
// carries the secret or its hash.
type PATResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	IsRevoked   bool       `json:"is_revoked"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PATCreateResponse is the creation response. Token holds the raw
// secret; this is the only place it ever appears.
type PATCreateResponse struct {
	PATResponse
	Token string `json:"token"`
}

// PATExchangeRequest carries the raw secret when presented in the
// request body rather than a header.
type PATExchangeRequest struct {
	Token string `json:"token"`
}

// PATExchangeResponse is a freshly minted access token.
type PATExchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IssuedAt    int64  `json:"issued_at"`
	PATID       string `json:"pat_id"`
}

// NewPATResponse maps a domain record to its API shape.
func NewPATResponse(pat *domain.PersonalAccessToken) PATResponse {
	scopes := pat.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	return PATResponse{
		ID:          pat.ID,
		Name:        pat.Name,
		Description: pat.Description,
		Scopes:      scopes,
		ExpiresAt:   pat.ExpiresAt,
		LastUsedAt:  pat.LastUsedAt,
		IsRevoked:   pat.IsRevoked,
		CreatedAt:   pat.CreatedAt,
	}
}
