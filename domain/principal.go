package domain

import "time"

// Principal is the identity extracted from a verified provider-issued
// bearer token. The provider owns authentication; only the stable
// subject and token expiry matter here.
type Principal struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}
