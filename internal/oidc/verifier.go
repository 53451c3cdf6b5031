// Package oidc verifies provider-issued bearer tokens. Authentication
// itself (login, consent, token issuance) belongs to the external
// identity provider; this package only checks signature, issuer, and
// audience via the provider's published JWKS and extracts the stable
// subject.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/patgate/cache"
	"go.pilab.hu/patgate/domain"
)

// ErrProviderTokenInvalid is returned for any rejected provider token.
var ErrProviderTokenInvalid = errors.New("provider token invalid")

// ProviderVerifier validates a provider-issued bearer token and
// extracts the authenticated principal.
type ProviderVerifier interface {
	Verify(ctx context.Context, rawToken string) (*domain.Principal, error)
}

// Verifier validates tokens against a discovered OIDC provider.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier discovers the provider configuration from the issuer URL
// and prepares a JWKS-backed token verifier. When audience is empty the
// audience check is skipped.
func NewVerifier(ctx context.Context, issuer, audience string) (*Verifier, error) {
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %q: %w", issuer, err)
	}

	cfg := &gooidc.Config{ClientID: audience}
	if audience == "" {
		cfg.SkipClientIDCheck = true
	}

	return &Verifier{
		verifier: provider.Verifier(cfg),
	}, nil
}

// Verify implements ProviderVerifier.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*domain.Principal, error) {
	if rawToken == "" {
		return nil, ErrProviderTokenInvalid
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		log.Debug().Err(err).Msg("Provider token verification failed")
		return nil, ErrProviderTokenInvalid
	}

	if idToken.Subject == "" {
		return nil, ErrProviderTokenInvalid
	}

	return &domain.Principal{
		Subject:   idToken.Subject,
		ExpiresAt: idToken.Expiry,
	}, nil
}

// CachingVerifier wraps a ProviderVerifier with a claims store so a
// bearer token presented on every management call is only verified
// against the provider once per cache window.
type CachingVerifier struct {
	inner ProviderVerifier
	store cache.ClaimsStore
	ttl   time.Duration
}

// NewCachingVerifier creates a caching wrapper. ttl caps how long a
// verified principal may be served from cache; a token's own expiry
// always wins when shorter.
func NewCachingVerifier(inner ProviderVerifier, store cache.ClaimsStore, ttl time.Duration) *CachingVerifier {
	return &CachingVerifier{
		inner: inner,
		store: store,
		ttl:   ttl,
	}
}

// Verify implements ProviderVerifier.
func (v *CachingVerifier) Verify(ctx context.Context, rawToken string) (*domain.Principal, error) {
	if principal, found := v.store.Get(ctx, rawToken); found {
		if principal.ExpiresAt.IsZero() || time.Now().Before(principal.ExpiresAt) {
			return principal, nil
		}
		if err := v.store.Delete(ctx, rawToken); err != nil {
			log.Warn().Err(err).Msg("Failed to evict expired claims cache entry")
		}
	}

	principal, err := v.inner.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	ttl := v.ttl
	if !principal.ExpiresAt.IsZero() {
		if until := time.Until(principal.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl > 0 {
		if err := v.store.Set(ctx, rawToken, principal, ttl); err != nil {
			log.Warn().Err(err).Msg("Failed to cache verified provider claims")
		}
	}

	return principal, nil
}

var (
	_ ProviderVerifier = (*Verifier)(nil)
	_ ProviderVerifier = (*CachingVerifier)(nil)
)
