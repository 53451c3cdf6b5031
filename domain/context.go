package domain

import "context"

type contextKey string

const (
	principalContextKey contextKey = "auth_principal"
	authzContextKey     contextKey = "gateway_authorization"
)

// GatewayAuthorization carries the verified identity and scope set of a
// gateway access token, available to the forwarding policy hook.
type GatewayAuthorization struct {
	Subject string
	Scopes  []string
	PATID   string
}

// WithPrincipal returns a context carrying the provider-authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the provider-authenticated principal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

// WithGatewayAuthorization returns a context carrying a verified gateway authorization.
func WithGatewayAuthorization(ctx context.Context, a *GatewayAuthorization) context.Context {
	return context.WithValue(ctx, authzContextKey, a)
}

// GatewayAuthorizationFromContext retrieves the verified gateway authorization.
func GatewayAuthorizationFromContext(ctx context.Context) (*GatewayAuthorization, bool) {
	a, ok := ctx.Value(authzContextKey).(*GatewayAuthorization)
	return a, ok
}
