// Package middleware provides the echo authentication middlewares for
// the two credential types the service accepts: provider-issued bearer
// tokens on the PAT management surface, and minted access tokens on the
// gateway surface.
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/errors"
	"go.pilab.hu/patgate/internal/metrics"
	"go.pilab.hu/patgate/internal/oidc"
)

// BearerToken extracts the bearer credential from the Authorization
// header.
func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}

// RequireProviderToken authenticates PAT management calls. The bearer
// must be a valid provider-issued token; the extracted principal is
// attached to the request context.
func RequireProviderToken(verifier oidc.ProviderVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid access token"))
			}

			principal, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("Provider bearer rejected")
				return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid access token"))
			}

			ctx := domain.WithPrincipal(c.Request().Context(), principal)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireAccessToken authorizes gateway calls. The bearer must be a
// valid minted access token; signature, expiry, and malformed tokens
// all yield the same 401 and no upstream call is attempted.
func RequireAccessToken(codec *patgate.AccessTokenCodec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c)
			if !ok {
				metrics.GatewayRejectionsTotal.Inc()
				return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid access token"))
			}

			claims, err := codec.Verify(token)
			if err != nil {
				log.Debug().Err(err).Msg("Gateway access token rejected")
				metrics.GatewayRejectionsTotal.Inc()
				return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid access token"))
			}

			authz := &domain.GatewayAuthorization{
				Subject: claims.Subject,
				Scopes:  claims.Scopes,
				PATID:   claims.PATID,
			}
			ctx := domain.WithGatewayAuthorization(c.Request().Context(), authz)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireScope is the scope-to-path policy hook. With an empty scope it
// is a no-op; otherwise the verified scope set must contain the
// required scope. An empty scope set grants nothing.
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if scope == "" {
				return next(c)
			}

			authz, ok := domain.GatewayAuthorizationFromContext(c.Request().Context())
			if !ok {
				metrics.GatewayRejectionsTotal.Inc()
				return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("missing or invalid access token"))
			}

			if !slices.Contains(authz.Scopes, scope) {
				metrics.GatewayRejectionsTotal.Inc()
				return c.JSON(http.StatusForbidden, errors.NewAccessDenied("required scope not granted"))
			}

			return next(c)
		}
	}
}
