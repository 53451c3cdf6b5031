package echo

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/dto"
	apierrors "go.pilab.hu/patgate/errors"
	"go.pilab.hu/patgate/internal/gateway"
	"go.pilab.hu/patgate/internal/metrics"
)

// GatewayAPI serves the authorized forwarding surface.
type GatewayAPI struct {
	forwarder *gateway.Forwarder
}

// NewGatewayAPI initializes the gateway API.
func NewGatewayAPI(forwarder *gateway.Forwarder) *GatewayAPI {
	return &GatewayAPI{
		forwarder: forwarder,
	}
}

// RegisterRoutes registers the gateway routes. Every route requires a
// verified access token; the forwarded path additionally passes the
// scope policy hook.
func (a *GatewayAPI) RegisterRoutes(e *echo.Echo, requireAccess, requireScope echo.MiddlewareFunc) {
	g := e.Group("/gateway", requireAccess)
	g.GET("/ping", a.PingHandler)
	g.Any("/target/*", a.ProxyHandler, requireScope)
}

// PingHandler reports the authorized identity without touching the
// upstream.
func (a *GatewayAPI) PingHandler(c echo.Context) error {
	authz, ok := domain.GatewayAuthorizationFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing or invalid access token"))
	}

	scopes := authz.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	return c.JSON(http.StatusOK, dto.GatewayPingResponse{
		Status:  "ok",
		Subject: authz.Subject,
		Scopes:  scopes,
	})
}

// ProxyHandler relays the authorized call to the upstream, or serves
// the diagnostic echo payload when no upstream is configured and the
// fallback is explicitly enabled.
func (a *GatewayAPI) ProxyHandler(c echo.Context) error {
	authz, ok := domain.GatewayAuthorizationFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing or invalid access token"))
	}

	path := c.Param("*")

	if !a.forwarder.Configured() {
		if !a.forwarder.EchoEnabled() {
			return c.JSON(http.StatusBadGateway, apierrors.NewBadGateway("no upstream configured"))
		}
		return a.echoResponse(c, authz, path)
	}

	metrics.GatewayForwardsTotal.Inc()

	err := a.forwarder.Forward(c.Response(), c.Request(), path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrUpstreamTimeout):
		return c.JSON(http.StatusGatewayTimeout, apierrors.NewGatewayTimeout("upstream timed out"))
	case errors.Is(err, gateway.ErrUpstreamUnreachable):
		return c.JSON(http.StatusBadGateway, apierrors.NewBadGateway("upstream unreachable"))
	default:
		log.Error().Err(err).Str("path", path).Msg("Forwarding failed")
		if c.Response().Committed {
			return nil
		}
		return c.JSON(http.StatusBadGateway, apierrors.NewBadGateway("forwarding failed"))
	}
}

func (a *GatewayAPI) echoResponse(c echo.Context, authz *domain.GatewayAuthorization, path string) error {
	scopes := authz.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	var body string
	if raw, err := io.ReadAll(c.Request().Body); err == nil {
		body = string(raw)
	}

	return c.JSON(http.StatusOK, dto.GatewayEchoResponse{
		Echo:    true,
		Message: "no upstream configured, returning diagnostic echo",
		Subject: authz.Subject,
		Scopes:  scopes,
		Method:  c.Request().Method,
		Path:    path,
		Query:   c.QueryParams(),
		Body:    body,
	})
}
