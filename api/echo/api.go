// Package echo exposes the PAT management and gateway HTTP surface.
package echo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/dto"
	apierrors "go.pilab.hu/patgate/errors"
	"go.pilab.hu/patgate/services"
)

// patSecretHeader is the dedicated header carrying a raw PAT secret
// into the exchange endpoint, as an alternative to the JSON body field
// or a bearer header.
const patSecretHeader = "X-PAT-Token"

// PatAPI holds the PAT management and exchange handlers.
type PatAPI struct {
	patService      *services.PATService
	exchangeService *services.ExchangeService
}

// NewPatAPI initializes the PAT API.
func NewPatAPI(patService *services.PATService, exchangeService *services.ExchangeService) *PatAPI {
	return &PatAPI{
		patService:      patService,
		exchangeService: exchangeService,
	}
}

// RegisterRoutes registers the PAT routes. Management routes require a
// provider bearer; the exchange route authenticates with the raw secret
// itself.
func (a *PatAPI) RegisterRoutes(e *echo.Echo, requireProvider echo.MiddlewareFunc) {
	g := e.Group("/pat")
	g.POST("", a.CreateHandler, requireProvider)
	g.GET("", a.ListHandler, requireProvider)
	g.DELETE("/:id", a.RevokeHandler, requireProvider)
	g.POST("/exchange", a.ExchangeHandler)
}

// bindStrict decodes the request body into v, rejecting unknown fields
// and trailing garbage. The service boundary validates shapes instead
// of trusting them.
func bindStrict(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// CreateHandler creates a PAT for the authenticated principal. The
// response is the only place the raw secret ever appears.
func (a *PatAPI) CreateHandler(c echo.Context) error {
	principal, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing or invalid access token"))
	}

	var req dto.PATCreateRequest
	if err := bindStrict(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("malformed request body"))
	}

	pat, rawSecret, err := a.patService.CreatePAT(c.Request().Context(), principal.Subject, services.CreatePATInput{
		Name:        req.Name,
		Description: req.Description,
		Scopes:      req.Scopes,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPATName) {
			return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("name must not be empty"))
		}
		log.Error().Err(err).Msg("Failed to create PAT")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to create personal access token"))
	}

	return c.JSON(http.StatusCreated, dto.PATCreateResponse{
		PATResponse: dto.NewPATResponse(pat),
		Token:       rawSecret,
	})
}

// ListHandler returns the principal's PATs, secrets omitted.
func (a *PatAPI) ListHandler(c echo.Context) error {
	principal, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing or invalid access token"))
	}

	pats, err := a.patService.ListPATs(c.Request().Context(), principal.Subject)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list PATs")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to list personal access tokens"))
	}

	responses := make([]dto.PATResponse, 0, len(pats))
	for _, pat := range pats {
		responses = append(responses, dto.NewPATResponse(pat))
	}

	return c.JSON(http.StatusOK, responses)
}

// RevokeHandler revokes the principal's PAT. A foreign or unknown id is
// a 404 either way, so existence of other principals' tokens does not
// leak.
func (a *PatAPI) RevokeHandler(c echo.Context) error {
	principal, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("missing or invalid access token"))
	}

	err := a.patService.RevokePAT(c.Request().Context(), principal.Subject, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPATNotFound) {
			return c.JSON(http.StatusNotFound, apierrors.NewNotFound("personal access token not found"))
		}
		log.Error().Err(err).Msg("Failed to revoke PAT")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to revoke personal access token"))
	}

	return c.NoContent(http.StatusNoContent)
}

// ExchangeHandler converts a raw PAT secret into a short-lived access
// token. The secret may arrive as a bearer, in the X-PAT-Token header,
// or in the body; all paths converge on the same validation. Every
// rejection is the same generic 401.
func (a *PatAPI) ExchangeHandler(c echo.Context) error {
	rawSecret := a.extractSecret(c)

	result, err := a.exchangeService.Exchange(c.Request().Context(), rawSecret)
	if err != nil {
		if errors.Is(err, services.ErrExchangeUnauthorized) {
			return c.JSON(http.StatusUnauthorized, apierrors.NewUnauthorized("invalid personal access token"))
		}
		log.Error().Err(err).Msg("Exchange failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to exchange personal access token"))
	}

	return c.JSON(http.StatusOK, dto.PATExchangeResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
		IssuedAt:    result.IssuedAt,
		PATID:       result.PATID,
	})
}

// extractSecret resolves the presented secret: Authorization bearer
// first, then the dedicated header, then the body field. An empty
// result is rejected by the exchange service like any other bad secret.
func (a *PatAPI) extractSecret(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
		return parts[1]
	}

	if secret := c.Request().Header.Get(patSecretHeader); secret != "" {
		return secret
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return ""
	}

	var req dto.PATExchangeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}

	return req.Token
}
