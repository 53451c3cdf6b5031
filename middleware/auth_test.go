package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	patgate "go.pilab.hu/patgate"
	"go.pilab.hu/patgate/domain"
	"go.pilab.hu/patgate/internal/oidc"
)

type stubProviderVerifier struct {
	principal *domain.Principal
	err       error
}

func (s *stubProviderVerifier) Verify(_ context.Context, _ string) (*domain.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, mw(handler)(c))

	return rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRequireProviderTokenMissingHeader(t *testing.T) {
	mw := RequireProviderToken(&stubProviderVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/pat", nil)
	rec := runMiddleware(t, mw, req, okHandler)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireProviderTokenRejected(t *testing.T) {
	mw := RequireProviderToken(&stubProviderVerifier{err: oidc.ErrProviderTokenInvalid})

	req := httptest.NewRequest(http.MethodGet, "/pat", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad-token")
	rec := runMiddleware(t, mw, req, okHandler)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestRequireProviderTokenAttachesPrincipal(t *testing.T) {
	mw := RequireProviderToken(&stubProviderVerifier{principal: &domain.Principal{Subject: "user-1"}})

	var got *domain.Principal
	handler := func(c echo.Context) error {
		principal, ok := domain.PrincipalFromContext(c.Request().Context())
		require.True(t, ok)
		got = principal
		return c.NoContent(http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodGet, "/pat", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good-token")
	rec := runMiddleware(t, mw, req, handler)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", got.Subject)
}

func TestRequireAccessToken(t *testing.T) {
	codec := patgate.NewAccessTokenCodec([]byte("mw-test-key"), "patgate-test", 0)
	mw := RequireAccessToken(codec)

	token, err := codec.Mint("user-1", []string{"gateway"}, "pat-1", time.Minute)
	require.NoError(t, err)

	var got *domain.GatewayAuthorization
	handler := func(c echo.Context) error {
		authz, ok := domain.GatewayAuthorizationFromContext(c.Request().Context())
		require.True(t, ok)
		got = authz
		return c.NoContent(http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodGet, "/gateway/ping", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := runMiddleware(t, mw, req, handler)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, []string{"gateway"}, got.Scopes)
	assert.Equal(t, "pat-1", got.PATID)
}

func TestRequireAccessTokenRejections(t *testing.T) {
	codec := patgate.NewAccessTokenCodec([]byte("mw-test-key"), "patgate-test", 0)
	other := patgate.NewAccessTokenCodec([]byte("other-key"), "patgate-test", 0)
	mw := RequireAccessToken(codec)

	expired, err := codec.Mint("user-1", nil, "pat-1", -time.Minute)
	require.NoError(t, err)
	forged, err := other.Mint("user-1", nil, "pat-1", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not a bearer", "Basic abc"},
		{"malformed token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong signature", "Bearer " + forged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/gateway/ping", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := runMiddleware(t, mw, req, okHandler)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireScope(t *testing.T) {
	withAuthz := func(scopes []string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/gateway/target/x", nil)
		ctx := domain.WithGatewayAuthorization(req.Context(), &domain.GatewayAuthorization{
			Subject: "user-1",
			Scopes:  scopes,
		})
		return req.WithContext(ctx)
	}

	t.Run("no scope required passes everyone", func(t *testing.T) {
		rec := runMiddleware(t, RequireScope(""), withAuthz(nil), okHandler)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("granted scope passes", func(t *testing.T) {
		rec := runMiddleware(t, RequireScope("gateway"), withAuthz([]string{"gateway"}), okHandler)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty scope set is zero privilege", func(t *testing.T) {
		rec := runMiddleware(t, RequireScope("gateway"), withAuthz(nil), okHandler)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing authorization is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/gateway/target/x", nil)
		rec := runMiddleware(t, RequireScope("gateway"), req, okHandler)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
