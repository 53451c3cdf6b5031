package echo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	patgate "go.pilab.hu/patgate"
	patecho "go.pilab.hu/patgate/api/echo"
	"go.pilab.hu/patgate/dto"
	"go.pilab.hu/patgate/internal/gateway"
	"go.pilab.hu/patgate/middleware"
)

func newGatewayServer(t *testing.T, forwarder *gateway.Forwarder, requiredScope string) (*echo.Echo, *patgate.AccessTokenCodec) {
	t.Helper()

	codec := patgate.NewAccessTokenCodec([]byte("gateway-test-key"), "patgate-test", 0)

	e := echo.New()
	patecho.NewGatewayAPI(forwarder).RegisterRoutes(e,
		middleware.RequireAccessToken(codec),
		middleware.RequireScope(requiredScope),
	)

	return e, codec
}

func mintToken(t *testing.T, codec *patgate.AccessTokenCodec, subject string, scopes []string) string {
	t.Helper()
	token, err := codec.Mint(subject, scopes, "pat-1", time.Minute)
	require.NoError(t, err)
	return token
}

func TestGatewayRequiresAccessToken(t *testing.T) {
	e, codec := newGatewayServer(t, gateway.NewForwarder("", time.Second, true), "")

	for name, header := range map[string]string{
		"no header":       "",
		"basic auth":      "Basic dXNlcjpwYXNz",
		"malformed token": "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/gateway/ping", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	t.Run("expired token", func(t *testing.T) {
		token, err := codec.Mint("user-1", nil, "pat-1", -time.Minute)
		require.NoError(t, err)
		rec := doJSON(e, http.MethodGet, "/gateway/ping", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGatewayPing(t *testing.T) {
	e, codec := newGatewayServer(t, gateway.NewForwarder("", time.Second, true), "")

	token := mintToken(t, codec, "user-1", []string{"gateway", "read"})
	rec := doJSON(e, http.MethodGet, "/gateway/ping", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.GatewayPingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "user-1", resp.Subject)
	assert.Equal(t, []string{"gateway", "read"}, resp.Scopes)
}

func TestGatewayEchoFallback(t *testing.T) {
	e, codec := newGatewayServer(t, gateway.NewForwarder("", time.Second, true), "")
	token := mintToken(t, codec, "user-1", []string{"gateway"})

	req := httptest.NewRequest(http.MethodPost, "/gateway/target/v1/items?limit=5", strings.NewReader(`{"k":"v"}`))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.GatewayEchoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Echo)
	assert.Equal(t, "user-1", resp.Subject)
	assert.Equal(t, http.MethodPost, resp.Method)
	assert.Equal(t, "v1/items", resp.Path)
	assert.Equal(t, "5", resp.Query.Get("limit"))
	assert.Equal(t, `{"k":"v"}`, resp.Body)
}

func TestGatewayFallbackDisabled(t *testing.T) {
	e, codec := newGatewayServer(t, gateway.NewForwarder("", time.Second, false), "")
	token := mintToken(t, codec, "user-1", nil)

	rec := doJSON(e, http.MethodGet, "/gateway/target/anything", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_gateway")
}

func TestGatewayForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Internal", "should-not-relay")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"items":[]}`))
	}))
	defer upstream.Close()

	e, codec := newGatewayServer(t, gateway.NewForwarder(upstream.URL, time.Second, false), "")
	token := mintToken(t, codec, "user-1", []string{"gateway"})

	rec := doJSON(e, http.MethodGet, "/gateway/target/v1/items?limit=5", token, "")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, `{"items":[]}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("X-Internal"))
}

func TestGatewayUpstreamUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	e, codec := newGatewayServer(t, gateway.NewForwarder(dead.URL, time.Second, false), "")
	token := mintToken(t, codec, "user-1", nil)

	rec := doJSON(e, http.MethodGet, "/gateway/target/x", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGatewayScopePolicy(t *testing.T) {
	e, codec := newGatewayServer(t, gateway.NewForwarder("", time.Second, true), "gateway")

	t.Run("scope granted", func(t *testing.T) {
		token := mintToken(t, codec, "user-1", []string{"gateway"})
		rec := doJSON(e, http.MethodGet, "/gateway/target/x", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("scope missing", func(t *testing.T) {
		token := mintToken(t, codec, "user-1", []string{"read"})
		rec := doJSON(e, http.MethodGet, "/gateway/target/x", token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty scope set grants nothing", func(t *testing.T) {
		token := mintToken(t, codec, "user-1", nil)
		rec := doJSON(e, http.MethodGet, "/gateway/target/x", token, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ping is scope exempt", func(t *testing.T) {
		token := mintToken(t, codec, "user-1", nil)
		rec := doJSON(e, http.MethodGet, "/gateway/ping", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
