package echo

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthAPI reports process liveness and database connectivity.
type HealthAPI struct {
	dbPing func(ctx context.Context) error
}

// NewHealthAPI initializes the health API. dbPing may be nil when no
// database is wired (e.g. in tests).
func NewHealthAPI(dbPing func(ctx context.Context) error) *HealthAPI {
	return &HealthAPI{
		dbPing: dbPing,
	}
}

// RegisterRoutes registers the health route.
func (a *HealthAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.HealthHandler)
}

// HealthHandler reports "ok" when the database answers a ping and
// "degraded" otherwise. Both cases are 200; this endpoint is for
// probes, not auth.
func (a *HealthAPI) HealthHandler(c echo.Context) error {
	status := map[string]string{"status": "ok", "database": "connected"}

	if a.dbPing == nil || a.dbPing(c.Request().Context()) != nil {
		status["status"] = "degraded"
		status["database"] = "disconnected"
	}

	return c.JSON(http.StatusOK, status)
}
