// Package server assembles the HTTP server from the configured routes
// and middleware.
package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	patecho "go.pilab.hu/patgate/api/echo"
	"go.pilab.hu/patgate/config"
)

// APIs bundles the route registrars wired in main.
type APIs struct {
	Pat     *patecho.PatAPI
	Gateway *patecho.GatewayAPI
	Health  *patecho.HealthAPI

	RequireProvider echo.MiddlewareFunc
	RequireAccess   echo.MiddlewareFunc
	RequireScope    echo.MiddlewareFunc
}

// NewHTTPServer configures the echo router and wraps it in an
// http.Server with bounded timeouts.
func NewHTTPServer(cfg *config.ServerConfig, apis APIs) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(requestLogger())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))

	apis.Pat.RegisterRoutes(e, apis.RequireProvider)
	apis.Gateway.RegisterRoutes(e, apis.RequireAccess, apis.RequireScope)
	apis.Health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// requestLogger logs every request with method, path, status, and
// latency. Credentials never appear in log fields.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}
			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Str("user_agent", c.Request().UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}
