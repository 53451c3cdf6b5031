package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	patgate "go.pilab.hu/patgate"
	patecho "go.pilab.hu/patgate/api/echo"
	"go.pilab.hu/patgate/cache"
	redisstore "go.pilab.hu/patgate/cache/redis"
	"go.pilab.hu/patgate/config"
	"go.pilab.hu/patgate/internal/gateway"
	"go.pilab.hu/patgate/internal/metrics"
	"go.pilab.hu/patgate/internal/oidc"
	"go.pilab.hu/patgate/internal/server"
	"go.pilab.hu/patgate/middleware"
	"go.pilab.hu/patgate/mongodb"
	"go.pilab.hu/patgate/services"
	"go.pilab.hu/patgate/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("oidc_issuer", cfg.OIDCIssuer).
		Bool("echo_fallback", cfg.GatewayEchoFallback).
		Msg("Starting patgate server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}

	patRepo, err := mongodb.NewPATRepository(ctx, mongodb.GetDB())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PAT repository")
	}

	verifier, cleanupCache, err := buildProviderVerifier(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize OIDC provider verifier")
	}

	codec := patgate.NewAccessTokenCodec(
		[]byte(cfg.AccessTokenSecret),
		cfg.AccessTokenIssuer,
		cfg.ClockSkew(),
	)

	patService := services.NewPATService(patRepo, cfg.PATSecretPrefix)
	exchangeService := services.NewExchangeService(patRepo, codec, cfg.AccessTokenTTL())
	forwarder := gateway.NewForwarder(cfg.UpstreamBaseURL, cfg.UpstreamTimeout(), cfg.GatewayEchoFallback)

	metrics.Register(prometheus.DefaultRegisterer)

	httpServer := server.NewHTTPServer(cfg, server.APIs{
		Pat:             patecho.NewPatAPI(patService, exchangeService),
		Gateway:         patecho.NewGatewayAPI(forwarder),
		Health:          patecho.NewHealthAPI(mongodb.Ping),
		RequireProvider: middleware.RequireProviderToken(verifier),
		RequireAccess:   middleware.RequireAccessToken(codec),
		RequireScope:    middleware.RequireScope(cfg.GatewayRequiredScope),
	})

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if cleanupCache != nil {
		cleanupCache()
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown error")
	}

	mongodb.CloseMongoDB(shutdownCtx)
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
}

// buildProviderVerifier discovers the configured OIDC provider and wraps
// it with a claims cache, Redis-backed when REDIS_ADDR is set. The
// returned cleanup stops the in-memory cache's eviction loop.
func buildProviderVerifier(ctx context.Context, cfg *config.ServerConfig) (oidc.ProviderVerifier, func(), error) {
	if cfg.OIDCIssuer == "" {
		return nil, nil, errors.New("OIDC_ISSUER must be configured")
	}

	base, err := oidc.NewVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCAudience)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   cache.ClaimsStore
		cleanup func()
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = redisstore.NewClaimsStore(client, "patgate")
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis client")
			}
		}
		log.Info().Str("redis_addr", cfg.RedisAddr).Msg("Using Redis claims cache")
	} else {
		memStore := cache.NewMemoryClaimsStore(cfg.ClaimsCacheTTL())
		store = memStore
		cleanup = memStore.Stop
		log.Info().Msg("Using in-memory claims cache")
	}

	return oidc.NewCachingVerifier(base, store, cfg.ClaimsCacheTTL()), cleanup, nil
}
