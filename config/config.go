package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; every key is also
// bindable from the environment.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Identity provider (OIDC) used to authenticate PAT management calls.
	OIDCIssuer   string `mapstructure:"OIDC_ISSUER"`
	OIDCAudience string `mapstructure:"OIDC_AUDIENCE"`

	// Access token codec settings. The secret is loaded once at startup
	// and must never be logged.
	AccessTokenSecret     string `mapstructure:"ACCESS_TOKEN_SECRET"`
	AccessTokenIssuer     string `mapstructure:"ACCESS_TOKEN_ISSUER"`
	AccessTokenTTLSeconds int    `mapstructure:"ACCESS_TOKEN_TTL_SECONDS"`
	ClockSkewSeconds      int    `mapstructure:"CLOCK_SKEW_SECONDS"`

	// PAT secret generation.
	PATSecretPrefix string `mapstructure:"PAT_SECRET_PREFIX"`

	// Gateway forwarding. When UpstreamBaseURL is empty the gateway
	// serves the diagnostic echo payload only if GatewayEchoFallback is
	// explicitly enabled; otherwise forwarded calls fail with 502.
	UpstreamBaseURL        string `mapstructure:"UPSTREAM_BASE_URL"`
	UpstreamTimeoutSeconds int    `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`
	GatewayEchoFallback    bool   `mapstructure:"GATEWAY_ECHO_FALLBACK"`
	GatewayRequiredScope   string `mapstructure:"GATEWAY_REQUIRED_SCOPE"`

	// Optional Redis-backed cache for verified provider claims. Empty
	// address selects the in-memory cache.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	ClaimsCacheTTLSecond int    `mapstructure:"CLAIMS_CACHE_TTL_SECONDS"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// ClockSkew returns the verification skew allowance.
func (c *ServerConfig) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

// UpstreamTimeout returns the bounded timeout applied to forwarded calls.
func (c *ServerConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// ClaimsCacheTTL returns the lifetime of cached provider claims.
func (c *ServerConfig) ClaimsCacheTTL() time.Duration {
	return time.Duration(c.ClaimsCacheTTLSecond) * time.Second
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/patgate/")
	v.AddConfigPath("$HOME/.patgate")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/patgate_dev")
	v.SetDefault("MONGO_DB_NAME", "patgate_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "patgate-server")
	v.SetDefault("OIDC_ISSUER", "")
	v.SetDefault("OIDC_AUDIENCE", "")
	v.SetDefault("ACCESS_TOKEN_SECRET", "a_very_secret_signing_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("ACCESS_TOKEN_ISSUER", "patgate")
	v.SetDefault("ACCESS_TOKEN_TTL_SECONDS", 900)
	v.SetDefault("CLOCK_SKEW_SECONDS", 60)
	v.SetDefault("PAT_SECRET_PREFIX", "pat")
	v.SetDefault("UPSTREAM_BASE_URL", "")
	v.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 20)
	v.SetDefault("GATEWAY_ECHO_FALLBACK", false)
	v.SetDefault("GATEWAY_REQUIRED_SCOPE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CLAIMS_CACHE_TTL_SECONDS", 300)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to defaults and
		// environment variables. Anything else is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
