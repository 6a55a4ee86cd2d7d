// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATATRACK"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATATRACK_MONGO_URI, STRATATRACK_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratatrack", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratatrack-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Bearer access tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-please-change-0123456789", Desc: "Access token signing secret (32+ chars in production)"},
	{Name: "jwt_expiration", Default: "24h", Desc: "Access token lifetime"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for sign-in attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed sign-in attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	// Demo accounts
	{Name: "demo_user_ttl", Default: "24h", Desc: "Lifetime of a demo account"},
	{Name: "demo_cleanup_interval", Default: "1h", Desc: "How often expired demo accounts are deleted"},

	// Facebook OAuth configuration
	{Name: "facebook_client_id", Default: "", Desc: "Facebook app ID (blank disables Facebook sign-in)"},
	{Name: "facebook_client_secret", Default: "", Desc: "Facebook app secret"},
	{Name: "oauth_state_ttl", Default: "10m", Desc: "Lifetime of an OAuth state token"},

	// Base URL for the OAuth callback
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of this service"},

	// Database operation timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for multi-document operations"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for bulk operations"},

	// Admin seeding configuration
	{Name: "seed_admin_email", Default: "", Desc: "Email of admin user to create or promote on startup"},
	{Name: "seed_admin_username", Default: "admin", Desc: "Username of a newly created admin"},
	{Name: "seed_admin_password", Default: "", Desc: "Password of a newly created admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATATRACK_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		JWTSecret:     appValues.String("jwt_secret"),
		JWTExpiration: appValues.Duration("jwt_expiration", 24*time.Hour),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		// Demo accounts
		DemoUserTTL:         appValues.Duration("demo_user_ttl", 24*time.Hour),
		DemoCleanupInterval: appValues.Duration("demo_cleanup_interval", time.Hour),

		// Facebook OAuth
		FacebookClientID:     appValues.String("facebook_client_id"),
		FacebookClientSecret: appValues.String("facebook_client_secret"),
		OAuthStateTTL:        appValues.Duration("oauth_state_ttl", 10*time.Minute),

		BaseURL: appValues.String("base_url"),

		// Timeouts
		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),

		// Admin seeding
		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminUsername: appValues.String("seed_admin_username"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if coreCfg.Env == "prod" && len(appCfg.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters in production")
	}
	if appCfg.RateLimitEnabled && appCfg.RateLimitLoginAttempts < 1 {
		return errors.New("rate_limit_login_attempts must be at least 1")
	}
	if appCfg.DemoCleanupInterval <= 0 {
		return errors.New("demo_cleanup_interval must be positive")
	}

	if (appCfg.FacebookClientID == "") != (appCfg.FacebookClientSecret == "") {
		logger.Warn("Facebook sign-in needs both facebook_client_id and facebook_client_secret; it stays disabled")
	}
	return nil
}
