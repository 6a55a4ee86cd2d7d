// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// The struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: stratatrack-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Bearer access tokens
	JWTSecret     string        // HMAC secret for access tokens (32+ chars in production)
	JWTExpiration time.Duration // Access token lifetime (default: 24h)

	// Rate limiting configuration
	RateLimitEnabled       bool          // Enable rate limiting for sign-in attempts (default: true)
	RateLimitLoginAttempts int           // Max failed sign-in attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// Demo accounts
	DemoUserTTL         time.Duration // How long a demo account lives (default: 24h)
	DemoCleanupInterval time.Duration // How often expired demo accounts are purged (default: 1h)

	// Facebook OAuth configuration (sign-in is disabled when either is empty)
	FacebookClientID     string
	FacebookClientSecret string
	OAuthStateTTL        time.Duration // Lifetime of an OAuth state token (default: 10m)

	// Public base URL, used to build the OAuth callback
	BaseURL string // e.g., "https://track.example.com" or "http://localhost:8080"

	// Database operation timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Admin seeding configuration
	SeedAdminEmail    string // Email of the admin user to create on startup (if set)
	SeedAdminUsername string // Username for a newly created admin
	SeedAdminPassword string // Password for a newly created admin
}
