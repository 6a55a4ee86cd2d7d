// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	adminapifeature "github.com/dalemusser/stratatrack/internal/app/features/adminapi"
	authapifeature "github.com/dalemusser/stratatrack/internal/app/features/authapi"
	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratatrack/internal/app/features/health"
	indicatorsapifeature "github.com/dalemusser/stratatrack/internal/app/features/indicatorsapi"
	usersapifeature "github.com/dalemusser/stratatrack/internal/app/features/usersapi"
	"github.com/dalemusser/stratatrack/internal/app/store/oauthstate"
	"github.com/dalemusser/stratatrack/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/demo"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// csrfExemptPaths are unsafe endpoints reachable before a session exists.
var csrfExemptPaths = map[string]bool{
	"/api/auth/signup":      true,
	"/api/auth/signin":      true,
	"/api/auth/demo/signin": true,
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// Two kinds of clients share the API:
//   - browser clients: cookie session + CSRF token from /api/auth/csrf
//   - token clients: "Authorization: Bearer <jwt>", no CSRF
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTExpiration, secure)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}

	// The fetcher reloads the user on each request, so role changes and
	// disabled accounts take effect immediately for sessions and tokens alike.
	fetcher := userstore.NewFetcher(db, logger)
	sessionMgr.SetUserFetcher(fetcher)

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Bearer tokens first, then the cookie session for everyone else.
	r.Use(auth.BearerAuth(tokens, fetcher, logger))
	r.Use(sessionMgr.LoadSessionUser)

	// CSRF protection for cookie clients.
	// Cookie name is "stratatrack_csrf" to avoid collisions with other services
	// on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratatrack_csrf"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	trustedOrigins := []string{
		"localhost:8080",
		"localhost:3000",
		"127.0.0.1:8080",
		"127.0.0.1:3000",
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins(trustedOrigins))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrfMiddleware(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Prometheus scrape endpoint
	r.Handle("/metrics", metrics.Handler())

	// Rate limiting for sign-in attempts (nil if disabled)
	var limiter *ratelimit.Store
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(db, ratelimit.Config{
			MaxAttempts: appCfg.RateLimitLoginAttempts,
			Window:      appCfg.RateLimitLoginWindow,
			Lockout:     appCfg.RateLimitLoginLockout,
		}, logger)
	}

	// Authentication: signup, signin, demo, signout, CSRF token, Facebook
	authHandler := authapifeature.NewHandler(
		db,
		sessionMgr,
		tokens,
		limiter,
		demo.New(db, appCfg.DemoUserTTL, logger),
		oauthstate.New(db, appCfg.OAuthStateTTL),
		authapifeature.FacebookConfig{
			ClientID:     appCfg.FacebookClientID,
			ClientSecret: appCfg.FacebookClientSecret,
			BaseURL:      strings.TrimSuffix(appCfg.BaseURL, "/"),
		},
		errLog,
		logger,
	)
	r.Mount("/api/auth", authapifeature.Routes(authHandler))
	if appCfg.FacebookClientID != "" && appCfg.FacebookClientSecret != "" {
		logger.Info("Facebook sign-in enabled", zap.String("redirect_url", appCfg.BaseURL+"/api/auth/facebook/callback"))
	}

	// Current user, profile, availability checks
	usersHandler := usersapifeature.NewHandler(db, tokens, errLog, logger)
	r.Mount("/api/users", usersapifeature.Routes(usersHandler, sessionMgr))

	// Indicators, records, charts
	indicatorsHandler := indicatorsapifeature.NewHandler(db, errLog, logger)
	r.Mount("/api/indicators", indicatorsapifeature.Routes(indicatorsHandler, sessionMgr))

	// Background job control for admins. taskRunner is set by Startup.
	if taskRunner != nil {
		adminHandler := adminapifeature.NewHandler(taskRunner, errLog, logger)
		r.Mount("/api/admin", adminapifeature.Routes(adminHandler, sessionMgr))
	}

	// JSON fallbacks for unmatched routes and methods
	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}

// csrfMiddleware applies protect to cookie-authenticated requests only.
// Bearer requests and the pre-session auth endpoints skip it.
func csrfMiddleware(protect func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if auth.IsBearerRequest(req) || csrfExemptPaths[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			protected.ServeHTTP(w, req)
		})
	}
}
