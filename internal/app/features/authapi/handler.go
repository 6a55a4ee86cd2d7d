// internal/app/features/authapi/handler.go

// Package authapi serves account creation and sign-in for API clients:
// password signup/signin, demo accounts, sign-out, the CSRF token for
// cookie clients, and Facebook OAuth.
package authapi

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Identifier: what the user typed to sign in, either a username or an email

import (
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	"github.com/dalemusser/stratatrack/internal/app/store/oauthstate"
	"github.com/dalemusser/stratatrack/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/demo"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0/me?fields=id,name,email"

// FacebookConfig enables Facebook sign-in when ClientID and ClientSecret
// are both set.
type FacebookConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // public base URL used to build the callback
}

// Handler provides the authentication endpoints.
type Handler struct {
	users      *userstore.Store
	sessionMgr *auth.SessionManager
	tokens     *auth.TokenIssuer
	limiter    *ratelimit.Store // nil disables throttling
	demo       *demo.Service
	states     *oauthstate.Store
	fb         *oauth2.Config // nil when Facebook sign-in is not configured
	fbInfoURL  string
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new authapi Handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	tokens *auth.TokenIssuer,
	limiter *ratelimit.Store,
	demoSvc *demo.Service,
	states *oauthstate.Store,
	fbCfg FacebookConfig,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		users:      userstore.New(db),
		sessionMgr: sessionMgr,
		tokens:     tokens,
		limiter:    limiter,
		demo:       demoSvc,
		states:     states,
		fbInfoURL:  facebookGraphURL,
		errLog:     errLog,
		logger:     logger,
		now:        time.Now,
	}
	if fbCfg.ClientID != "" && fbCfg.ClientSecret != "" {
		h.fb = &oauth2.Config{
			ClientID:     fbCfg.ClientID,
			ClientSecret: fbCfg.ClientSecret,
			RedirectURL:  fbCfg.BaseURL + "/api/auth/facebook/callback",
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		}
	}
	return h
}

// Routes returns a chi.Router with the auth endpoints, meant to be mounted
// at /api/auth.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.signup)
	r.Post("/signin", h.signin)
	r.Post("/demo/signin", h.demoSignin)
	r.Post("/signout", h.signout)
	r.Get("/csrf", h.csrfToken)
	r.Get("/facebook/login", h.facebookLogin)
	r.Get("/facebook/callback", h.facebookCallback)
	return r
}

// TokenResponse is returned by every successful sign-in.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
