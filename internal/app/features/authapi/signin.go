package authapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/authutil"
	"github.com/dalemusser/stratatrack/internal/app/system/inputval"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	msgBadCredentials = "Bad credentials"
	msgDisabled       = "This account is disabled."
	msgLocked         = "Too many failed sign-in attempts. Please try again later."
)

type signupInput struct {
	Name     string `json:"name" validate:"required,max=40" label:"Name"`
	Username string `json:"username" validate:"required,min=3,max=15,username" label:"Username"`
	Email    string `json:"email" validate:"required,email,max=40" label:"Email"`
	Password string `json:"password" validate:"required,min=6,max=20" label:"Password"`
}

// signup handles POST /signup.
func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var in signupInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.Fields())
		return
	}

	creds, err := authutil.ResolveCredentials(authutil.CredentialInput{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	}

	ctx := r.Context()
	if taken, err := h.users.UsernameExists(ctx, creds.Username, primitive.NilObjectID); err != nil {
		h.errLog.Internal(w, r, "username lookup failed", err)
		return
	} else if taken {
		jsonutil.Message(w, http.StatusBadRequest, false, userstore.ErrDuplicateUsername.Error())
		return
	}
	if taken, err := h.users.EmailExists(ctx, creds.Email, primitive.NilObjectID); err != nil {
		h.errLog.Internal(w, r, "email lookup failed", err)
		return
	} else if taken {
		jsonutil.Message(w, http.StatusBadRequest, false, userstore.ErrDuplicateEmail.Error())
		return
	}

	u, err := h.users.Create(ctx, models.User{
		Name:         creds.Name,
		Username:     creds.Username,
		Email:        creds.Email,
		AuthMethod:   models.AuthPassword,
		PasswordHash: creds.PasswordHash,
	})
	switch {
	case errors.Is(err, userstore.ErrDuplicateUsername), errors.Is(err, userstore.ErrDuplicateEmail):
		// Lost a race with another signup for the same name.
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	case err != nil:
		h.errLog.Internal(w, r, "failed to create user", err)
		return
	}

	h.logger.Info("user registered", zap.String("user_id", u.ID.Hex()), zap.String("username", u.Username))
	jsonutil.Message(w, http.StatusCreated, true, "User registered successfully")
}

type signinInput struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required" label:"Username or email"`
	Password        string `json:"password" validate:"required" label:"Password"`
}

// signin handles POST /signin.
func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	var in signinInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.Fields())
		return
	}

	ctx := r.Context()
	identifier := normalize.Identifier(in.UsernameOrEmail)

	if h.limiter != nil {
		if st := h.limiter.CheckAllowed(ctx, identifier); !st.Allowed {
			metrics.SignIns.WithLabelValues(models.AuthPassword, "locked").Inc()
			h.tooManyAttempts(w, st.RetryAfter(h.now()).Seconds())
			return
		}
	}

	u, err := h.users.GetByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, userstore.ErrNotFound) {
		h.errLog.Internal(w, r, "user lookup failed", err)
		return
	}
	if u == nil || u.PasswordHash == nil || !authutil.CheckPassword(in.Password, *u.PasswordHash) {
		h.logger.Warn("sign-in failed", zap.String("identifier", identifier))
		h.failedSignin(w, r, identifier)
		return
	}
	if normalize.Status(u.Status) == models.StatusDisabled {
		metrics.SignIns.WithLabelValues(models.AuthPassword, "disabled").Inc()
		jsonutil.Forbidden(w, msgDisabled)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.ClearOnSuccess(ctx, identifier); err != nil {
			h.logger.Warn("failed to clear sign-in attempts", zap.Error(err))
		}
	}
	metrics.SignIns.WithLabelValues(models.AuthPassword, "success").Inc()
	h.completeSignin(w, r, u)
}

// failedSignin records the failure and answers 401, or 429 when this
// failure triggered a lockout.
func (h *Handler) failedSignin(w http.ResponseWriter, r *http.Request, identifier string) {
	metrics.SignIns.WithLabelValues(models.AuthPassword, "failure").Inc()
	if h.limiter != nil {
		if locked, until := h.limiter.RecordFailure(r.Context(), identifier); locked && until != nil {
			h.tooManyAttempts(w, until.Sub(h.now()).Seconds())
			return
		}
	}
	jsonutil.Unauthorized(w, msgBadCredentials)
}

func (h *Handler) tooManyAttempts(w http.ResponseWriter, retryAfter float64) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter))))
	}
	jsonutil.TooManyRequests(w, msgLocked)
}

// completeSignin issues an access token, starts a cookie session, and
// writes the TokenResponse.
func (h *Handler) completeSignin(w http.ResponseWriter, r *http.Request, u *models.User) {
	access, exp, err := h.tokens.Issue(u.ID.Hex(), u.Username)
	if err != nil {
		h.errLog.Internal(w, r, "failed to issue access token", err)
		return
	}

	sessionToken, err := auth.GenerateSessionToken()
	if err != nil {
		h.errLog.Internal(w, r, "failed to generate session token", err)
		return
	}
	if err := h.sessionMgr.CreateSession(w, r, u.ID, u.Role, sessionToken); err != nil {
		// Token clients do not need the cookie.
		h.logger.Warn("failed to create cookie session", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}

	h.logger.Info("user signed in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("auth_method", u.AuthMethod))
	jsonutil.OK(w, TokenResponse{AccessToken: access, TokenType: auth.TokenType, ExpiresAt: exp})
}

// demoSignin handles POST /demo/signin.
func (h *Handler) demoSignin(w http.ResponseWriter, r *http.Request) {
	if h.demo == nil {
		jsonutil.NotFound(w, "Demo accounts are disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()
	u, err := h.demo.Create(ctx)
	if err != nil {
		metrics.SignIns.WithLabelValues(models.AuthDemo, "error").Inc()
		h.errLog.Internal(w, r, "failed to create demo user", err)
		return
	}
	metrics.SignIns.WithLabelValues(models.AuthDemo, "success").Inc()
	h.completeSignin(w, r, u)
}

// signout handles POST /signout.
func (h *Handler) signout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.logger.Info("user signed out", zap.String("user_id", u.ID))
	}
	h.sessionMgr.DestroySession(w, r)
	jsonutil.Message(w, http.StatusOK, true, "Signed out")
}

// csrfToken handles GET /csrf.
func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	jsonutil.OK(w, map[string]string{"csrfToken": csrf.Token(r)})
}
