// Package usersapi serves the signed-in user's account: the current user,
// profile edits and statistics, username/email availability, and a user's
// indicator list.
package usersapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratatrack/internal/app/features/errors"
	indicatorstore "github.com/dalemusser/stratatrack/internal/app/store/indicators"
	recordstore "github.com/dalemusser/stratatrack/internal/app/store/records"
	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/authutil"
	"github.com/dalemusser/stratatrack/internal/app/system/inputval"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides the user endpoints.
type Handler struct {
	users      *userstore.Store
	indicators *indicatorstore.Store
	records    *recordstore.Store
	tokens     *auth.TokenIssuer
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new usersapi Handler.
func NewHandler(db *mongo.Database, tokens *auth.TokenIssuer, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		users:      userstore.New(db),
		indicators: indicatorstore.New(db),
		records:    recordstore.New(db),
		tokens:     tokens,
		errLog:     errLog,
		logger:     logger,
	}
}

// Routes returns a chi.Router meant to be mounted at /api/users.
// Availability checks are public; everything else needs a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Get("/checkUsernameAvailability", h.checkUsername)
	r.Get("/checkEmailAvailability", h.checkEmail)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/me", h.me)
		pr.Post("/me", h.updateMe)
		pr.Get("/profile", h.profile)
		pr.Get("/{id}/indicators", h.indicatorsOf)
	})
	return r
}

// MeResponse describes the signed-in user. AccessToken is refreshed on
// every call.
type MeResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsDemo      bool   `json:"isDemo"`
	AccessToken string `json:"accessToken"`
}

// ProfileResponse is the user's profile with usage counts.
type ProfileResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	IsDemo         bool      `json:"isDemo"`
	JoinedAt       time.Time `json:"joinedAt"`
	IndicatorCount int64     `json:"indicatorCount"`
	RecordCount    int64     `json:"recordCount"`
}

// AvailabilityResponse answers the availability checks.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// me handles GET /me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	cu, _ := auth.CurrentUser(r)
	u, err := h.users.GetByID(r.Context(), cu.UserID())
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.NotFound(w, "User not found")
		return
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to load current user", err)
		return
	}
	h.writeMe(w, r, u)
}

func (h *Handler) writeMe(w http.ResponseWriter, r *http.Request, u *models.User) {
	token, _, err := h.tokens.Issue(u.ID.Hex(), u.Username)
	if err != nil {
		h.errLog.Internal(w, r, "failed to issue access token", err)
		return
	}
	jsonutil.OK(w, MeResponse{
		ID:          u.ID.Hex(),
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.Name,
		IsDemo:      u.IsDemo,
		AccessToken: token,
	})
}

type profileInput struct {
	Name     string `json:"name" validate:"required,max=40" label:"Name"`
	Username string `json:"username" validate:"required,min=3,max=15,username" label:"Username"`
	Email    string `json:"email" validate:"required,email,max=40" label:"Email"`
	Password string `json:"password" validate:"max=20" label:"Password"`
}

// updateMe handles POST /me. A blank password keeps the current one.
func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	cu, _ := auth.CurrentUser(r)
	id := cu.UserID()

	var in profileInput
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
		IsEdit:   true,
	})
	if err != nil {
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	}

	ctx := r.Context()
	if taken, err := h.users.UsernameExists(ctx, creds.Username, id); err != nil {
		h.errLog.Internal(w, r, "username lookup failed", err)
		return
	} else if taken {
		jsonutil.Message(w, http.StatusBadRequest, false, userstore.ErrDuplicateUsername.Error())
		return
	}
	if taken, err := h.users.EmailExists(ctx, creds.Email, id); err != nil {
		h.errLog.Internal(w, r, "email lookup failed", err)
		return
	} else if taken {
		jsonutil.Message(w, http.StatusBadRequest, false, userstore.ErrDuplicateEmail.Error())
		return
	}

	err = h.users.UpdateProfile(ctx, id, userstore.ProfileUpdate{
		Name:         creds.Name,
		Username:     creds.Username,
		Email:        creds.Email,
		PasswordHash: creds.PasswordHash,
	})
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		jsonutil.NotFound(w, "User not found")
		return
	case errors.Is(err, userstore.ErrDuplicateUsername), errors.Is(err, userstore.ErrDuplicateEmail):
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	case err != nil:
		h.errLog.Internal(w, r, "failed to update profile", err)
		return
	}

	h.logger.Info("profile updated",
		zap.String("user_id", id.Hex()),
		zap.Bool("password_changed", creds.PasswordHash != nil))

	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		h.errLog.Internal(w, r, "failed to reload user", err)
		return
	}
	h.writeMe(w, r, u)
}

// profile handles GET /profile.
func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	cu, _ := auth.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	u, err := h.users.GetByID(ctx, cu.UserID())
	if errors.Is(err, userstore.ErrNotFound) {
		jsonutil.NotFound(w, "User not found")
		return
	}
	if err != nil {
		h.errLog.Internal(w, r, "failed to load profile", err)
		return
	}
	indicators, err := h.indicators.CountByOwner(ctx, u.ID)
	if err != nil {
		h.errLog.Internal(w, r, "failed to count indicators", err)
		return
	}
	records, err := h.records.CountByOwner(ctx, u.ID)
	if err != nil {
		h.errLog.Internal(w, r, "failed to count records", err)
		return
	}

	jsonutil.OK(w, ProfileResponse{
		ID:             u.ID.Hex(),
		Username:       u.Username,
		Name:           u.Name,
		Email:          u.Email,
		IsDemo:         u.IsDemo,
		JoinedAt:       u.CreatedAt,
		IndicatorCount: indicators,
		RecordCount:    records,
	})
}

// checkUsername handles GET /checkUsernameAvailability?username=.
func (h *Handler) checkUsername(w http.ResponseWriter, r *http.Request) {
	v := normalize.QueryParam(query.Get(r, "username"))
	if v == "" {
		jsonutil.BadRequest(w, "username is required")
		return
	}
	taken, err := h.users.UsernameExists(r.Context(), v, selfID(r))
	if err != nil {
		h.errLog.Internal(w, r, "username availability check failed", err)
		return
	}
	jsonutil.OK(w, AvailabilityResponse{Available: !taken})
}

// checkEmail handles GET /checkEmailAvailability?email=.
func (h *Handler) checkEmail(w http.ResponseWriter, r *http.Request) {
	v := normalize.QueryParam(query.Get(r, "email"))
	if v == "" {
		jsonutil.BadRequest(w, "email is required")
		return
	}
	taken, err := h.users.EmailExists(r.Context(), v, selfID(r))
	if err != nil {
		h.errLog.Internal(w, r, "email availability check failed", err)
		return
	}
	jsonutil.OK(w, AvailabilityResponse{Available: !taken})
}

// selfID returns the signed-in user's ID, so a user's own name counts as
// available while editing the profile.
func selfID(r *http.Request) primitive.ObjectID {
	if u, ok := auth.CurrentUser(r); ok {
		return u.UserID()
	}
	return primitive.NilObjectID
}

// indicatorsOf handles GET /{id}/indicators. Users see their own list;
// admins may see anyone's.
func (h *Handler) indicatorsOf(w http.ResponseWriter, r *http.Request) {
	cu, _ := auth.CurrentUser(r)
	owner, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "Invalid user ID")
		return
	}
	if owner != cu.UserID() && normalize.Role(cu.Role) != models.RoleAdmin {
		jsonutil.Forbidden(w, "You may only list your own indicators")
		return
	}
	pr, err := jsonutil.ParsePage(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	list, total, err := h.indicators.ListByOwner(r.Context(), owner, pr.Page, pr.Size)
	if err != nil {
		h.errLog.Internal(w, r, "failed to list indicators", err)
		return
	}
	jsonutil.OK(w, jsonutil.NewPaged(list, pr, total))
}
