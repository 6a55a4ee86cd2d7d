package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/jsonutil"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const providerFacebook = "facebook"

// FacebookUserInfo is the subset of the Graph API profile used for sign-in.
type FacebookUserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// facebookLogin handles GET /facebook/login by redirecting to the consent page.
func (h *Handler) facebookLogin(w http.ResponseWriter, r *http.Request) {
	if h.fb == nil {
		jsonutil.NotFound(w, "Facebook sign-in is not configured")
		return
	}
	state, err := h.states.Issue(r.Context(), providerFacebook)
	if err != nil {
		h.errLog.Internal(w, r, "failed to store oauth state", err)
		return
	}
	http.Redirect(w, r, h.fb.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// facebookCallback handles GET /facebook/callback.
func (h *Handler) facebookCallback(w http.ResponseWriter, r *http.Request) {
	if h.fb == nil {
		jsonutil.NotFound(w, "Facebook sign-in is not configured")
		return
	}
	q := r.URL.Query()
	if !h.states.Consume(r.Context(), providerFacebook, q.Get("state")) {
		h.logger.Warn("invalid oauth state", zap.String("provider", providerFacebook))
		jsonutil.BadRequest(w, "Invalid or expired sign-in state")
		return
	}
	if errMsg := q.Get("error"); errMsg != "" {
		h.logger.Warn("oauth error from facebook", zap.String("error", errMsg))
		metrics.SignIns.WithLabelValues(models.AuthFacebook, "denied").Inc()
		jsonutil.Unauthorized(w, "Facebook sign-in was cancelled")
		return
	}

	token, err := h.fb.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Warn("oauth code exchange failed", zap.Error(err))
		metrics.SignIns.WithLabelValues(models.AuthFacebook, "failure").Inc()
		jsonutil.Unauthorized(w, "Facebook sign-in failed")
		return
	}
	info, err := h.fetchFacebookUser(r.Context(), token)
	if err != nil {
		h.errLog.Log(r, "failed to fetch facebook profile", err)
		metrics.SignIns.WithLabelValues(models.AuthFacebook, "failure").Inc()
		jsonutil.Error(w, http.StatusBadGateway, "Could not read the Facebook profile")
		return
	}

	u, err := h.resolveFacebookUser(r.Context(), info)
	switch {
	case errors.Is(err, errNoFacebookEmail):
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	case errors.Is(err, userstore.ErrDuplicateEmail):
		metrics.SignIns.WithLabelValues(models.AuthFacebook, "conflict").Inc()
		jsonutil.Message(w, http.StatusBadRequest, false, err.Error())
		return
	case err != nil:
		h.errLog.Internal(w, r, "failed to resolve facebook user", err)
		return
	}
	if normalize.Status(u.Status) == models.StatusDisabled {
		metrics.SignIns.WithLabelValues(models.AuthFacebook, "disabled").Inc()
		jsonutil.Forbidden(w, msgDisabled)
		return
	}

	metrics.SignIns.WithLabelValues(models.AuthFacebook, "success").Inc()
	h.completeSignin(w, r, u)
}

var errNoFacebookEmail = errors.New("Your Facebook account has no email address.")

// fetchFacebookUser reads the signed-in profile from the Graph API.
func (h *Handler) fetchFacebookUser(ctx context.Context, token *oauth2.Token) (*FacebookUserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.fbInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.fb.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api status %d", resp.StatusCode)
	}

	var info FacebookUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, errors.New("graph api returned no user id")
	}
	return &info, nil
}

// resolveFacebookUser finds the account linked to the Facebook ID, or
// creates one on first sign-in. An email that already belongs to another
// account is refused rather than linked.
func (h *Handler) resolveFacebookUser(ctx context.Context, info *FacebookUserInfo) (*models.User, error) {
	u, err := h.users.GetByFacebookID(ctx, info.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return nil, err
	}

	email := normalize.Email(info.Email)
	if email == "" {
		return nil, errNoFacebookEmail
	}
	if taken, err := h.users.EmailExists(ctx, email, primitive.NilObjectID); err != nil {
		return nil, err
	} else if taken {
		return nil, userstore.ErrDuplicateEmail
	}

	username, err := h.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	name := normalize.Name(info.Name)
	if name == "" {
		name = username
	}
	if len(name) > models.NameMaxLength {
		name = name[:models.NameMaxLength]
	}

	fbID := info.ID
	created, err := h.users.Create(ctx, models.User{
		Name:           name,
		Username:       username,
		Email:          email,
		AuthMethod:     models.AuthFacebook,
		FacebookUserID: &fbID,
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("user registered via facebook",
		zap.String("user_id", created.ID.Hex()),
		zap.String("username", created.Username))
	return &created, nil
}

// availableUsername derives a free username from the local part of email,
// appending a number when the base is taken.
func (h *Handler) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameBase(email)
	for i := 0; i < 100; i++ {
		candidate := base
		if i > 0 {
			suffix := strconv.Itoa(i)
			if len(base)+len(suffix) > models.UsernameMaxLength {
				candidate = base[:models.UsernameMaxLength-len(suffix)]
			}
			candidate += suffix
		}
		taken, err := h.users.UsernameExists(ctx, candidate, primitive.NilObjectID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errors.New("no free username for " + base)
}

// usernameBase keeps the characters of the email's local part that a
// username allows, padded and truncated to the username length limits.
func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, c := range local {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		}
	}
	s := b.String()
	for len(s) < models.UsernameMinLength {
		s += "_"
	}
	if len(s) > models.UsernameMaxLength {
		s = s[:models.UsernameMaxLength]
	}
	return s
}
