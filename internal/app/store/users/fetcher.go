package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/auth"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Fetcher is the auth.UserFetcher backed by the users collection.
type Fetcher struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

var _ auth.UserFetcher = (*Fetcher)(nil)

// NewFetcher returns a Fetcher over db.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{store: New(db), logger: logger, now: time.Now}
}

// FetchUser returns the session view of a user, or nil when the ID is
// malformed or unknown, the account is disabled, a demo account has
// expired, or the lookup fails.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := f.store.GetByID(ctx, oid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.logger.Warn("user fetch failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	if !mayUseSession(u, f.now()) {
		return nil
	}

	return &auth.SessionUser{
		ID:       u.ID.Hex(),
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		Role:     normalize.Role(u.Role),
		IsDemo:   u.IsDemo,
	}
}

// mayUseSession reports whether u can still act through an existing
// session or token.
func mayUseSession(u *models.User, now time.Time) bool {
	if normalize.Status(u.Status) == models.StatusDisabled {
		return false
	}
	if u.IsDemo && u.DemoExpiresAt != nil && !u.DemoExpiresAt.After(now) {
		return false
	}
	return true
}
