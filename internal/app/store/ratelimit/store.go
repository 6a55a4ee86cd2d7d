// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Attempt tracks failed sign-in attempts for one identifier (a username or
// email as typed at sign-in, normalized).
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Identifier   string             `bson:"identifier"`
	AttemptCount int                `bson:"attempt_count"` // Failed attempts in current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"` // nil if not locked
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL field
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Config holds the throttling policy.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Store throttles failed sign-ins. Every method fails open: a database
// error never blocks a sign-in.
type Store struct {
	c      *mongo.Collection
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new rate limit Store with the given policy.
func New(db *mongo.Database, cfg Config, logger *zap.Logger) *Store {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Store{
		c:      db.Collection("rate_limits"),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Status is the outcome of CheckAllowed.
type Status struct {
	Allowed     bool
	Remaining   int        // attempts left before lockout; 0 when locked
	LockedUntil *time.Time // set while locked
}

// RetryAfter is how long until a locked identifier may try again.
func (st Status) RetryAfter(now time.Time) time.Duration {
	if st.LockedUntil == nil {
		return 0
	}
	if d := st.LockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (s *Store) load(ctx context.Context, identifier string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"identifier": identifier}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CheckAllowed reports whether a sign-in attempt for identifier may proceed.
func (s *Store) CheckAllowed(ctx context.Context, identifier string) Status {
	identifier = normalize.Identifier(identifier)
	full := Status{Allowed: true, Remaining: s.cfg.MaxAttempts}

	a, err := s.load(ctx, identifier)
	if err != nil {
		s.logger.Warn("rate limit lookup failed; allowing attempt", zap.Error(err))
		return full
	}
	if a == nil {
		return full
	}

	now := s.now()
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return Status{LockedUntil: a.LockedUntil}
	}
	if now.After(a.WindowStart.Add(s.cfg.Window)) {
		return full
	}
	remaining := s.cfg.MaxAttempts - a.AttemptCount
	if remaining <= 0 {
		return Status{}
	}
	return Status{Allowed: true, Remaining: remaining}
}

// RecordFailure counts a failed attempt. It reports whether this failure
// triggered a lockout and until when.
func (s *Store) RecordFailure(ctx context.Context, identifier string) (lockedOut bool, lockedUntil *time.Time) {
	identifier = normalize.Identifier(identifier)
	now := s.now()

	a, err := s.load(ctx, identifier)
	if err != nil {
		s.logger.Warn("rate limit lookup failed; failure not counted", zap.Error(err))
		return false, nil
	}

	switch {
	case a == nil:
		a = &Attempt{Identifier: identifier, CreatedAt: now, AttemptCount: 1, WindowStart: now}
	case now.After(a.WindowStart.Add(s.cfg.Window)):
		a.AttemptCount = 1
		a.WindowStart = now
		a.LockedUntil = nil
	default:
		a.AttemptCount++
	}
	a.LastAttempt = now
	a.UpdatedAt = now

	if a.AttemptCount >= s.cfg.MaxAttempts {
		until := now.Add(s.cfg.Lockout)
		a.LockedUntil = &until
		lockedOut, lockedUntil = true, &until
	}

	_, err = s.c.UpdateOne(ctx,
		bson.M{"identifier": identifier},
		bson.M{
			"$set": bson.M{
				"attempt_count": a.AttemptCount,
				"window_start":  a.WindowStart,
				"locked_until":  a.LockedUntil,
				"last_attempt":  a.LastAttempt,
				"updated_at":    a.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": a.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Warn("rate limit update failed", zap.Error(err))
	}
	return lockedOut, lockedUntil
}

// ClearOnSuccess removes the record for identifier after a successful sign-in.
func (s *Store) ClearOnSuccess(ctx context.Context, identifier string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"identifier": normalize.Identifier(identifier)})
	return err
}

// GetAttempt returns the current record for identifier, or nil when none exists.
func (s *Store) GetAttempt(ctx context.Context, identifier string) (*Attempt, error) {
	return s.load(ctx, normalize.Identifier(identifier))
}
