// internal/app/store/oauthstate/oauthstatestore.go
package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultTTL is how long a state token stays valid.
const DefaultTTL = 10 * time.Minute

// State is a single-use OAuth state token. Provider names the identity
// provider that issued the redirect (e.g. "facebook").
type State struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	Provider  string             `bson:"provider"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store provides access to the oauth_states collection.
type Store struct {
	c   *mongo.Collection
	ttl time.Duration
	now func() time.Time
}

// New creates a new OAuth state store. A non-positive ttl uses DefaultTTL.
func New(db *mongo.Database, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		c:   db.Collection("oauth_states"),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue creates and stores a fresh random state token for provider.
func (s *Store) Issue(ctx context.Context, provider string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	now := s.now()
	_, err := s.c.InsertOne(ctx, State{
		ID:        primitive.NewObjectID(),
		State:     state,
		Provider:  provider,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// Consume checks that state is valid for provider and deletes it, so a
// token can be used once. Returns false for unknown, expired, reused or
// mismatched tokens.
func (s *Store) Consume(ctx context.Context, provider, state string) bool {
	if state == "" {
		return false
	}
	filter := bson.M{
		"state":      state,
		"provider":   provider,
		"expires_at": bson.M{"$gt": s.now()},
	}
	return s.c.FindOneAndDelete(ctx, filter).Err() == nil
}

// PurgeExpired removes tokens whose expiry is before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
