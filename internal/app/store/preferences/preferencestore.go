// internal/app/store/preferences/preferencestore.go
package preferencestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratatrack/internal/domain/series"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Preference is one per-user setting. (user_id, key) is unique.
type Preference struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	Key       string             `bson:"key"`
	Value     string             `bson:"value"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Store provides preference persistence.
type Store struct {
	c *mongo.Collection
}

// New creates a new preference store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("preferences")}
}

// Get returns the value stored for key. ok is false when nothing is stored.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID, key string) (value string, ok bool, err error) {
	var p Preference
	err = s.c.FindOne(ctx, bson.M{"user_id": userID, "key": key}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Value, true, nil
}

// Set stores value under key, replacing any earlier value.
func (s *Store) Set(ctx context.Context, userID primitive.ObjectID, key, value string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "key": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Delete removes key for the user. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, userID primitive.ObjectID, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID, "key": key})
	return err
}

// DeleteByUser removes every preference of the user.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ForUser returns a series.Preferences view scoped to one user.
func (s *Store) ForUser(userID primitive.ObjectID) series.Preferences {
	return userPrefs{s: s, userID: userID}
}

type userPrefs struct {
	s      *Store
	userID primitive.ObjectID
}

func (u userPrefs) Get(ctx context.Context, key string) (string, bool, error) {
	return u.s.Get(ctx, u.userID, key)
}

func (u userPrefs) Set(ctx context.Context, key, value string) error {
	return u.s.Set(ctx, u.userID, key, value)
}
