// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Username / username: The handle users sign in with
//   - Identifier: What a user types at sign-in; either a username or an email

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when the username is taken.
	ErrDuplicateUsername = errors.New("Username is already taken!")
	// ErrDuplicateEmail is returned when the email is already in use.
	ErrDuplicateEmail = errors.New("Email is already in use!")
	errBadRole        = errors.New("invalid role")
	errBadStatus      = errors.New(`status must be "active"|"disabled"`)
	errBadAuthMethod  = errors.New("invalid auth method")
)

// dupErr maps a duplicate-key error to the sentinel for the field whose
// unique index was violated.
func dupErr(err error) error {
	if !wafflemongo.IsDup(err) {
		return err
	}
	if strings.Contains(err.Error(), "email_ci") {
		return ErrDuplicateEmail
	}
	if strings.Contains(err.Error(), "facebook_user_id") {
		return err
	}
	return ErrDuplicateUsername
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByUsername looks up a user by case/diacritic-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username_ci": text.Fold(normalize.Username(username))})
}

// GetByEmail looks up a user by email address (case-insensitive).
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))})
}

// GetByIdentifier resolves what was typed at sign-in: a username first,
// then an email address.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	folded := text.Fold(normalize.Identifier(identifier))
	if folded == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username_ci": folded},
		bson.M{"email_ci": folded},
	}})
}

// GetByFacebookID looks up the account linked to a Facebook user ID.
func (s *Store) GetByFacebookID(ctx context.Context, fbID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"facebook_user_id": fbID})
}

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Username = normalize.Username(u.Username)
	u.UsernameCI = text.Fold(u.Username)
	u.Email = normalize.Email(u.Email)
	u.EmailCI = text.Fold(u.Email)

	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}
	if !models.IsValidStatus(u.Status) {
		return models.User{}, errBadStatus
	}
	if !models.IsValidAuthMethod(u.AuthMethod) {
		return models.User{}, errBadAuthMethod
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		return models.User{}, dupErr(err)
	}
	return u, nil
}

// ProfileUpdate holds the fields a user may change on their own profile.
type ProfileUpdate struct {
	Name         string
	Username     string
	Email        string
	PasswordHash *string // nil leaves the password unchanged
}

// UpdateProfile updates a user's profile fields.
// Returns ErrDuplicateUsername or ErrDuplicateEmail when taken by another user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	name := normalize.Name(upd.Name)
	username := normalize.Username(upd.Username)
	email := normalize.Email(upd.Email)

	set := bson.M{
		"name":        name,
		"name_ci":     text.Fold(name),
		"username":    username,
		"username_ci": text.Fold(username),
		"email":       email,
		"email_ci":    text.Fold(email),
		"updated_at":  time.Now(),
	}
	if upd.PasswordHash != nil {
		set["password_hash"] = *upd.PasswordHash
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return dupErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkFacebook attaches a Facebook user ID to an existing account.
func (s *Store) LinkFacebook(ctx context.Context, id primitive.ObjectID, fbID string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"facebook_user_id": fbID,
		"updated_at":       time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	if !models.IsValidRole(role) {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UsernameExists reports whether a username is taken by a user other than
// excludeID. Pass primitive.NilObjectID to check against every user.
func (s *Store) UsernameExists(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error) {
	return s.exists(ctx, bson.M{"username_ci": text.Fold(normalize.Username(username))}, excludeID)
}

// EmailExists reports whether an email is used by a user other than excludeID.
func (s *Store) EmailExists(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	return s.exists(ctx, bson.M{"email_ci": text.Fold(normalize.Email(email))}, excludeID)
}

func (s *Store) exists(ctx context.Context, filter bson.M, excludeID primitive.ObjectID) (bool, error) {
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// Delete deletes a user by ID.
// Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ExpiredDemoIDs returns the IDs of demo users whose expiry is at or before now.
func (s *Store) ExpiredDemoIDs(ctx context.Context, now time.Time, limit int64) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "demo_expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"is_demo":         true,
		"demo_expires_at": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// CountActiveAdmins returns the number of users with role=admin and status=active.
func (s *Store) CountActiveAdmins(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"role":   models.RoleAdmin,
		"status": models.StatusActive,
	})
}
