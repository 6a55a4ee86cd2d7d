// internal/app/store/indicators/indicatorstore.go
package indicatorstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/store/storeutil"
	"github.com/dalemusser/stratatrack/internal/app/system/normalize"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when an indicator does not exist or belongs to
// another user. Callers cannot tell the two apart.
var ErrNotFound = errors.New("indicator not found")

// Store provides indicator persistence. Every lookup is scoped to an owner.
type Store struct {
	c *mongo.Collection
}

// New creates a new indicator store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("indicators")}
}

// Input holds the editable fields of an indicator.
type Input struct {
	Name        string
	Unit        string
	Description string
}

func (in Input) normalized() Input {
	return Input{
		Name:        normalize.Label(in.Name),
		Unit:        normalize.Label(in.Unit),
		Description: normalize.Label(in.Description),
	}
}

// Create inserts a new indicator owned by owner.
func (s *Store) Create(ctx context.Context, owner primitive.ObjectID, in Input) (models.Indicator, error) {
	in = in.normalized()
	now := time.Now()
	ind := models.Indicator{
		ID:          primitive.NewObjectID(),
		CreatedBy:   owner,
		Name:        in.Name,
		NameCI:      text.Fold(in.Name),
		Unit:        in.Unit,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, ind); err != nil {
		return models.Indicator{}, err
	}
	return ind, nil
}

// Get loads an indicator owned by owner.
func (s *Store) Get(ctx context.Context, id, owner primitive.ObjectID) (*models.Indicator, error) {
	var ind models.Indicator
	err := s.c.FindOne(ctx, bson.M{"_id": id, "created_by": owner}).Decode(&ind)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ind, nil
}

// Update replaces the editable fields and returns the updated indicator.
func (s *Store) Update(ctx context.Context, id, owner primitive.ObjectID, in Input) (*models.Indicator, error) {
	in = in.normalized()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ind models.Indicator
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "created_by": owner},
		bson.M{"$set": bson.M{
			"name":        in.Name,
			"name_ci":     text.Fold(in.Name),
			"unit":        in.Unit,
			"description": in.Description,
			"updated_at":  time.Now(),
		}},
		opts,
	).Decode(&ind)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ind, nil
}

// Touch bumps updated_at after the indicator's records change.
func (s *Store) Touch(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"updated_at": time.Now()}})
	return err
}

// Delete removes an indicator owned by owner. Records are not touched.
func (s *Store) Delete(ctx context.Context, id, owner primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "created_by": owner})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns one page of the owner's indicators, newest first,
// and the owner's total indicator count.
func (s *Store) ListByOwner(ctx context.Context, owner primitive.ObjectID, page, size int) ([]models.Indicator, int64, error) {
	filter := bson.M{"created_by": owner}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(size, page).SetSort(storeutil.Newest("created_at"))
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Indicator
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByOwner returns how many indicators owner has.
func (s *Store) CountByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"created_by": owner})
}

// DeleteByOwner removes every indicator owned by owner.
func (s *Store) DeleteByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_by": owner})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
