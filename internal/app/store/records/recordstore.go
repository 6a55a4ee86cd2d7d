// internal/app/store/records/recordstore.go
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/store/storeutil"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/domain/series"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no record exists for the date.
var ErrNotFound = errors.New("record not found")

// Store provides record persistence. (indicator_id, date) is unique.
type Store struct {
	c *mongo.Collection
}

// New creates a new record store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("records")}
}

// Entry is one dated value to write.
type Entry struct {
	Date  string // YYYY-MM-DD
	Value float64
}

func upsertDoc(owner primitive.ObjectID, e Entry, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"value":      e.Value,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"created_by": owner,
			"created_at": now,
		},
	}
}

// Upsert writes the value for a date, replacing any existing value.
func (s *Store) Upsert(ctx context.Context, indicatorID, owner primitive.ObjectID, e Entry) (models.Record, error) {
	filter := bson.M{"indicator_id": indicatorID, "date": e.Date}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rec models.Record
	err := s.c.FindOneAndUpdate(ctx, filter, upsertDoc(owner, e, time.Now()), opts).Decode(&rec)
	if err != nil && wafflemongo.IsDup(err) {
		// A concurrent upsert inserted the date first; this one now updates it.
		err = s.c.FindOneAndUpdate(ctx, filter, upsertDoc(owner, e, time.Now()), opts).Decode(&rec)
	}
	if err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

// UpsertMany writes a batch of entries in one round trip. Later entries for
// the same date win. It returns how many dates were inserted or changed.
func (s *Store) UpsertMany(ctx context.Context, indicatorID, owner primitive.ObjectID, entries []Entry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"indicator_id": indicatorID, "date": e.Date}).
			SetUpdate(upsertDoc(owner, e, now)).
			SetUpsert(true))
	}
	res, err := s.c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert records: %w", err)
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// DeleteByDate removes the record for a date.
func (s *Store) DeleteByDate(ctx context.Context, indicatorID primitive.ObjectID, date string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"indicator_id": indicatorID, "date": date})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAscending returns every record of an indicator, oldest date first.
func (s *Store) ListAscending(ctx context.Context, indicatorID primitive.ObjectID) ([]models.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"indicator_id": indicatorID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Page returns one page of an indicator's records, newest date first, and
// the indicator's total record count.
func (s *Store) Page(ctx context.Context, indicatorID primitive.ObjectID, page, size int) ([]models.Record, int64, error) {
	filter := bson.M{"indicator_id": indicatorID}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := storeutil.Paginate(size, page).SetSort(storeutil.Newest("date"))
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByOwner returns how many records owner has written across all indicators.
func (s *Store) CountByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"created_by": owner})
}

// DeleteByIndicator removes every record of an indicator.
func (s *Store) DeleteByIndicator(ctx context.Context, indicatorID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"indicator_id": indicatorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByOwner removes every record written by owner.
func (s *Store) DeleteByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_by": owner})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Samples converts stored records to series samples. Records with an
// unparseable date are skipped.
func Samples(recs []models.Record) []series.Sample {
	out := make([]series.Sample, 0, len(recs))
	for _, r := range recs {
		d, err := series.ParseDate(r.Date)
		if err != nil {
			continue
		}
		out = append(out, series.Point(d, r.Value))
	}
	return out
}
