// Package indexes creates the MongoDB indexes the stores rely on. It runs
// at startup and is idempotent: an index whose keys already exist is kept,
// and one whose uniqueness changed is dropped and rebuilt.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// collectionIndexes is the full desired index set of one collection.
type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

// nonEmpty restricts a unique index to documents where field is a
// non-empty string, so accounts without it never collide.
func nonEmpty(field string) bson.M {
	return bson.M{field: bson.M{"$gt": ""}}
}

func named(name string) *options.IndexOptions { return options.Index().SetName(name) }

func uniqueNamed(name string) *options.IndexOptions {
	return options.Index().SetName(name).SetUnique(true)
}

// desired lists every index, per collection.
func desired() []collectionIndexes {
	return []collectionIndexes{
		{"users", []mongo.IndexModel{
			{Keys: bson.D{{Key: "username_ci", Value: 1}},
				Options: uniqueNamed("uniq_users_username_ci").SetPartialFilterExpression(nonEmpty("username_ci"))},
			{Keys: bson.D{{Key: "email_ci", Value: 1}},
				Options: uniqueNamed("uniq_users_email_ci").SetPartialFilterExpression(nonEmpty("email_ci"))},
			{Keys: bson.D{{Key: "facebook_user_id", Value: 1}},
				Options: uniqueNamed("uniq_users_facebook_user_id").SetSparse(true)},
			// demo cleanup scan
			{Keys: bson.D{{Key: "is_demo", Value: 1}, {Key: "demo_expires_at", Value: 1}},
				Options: named("idx_users_demo_expires")},
		}},
		{"indicators", []mongo.IndexModel{
			// owner listing, newest first
			{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
				Options: named("idx_indicators_owner_created")},
		}},
		{"records", []mongo.IndexModel{
			// one record per indicator per day; also serves date-ordered reads
			{Keys: bson.D{{Key: "indicator_id", Value: 1}, {Key: "date", Value: 1}},
				Options: uniqueNamed("uniq_records_indicator_date")},
			{Keys: bson.D{{Key: "created_by", Value: 1}},
				Options: named("idx_records_created_by")},
		}},
		{"preferences", []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "key", Value: 1}},
				Options: uniqueNamed("uniq_preferences_user_key")},
		}},
		{"oauth_states", []mongo.IndexModel{
			{Keys: bson.D{{Key: "state", Value: 1}},
				Options: uniqueNamed("uniq_oauth_state")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}},
				Options: named("idx_oauth_expires_ttl").SetExpireAfterSeconds(0)},
		}},
		{"rate_limits", []mongo.IndexModel{
			{Keys: bson.D{{Key: "identifier", Value: 1}},
				Options: uniqueNamed("uniq_ratelimit_identifier")},
			// idle counters expire after a day
			{Keys: bson.D{{Key: "last_attempt", Value: 1}},
				Options: named("idx_ratelimit_ttl").SetExpireAfterSeconds(86400)},
		}},
	}
}

// EnsureAll reconciles every collection and reports all failures together.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var errs []error
	for _, ci := range desired() {
		if err := reconcile(ctx, db.Collection(ci.collection), ci.models); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ci.collection, err))
		}
	}
	return errors.Join(errs...)
}

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique,omitempty"`
}

// keySig renders an index key pattern, e.g. "indicator_id:1,date:1".
func keySig(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, kv := range keys {
		parts[i] = fmt.Sprintf("%s:%v", kv.Key, kv.Value)
	}
	return strings.Join(parts, ",")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var all []existingIndex
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}
	bySig := make(map[string]existingIndex, len(all))
	for _, idx := range all {
		bySig[keySig(idx.Key)] = idx
	}
	return bySig, nil
}

func reconcile(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes.
		existing = map[string]existingIndex{}
	}

	var errs []error
	for _, m := range models {
		if err := ensureOne(ctx, coll, m, existing); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ensureOne(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel, existing map[string]existingIndex) error {
	name, unique := "", false
	if m.Options != nil {
		if m.Options.Name != nil {
			name = *m.Options.Name
		}
		unique = m.Options.Unique != nil && *m.Options.Unique
	}
	sig := keySig(m.Keys.(bson.D))
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("index", name),
		zap.String("keys", sig),
		zap.Bool("unique", unique))
	start := time.Now()

	if ex, ok := existing[sig]; ok {
		if ex.Unique == unique {
			log.Debug("index already present", zap.String("existing_name", ex.Name))
			return nil
		}
		if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
			return fmt.Errorf("%s: drop %s for rebuild: %w", name, ex.Name, err)
		}
		log.Info("dropped index to change uniqueness", zap.String("existing_name", ex.Name))
	}

	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		log.Warn("index creation failed", zap.Error(err))
		if unique && wafflemongo.IsDup(err) {
			return fmt.Errorf("%s: duplicate values prevent a unique index", name)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info("index created", zap.Duration("took", time.Since(start)))
	return nil
}
