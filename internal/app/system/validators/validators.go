// Package validators creates the application's collections and attaches
// JSON-Schema validators to them. Servers without collMod support (some
// DocumentDB versions) get the collections without validators.
package validators

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dalemusser/stratatrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collection pairs a name with its validator; a nil schema means none.
type collection struct {
	name   string
	schema bson.M
}

func collections() []collection {
	return []collection{
		{"users", usersSchema()},
		{"indicators", indicatorsSchema()},
		{"records", recordsSchema()},
		{"preferences", preferencesSchema()},
		{"oauth_states", nil},
		{"rate_limits", nil},
	}
}

// EnsureAll creates missing collections and sets their validators,
// reporting every failure together.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		// Fall through to CreateCollection, which tolerates existing names.
		existing = nil
	}

	var errs []error
	for _, c := range collections() {
		if !slices.Contains(existing, c.name) {
			if _, err := ensureCollection(ctx, db, c.name); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
				continue
			}
		}
		if c.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, c.name, c.schema); err != nil {
			if unsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection creates name unless it exists, reporting whether it
// was created.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	if ok, err := collectionExists(ctx, db, name); err == nil && ok {
		return false, nil
	}
	err := db.CreateCollection(ctx, name)
	switch {
	case err == nil:
		zap.L().Info("created collection", zap.String("collection", name))
		return true, nil
	case namespaceExists(err):
		return false, nil
	default:
		return false, err
	}
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

// commandFailed reports whether err carries one of codes, or mentions one
// of phrases.
func commandFailed(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && slices.Contains(codes, ce.Code) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// namespaceExists matches NamespaceExists (48).
func namespaceExists(err error) bool {
	return commandFailed(err, []int32{48}, "already exists", "namespace exists")
}

// unsupported matches CommandNotFound (59) and CommandNotSupported (115).
func unsupported(err error) bool {
	return commandFailed(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

/* ---------------------------- schemas ---------------------------- */

func object(required bson.A, props bson.M) bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType":   "object",
		"required":   required,
		"properties": props,
	}}
}

func str(minLen, maxLen int) bson.M {
	s := bson.M{"bsonType": "string"}
	if minLen > 0 {
		s["minLength"] = minLen
	}
	if maxLen > 0 {
		s["maxLength"] = maxLen
	}
	return s
}

// nonBlank is a string with at least one non-space character.
func nonBlank(maxLen int) bson.M {
	s := str(1, maxLen)
	s["pattern"] = `.*\S.*`
	return s
}

var objectID = bson.M{"bsonType": "objectId"}

func usersSchema() bson.M {
	return object(
		bson.A{"name", "username", "username_ci", "role", "status", "auth_method"},
		bson.M{
			"name":        nonBlank(models.NameMaxLength),
			"name_ci":     str(0, 0),
			"username":    str(models.UsernameMinLength, models.UsernameMaxLength),
			"username_ci": str(1, 0),
			"email":       bson.M{"bsonType": bson.A{"string", "null"}},
			"email_ci":    bson.M{"bsonType": bson.A{"string", "null"}},
			"role":        bson.M{"enum": bson.A{models.RoleUser, models.RoleAdmin}},
			"status":      bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}},
			"auth_method": bson.M{"enum": bson.A{models.AuthPassword, models.AuthFacebook, models.AuthDemo}},
			"is_demo":     bson.M{"bsonType": "bool"},
		})
}

func indicatorsSchema() bson.M {
	return object(
		bson.A{"created_by", "name", "unit"},
		bson.M{
			"created_by":  objectID,
			"name":        nonBlank(models.IndicatorNameMaxLength),
			"unit":        str(0, models.IndicatorUnitMaxLength),
			"description": str(0, models.IndicatorDescriptionMaxLength),
		})
}

func recordsSchema() bson.M {
	return object(
		bson.A{"indicator_id", "created_by", "date", "value"},
		bson.M{
			"indicator_id": objectID,
			"created_by":   objectID,
			"date":         bson.M{"bsonType": "string", "pattern": `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`},
			"value":        bson.M{"bsonType": bson.A{"double", "int", "long"}},
		})
}

func preferencesSchema() bson.M {
	return object(
		bson.A{"user_id", "key", "value"},
		bson.M{
			"user_id": objectID,
			"key":     str(1, 0),
			"value":   str(0, 0),
		})
}
