// Package testutil holds shared test helpers: a throwaway MongoDB database
// per test, request builders and response assertions.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoURI is used unless STRATATRACK_TEST_MONGO_URI is set.
const DefaultMongoURI = "mongodb://localhost:27017"

// dbPrefix starts every test database name.
const dbPrefix = "stratatrack_test_"

// maxDBName is MongoDB's limit on database name length.
const maxDBName = 63

var shared struct {
	once   sync.Once
	client *mongo.Client
	err    error
}

func mongoURI() string {
	if uri := os.Getenv("STRATATRACK_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	return DefaultMongoURI
}

// sharedClient connects once per test binary.
func sharedClient() (*mongo.Client, error) {
	shared.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(mongoURI()).
			SetMaxPoolSize(200).
			SetMinPoolSize(5).
			SetMaxConnIdleTime(30 * time.Second).
			SetServerSelectionTimeout(5 * time.Second)

		shared.client, shared.err = mongo.Connect(ctx, opts)
		if shared.err == nil {
			shared.err = shared.client.Ping(ctx, nil)
		}
	})
	return shared.client, shared.err
}

// SetupTestDB returns an empty database with the production indexes, named
// after the test so packages can run in parallel. It is dropped when the
// test ends. Tests are skipped when MongoDB is unreachable.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := sharedClient()
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", mongoURI(), err)
	}

	db := client.Database(dbName(t.Name()))

	ctx, cancel := TestContext()
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("create indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop test database on cleanup: %v", err)
		}
	})
	return db
}

// dbName maps a test name to a valid database name. Names that would run
// past the length limit are cut and suffixed with a hash of the full name.
func dbName(testName string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, testName)

	name := dbPrefix + clean
	if len(name) <= maxDBName {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(testName))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:maxDBName-len(suffix)] + suffix
}

// TestContext returns a context for database calls in tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
