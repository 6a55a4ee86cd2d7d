// Package demo creates throwaway accounts filled with sample indicators so a
// visitor can try the product without signing up, and deletes them again
// once they expire.
package demo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	indicatorstore "github.com/dalemusser/stratatrack/internal/app/store/indicators"
	preferencestore "github.com/dalemusser/stratatrack/internal/app/store/preferences"
	recordstore "github.com/dalemusser/stratatrack/internal/app/store/records"
	userstore "github.com/dalemusser/stratatrack/internal/app/store/users"
	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/txn"
	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/domain/series"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultTTL is how long a demo account lives when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// historyDays is how many days of records each sample indicator gets.
const historyDays = 120

// purgeBatch caps how many expired users one PurgeExpired call removes.
const purgeBatch = 200

// sample describes one generated indicator and the random walk behind it.
type sample struct {
	name, unit, description string
	start, step, min, max   float64
	everyNDays              int
}

var samples = []sample{
	{"Weight", "kg", "Morning weight before breakfast", 82, 0.4, 70, 95, 1},
	{"Running", "km", "Distance of each run", 5, 1.5, 2, 21, 2},
	{"Sleep", "h", "Hours slept", 7, 0.8, 4, 10, 1},
}

// Service creates and purges demo users.
type Service struct {
	db         *mongo.Database
	users      *userstore.Store
	indicators *indicatorstore.Store
	records    *recordstore.Store
	prefs      *preferencestore.Store
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// New builds a Service over db. A non-positive ttl uses DefaultTTL.
func New(db *mongo.Database, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		db:         db,
		users:      userstore.New(db),
		indicators: indicatorstore.New(db),
		records:    recordstore.New(db),
		prefs:      preferencestore.New(db),
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// TTL returns the lifetime of new demo accounts.
func (s *Service) TTL() time.Duration { return s.ttl }

// Create inserts a new demo user with sample indicators and their history.
// On failure anything already written for the user is removed.
func (s *Service) Create(ctx context.Context) (*models.User, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	username := "demo_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	u, err := s.users.Create(ctx, models.User{
		Name:          "Demo User",
		Username:      username,
		Email:         username + "@demo.invalid",
		AuthMethod:    models.AuthDemo,
		IsDemo:        true,
		DemoExpiresAt: &expires,
	})
	if err != nil {
		return nil, fmt.Errorf("create demo user: %w", err)
	}

	if err := s.populate(ctx, u.ID, now); err != nil {
		if cerr := s.deleteUser(ctx, u.ID); cerr != nil {
			s.logger.Warn("failed to clean up partial demo user",
				zap.String("user_id", u.ID.Hex()), zap.Error(cerr))
		}
		return nil, err
	}

	metrics.DemoUsers.WithLabelValues("created").Inc()
	s.logger.Info("demo user created",
		zap.String("user_id", u.ID.Hex()),
		zap.String("username", u.Username),
		zap.Time("expires_at", expires))
	return &u, nil
}

func (s *Service) populate(ctx context.Context, owner primitive.ObjectID, now time.Time) error {
	// Seeded from the user ID so a given account always gets the same history.
	seed := binarySeed(owner)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	today := series.Day(now)

	for _, smp := range samples {
		ind, err := s.indicators.Create(ctx, owner, indicatorstore.Input{
			Name:        smp.name,
			Unit:        smp.unit,
			Description: smp.description,
		})
		if err != nil {
			return fmt.Errorf("create demo indicator %q: %w", smp.name, err)
		}
		entries := smp.walk(rng, today)
		n, err := s.records.UpsertMany(ctx, ind.ID, owner, entries)
		if err != nil {
			return fmt.Errorf("write demo records for %q: %w", smp.name, err)
		}
		metrics.RecordsWritten.WithLabelValues("demo").Add(float64(n))
	}
	return nil
}

// walk generates a bounded random walk ending today.
func (smp sample) walk(rng *rand.Rand, today time.Time) []recordstore.Entry {
	entries := make([]recordstore.Entry, 0, historyDays/smp.everyNDays+1)
	v := smp.start
	for d := historyDays; d >= 0; d -= smp.everyNDays {
		v += (rng.Float64()*2 - 1) * smp.step
		v = math.Max(smp.min, math.Min(smp.max, v))
		entries = append(entries, recordstore.Entry{
			Date:  series.FormatDate(today.AddDate(0, 0, -d)),
			Value: math.Round(v*10) / 10,
		})
	}
	return entries
}

func binarySeed(id primitive.ObjectID) uint64 {
	var seed uint64
	for _, b := range id[4:] {
		seed = seed<<8 | uint64(b)
	}
	return seed
}

// PurgeExpired deletes demo users whose expiry has passed, cascading to
// their indicators, records and preferences. It returns the number of users
// removed.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.users.ExpiredDemoIDs(ctx, now, purgeBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired demo users: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := s.deleteUser(ctx, id); err != nil {
			return deleted, fmt.Errorf("delete demo user %s: %w", id.Hex(), err)
		}
		deleted++
	}
	if deleted > 0 {
		metrics.DemoUsers.WithLabelValues("purged").Add(float64(deleted))
	}
	return deleted, nil
}

// deleteUser removes a user and everything owned by it. The user document
// goes last so a failed cascade outside a transaction is retried on the
// next purge.
func (s *Service) deleteUser(ctx context.Context, id primitive.ObjectID) error {
	return txn.Run(ctx, s.db, s.logger, func(ctx context.Context) error {
		if _, err := s.records.DeleteByOwner(ctx, id); err != nil {
			return err
		}
		if _, err := s.indicators.DeleteByOwner(ctx, id); err != nil {
			return err
		}
		if _, err := s.prefs.DeleteByUser(ctx, id); err != nil {
			return err
		}
		_, err := s.users.Delete(ctx, id)
		return err
	})
}
