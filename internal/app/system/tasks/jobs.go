// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DemoPurger deletes expired demo accounts and everything they own.
type DemoPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// ExpiredPurger deletes rows whose expiry has passed.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DemoUserCleanupJob creates a job that deletes expired demo users together
// with their indicators, records and preferences.
func DemoUserCleanupJob(purger DemoPurger, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "demo-user-cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := purger.PurgeExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("deleted expired demo users", zap.Int("deleted", n))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// The TTL index does the same eventually; this keeps the collection tight
// between TTL monitor passes.
func OAuthStateCleanupJob(states ExpiredPurger, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := states.PurgeExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up expired oauth states", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}
