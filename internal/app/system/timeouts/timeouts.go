// Package timeouts holds the deadlines applied to database work, sized by
// the kind of operation. Startup sets them from the timeout_* config keys;
// until then the defaults apply.
package timeouts

import (
	"sync/atomic"
	"time"
)

// Config is a full set of timeouts. A zero field means "keep the default".
type Config struct {
	Ping   time.Duration // health checks
	Short  time.Duration // single-document reads and writes
	Medium time.Duration // paged listings and OAuth profile lookups
	Long   time.Duration // account-wide counts
	Batch  time.Duration // CSV import, demo seeding, cascading deletes, background jobs
}

// Defaults is the configuration in effect before Configure is called.
var Defaults = Config{
	Ping:   2 * time.Second,
	Short:  5 * time.Second,
	Medium: 10 * time.Second,
	Long:   30 * time.Second,
	Batch:  60 * time.Second,
}

var current atomic.Pointer[Config]

func init() { Reset() }

// Configure replaces the active timeouts, falling back to Defaults for any
// field that is not positive.
func Configure(cfg Config) {
	merged := Config{
		Ping:   pick(cfg.Ping, Defaults.Ping),
		Short:  pick(cfg.Short, Defaults.Short),
		Medium: pick(cfg.Medium, Defaults.Medium),
		Long:   pick(cfg.Long, Defaults.Long),
		Batch:  pick(cfg.Batch, Defaults.Batch),
	}
	current.Store(&merged)
}

// Reset restores Defaults.
func Reset() {
	d := Defaults
	current.Store(&d)
}

// Current returns the active configuration.
func Current() Config { return *current.Load() }

func Ping() time.Duration   { return current.Load().Ping }
func Short() time.Duration  { return current.Load().Short }
func Medium() time.Duration { return current.Load().Medium }
func Long() time.Duration   { return current.Load().Long }
func Batch() time.Duration  { return current.Load().Batch }

func pick(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
