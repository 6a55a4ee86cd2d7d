// Package tasks runs the periodic maintenance jobs: purging expired demo
// accounts and expired OAuth state tokens.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/stratatrack/internal/app/system/metrics"
	"github.com/dalemusser/stratatrack/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Job is a unit of periodic work. Run gets a context that is cancelled on
// Stop and bounded by the batch timeout.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Runner starts one goroutine per job. Each job runs once at Start and then
// on every tick of its interval; runs of the same job never overlap.
type Runner struct {
	logger *zap.Logger
	jobs   []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]time.Time // job name -> start of the current run
}

// New creates an empty Runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, inFlight: map[string]time.Time{}}
}

// Register adds a job. A non-positive interval disables the job.
func (r *Runner) Register(job Job) {
	if job.Interval <= 0 {
		r.logger.Info("background job disabled", zap.String("job", job.Name))
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the names of the registered jobs.
func (r *Runner) Jobs() []string {
	names := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start launches every registered job.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("background task runner started", zap.Strings("jobs", r.Jobs()))
}

// Stop cancels all jobs and waits for running ones to return. If ctx ends
// first, Stop returns ctx.Err() and logs the jobs still running.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("jobs_still_running", r.running()))
		return ctx.Err()
	}
}

// RunOnce runs a registered job immediately on the caller's goroutine.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.execute(ctx, job)
		}
	}
	return ErrUnknownJob
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		r.execute(ctx, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// execute runs one pass of job, recording its outcome in logs and metrics.
// A panic inside the job is reported as an error.
func (r *Runner) execute(parent context.Context, job Job) (err error) {
	start := time.Now()
	r.track(job.Name, start)
	defer r.untrack(job.Name)

	ctx, cancel := context.WithTimeout(parent, timeouts.Batch())
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}

		elapsed := time.Since(start)
		metrics.JobDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())

		switch {
		case err == nil:
			metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
			r.logger.Debug("job completed", zap.String("job", job.Name), zap.Duration("duration", elapsed))
		case parent.Err() != nil:
			metrics.JobRuns.WithLabelValues(job.Name, "cancelled").Inc()
			r.logger.Debug("job cancelled during shutdown", zap.String("job", job.Name))
		default:
			metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
			r.logger.Error("job failed",
				zap.String("job", job.Name),
				zap.Duration("duration", elapsed),
				zap.Error(err))
		}
	}()

	return job.Run(ctx)
}

func (r *Runner) track(name string, start time.Time) {
	r.mu.Lock()
	r.inFlight[name] = start
	r.mu.Unlock()
}

func (r *Runner) untrack(name string) {
	r.mu.Lock()
	delete(r.inFlight, name)
	r.mu.Unlock()
}

// running lists the jobs currently executing, sorted.
func (r *Runner) running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.inFlight))
	for n := range r.inFlight {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
