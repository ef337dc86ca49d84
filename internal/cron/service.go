package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("cron: job not found")

// maxRunLog bounds the in-memory run history.
const maxRunLog = 200

// Service holds jobs and their schedule state.
type Service struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	seq      int64
	runLog   []RunLogEntry
	retryCfg RetryConfig
	logger   *slog.Logger
}

// NewService creates an empty service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:     make(map[string]*Job),
		retryCfg: DefaultRetryConfig(),
		logger:   logger,
	}
}

// SetRetryConfig overrides the default retry configuration.
func (cs *Service) SetRetryConfig(cfg RetryConfig) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.retryCfg = cfg
}

// AddJob registers fn under schedule. now is the current simulated time.
func (cs *Service) AddJob(name string, schedule Schedule, now time.Time, fn JobFunc) (Job, error) {
	if fn == nil {
		return Job{}, fmt.Errorf("cron: job %q has no function", name)
	}
	if err := validateSchedule(schedule, now); err != nil {
		return Job{}, fmt.Errorf("invalid schedule: %w", err)
	}
	next, _ := computeNextRun(schedule, now, false)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.seq++
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Enabled:   true,
		Schedule:  schedule,
		State:     JobState{NextRun: next},
		CreatedAt: now,
		seq:       cs.seq,
		fn:        fn,
	}
	cs.jobs[job.ID] = job
	cs.logger.Debug("cron job added", "id", job.ID, "name", name, "kind", schedule.Kind, "next", next)
	return *job, nil
}

// RemoveJob deletes a job by ID.
func (cs *Service) RemoveJob(jobID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(cs.jobs, jobID)
	return nil
}

// EnableJob toggles a job. Re-enabled jobs are scheduled from now.
func (cs *Service) EnableJob(jobID string, enabled bool, now time.Time) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	job, ok := cs.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Enabled = enabled
	job.State.Retry = 0
	if enabled {
		job.State.NextRun, _ = computeNextRun(job.Schedule, now, job.State.Runs > 0)
	} else {
		job.State.NextRun = time.Time{}
	}
	return nil
}

// GetJob returns a job by ID.
func (cs *Service) GetJob(jobID string) (Job, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	job, ok := cs.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns jobs in registration order, optionally including disabled ones.
func (cs *Service) ListJobs(includeDisabled bool) []Job {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var out []Job
	for _, job := range cs.jobs {
		if includeDisabled || job.Enabled {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// NextDue returns the enabled job due earliest at or before until. Jobs due at
// the same instant come in registration order.
func (cs *Service) NextDue(until time.Time) (Job, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var best *Job
	for _, job := range cs.jobs {
		if !job.Enabled || job.State.NextRun.IsZero() || job.State.NextRun.After(until) {
			continue
		}
		if best == nil || job.State.NextRun.Before(best.State.NextRun) ||
			(job.State.NextRun.Equal(best.State.NextRun) && job.seq < best.seq) {
			best = job
		}
	}
	if best == nil {
		return Job{}, false
	}
	return *best, true
}

// Run executes a job at simulated time now and schedules its next run. A failure
// is retried after a backoff until the retry budget is spent; then the job
// returns to its regular schedule. One-time jobs are disabled after success or
// after their last retry.
func (cs *Service) Run(ctx context.Context, jobID string, now time.Time) error {
	cs.mu.Lock()
	job, ok := cs.jobs[jobID]
	if !ok {
		cs.mu.Unlock()
		return ErrJobNotFound
	}
	fn := job.fn
	attempt := job.State.Retry + 1
	cs.mu.Unlock()

	err := runSafe(ctx, fn)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	job, ok = cs.jobs[jobID]
	if !ok {
		return err // removed by its own function
	}
	job.State.LastRun = now
	job.State.Runs++
	entry := RunLogEntry{At: now, JobID: job.ID, Name: job.Name, Status: "ok", Attempt: attempt}

	if err != nil {
		job.State.LastStatus = "error"
		job.State.LastError = TruncateOutput(err.Error())
		entry.Status, entry.Error = "error", job.State.LastError
		if job.State.Retry < cs.retryCfg.MaxRetries {
			job.State.NextRun = now.Add(cs.retryCfg.Backoff(job.State.Retry))
			job.State.Retry++
			cs.logger.Warn("cron job failed, retrying", "name", job.Name, "attempt", attempt, "next", job.State.NextRun, "error", err)
			cs.appendLog(entry)
			return err
		}
		cs.logger.Warn("cron job failed", "name", job.Name, "attempt", attempt, "error", err)
	} else {
		job.State.LastStatus = "ok"
		job.State.LastError = ""
	}
	job.State.Retry = 0
	next, more := computeNextRun(job.Schedule, now, true)
	if !more {
		job.Enabled = false
		next = time.Time{}
	}
	job.State.NextRun = next
	cs.appendLog(entry)
	return err
}

func runSafe(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cron job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (cs *Service) appendLog(e RunLogEntry) {
	cs.runLog = append(cs.runLog, e)
	if len(cs.runLog) > maxRunLog {
		cs.runLog = cs.runLog[len(cs.runLog)-maxRunLog:]
	}
}

// RunLog returns the recorded executions, oldest first.
func (cs *Service) RunLog() []RunLogEntry {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]RunLogEntry(nil), cs.runLog...)
}

// Reschedule restarts every job from now, e.g. after the clock was reset. The
// run log is cleared; one-time jobs in the past stay disabled.
func (cs *Service) Reschedule(now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.runLog = nil
	for _, job := range cs.jobs {
		job.State = JobState{}
		next, ok := computeNextRun(job.Schedule, now, false)
		job.Enabled = ok
		job.State.NextRun = next
	}
}

// computeNextRun returns the first run after now. For "at", ran reports whether
// the job already fired, in which case there is none.
func computeNextRun(schedule Schedule, now time.Time, ran bool) (time.Time, bool) {
	switch schedule.Kind {
	case KindAt:
		if ran || schedule.At.Before(now) {
			return time.Time{}, false
		}
		return schedule.At, true
	case KindEvery:
		return now.Add(schedule.Every), true
	case KindCron:
		next, err := gronx.NextTickAfter(schedule.Expr, now, false)
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func validateSchedule(schedule Schedule, now time.Time) error {
	switch schedule.Kind {
	case KindAt:
		if schedule.At.IsZero() {
			return fmt.Errorf("at schedule requires a time")
		}
		if schedule.At.Before(now) {
			return fmt.Errorf("at schedule %s is in the past", schedule.At.Format(time.RFC3339))
		}
	case KindEvery:
		if schedule.Every < time.Second {
			return fmt.Errorf("every schedule must be at least 1s, got %s", schedule.Every)
		}
	case KindCron:
		if schedule.Expr == "" {
			return fmt.Errorf("cron schedule requires expr")
		}
		gx := gronx.New()
		if !gx.IsValid(schedule.Expr) {
			return fmt.Errorf("invalid cron expression: %s", schedule.Expr)
		}
	default:
		return fmt.Errorf("unknown schedule kind: %s", schedule.Kind)
	}
	return nil
}
