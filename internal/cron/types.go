// Package cron fires a bot's timers on simulated time. Nothing runs on its own:
// the owner asks for the next due job and runs it with the clock at its due time.
//
// Three schedule types are supported:
//   - "at":    one-time execution at a specific time
//   - "every": recurring interval
//   - "cron":  standard cron expression (5-field, parsed by gronx)
package cron

import (
	"context"
	"time"
)

// Schedule kinds.
const (
	KindAt    = "at"
	KindEvery = "every"
	KindCron  = "cron"
)

// Schedule defines when a job should run.
type Schedule struct {
	Kind  string        `json:"kind"`
	At    time.Time     `json:"at,omitzero"`
	Every time.Duration `json:"every,omitempty"`
	Expr  string        `json:"expr,omitempty"`
}

// At runs once at t.
func At(t time.Time) Schedule { return Schedule{Kind: KindAt, At: t} }

// Every runs every d, the first time d from registration.
func Every(d time.Duration) Schedule { return Schedule{Kind: KindEvery, Every: d} }

// Expr runs on a cron expression such as "*/5 * * * *".
func Expr(expr string) Schedule { return Schedule{Kind: KindCron, Expr: expr} }

// JobState tracks runtime state for a job.
type JobState struct {
	NextRun    time.Time `json:"nextRun,omitzero"`
	LastRun    time.Time `json:"lastRun,omitzero"`
	LastStatus string    `json:"lastStatus,omitempty"` // "ok" or "error"
	LastError  string    `json:"lastError,omitempty"`
	Runs       int       `json:"runs"`
	Retry      int       `json:"retry,omitempty"` // failed attempts since the last success
}

// Job is a registered timer.
type Job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Schedule  Schedule  `json:"schedule"`
	State     JobState  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`

	seq int64
	fn  JobFunc
}

// RunLogEntry records one execution.
type RunLogEntry struct {
	At      time.Time `json:"at"`
	JobID   string    `json:"jobId"`
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Attempt int       `json:"attempt"`
}

// JobFunc is the bot code a job runs.
type JobFunc func(ctx context.Context) error
