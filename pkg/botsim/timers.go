package botsim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/botsim/internal/cron"
)

// ErrTimerStorm is returned when one advance fires more timers than maxFirings.
var ErrTimerStorm = errors.New("botsim: too many timer firings in one advance")

const maxFirings = 10000

// TimerFunc is bot code run by a timer. API calls it makes through the harness
// are attributed to the timer's response.
type TimerFunc func(ctx context.Context) error

// Fired is one timer execution during an advance.
type Fired struct {
	TimerID  string
	Timer    string
	At       time.Time
	Response *BotResponse
	Err      error
}

// Timer is a registered timer with its schedule state.
type Timer = cron.Job

// Every registers fn to run every d of simulated time, first d from now.
func (h *Harness) Every(name string, d time.Duration, fn TimerFunc) (string, error) {
	return h.addTimer(name, cron.Every(d), fn)
}

// At registers fn to run once at t.
func (h *Harness) At(name string, t time.Time, fn TimerFunc) (string, error) {
	return h.addTimer(name, cron.At(t), fn)
}

// Cron registers fn on a five-field cron expression evaluated on simulated time.
func (h *Harness) Cron(name, expr string, fn TimerFunc) (string, error) {
	return h.addTimer(name, cron.Expr(expr), fn)
}

func (h *Harness) addTimer(name string, s cron.Schedule, fn TimerFunc) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("botsim: timer %q has no function", name)
	}
	job, err := h.timers.AddJob(name, s, h.Now(), cron.JobFunc(fn))
	if err != nil {
		return "", fmt.Errorf("botsim: timer %q: %w", name, err)
	}
	return job.ID, nil
}

// CancelTimer removes a timer.
func (h *Harness) CancelTimer(id string) error {
	if err := h.timers.RemoveJob(id); err != nil {
		return fmt.Errorf("botsim: timer %s: %w", id, err)
	}
	return nil
}

// Timers lists registered timers, including finished one-time timers.
func (h *Harness) Timers() []Timer { return h.timers.ListJobs(true) }

// TimerRuns returns the timer execution log since the last reset.
func (h *Harness) TimerRuns() []cron.RunLogEntry { return h.timers.RunLog() }

// AdvanceTimers moves simulated time forward by d, stopping at each due timer
// to run it with the clock at its due time. Every firing gets its own response.
// Timer failures are reported in Fired.Err; the returned error is only set when
// ctx ends or the timers keep firing without bound.
func (h *Harness) AdvanceTimers(ctx context.Context, d time.Duration) ([]Fired, error) {
	clk := h.server.Clock()
	target := clk.Now().Add(d)
	var fired []Fired
	for {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		job, ok := h.timers.NextDue(target)
		if !ok {
			break
		}
		if len(fired) >= maxFirings {
			return fired, ErrTimerStorm
		}
		if job.State.NextRun.After(clk.Now()) {
			clk.Set(job.State.NextRun)
		}
		at := clk.Now()
		resp, err := h.RunWithResponse(ctx, "timer "+job.Name, func(ctx context.Context) error {
			return h.timers.Run(ctx, job.ID, at)
		})
		fired = append(fired, Fired{TimerID: job.ID, Timer: job.Name, At: at, Response: resp, Err: err})
	}
	if target.After(clk.Now()) {
		clk.Set(target)
	}
	return fired, nil
}
