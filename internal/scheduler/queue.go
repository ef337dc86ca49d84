// Package scheduler processes many updates concurrently while giving each one its
// own BotResponse.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// DropPolicy determines which updates to drop when a chat queue is full.
type DropPolicy string

const (
	DropOld DropPolicy = "old" // drop oldest queued update
	DropNew DropPolicy = "new" // reject incoming update
)

// Config configures the scheduler.
type Config struct {
	// Concurrency bounds how many updates run at once. Zero or less means 1.
	Concurrency int
	// SerializePerChat runs updates of the same chat one at a time, in order.
	SerializePerChat bool
	// Cap bounds each chat's waiting updates when serializing. Zero means unbounded.
	Cap  int
	Drop DropPolicy
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Concurrency: 8, Drop: DropOld}
}

// RunFunc handles one update. The context carries the update's BotResponse.
type RunFunc func(ctx context.Context, update botapi.Update) error

// Outcome is the result of one scheduled update.
type Outcome struct {
	Update   botapi.Update
	Response *response.BotResponse
	Err      error
}

type job struct {
	ctx    context.Context
	update botapi.Update
	resp   *response.BotResponse
	out    chan Outcome
}

func (j *job) finish(err error) {
	j.out <- Outcome{Update: j.update, Response: j.resp, Err: err}
	close(j.out)
}

// chatQueue serializes updates for a single chat.
// Only one update executes at a time; additional updates wait in order.
type chatQueue struct {
	queue  []*job
	active bool
}

// Scheduler runs updates through a RunFunc with bounded parallelism.
type Scheduler struct {
	cfg    Config
	run    RunFunc
	logger *slog.Logger
	group  errgroup.Group

	mu      sync.Mutex
	chats   map[int64]*chatQueue
	pending int
	idle    chan struct{}
	closed  bool
}

// New creates a scheduler that hands updates to run.
func New(cfg Config, run RunFunc, logger *slog.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:    cfg,
		run:    run,
		logger: logger,
		chats:  make(map[int64]*chatQueue),
		idle:   make(chan struct{}),
	}
	close(s.idle)
	s.group.SetLimit(cfg.Concurrency)
	return s
}

// Schedule queues update for processing under a fresh BotResponse and returns a
// channel that receives the outcome once it has run.
func (s *Scheduler) Schedule(ctx context.Context, update botapi.Update) <-chan Outcome {
	j := &job{
		ctx:    ctx,
		update: update,
		resp:   response.New(fmt.Sprintf("update %d", update.UpdateID)),
		out:    make(chan Outcome, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		j.finish(ErrClosed)
		return j.out
	}
	s.track()

	if !s.cfg.SerializePerChat {
		s.submit(j)
		return j.out
	}

	key := update.ChatID()
	cq, ok := s.chats[key]
	if !ok {
		cq = &chatQueue{}
		s.chats[key] = cq
	}
	if s.cfg.Cap > 0 && len(cq.queue) >= s.cfg.Cap {
		s.applyDropPolicy(cq, j)
	} else {
		cq.queue = append(cq.queue, j)
	}
	if !cq.active {
		s.startNext(key, cq)
	}
	return j.out
}

// track counts one more pending update.
// Must be called with s.mu held.
func (s *Scheduler) track() {
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

// untrack counts one update as done.
// Must be called with s.mu held.
func (s *Scheduler) untrack() {
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

// startNext runs the first queued update of a chat.
// Must be called with s.mu held.
func (s *Scheduler) startNext(key int64, cq *chatQueue) {
	if len(cq.queue) == 0 {
		delete(s.chats, key)
		return
	}
	j := cq.queue[0]
	cq.queue = cq.queue[1:]
	cq.active = true
	s.submit(j)
}

// submit hands j to the worker group. errgroup.Go blocks while the group is at
// its limit, so the hand-off happens off the caller's goroutine.
func (s *Scheduler) submit(j *job) {
	go s.group.Go(func() error {
		s.execute(j)
		return nil
	})
}

func (s *Scheduler) execute(j *job) {
	err := s.runSafe(j)
	if err != nil {
		s.logger.Debug("update handler failed", "update_id", j.update.UpdateID, "kind", j.update.Kind(), "error", err)
	}
	j.finish(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.SerializePerChat {
		key := j.update.ChatID()
		if cq, ok := s.chats[key]; ok {
			cq.active = false
			s.startNext(key, cq)
		}
	}
	s.untrack()
}

func (s *Scheduler) runSafe(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("update handler panicked", "update_id", j.update.UpdateID, "panic", r)
			err = fmt.Errorf("update %d: handler panic: %v", j.update.UpdateID, r)
		}
	}()
	return s.run(response.WithResponse(j.ctx, j.resp), j.update)
}

// applyDropPolicy handles a full chat queue.
// Must be called with s.mu held.
func (s *Scheduler) applyDropPolicy(cq *chatQueue, incoming *job) {
	switch s.cfg.Drop {
	case DropNew:
		incoming.finish(ErrQueueFull)
		s.untrack()
	default:
		old := cq.queue[0]
		old.finish(ErrQueueDropped)
		s.untrack()
		cq.queue = append(cq.queue[1:], incoming)
	}
}

// Pending returns the number of updates queued or running.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// WaitForIdle blocks until every scheduled update has finished. It fails with
// ErrNotIdle when ctx ends first rather than returning with work outstanding.
func (s *Scheduler) WaitForIdle(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %d outstanding: %w", ErrNotIdle, s.Pending(), ctx.Err())
	}
}

// Close stops accepting updates and waits for the running ones under ctx.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := s.WaitForIdle(ctx); err != nil {
		return err
	}
	return s.group.Wait()
}

// Reset reopens a closed scheduler. Updates still pending keep running.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}
