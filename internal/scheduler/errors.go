package scheduler

import "errors"

var (
	// ErrQueueFull is returned when an update is rejected because its chat queue is full (drop=new policy).
	ErrQueueFull = errors.New("chat queue is full")

	// ErrQueueDropped is returned when a queued update is evicted to make room (drop=old policy).
	ErrQueueDropped = errors.New("update dropped from queue")

	// ErrClosed is returned for updates scheduled after Close.
	ErrClosed = errors.New("scheduler is closed")

	// ErrNotIdle is returned by WaitForIdle when the deadline passes first.
	ErrNotIdle = errors.New("updates still pending")
)
