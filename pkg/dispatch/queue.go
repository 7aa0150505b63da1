package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopTimeout is returned when Stop gave up waiting for queued work to
// finish. Teardown logs it and continues; it never aborts a shutdown.
var ErrStopTimeout = errors.New("dispatch: queue stop timed out")

// stopPollInterval is how often Stop re-checks for queue emptiness.
const stopPollInterval = 10 * time.Millisecond

// command is one queued unit of presentation work.
type command struct {
	name string
	fn   func()
}

// Queue is the thread-safe FIFO that funnels bus-triggered work onto the
// presentation loop. Enqueue never blocks the caller; Drain is called only
// by the presentation loop, so commands never run concurrently with each
// other or with other presentation work.
type Queue struct {
	mu       sync.Mutex
	items    []command
	stopped  bool
	draining bool

	logger *slog.Logger
}

// NewQueue creates a command queue. logger may be nil.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// Enqueue adds a command to the queue. Safe from any goroutine, including
// the presentation loop itself; never blocks. Commands enqueued after Stop
// are dropped with a warning.
func (q *Queue) Enqueue(name string, fn func()) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.logger.Warn("command dropped, queue stopped", "command", name)
		return
	}
	q.items = append(q.items, command{name: name, fn: fn})
	q.mu.Unlock()
	q.logger.Debug("command enqueued", "command", name)
}

// Len returns the number of commands waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain executes all currently queued commands in FIFO order and returns how
// many ran. A panicking command is recovered and logged; subsequent commands
// still run. Drain must only be called from the presentation loop.
func (q *Queue) Drain() int {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	ran := 0
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return ran
		}
		cmd := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.run(cmd)
		ran++
	}
}

// run executes one command, isolating panics.
func (q *Queue) run(cmd command) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("command failed", "command", cmd.name, "panic", r)
		}
	}()
	q.logger.Debug("executing command", "command", cmd.name)
	cmd.fn()
}

// Resume re-enables a stopped queue. Called during reinitialization after a
// restart teardown, before the workers come back up.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.stopped = false
	q.mu.Unlock()
	q.logger.Info("command queue resumed")
}

// Stop marks the queue stopped and waits up to timeout for already-queued
// work to be drained by the presentation loop. New enqueues are dropped from
// this point on. Returns ErrStopTimeout if queued work remains after the
// timeout; callers log it and continue tearing down.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.logger.Info("command queue stopping")

	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		idle := len(q.items) == 0 && !q.draining
		q.mu.Unlock()
		if idle {
			q.logger.Info("command queue stopped")
			return nil
		}
		if time.Now().After(deadline) {
			return ErrStopTimeout
		}
		time.Sleep(stopPollInterval)
	}
}
