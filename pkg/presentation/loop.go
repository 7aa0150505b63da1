package presentation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/dispatch"
)

// DefaultTickInterval is how often the loop drains the queue and runs tickers.
const DefaultTickInterval = 50 * time.Millisecond

// post is one unit of work sent directly to the loop, bypassing the queue.
// Teardown uses this to run its terminal action after the queue has stopped.
type post struct {
	name string
	fn   func()
}

// Loop is the single-threaded presentation run loop. Each tick it drains
// direct posts, drains the dispatch queue, and advances registered tickers.
// Nothing on the loop ever blocks on bus I/O.
type Loop struct {
	interval time.Duration
	queue    *dispatch.Queue
	posts    chan post
	logger   *slog.Logger

	mu      sync.Mutex
	tickers []func(now time.Time)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a loop draining the given queue. interval <= 0 selects
// DefaultTickInterval; logger may be nil.
func NewLoop(queue *dispatch.Queue, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		interval: interval,
		queue:    queue,
		posts:    make(chan post, 16),
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// OnTick registers a ticker invoked once per loop iteration on the loop
// goroutine. Register tickers before Run.
func (l *Loop) OnTick(fn func(now time.Time)) {
	l.mu.Lock()
	l.tickers = append(l.tickers, fn)
	l.mu.Unlock()
}

// Post sends work directly to the loop, bypassing the dispatch queue. Unlike
// queue commands, posts survive a queue stop; teardown relies on this for the
// terminal action. Posts after Stop are dropped with a warning.
func (l *Loop) Post(name string, fn func()) {
	select {
	case l.posts <- post{name: name, fn: fn}:
		l.logger.Debug("work posted to loop", "post", name)
	case <-l.stopCh:
		l.logger.Warn("post dropped, loop stopped", "post", name)
	}
}

// PostAfter posts fn to the loop after d has elapsed. The returned timer can
// be stopped to cancel the post.
func (l *Loop) PostAfter(d time.Duration, name string, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(name, fn)
	})
}

// Run executes the loop until Stop is called. It blocks the calling
// goroutine; everything it invokes runs single-threaded here.
func (l *Loop) Run() {
	l.logger.Info("presentation loop running", "tick_interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			l.logger.Info("presentation loop stopped")
			return
		case p := <-l.posts:
			l.run(p)
		case now := <-ticker.C:
			l.drainPosts()
			l.queue.Drain()
			l.tick(now)
		}
	}
}

// Stop makes Run return after the current iteration. Safe to call from the
// loop goroutine itself (the terminal shutdown action does exactly that) and
// safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

func (l *Loop) drainPosts() {
	for {
		select {
		case p := <-l.posts:
			l.run(p)
		default:
			return
		}
	}
}

// run executes one post, isolating panics like the queue does.
func (l *Loop) run(p post) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("posted work failed", "post", p.name, "panic", r)
		}
	}()
	p.fn()
}

func (l *Loop) tick(now time.Time) {
	l.mu.Lock()
	tickers := l.tickers
	l.mu.Unlock()
	for _, fn := range tickers {
		fn(now)
	}
}
