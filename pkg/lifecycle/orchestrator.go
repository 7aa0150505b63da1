package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
)

// DefaultQueueStopTimeout bounds the wait for queued commands to drain
// before the rest of the teardown proceeds.
const DefaultQueueStopTimeout = 2 * time.Second

// Worker is the stop surface of a bus worker.
type Worker interface {
	Stop() error
}

// Link is the stop surface of the link manager.
type Link interface {
	Shutdown() error
}

// Queue is the stop surface of the command queue.
type Queue interface {
	Stop(timeout time.Duration) error
}

// Poster accepts the terminal action; the presentation loop implements it.
type Poster interface {
	Post(name string, fn func())
}

// Deps are the components the orchestrator tears down, in teardown order.
type Deps struct {
	Queue     Queue
	Listener  Worker
	Responder Worker
	Link      Link

	// StopTimers halts presentation-side timers (countdown, hint auto-hide).
	// Optional.
	StopTimers func()

	// Poster receives the terminal action once teardown is complete.
	Poster Poster
}

// Config configures an Orchestrator.
type Config struct {
	// QueueStopTimeout bounds the queue drain wait (default 2s).
	QueueStopTimeout time.Duration

	// SessionID stamps bus log events (optional).
	SessionID string

	// Logger for operational output (optional).
	Logger *slog.Logger

	// BusLogger for structured state events (optional).
	BusLogger buslog.Logger
}

func (c *Config) applyDefaults() {
	if c.QueueStopTimeout <= 0 {
		c.QueueStopTimeout = DefaultQueueStopTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.BusLogger == nil {
		c.BusLogger = buslog.NoopLogger{}
	}
}

// Orchestrator serializes restart and shutdown teardowns.
type Orchestrator struct {
	mu   sync.Mutex
	flag Flag

	config Config
	deps   Deps
}

// New creates an orchestrator over the given components.
func New(deps Deps, config Config) *Orchestrator {
	config.applyDefaults()
	return &Orchestrator{config: config, deps: deps}
}

// Flag returns the current progress state.
func (o *Orchestrator) Flag() Flag {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flag
}

// RequestRestart starts a restart teardown ending with reinit posted to the
// presentation loop. Returns false, with a log, if a teardown is already in
// progress.
func (o *Orchestrator) RequestRestart(reinit func()) bool {
	if !o.begin(FlagRestartInProgress) {
		return false
	}
	go o.teardown("restart", reinit)
	return true
}

// RequestShutdown starts a shutdown teardown ending with terminal posted to
// the presentation loop. Returns false, with a log, if a teardown is already
// in progress.
func (o *Orchestrator) RequestShutdown(terminal func()) bool {
	if !o.begin(FlagShutdownInProgress) {
		return false
	}
	go o.teardown("shutdown", terminal)
	return true
}

// begin transitions Idle to the requested flag, rejecting overlap.
func (o *Orchestrator) begin(target Flag) bool {
	o.mu.Lock()
	if o.flag != FlagIdle {
		current := o.flag
		o.mu.Unlock()
		o.config.Logger.Warn("lifecycle request rejected, teardown in progress",
			"requested", target.String(), "current", current.String())
		return false
	}
	o.flag = target
	o.mu.Unlock()
	o.logState(FlagIdle, target, "requested")
	return true
}

// teardown stops the components in order and posts the terminal action.
// Every step runs even if an earlier one reports an error.
func (o *Orchestrator) teardown(kind string, terminal func()) {
	logger := o.config.Logger
	defer func() {
		o.mu.Lock()
		old := o.flag
		o.flag = FlagIdle
		o.mu.Unlock()
		o.logState(old, FlagIdle, kind+" complete")
	}()

	logger.Info("teardown started", "kind", kind)

	if err := o.deps.Queue.Stop(o.config.QueueStopTimeout); err != nil {
		logger.Warn("command queue did not drain in time", "err", err)
	}
	if err := o.deps.Listener.Stop(); err != nil {
		logger.Warn("listener did not stop cleanly", "err", err)
	}
	if err := o.deps.Responder.Stop(); err != nil {
		logger.Warn("responder did not stop cleanly", "err", err)
	}
	if err := o.deps.Link.Shutdown(); err != nil {
		logger.Warn("link shutdown failed", "err", err)
	}
	if o.deps.StopTimers != nil {
		o.deps.StopTimers()
	}

	logger.Info("teardown complete, posting terminal action", "kind", kind)
	o.deps.Poster.Post(kind, terminal)
}

func (o *Orchestrator) logState(from, to Flag, reason string) {
	o.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: o.config.SessionID,
		Category:  buslog.CategoryState,
		StateChange: &buslog.StateChangeEvent{
			Entity:   buslog.StateEntityLifecycle,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}
