package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
	"github.com/kioskbus/kioskbus-go/pkg/canbus"
	"github.com/kioskbus/kioskbus-go/pkg/dispatch"
	"github.com/kioskbus/kioskbus-go/pkg/filter"
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// PollInterval is the sleep between receive iterations (default 100ms).
	PollInterval time.Duration

	// ReceiveTimeout is the per-iteration transport receive timeout (default 1s).
	ReceiveTimeout time.Duration

	// FailureCap is the consecutive transport failure count at which the
	// listener stops itself (default 5).
	FailureCap int

	// StopJoinTimeout bounds the wait for the loop to exit on Stop (default 2s).
	StopJoinTimeout time.Duration

	// SessionID stamps bus log events (optional).
	SessionID string

	// Logger for operational output (optional).
	Logger *slog.Logger

	// BusLogger for structured frame/state events (optional).
	BusLogger buslog.Logger
}

// applyDefaults fills zero values with defaults.
func (c *ListenerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.FailureCap <= 0 {
		c.FailureCap = DefaultFailureCap
	}
	if c.StopJoinTimeout <= 0 {
		c.StopJoinTimeout = DefaultStopJoinTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.BusLogger == nil {
		c.BusLogger = buslog.NoopLogger{}
	}
}

// Listener is the background worker that polls the transport, matches
// inbound frames against the rule set, and invokes the bound handler.
// Handlers enqueue onto the dispatch queue; the listener itself never blocks
// on presentation work.
type Listener struct {
	mu sync.Mutex

	config    ListenerConfig
	transport *canbus.Transport

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	loopGid int64
}

// NewListener creates a listener over the given transport.
func NewListener(transport *canbus.Transport, config ListenerConfig) *Listener {
	config.applyDefaults()
	return &Listener{
		config:    config,
		transport: transport,
		loopGid:   -1,
	}
}

// IsRunning reports whether the listener loop is active.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start launches the listener loop with the given rule set and handler
// table. If a previous run is still active it is fully stopped (joined)
// first - two listener loops never run concurrently. A previous run that
// cannot be joined within StopJoinTimeout refuses the restart with
// ErrJoinTimeout. Returns a configuration error if a rule name does not bind
// to a registered handler.
func (l *Listener) Start(rules []filter.Rule, table *dispatch.HandlerTable) error {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	binding, err := table.Bind(names)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		l.config.Logger.Debug("stopping previous listener run before restart")
		if err := l.Stop(); err != nil {
			l.config.Logger.Error("previous listener run still active, refusing restart", "err", err)
			return err
		}
		l.mu.Lock()
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	l.config.Logger.Info("starting listener")
	l.logState("STOPPED", "RUNNING", "")
	go l.loop(rules, binding, table, stopCh, doneCh)
	return nil
}

// Stop signals the loop to exit and joins it with a bounded timeout.
// Calling Stop from the listener's own goroutine (i.e. from a handler) is
// detected and skips the join with a warning instead of deadlocking.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	loopGid := l.loopGid
	l.mu.Unlock()

	select {
	case <-stopCh:
		// Already signalled.
	default:
		close(stopCh)
	}

	if goid() == loopGid {
		l.config.Logger.Warn("listener stop requested from its own goroutine, skipping join")
		return nil
	}

	select {
	case <-doneCh:
		l.config.Logger.Info("listener stopped")
		return nil
	case <-time.After(l.config.StopJoinTimeout):
		l.config.Logger.Warn("listener join timed out", "timeout", l.config.StopJoinTimeout)
		return ErrJoinTimeout
	}
}

// loop is the listener body. It exits on stop signal or when the
// consecutive-failure cap is reached.
func (l *Listener) loop(rules []filter.Rule, binding map[string]dispatch.MessageKind, table *dispatch.HandlerTable, stopCh, doneCh chan struct{}) {
	l.mu.Lock()
	l.loopGid = goid()
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.loopGid = -1
		l.mu.Unlock()
		l.logState("RUNNING", "STOPPED", "")
		close(doneCh)
	}()

	consecutive := 0
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := l.transport.Receive(l.config.ReceiveTimeout)
		switch {
		case err != nil:
			consecutive++
			l.config.Logger.Error("listener receive failed",
				"consecutive", consecutive, "cap", l.config.FailureCap, "err", err)
			l.logError(err, "receive", consecutive)
			if consecutive >= l.config.FailureCap {
				l.config.Logger.Log(context.Background(), LevelCritical,
					"listener stopping after consecutive transport failures",
					"consecutive", consecutive)
				return
			}
		case frame != nil:
			consecutive = 0
			l.dispatch(*frame, rules, binding, table)
		default:
			// Receive timeout: normal, nothing arrived.
			consecutive = 0
		}

		if !sleepOrStop(stopCh, l.config.PollInterval) {
			return
		}
	}
}

// dispatch matches one frame and invokes the bound handler. Unmatched
// frames are ignored by design.
func (l *Listener) dispatch(frame canbus.Frame, rules []filter.Rule, binding map[string]dispatch.MessageKind, table *dispatch.HandlerTable) {
	name, ok := filter.Match(frame, rules)
	l.logFrame(frame, name)
	if !ok {
		return
	}
	kind := binding[name]
	handler, ok := table.Lookup(kind)
	if !ok {
		// Bind validated this at Start; reaching here means the table was
		// rebuilt out from under the session.
		l.config.Logger.Error("no handler for matched rule", "rule", name)
		return
	}
	l.config.Logger.Debug("dispatching frame", "rule", name, "id", frame.ID)
	handler(frame.ID, frame.Data)
}

func (l *Listener) logFrame(frame canbus.Frame, matched string) {
	data := make([]byte, frame.Len)
	copy(data, frame.Data[:frame.Len])
	l.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: l.config.SessionID,
		Direction: buslog.DirectionIn,
		Category:  buslog.CategoryFrame,
		Worker:    "listener",
		Frame: &buslog.FrameEvent{
			ID:      frame.ID,
			Len:     frame.Len,
			Data:    data,
			Matched: matched,
		},
	})
}

func (l *Listener) logState(oldState, newState, reason string) {
	l.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: l.config.SessionID,
		Category:  buslog.CategoryState,
		Worker:    "listener",
		StateChange: &buslog.StateChangeEvent{
			Entity:   buslog.StateEntityWorker,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (l *Listener) logError(err error, context string, consecutive int) {
	l.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: l.config.SessionID,
		Category:  buslog.CategoryError,
		Worker:    "listener",
		Error: &buslog.ErrorEvent{
			Message:     err.Error(),
			Context:     context,
			Consecutive: consecutive,
		},
	})
}
