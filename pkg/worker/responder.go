package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// Default responder tunables.
const (
	// DefaultInitialDelay is the wait before the first status frame.
	DefaultInitialDelay = 2 * time.Second

	// DefaultStatusInterval is the periodic status emission interval.
	DefaultStatusInterval = 2 * time.Second
)

// statusKind is the first payload byte of every status frame.
const statusKind = 0x03

// StatusFunc reports the current playback state: whether something is
// playing and which folder/video is selected. Called from the responder
// goroutine, so implementations must be safe for concurrent use.
type StatusFunc func() (playing bool, folder, video uint8)

// ProgressFunc reports playback progress as a percentage (0-100).
type ProgressFunc func() uint8

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// InitialDelay is the wait before the first status frame (default 2s).
	InitialDelay time.Duration

	// Interval is the periodic status emission interval (default 2s).
	Interval time.Duration

	// PollInterval is the sleep between schedule checks (default 100ms).
	PollInterval time.Duration

	// FailureCap is the consecutive send failure count at which the responder
	// stops itself (default 5).
	FailureCap int

	// StopJoinTimeout bounds the wait for the loop to exit on Stop (default 2s).
	StopJoinTimeout time.Duration

	// Retry bounds the per-frame send retry loop.
	Retry RetryPolicy

	// Status supplies the playback state for each frame. Required.
	Status StatusFunc

	// Progress supplies the playback progress byte. Optional; a nil Progress
	// reports zero.
	Progress ProgressFunc

	// SessionID stamps bus log events (optional).
	SessionID string

	// Logger for operational output (optional).
	Logger *slog.Logger

	// BusLogger for structured state events (optional).
	BusLogger buslog.Logger
}

// applyDefaults fills zero values with defaults.
func (c *ResponderConfig) applyDefaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.Interval <= 0 {
		c.Interval = DefaultStatusInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.FailureCap <= 0 {
		c.FailureCap = DefaultFailureCap
	}
	if c.StopJoinTimeout <= 0 {
		c.StopJoinTimeout = DefaultStopJoinTimeout
	}
	c.Retry.applyDefaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.BusLogger == nil {
		c.BusLogger = buslog.NoopLogger{}
	}
}

// Responder is the background worker that emits status frames. It sends
// periodically on a fixed interval, and any number of immediate-response
// triggers between two sends coalesce into a single out-of-schedule frame.
// Each send, immediate or periodic, pushes the next periodic send a full
// interval out.
type Responder struct {
	mu sync.Mutex

	config    ResponderConfig
	transport *canbus.Transport

	// immediate is the coalescing trigger latch. Set by TriggerImmediate,
	// consumed (swapped to false) by the loop.
	immediate atomic.Bool

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	loopGid int64
}

// NewResponder creates a responder over the given transport.
func NewResponder(transport *canbus.Transport, config ResponderConfig) *Responder {
	config.applyDefaults()
	return &Responder{
		config:    config,
		transport: transport,
		loopGid:   -1,
	}
}

// IsRunning reports whether the responder loop is active.
func (r *Responder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// TriggerImmediate requests one out-of-schedule status frame. Safe from any
// goroutine; repeated triggers before the responder wakes coalesce into a
// single send. A no-op while the responder is stopped.
func (r *Responder) TriggerImmediate() {
	r.immediate.Store(true)
}

// Start launches the responder loop. If a previous run is still active it is
// fully stopped (joined) first; a run that cannot be joined within
// StopJoinTimeout refuses the restart with ErrJoinTimeout.
func (r *Responder) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.config.Logger.Debug("stopping previous responder run before restart")
		if err := r.Stop(); err != nil {
			r.config.Logger.Error("previous responder run still active, refusing restart", "err", err)
			return err
		}
		r.mu.Lock()
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	r.immediate.Store(false)
	r.config.Logger.Info("starting responder")
	r.logState("STOPPED", "RUNNING", "")
	go r.loop(stopCh, doneCh)
	return nil
}

// Stop signals the loop to exit and joins it with a bounded timeout.
// Calling Stop from the responder's own goroutine is detected and skips the
// join with a warning instead of deadlocking.
func (r *Responder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	loopGid := r.loopGid
	r.mu.Unlock()

	select {
	case <-stopCh:
		// Already signalled.
	default:
		close(stopCh)
	}

	if goid() == loopGid {
		r.config.Logger.Warn("responder stop requested from its own goroutine, skipping join")
		return nil
	}

	select {
	case <-doneCh:
		r.config.Logger.Info("responder stopped")
		return nil
	case <-time.After(r.config.StopJoinTimeout):
		r.config.Logger.Warn("responder join timed out", "timeout", r.config.StopJoinTimeout)
		return ErrJoinTimeout
	}
}

// loop is the responder body. nextSend carries the periodic schedule; an
// immediate send resets it just like a periodic one does.
func (r *Responder) loop(stopCh, doneCh chan struct{}) {
	r.mu.Lock()
	r.loopGid = goid()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.loopGid = -1
		r.mu.Unlock()
		r.logState("RUNNING", "STOPPED", "")
		close(doneCh)
	}()

	nextSend := time.Now().Add(r.config.InitialDelay)
	consecutive := 0
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		immediate := r.immediate.Swap(false)
		if immediate || !time.Now().Before(nextSend) {
			if r.send(immediate, stopCh) {
				consecutive = 0
			} else {
				consecutive++
				r.logError("status send exhausted retries", consecutive)
				if consecutive >= r.config.FailureCap {
					r.config.Logger.Log(context.Background(), LevelCritical,
						"responder stopping after consecutive send failures",
						"consecutive", consecutive)
					return
				}
			}
			nextSend = time.Now().Add(r.config.Interval)
		}

		if !sleepOrStop(stopCh, r.config.PollInterval) {
			return
		}
	}
}

// send builds and emits one status frame, returning whether the send
// ultimately succeeded.
func (r *Responder) send(immediate bool, stopCh <-chan struct{}) bool {
	playing, folder, video := r.config.Status()
	var progress uint8
	if r.config.Progress != nil {
		progress = r.config.Progress()
	}

	var playback uint8
	if playing {
		playback = 1
	}
	payload := [canbus.PayloadSize]byte{statusKind, playback, folder, video, progress}

	r.config.Logger.Debug("sending status frame",
		"immediate", immediate, "playing", playing, "folder", folder, "video", video)
	return sendWithRetry(r.transport, payload, r.config.Retry, stopCh, r.config.Logger)
}

func (r *Responder) logState(oldState, newState, reason string) {
	r.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: r.config.SessionID,
		Category:  buslog.CategoryState,
		Worker:    "responder",
		StateChange: &buslog.StateChangeEvent{
			Entity:   buslog.StateEntityWorker,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (r *Responder) logError(message string, consecutive int) {
	r.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: r.config.SessionID,
		Category:  buslog.CategoryError,
		Worker:    "responder",
		Error: &buslog.ErrorEvent{
			Message:     message,
			Context:     "send",
			Consecutive: consecutive,
		},
	})
}
