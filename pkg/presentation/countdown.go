package presentation

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCountdownDuration is the countdown's initial duration.
const DefaultCountdownDuration = 60 * time.Second

// Countdown is the remaining-time state of the kiosk's session timer. It
// normally counts down one second at a time, driven by the loop tick; a
// timer frame from the bus switches it to externally-fed mode, where the
// bus master owns the remaining time and the internal decrement is held.
type Countdown struct {
	mu sync.Mutex

	duration int // initial duration, seconds
	timeLeft int
	running  bool
	paused   bool
	hidden   bool
	fromBus  bool
	lastTick time.Time

	onExpire func()
	logger   *slog.Logger
}

// NewCountdown creates a countdown with the given initial duration.
// duration <= 0 selects DefaultCountdownDuration; onExpire (optional) fires
// on the ticking goroutine when the countdown reaches zero.
func NewCountdown(duration time.Duration, onExpire func(), logger *slog.Logger) *Countdown {
	if duration <= 0 {
		duration = DefaultCountdownDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	secs := int(duration / time.Second)
	return &Countdown{
		duration: secs,
		timeLeft: secs,
		onExpire: onExpire,
		logger:   logger,
	}
}

// Start begins counting down. A paused countdown must be resumed, not
// started.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.paused {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.lastTick = time.Now()
	c.mu.Unlock()
	c.logger.Debug("countdown started", "seconds", c.Remaining())
}

// Tick advances the countdown; the loop calls it once per iteration. The
// internal decrement runs at one second granularity and is held while paused
// or while the bus is feeding the time.
func (c *Countdown) Tick(now time.Time) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if c.paused || c.fromBus {
		c.lastTick = now
		c.mu.Unlock()
		return
	}
	if now.Sub(c.lastTick) < time.Second {
		c.mu.Unlock()
		return
	}
	c.lastTick = now
	c.timeLeft--
	if c.timeLeft > 0 {
		c.mu.Unlock()
		return
	}
	c.timeLeft = 0
	c.running = false
	onExpire := c.onExpire
	c.mu.Unlock()

	c.logger.Debug("countdown finished")
	if onExpire != nil {
		onExpire()
	}
}

// SetFromBus replaces the remaining time with a bus-fed value and holds the
// internal decrement until ResumeInternal.
func (c *Countdown) SetFromBus(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	c.timeLeft = seconds
	c.fromBus = true
	if !c.running && !c.paused && seconds > 0 {
		c.running = true
		c.lastTick = time.Now()
	}
	c.mu.Unlock()
	c.logger.Debug("countdown set from bus", "seconds", seconds)
}

// ResumeInternal releases the bus hold and resumes internal ticking from the
// last bus-fed value.
func (c *Countdown) ResumeInternal() {
	c.mu.Lock()
	c.fromBus = false
	c.lastTick = time.Now()
	c.mu.Unlock()
	c.logger.Debug("countdown resumed internal ticking")
}

// Pause holds the countdown without losing the remaining time.
func (c *Countdown) Pause() {
	c.mu.Lock()
	if !c.running || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.mu.Unlock()
	c.logger.Debug("countdown paused")
}

// Resume continues a paused countdown.
func (c *Countdown) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.lastTick = time.Now()
	c.mu.Unlock()
	c.logger.Debug("countdown resumed")
}

// Stop halts the countdown without firing the expiry callback.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.running = false
	c.paused = false
	c.mu.Unlock()
	c.logger.Debug("countdown stopped")
}

// Restart stops the countdown and starts over. seconds <= 0 restarts with
// the initial duration.
func (c *Countdown) Restart(seconds int) {
	c.mu.Lock()
	if seconds <= 0 {
		seconds = c.duration
	}
	c.timeLeft = seconds
	c.running = true
	c.paused = false
	c.fromBus = false
	c.lastTick = time.Now()
	c.mu.Unlock()
	c.logger.Debug("countdown restarted", "seconds", seconds)
}

// Add extends the remaining time. Adding to an idle countdown starts it.
func (c *Countdown) Add(seconds int) {
	c.mu.Lock()
	c.timeLeft += seconds
	start := c.timeLeft > 0 && !c.running && !c.paused
	if start {
		c.running = true
		c.lastTick = time.Now()
	}
	left := c.timeLeft
	c.mu.Unlock()
	c.logger.Debug("countdown time added", "seconds", seconds, "remaining", left)
}

// Subtract reduces the remaining time, clamped at zero. Reaching zero this
// way stops the countdown without firing the expiry callback.
func (c *Countdown) Subtract(seconds int) {
	c.mu.Lock()
	c.timeLeft -= seconds
	if c.timeLeft <= 0 {
		c.timeLeft = 0
		c.running = false
		c.paused = false
	}
	left := c.timeLeft
	c.mu.Unlock()
	c.logger.Debug("countdown time subtracted", "seconds", seconds, "remaining", left)
}

// Hide suppresses the countdown presentation without stopping the ticking.
func (c *Countdown) Hide() {
	c.mu.Lock()
	c.hidden = true
	c.mu.Unlock()
}

// Show reverses Hide.
func (c *Countdown) Show() {
	c.mu.Lock()
	c.hidden = false
	c.mu.Unlock()
}

// Remaining returns the remaining time in seconds.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLeft
}

// IsRunning reports whether the countdown is ticking or paused mid-run.
func (c *Countdown) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsPaused reports whether the countdown is paused.
func (c *Countdown) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// IsHidden reports whether the countdown presentation is suppressed.
func (c *Countdown) IsHidden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hidden
}
