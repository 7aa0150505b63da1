package presentation

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultHintDuration is how long a hint stays visible.
const DefaultHintDuration = 3 * time.Second

// HintState tracks the hint overlay. While a hint is visible the countdown
// presentation is hidden; hiding the hint shows the countdown again. Only
// the visibility state lives here; rendering belongs to the collaborator.
type HintState struct {
	mu sync.Mutex

	hints     map[uint8]string
	duration  time.Duration
	countdown *Countdown
	loop      *Loop
	logger    *slog.Logger

	visible   bool
	current   string
	hideTimer *time.Timer
}

// NewHintState creates hint state over the given countdown and loop. hints
// maps the hint selector byte from timer-adjacent frames to the configured
// message; duration <= 0 selects DefaultHintDuration.
func NewHintState(hints map[uint8]string, duration time.Duration, countdown *Countdown, loop *Loop, logger *slog.Logger) *HintState {
	if duration <= 0 {
		duration = DefaultHintDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HintState{
		hints:     hints,
		duration:  duration,
		countdown: countdown,
		loop:      loop,
		logger:    logger,
	}
}

// ShowByKey shows the configured hint for the given selector byte. Unknown
// selectors are logged and ignored.
func (h *HintState) ShowByKey(key uint8) {
	h.mu.Lock()
	message, ok := h.hints[key]
	h.mu.Unlock()
	if !ok {
		h.logger.Warn("unknown hint selector", "key", key)
		return
	}
	h.Show(message)
}

// Show makes the hint visible, hides the countdown, and schedules the
// auto-hide. Showing while a hint is already visible replaces it and resets
// the hide schedule.
func (h *HintState) Show(message string) {
	h.mu.Lock()
	if h.hideTimer != nil {
		h.hideTimer.Stop()
	}
	h.visible = true
	h.current = message
	h.hideTimer = h.loop.PostAfter(h.duration, "hint-hide", h.Hide)
	h.mu.Unlock()

	h.countdown.Hide()
	h.logger.Info("hint shown", "message", message)
}

// Hide clears the hint and shows the countdown again. A no-op when no hint
// is visible.
func (h *HintState) Hide() {
	h.mu.Lock()
	if !h.visible {
		h.mu.Unlock()
		return
	}
	h.visible = false
	h.current = ""
	if h.hideTimer != nil {
		h.hideTimer.Stop()
		h.hideTimer = nil
	}
	h.mu.Unlock()

	h.countdown.Show()
	h.logger.Debug("hint hidden")
}

// Stop cancels any pending auto-hide. Used during teardown.
func (h *HintState) Stop() {
	h.mu.Lock()
	if h.hideTimer != nil {
		h.hideTimer.Stop()
		h.hideTimer = nil
	}
	h.visible = false
	h.current = ""
	h.mu.Unlock()
}

// Current returns the visible hint message, if any.
func (h *HintState) Current() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.visible
}
