package presentation

import (
	"log/slog"
	"sync"
	"time"
)

// Surface is the playback collaborator boundary. Implementations own the
// actual media machinery; this package only drives and observes it.
//
// Status and Progress are read by the responder goroutine, so
// implementations must be safe for concurrent use.
type Surface interface {
	// Play starts the video identified by folder selector and index,
	// replacing whatever is currently playing.
	Play(folder, index uint8) error

	// Stop halts playback.
	Stop()

	// Status reports whether something is playing and which selection.
	Status() (playing bool, folder, index uint8)

	// Progress reports playback progress as a percentage (0-100).
	Progress() uint8
}

// DefaultNominalDuration is the simulated video length of a HeadlessSurface.
const DefaultNominalDuration = 30 * time.Second

// HeadlessSurface is a Surface without rendering. It tracks the current
// selection, simulates progress against a nominal video duration, and fires
// an end callback when the duration elapses. Used on kiosks where the
// controller runs detached from the player, and in tests.
type HeadlessSurface struct {
	mu sync.Mutex

	duration time.Duration
	onEnd    func()
	logger   *slog.Logger

	playing   bool
	folder    uint8
	index     uint8
	startedAt time.Time
	endTimer  *time.Timer
}

// NewHeadlessSurface creates a headless surface. duration <= 0 selects
// DefaultNominalDuration; onEnd (optional) fires when a simulated video runs
// to completion, not when playback is replaced or stopped.
func NewHeadlessSurface(duration time.Duration, onEnd func(), logger *slog.Logger) *HeadlessSurface {
	if duration <= 0 {
		duration = DefaultNominalDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadlessSurface{duration: duration, onEnd: onEnd, logger: logger}
}

// Play records the new selection and restarts the simulated clock.
func (s *HeadlessSurface) Play(folder, index uint8) error {
	s.mu.Lock()
	s.cancelEndTimerLocked()
	s.playing = true
	s.folder = folder
	s.index = index
	s.startedAt = time.Now()
	if s.onEnd != nil {
		s.endTimer = time.AfterFunc(s.duration, s.ended)
	}
	s.mu.Unlock()
	s.logger.Info("playback started", "folder", folder, "video", index)
	return nil
}

// Stop halts the simulated playback.
func (s *HeadlessSurface) Stop() {
	s.mu.Lock()
	s.cancelEndTimerLocked()
	wasPlaying := s.playing
	s.playing = false
	s.mu.Unlock()
	if wasPlaying {
		s.logger.Info("playback stopped")
	}
}

// Status reports the current selection.
func (s *HeadlessSurface) Status() (bool, uint8, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing, s.folder, s.index
}

// Progress reports simulated progress as a percentage.
func (s *HeadlessSurface) Progress() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return 0
	}
	pct := time.Since(s.startedAt) * 100 / s.duration
	if pct > 100 {
		pct = 100
	}
	return uint8(pct)
}

func (s *HeadlessSurface) ended() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.endTimer = nil
	s.mu.Unlock()
	s.logger.Info("playback finished")
	s.onEnd()
}

func (s *HeadlessSurface) cancelEndTimerLocked() {
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
}
