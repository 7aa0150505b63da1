package presentation

import (
	"log/slog"
	"sync"
	"time"
)

// Playback defaults.
const (
	// DefaultMaxVideo is the highest valid video index.
	DefaultMaxVideo = 8

	// DefaultChainDelay is the wait before a chained follow-up video starts.
	DefaultChainDelay = 3 * time.Second

	// DefaultFolder is the folder selector used until a control frame picks
	// another one.
	DefaultFolder = 0x01
)

// PlaybackConfig configures a Playback tracker.
type PlaybackConfig struct {
	// Folders maps the control frame's folder selector byte to a content
	// folder name. Selectors outside the map are rejected.
	Folders map[uint8]string

	// DefaultFolder is the selector active at startup (default 0x01). Must be
	// a key of Folders.
	DefaultFolder uint8

	// MaxVideo is the highest valid video index (default 8).
	MaxVideo uint8

	// Chain maps a video index to the follow-up video that plays after it
	// finishes. Optional.
	Chain map[uint8]uint8

	// ChainDelay is the wait before a chained video starts (default 3s).
	ChainDelay time.Duration

	// Logger for operational output (optional).
	Logger *slog.Logger
}

// applyDefaults fills zero values with defaults.
func (c *PlaybackConfig) applyDefaults() {
	if c.DefaultFolder == 0 {
		c.DefaultFolder = DefaultFolder
	}
	if c.MaxVideo == 0 {
		c.MaxVideo = DefaultMaxVideo
	}
	if c.ChainDelay <= 0 {
		c.ChainDelay = DefaultChainDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Playback tracks the current selection and drives the Surface. Control
// handlers mutate it on the loop goroutine; the responder's status accessors
// read it from the responder goroutine.
type Playback struct {
	mu sync.Mutex

	config  PlaybackConfig
	surface Surface
	loop    *Loop

	folder  uint8
	video   uint8
	playing bool

	chainTimer *time.Timer
}

// NewPlayback creates a playback tracker over the given surface and loop.
func NewPlayback(surface Surface, loop *Loop, config PlaybackConfig) *Playback {
	config.applyDefaults()
	return &Playback{
		config:  config,
		surface: surface,
		loop:    loop,
		folder:  config.DefaultFolder,
	}
}

// HandleControl processes one control frame payload: byte 1 selects the
// folder, byte 2 the video index. An unknown folder selector keeps the
// current folder; an out-of-range index drops the frame. Runs on the loop
// goroutine.
func (p *Playback) HandleControl(data [8]byte) {
	selector, index := data[1], data[2]

	p.mu.Lock()
	if name, ok := p.config.Folders[selector]; ok {
		if p.folder != selector {
			p.config.Logger.Info("folder selected", "selector", selector, "folder", name)
		}
		p.folder = selector
	} else {
		p.config.Logger.Warn("unknown folder selector", "selector", selector)
	}
	folder := p.folder
	p.mu.Unlock()

	if index < 1 || index > p.config.MaxVideo {
		p.config.Logger.Warn("invalid video index", "index", index)
		return
	}
	p.play(folder, index)
}

// play starts the given selection on the surface and records it.
func (p *Playback) play(folder, index uint8) {
	p.mu.Lock()
	if p.chainTimer != nil {
		p.chainTimer.Stop()
		p.chainTimer = nil
	}
	p.mu.Unlock()

	if err := p.surface.Play(folder, index); err != nil {
		p.config.Logger.Error("playback failed", "folder", folder, "video", index, "err", err)
		return
	}
	p.mu.Lock()
	p.folder = folder
	p.video = index
	p.playing = true
	p.mu.Unlock()
}

// StopPlayback halts the surface and clears the playing flag. Runs on the
// loop goroutine or during teardown.
func (p *Playback) StopPlayback() {
	p.mu.Lock()
	if p.chainTimer != nil {
		p.chainTimer.Stop()
		p.chainTimer = nil
	}
	p.playing = false
	p.mu.Unlock()
	p.surface.Stop()
}

// NotifyEnded records that the current video ran to completion and, if the
// chain maps a follow-up, schedules it after the chain delay. Surface
// implementations call this (directly or via the loop) from their
// end-of-media path.
func (p *Playback) NotifyEnded() {
	p.mu.Lock()
	p.playing = false
	next, chained := p.config.Chain[p.video]
	folder := p.folder
	p.mu.Unlock()

	if !chained {
		return
	}
	p.config.Logger.Info("scheduling chained video", "video", next, "delay", p.config.ChainDelay)
	timer := p.loop.PostAfter(p.config.ChainDelay, "play-chained", func() {
		p.play(folder, next)
	})
	p.mu.Lock()
	p.chainTimer = timer
	p.mu.Unlock()
}

// Status reports the tracked selection; the responder reads it without
// touching the surface.
func (p *Playback) Status() (playing bool, folder, video uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing, p.folder, p.video
}

// Progress reports playback progress from the surface.
func (p *Playback) Progress() uint8 {
	return p.surface.Progress()
}
