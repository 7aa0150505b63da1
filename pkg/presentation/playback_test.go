package presentation

import (
	"sync"
	"testing"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/dispatch"
)

// recordSurface records plays for assertions.
type recordSurface struct {
	mu      sync.Mutex
	plays   [][2]uint8
	stopped bool
}

func (s *recordSurface) Play(folder, index uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, [2]uint8{folder, index})
	s.stopped = false
	return nil
}

func (s *recordSurface) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *recordSurface) Status() (bool, uint8, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plays) == 0 || s.stopped {
		return false, 0, 0
	}
	last := s.plays[len(s.plays)-1]
	return true, last[0], last[1]
}

func (s *recordSurface) Progress() uint8 { return 42 }

func (s *recordSurface) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

func (s *recordSurface) lastPlay() [2]uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plays) == 0 {
		return [2]uint8{}
	}
	return s.plays[len(s.plays)-1]
}

func testPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		Folders:       map[uint8]string{0x01: "hun", 0x02: "eng"},
		DefaultFolder: 0x01,
		MaxVideo:      8,
		Chain:         map[uint8]uint8{2: 3, 4: 5, 6: 7, 7: 8},
		ChainDelay:    5 * time.Millisecond,
	}
}

func TestPlaybackHandleControl(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x02, 0x03})

	if got := surface.lastPlay(); got != [2]uint8{0x02, 3} {
		t.Fatalf("played %v, want folder 2 video 3", got)
	}
	playing, folder, video := p.Status()
	if !playing || folder != 0x02 || video != 3 {
		t.Fatalf("status = (%v, %d, %d), want (true, 2, 3)", playing, folder, video)
	}
}

func TestPlaybackUnknownFolderKeepsCurrent(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x99, 0x01})

	if got := surface.lastPlay(); got != [2]uint8{0x01, 1} {
		t.Fatalf("played %v, want default folder 1 video 1", got)
	}
}

func TestPlaybackInvalidIndexIgnored(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x01, 0x00})
	p.HandleControl([8]byte{0x04, 0x01, 0x09})

	if got := surface.playCount(); got != 0 {
		t.Fatalf("played %d videos, want none", got)
	}
}

func TestPlaybackChainsFollowUpVideo(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x01, 0x02})
	p.NotifyEnded()

	waitFor(t, time.Second, func() bool { return surface.playCount() == 2 },
		"chained video never played")
	if got := surface.lastPlay(); got != [2]uint8{0x01, 3} {
		t.Fatalf("chained play %v, want folder 1 video 3", got)
	}
}

func TestPlaybackUnchainedVideoEndsQuietly(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x01, 0x01})
	p.NotifyEnded()

	time.Sleep(20 * time.Millisecond)
	if got := surface.playCount(); got != 1 {
		t.Fatalf("played %d videos, want 1", got)
	}
	if playing, _, _ := p.Status(); playing {
		t.Fatal("still reported playing after the video ended")
	}
}

func TestPlaybackNewControlCancelsChain(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	config := testPlaybackConfig()
	config.ChainDelay = 30 * time.Millisecond
	p := NewPlayback(surface, loop, config)

	p.HandleControl([8]byte{0x04, 0x01, 0x02})
	p.NotifyEnded()
	p.HandleControl([8]byte{0x04, 0x01, 0x06})

	time.Sleep(60 * time.Millisecond)
	if got := surface.lastPlay(); got != [2]uint8{0x01, 6} {
		t.Fatalf("last play %v, want the explicit selection to win", got)
	}
	if got := surface.playCount(); got != 2 {
		t.Fatalf("played %d videos, want 2 (chain cancelled)", got)
	}
}

func TestPlaybackStop(t *testing.T) {
	surface := &recordSurface{}
	queue := dispatch.NewQueue(nil)
	loop := startLoop(t, queue)
	p := NewPlayback(surface, loop, testPlaybackConfig())

	p.HandleControl([8]byte{0x04, 0x01, 0x01})
	p.StopPlayback()

	if playing, _, _ := p.Status(); playing {
		t.Fatal("still reported playing after stop")
	}
	surface.mu.Lock()
	stopped := surface.stopped
	surface.mu.Unlock()
	if !stopped {
		t.Fatal("surface never stopped")
	}
}
