package presentation

import (
	"testing"
	"time"
)

// tickSeconds advances the countdown by n one-second ticks.
func tickSeconds(c *Countdown, n int) {
	now := time.Now()
	for i := 1; i <= n; i++ {
		c.Tick(now.Add(time.Duration(i) * time.Second))
	}
}

func TestCountdownTicksDown(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()

	tickSeconds(c, 3)
	if got := c.Remaining(); got != 7 {
		t.Fatalf("remaining = %d, want 7", got)
	}
}

func TestCountdownExpiry(t *testing.T) {
	expired := false
	c := NewCountdown(2*time.Second, func() { expired = true }, nil)
	c.Start()

	tickSeconds(c, 2)
	if !expired {
		t.Fatal("expiry callback never fired")
	}
	if c.IsRunning() {
		t.Fatal("countdown still running after expiry")
	}
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestCountdownExpiryFiresOnce(t *testing.T) {
	fired := 0
	c := NewCountdown(time.Second, func() { fired++ }, nil)
	c.Start()

	tickSeconds(c, 5)
	if fired != 1 {
		t.Fatalf("expiry fired %d times, want 1", fired)
	}
}

func TestCountdownPauseHoldsTime(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()
	c.Pause()

	tickSeconds(c, 5)
	if got := c.Remaining(); got != 10 {
		t.Fatalf("remaining = %d, want 10 while paused", got)
	}

	c.Resume()
	tickSeconds(c, 2)
	if got := c.Remaining(); got != 8 {
		t.Fatalf("remaining = %d, want 8 after resume", got)
	}
}

func TestCountdownStartWhilePausedIsNoop(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()
	c.Pause()
	c.Start()

	if !c.IsPaused() {
		t.Fatal("start overrode the pause")
	}
}

func TestCountdownSetFromBusHoldsInternalTick(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()

	c.SetFromBus(3600)
	tickSeconds(c, 10)
	if got := c.Remaining(); got != 3600 {
		t.Fatalf("remaining = %d, want 3600 while bus-fed", got)
	}

	c.SetFromBus(3599)
	if got := c.Remaining(); got != 3599 {
		t.Fatalf("remaining = %d, want 3599", got)
	}

	c.ResumeInternal()
	tickSeconds(c, 2)
	if got := c.Remaining(); got != 3597 {
		t.Fatalf("remaining = %d, want 3597 after resuming internal tick", got)
	}
}

func TestCountdownSetFromBusStartsIdleCountdown(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)

	c.SetFromBus(120)
	if !c.IsRunning() {
		t.Fatal("bus-fed countdown should be running")
	}
}

func TestCountdownAddSubtract(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()

	c.Add(20)
	if got := c.Remaining(); got != 30 {
		t.Fatalf("remaining = %d, want 30", got)
	}

	c.Subtract(25)
	if got := c.Remaining(); got != 5 {
		t.Fatalf("remaining = %d, want 5", got)
	}

	// Subtracting past zero clamps and stops without firing expiry.
	c.Subtract(100)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
	if c.IsRunning() {
		t.Fatal("countdown still running after subtracting to zero")
	}
}

func TestCountdownAddStartsIdleCountdown(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Subtract(100)

	c.Add(5)
	if !c.IsRunning() {
		t.Fatal("adding time to an idle countdown should start it")
	}
}

func TestCountdownRestart(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()
	tickSeconds(c, 4)

	c.Restart(0)
	if got := c.Remaining(); got != 10 {
		t.Fatalf("remaining = %d, want initial 10 after restart", got)
	}

	c.Restart(30)
	if got := c.Remaining(); got != 30 {
		t.Fatalf("remaining = %d, want 30", got)
	}
}

func TestCountdownHideShow(t *testing.T) {
	c := NewCountdown(10*time.Second, nil, nil)
	c.Start()

	c.Hide()
	if !c.IsHidden() {
		t.Fatal("countdown should be hidden")
	}
	tickSeconds(c, 2)
	if got := c.Remaining(); got != 8 {
		t.Fatalf("remaining = %d, want 8: hiding must not stop ticking", got)
	}

	c.Show()
	if c.IsHidden() {
		t.Fatal("countdown should be visible again")
	}
}
