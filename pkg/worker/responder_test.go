package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

func testResponderConfig() ResponderConfig {
	return ResponderConfig{
		InitialDelay:    5 * time.Millisecond,
		Interval:        20 * time.Millisecond,
		PollInterval:    time.Millisecond,
		StopJoinTimeout: time.Second,
		Retry:           RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
		Status:          func() (bool, uint8, uint8) { return true, 2, 7 },
		Progress:        func() uint8 { return 50 },
	}
}

// drainStatus collects status frames from the peer endpoint until timeout.
func drainStatus(peer canbus.Bus, timeout time.Duration) []canbus.Frame {
	var frames []canbus.Frame
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frames
		}
		f, ok, err := peer.Receive(remaining)
		if err != nil || !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestResponderEmitsPeriodically(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	responder := NewResponder(transport, testResponderConfig())
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer responder.Stop()

	frames := drainStatus(peer, 100*time.Millisecond)
	if len(frames) < 2 {
		t.Fatalf("expected at least 2 periodic frames, got %d", len(frames))
	}
	for _, f := range frames {
		if f.ID != 0x0DA {
			t.Fatalf("unexpected frame id %03X", f.ID)
		}
		want := [canbus.PayloadSize]byte{0x03, 1, 2, 7, 50}
		if f.Data != want {
			t.Fatalf("unexpected payload %v, want %v", f.Data, want)
		}
	}
}

func TestResponderImmediateTriggerCoalesces(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	config := testResponderConfig()
	config.InitialDelay = time.Hour
	config.Interval = time.Hour
	responder := NewResponder(transport, config)
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer responder.Stop()

	// Several triggers before the responder wakes collapse into one frame.
	responder.TriggerImmediate()
	responder.TriggerImmediate()
	responder.TriggerImmediate()

	frames := drainStatus(peer, 100*time.Millisecond)
	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 coalesced frame, got %d", len(frames))
	}
}

func TestResponderImmediateResetsSchedule(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	config := testResponderConfig()
	config.InitialDelay = time.Hour
	config.Interval = 50 * time.Millisecond
	responder := NewResponder(transport, config)
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer responder.Stop()

	responder.TriggerImmediate()

	frames := drainStatus(peer, 30*time.Millisecond)
	if len(frames) != 1 {
		t.Fatalf("expected only the immediate frame within the interval, got %d", len(frames))
	}

	// The next periodic frame arrives a full interval after the immediate one.
	frames = drainStatus(peer, 60*time.Millisecond)
	if len(frames) < 1 {
		t.Fatal("expected a periodic frame after the interval elapsed")
	}
}

func TestResponderStopsItselfAfterConsecutiveFailures(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	ep := bus.Open()
	canbus.FailSends(ep, errors.New("tx queue full"))
	transport := canbus.NewTransport(ep, canbus.TransportConfig{DeviceID: 0x0DA})

	config := testResponderConfig()
	config.FailureCap = 2
	config.InitialDelay = time.Millisecond
	config.Interval = time.Millisecond
	responder := NewResponder(transport, config)
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return !responder.IsRunning() },
		"responder did not stop itself at the failure cap")
}

func TestResponderStartRefusesWhileJoinPending(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	config := testResponderConfig()
	config.InitialDelay = time.Millisecond
	config.StopJoinTimeout = 20 * time.Millisecond
	config.Status = func() (bool, uint8, uint8) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
		return true, 2, 7
	}
	responder := NewResponder(transport, config)
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("responder never built a status frame")
	}

	// The wedged status callback keeps the first loop from joining. A second
	// loop must not start next to it.
	if err := responder.Start(); !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("restart error = %v, want ErrJoinTimeout", err)
	}
	if !responder.IsRunning() {
		t.Fatal("refused restart clobbered the active run's state")
	}

	close(gate)
	waitFor(t, time.Second, func() bool { return !responder.IsRunning() },
		"first loop did not exit after the status callback unblocked")

	// Once joined, a fresh start works again.
	if err := responder.Start(); err != nil {
		t.Fatalf("restart after join failed: %v", err)
	}
	if err := responder.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestResponderStopIsIdempotent(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	responder := NewResponder(transport, testResponderConfig())
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := responder.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := responder.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if responder.IsRunning() {
		t.Fatal("responder still running after stop")
	}
}

func TestResponderNilProgressReportsZero(t *testing.T) {
	bus := canbus.NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()
	transport := canbus.NewTransport(bus.Open(), canbus.TransportConfig{DeviceID: 0x0DA})

	config := testResponderConfig()
	config.Progress = nil
	config.Status = func() (bool, uint8, uint8) { return false, 0, 0 }
	responder := NewResponder(transport, config)
	if err := responder.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer responder.Stop()

	frames := drainStatus(peer, 50*time.Millisecond)
	if len(frames) == 0 {
		t.Fatal("expected a status frame")
	}
	want := [canbus.PayloadSize]byte{0x03}
	if frames[0].Data != want {
		t.Fatalf("unexpected payload %v, want %v", frames[0].Data, want)
	}
}
