package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// fakeNetLink records operations and serves scripted responses.
type fakeNetLink struct {
	mu    sync.Mutex
	calls []string

	up       bool
	isUpErr  error
	setUpErr error
	rx, tx   uint64
	countErr error

	// setUpFailures makes the first n SetUp calls fail.
	setUpFailures int
}

func (f *fakeNetLink) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeNetLink) IsUp(name string) (bool, error) {
	f.record("is_up")
	return f.up, f.isUpErr
}

func (f *fakeNetLink) SetUp(name string) error {
	f.record("set_up")
	if f.setUpFailures > 0 {
		f.setUpFailures--
		return errors.New("RTNETLINK answers: operation not permitted")
	}
	if f.setUpErr != nil {
		return f.setUpErr
	}
	f.up = true
	return nil
}

func (f *fakeNetLink) SetDown(name string) error {
	f.record("set_down")
	f.up = false
	return nil
}

func (f *fakeNetLink) SetBitrate(name string, bitrate uint32) error {
	f.record("set_bitrate")
	return nil
}

func (f *fakeNetLink) ErrorCounters(name string) (uint64, uint64, error) {
	f.record("counters")
	return f.rx, f.tx, f.countErr
}

func (f *fakeNetLink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// stateRecorder captures link state transitions from the bus log.
type stateRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *stateRecorder) Log(event buslog.Event) {
	if event.StateChange == nil {
		return
	}
	r.mu.Lock()
	r.states = append(r.states, event.StateChange.NewState)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func testConfig(rec *stateRecorder) Config {
	c := Config{
		Channel:       "vcan0",
		Bitrate:       100000,
		UpRetries:     3,
		UpRetryDelay:  time.Millisecond,
		ErrorCooldown: time.Millisecond,
		Stabilization: time.Millisecond,
	}
	if rec != nil {
		c.BusLogger = rec
	}
	return c
}

func loopbackDial(t *testing.T) DialFunc {
	t.Helper()
	bus := canbus.NewLoopbackBus()
	t.Cleanup(func() { bus.Close() })
	return func() (canbus.Bus, error) { return bus.Open(), nil }
}

func TestEnsureUpAlreadyUp(t *testing.T) {
	nl := &fakeNetLink{up: true}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if err := m.EnsureUp(context.Background()); err != nil {
		t.Fatalf("ensure up failed: %v", err)
	}
	if got := m.State(); got != StateUp {
		t.Fatalf("state = %v, want UP", got)
	}
	// No bitrate or up commands when the interface is already running.
	for _, call := range nl.snapshot() {
		if call == "set_up" || call == "set_bitrate" {
			t.Fatalf("unexpected %s on already-up interface", call)
		}
	}
}

func TestEnsureUpRetriesThenSucceeds(t *testing.T) {
	nl := &fakeNetLink{setUpFailures: 2}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if err := m.EnsureUp(context.Background()); err != nil {
		t.Fatalf("ensure up failed: %v", err)
	}
	if m.State() != StateUp {
		t.Fatalf("state = %v, want UP", m.State())
	}

	setUps := 0
	for _, call := range nl.snapshot() {
		if call == "set_up" {
			setUps++
		}
	}
	if setUps != 3 {
		t.Fatalf("set_up called %d times, want 3", setUps)
	}
}

func TestEnsureUpExhaustsRetries(t *testing.T) {
	nl := &fakeNetLink{setUpErr: errors.New("no such device")}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	err := m.EnsureUp(context.Background())
	if !errors.Is(err, ErrInterface) {
		t.Fatalf("error = %v, want ErrInterface", err)
	}
	if m.State() != StateDown {
		t.Fatalf("state = %v, want DOWN", m.State())
	}
}

func TestEnsureUpCheckFailure(t *testing.T) {
	nl := &fakeNetLink{isUpErr: errors.New("no such device")}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if err := m.EnsureUp(context.Background()); !errors.Is(err, ErrInterface) {
		t.Fatalf("error = %v, want ErrInterface", err)
	}
}

func TestEnsureUpHonorsCancellation(t *testing.T) {
	nl := &fakeNetLink{setUpErr: errors.New("busy")}
	config := testConfig(nil)
	config.UpRetryDelay = time.Minute
	m := NewManager(config, nl, loopbackDial(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.EnsureUp(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("EnsureUp did not return after cancellation")
	}
}

func TestCheckAndRecoverCleanCounters(t *testing.T) {
	nl := &fakeNetLink{up: true}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if err := m.CheckAndRecover(context.Background()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, call := range nl.snapshot() {
		if call == "set_down" {
			t.Fatal("clean counters triggered a reset")
		}
	}
}

func TestCheckAndRecoverCounterReadFailureIsAdvisory(t *testing.T) {
	nl := &fakeNetLink{up: true, countErr: errors.New("sysfs read failed")}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if err := m.CheckAndRecover(context.Background()); err != nil {
		t.Fatalf("counter read failure surfaced: %v", err)
	}
}

func TestCheckAndRecoverResetsOnErrors(t *testing.T) {
	nl := &fakeNetLink{up: true, rx: 12, tx: 3}
	rec := &stateRecorder{}
	m := NewManager(testConfig(rec), nl, loopbackDial(t))

	if err := m.CheckAndRecover(context.Background()); err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if m.State() != StateUp {
		t.Fatalf("state = %v, want UP after recovery", m.State())
	}

	// Down must precede the up sequence.
	calls := nl.snapshot()
	downAt, upAt := -1, -1
	for i, call := range calls {
		switch call {
		case "set_down":
			downAt = i
		case "set_up":
			upAt = i
		}
	}
	if downAt == -1 || upAt == -1 || downAt > upAt {
		t.Fatalf("recovery order wrong: %v", calls)
	}

	states := rec.snapshot()
	want := []string{"ERROR_DETECTED", "RECOVERING", "UP"}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestOpenAndShutdown(t *testing.T) {
	nl := &fakeNetLink{up: true}
	m := NewManager(testConfig(nil), nl, loopbackDial(t))

	if _, err := m.Bus(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("bus before open = %v, want ErrNotOpen", err)
	}

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	bus, err := m.Bus()
	if err != nil || bus == nil {
		t.Fatalf("bus after open = (%v, %v)", bus, err)
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if m.State() != StateDown {
		t.Fatalf("state = %v, want DOWN", m.State())
	}
	if _, err := m.Bus(); !errors.Is(err, ErrNotOpen) {
		t.Fatal("bus handle survived shutdown")
	}

	// Idempotent.
	if err := m.Shutdown(); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}
}

func TestOpenDialFailure(t *testing.T) {
	nl := &fakeNetLink{up: true}
	boom := errors.New("socket: address family not supported")
	m := NewManager(testConfig(nil), nl, func() (canbus.Bus, error) { return nil, boom })

	err := m.Open(context.Background())
	if !errors.Is(err, ErrInterface) || !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	if m.State() != StateDown {
		t.Fatalf("state = %v, want DOWN", m.State())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDown:          "DOWN",
		StateUp:            "UP",
		StateErrorDetected: "ERROR_DETECTED",
		StateRecovering:    "RECOVERING",
		State(99):          "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("String(%d) = %q, want %q", state, got, want)
		}
	}
}
