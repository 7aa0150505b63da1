package canbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
)

// captureLogger records bus log events.
type captureLogger struct {
	mu     sync.Mutex
	events []buslog.Event
}

func (c *captureLogger) Log(event buslog.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *captureLogger) snapshot() []buslog.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]buslog.Event(nil), c.events...)
}

func TestTransportSendUsesFixedID(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()

	logger := &captureLogger{}
	transport := NewTransport(bus.Open(), TransportConfig{
		DeviceID:  0x0DA,
		Channel:   "can0",
		SessionID: "s1",
		BusLogger: logger,
	})

	payload := [PayloadSize]byte{0x03, 1, 2, 7, 50}
	if err := transport.Send(payload); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	got, ok, err := peer.Receive(time.Second)
	if err != nil || !ok {
		t.Fatalf("peer receive = (%v, %v)", ok, err)
	}
	if got.ID != 0x0DA || got.Len != PayloadSize || got.Data != payload {
		t.Fatalf("frame = %+v", got)
	}

	events := logger.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Category != buslog.CategoryFrame || e.Direction != buslog.DirectionOut {
		t.Fatalf("event = %+v", e)
	}
	if e.Frame == nil || e.Frame.ID != 0x0DA || e.SessionID != "s1" || e.Channel != "can0" {
		t.Fatalf("frame event = %+v", e)
	}
}

func TestTransportSendErrorLogged(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	ep := bus.Open()
	boom := errors.New("tx queue full")
	FailSends(ep, boom)

	logger := &captureLogger{}
	transport := NewTransport(ep, TransportConfig{DeviceID: 0x0DA, BusLogger: logger})

	if err := transport.Send([PayloadSize]byte{}); !errors.Is(err, boom) {
		t.Fatalf("send error = %v", err)
	}
	events := logger.snapshot()
	if len(events) != 1 || events[0].Category != buslog.CategoryError {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Error.Context != "send" {
		t.Fatalf("error context = %q", events[0].Error.Context)
	}
}

func TestTransportReceive(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	peer := bus.Open()
	transport := NewTransport(bus.Open(), TransportConfig{DeviceID: 0x0DA})

	t.Run("timeout is not an error", func(t *testing.T) {
		frame, err := transport.Receive(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("timeout returned error: %v", err)
		}
		if frame != nil {
			t.Fatalf("timeout returned frame: %+v", frame)
		}
	})

	t.Run("delivers frames", func(t *testing.T) {
		sent, _ := NewFrame(0x150, []byte{0x01, 0x02})
		if err := peer.Send(sent); err != nil {
			t.Fatalf("peer send failed: %v", err)
		}
		frame, err := transport.Receive(time.Second)
		if err != nil {
			t.Fatalf("receive failed: %v", err)
		}
		if frame == nil || *frame != sent {
			t.Fatalf("frame = %+v, want %+v", frame, sent)
		}
	})

	t.Run("transport failure surfaces", func(t *testing.T) {
		closed := NewLoopbackBus()
		ep := closed.Open()
		closed.Close()
		tr := NewTransport(ep, TransportConfig{DeviceID: 0x0DA})
		if _, err := tr.Receive(time.Millisecond); !errors.Is(err, ErrClosed) {
			t.Fatalf("receive error = %v", err)
		}
	})
}
