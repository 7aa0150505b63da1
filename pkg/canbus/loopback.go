package canbus

import (
	"sync"
	"time"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations.
// Multiple endpoints opened from the same bus can exchange frames.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*loopEndpoint]struct{})}
}

// Open creates a new endpoint attached to the bus.
func (b *LoopbackBus) Open() Bus {
	ep := &loopEndpoint{
		bus: b,
		ch:  make(chan Frame, 64),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ep.dead = true
		close(ep.ch)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.closeNoLock()
	}
	b.endpoints = nil
	b.mu.Unlock()
	return nil
}

type loopEndpoint struct {
	bus *LoopbackBus
	ch  chan Frame

	// mu guards dead, sendErr and the close of ch. deliver takes it so a
	// frame is never sent into a channel that a concurrent Close has closed.
	mu   sync.Mutex
	dead bool

	// sendErr, when set, makes Send fail. Tests use this to exercise the
	// retry and self-stop paths.
	sendErr error
}

// FailSends makes subsequent Send calls on the endpoint return err.
// Pass nil to restore normal operation.
func FailSends(b Bus, err error) {
	if ep, ok := b.(*loopEndpoint); ok {
		ep.mu.Lock()
		ep.sendErr = err
		ep.mu.Unlock()
	}
}

// Send broadcasts the frame to all other endpoints on the same bus.
func (e *loopEndpoint) Send(frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.sendErr != nil {
		err := e.sendErr
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	// Snapshot endpoints under bus lock to avoid holding it while sending.
	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*loopEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		t.deliver(frame)
	}
	return nil
}

// deliver hands the frame to one receiver. A concurrently closed endpoint is
// skipped; a full receive buffer drops the frame, like a saturated socket
// queue.
func (e *loopEndpoint) deliver(frame Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	select {
	case e.ch <- frame:
	default:
	}
}

// Receive waits up to timeout for the next frame.
func (e *loopEndpoint) Receive(timeout time.Duration) (Frame, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f, ok := <-e.ch:
		if !ok {
			return Frame{}, false, ErrClosed
		}
		return f, true, nil
	case <-timer.C:
		return Frame{}, false, nil
	}
}

// Close detaches the endpoint from the bus and closes its channel.
func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	e.closeNoLock()
	e.bus.mu.Unlock()
	return nil
}

func (e *loopEndpoint) closeNoLock() {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	close(e.ch)
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.mu.Unlock()
}
