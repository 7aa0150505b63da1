package canbus

import (
	"errors"
	"time"
)

// Bus errors.
var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("canbus: bus closed")

	// ErrTransport wraps link-level send/receive failures. Callers test with
	// errors.Is(err, ErrTransport) and retry or reset the bus.
	ErrTransport = errors.New("canbus: transport error")
)

// HardwareFilter is one kernel-level acceptance filter. A frame passes when
// (frame.ID & Mask) == (ID & Mask). Hardware filters are a coarse pre-filter
// only; software rule matching still runs on every received frame.
type HardwareFilter struct {
	ID   uint32
	Mask uint32
}

// Bus is a classical CAN bus endpoint.
//
// Receive blocks up to timeout and returns ok=false when no frame arrived in
// time - a timeout is a normal outcome, not an error. Implementations must be
// safe for one concurrent sender plus one concurrent receiver.
type Bus interface {
	// Send transmits one frame. A non-nil error always wraps ErrTransport or
	// ErrClosed; frames are never silently dropped.
	Send(frame Frame) error

	// Receive waits up to timeout for one frame.
	Receive(timeout time.Duration) (Frame, bool, error)

	// Close releases the bus handle. Close is idempotent.
	Close() error
}
