package buslog

import (
	"time"
)

// Event represents a bus log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the controller run (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates frame flow for frame events.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Channel is the CAN interface name (e.g. "can0").
	Channel string `cbor:"5,keyasint,omitempty"`

	// Worker names the worker that produced the event, if any.
	Worker string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`
	Error       *ErrorEvent       `cbor:"9,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates a received frame.
	DirectionIn Direction = 0
	// DirectionOut indicates a transmitted frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a CAN frame sent or received.
	CategoryFrame Category = 0
	// CategoryState indicates a link or worker state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one CAN frame at the transport layer.
type FrameEvent struct {
	// ID is the arbitration identifier.
	ID uint32 `cbor:"1,keyasint"`

	// Len is the data length code (0..8).
	Len uint8 `cbor:"2,keyasint"`

	// Data is the frame payload (Len bytes significant).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Matched is the name of the filter rule that matched (inbound only,
	// set by the listener when dispatching).
	Matched string `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures link and worker lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityLink indicates a CAN link state change.
	StateEntityLink StateEntity = 0
	// StateEntityWorker indicates a worker state change.
	StateEntityWorker StateEntity = 1
	// StateEntityLifecycle indicates a restart/shutdown state change.
	StateEntityLifecycle StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityWorker:
		return "WORKER"
	case StateEntityLifecycle:
		return "LIFECYCLE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEvent captures errors at any layer.
type ErrorEvent struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Consecutive is the consecutive-failure count at the time of the event,
	// when the error came from a worker loop.
	Consecutive int `cbor:"3,keyasint,omitempty"`
}
