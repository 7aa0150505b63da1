package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a filter rule names a handler kind that
// does not exist. This is a configuration error surfaced at startup.
var ErrUnknownKind = errors.New("dispatch: unknown message kind")

// MessageKind identifies one of the closed set of inbound message types the
// kiosk understands. Filter rule names bind to kinds at configuration time.
type MessageKind uint8

const (
	// KindControl selects a folder (language) and video index to play.
	KindControl MessageKind = iota + 1

	// KindTimer sets or updates the countdown from the bus
	// (payload carries seconds as a high/low byte pair).
	KindTimer

	// KindHint triggers a hint display.
	KindHint

	// KindStatus is the outbound status report. It is never dispatched;
	// the responder emits it.
	KindStatus
)

// String returns the kind's configuration name.
func (k MessageKind) String() string {
	switch k {
	case KindControl:
		return "control"
	case KindTimer:
		return "timer"
	case KindHint:
		return "hint"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ParseKind maps a filter rule name to its MessageKind.
func ParseKind(name string) (MessageKind, error) {
	switch name {
	case "control":
		return KindControl, nil
	case "timer":
		return KindTimer, nil
	case "hint":
		return KindHint, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}
