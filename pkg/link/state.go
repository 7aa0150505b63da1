package link

// State represents the CAN link state.
type State uint8

const (
	// StateDown indicates the interface is not ready for traffic.
	StateDown State = iota

	// StateUp indicates the interface is up and traffic-ready.
	StateUp

	// StateErrorDetected indicates nonzero bus error counters were observed.
	StateErrorDetected

	// StateRecovering indicates a down/cooldown/up recovery cycle is running.
	StateRecovering
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateUp:
		return "UP"
	case StateErrorDetected:
		return "ERROR_DETECTED"
	case StateRecovering:
		return "RECOVERING"
	default:
		return "UNKNOWN"
	}
}
