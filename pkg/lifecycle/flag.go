package lifecycle

// Flag is the orchestrator's progress state. Exactly one teardown can be in
// flight at a time.
type Flag int

const (
	// FlagIdle means no restart or shutdown is in progress.
	FlagIdle Flag = iota

	// FlagRestartInProgress means a restart teardown is running.
	FlagRestartInProgress

	// FlagShutdownInProgress means a shutdown teardown is running.
	FlagShutdownInProgress
)

// String implements fmt.Stringer.
func (f Flag) String() string {
	switch f {
	case FlagIdle:
		return "Idle"
	case FlagRestartInProgress:
		return "RestartInProgress"
	case FlagShutdownInProgress:
		return "ShutdownInProgress"
	default:
		return "Unknown"
	}
}
