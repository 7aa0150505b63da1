package worker

import (
	"bytes"
	"errors"
	"log/slog"
	"runtime"
	"strconv"
	"time"
)

// Worker errors.
var (
	// ErrJoinTimeout is returned when a worker did not exit within the stop
	// join timeout. Callers log it and continue; the worker goroutine will
	// still exit at its next stop-flag check.
	ErrJoinTimeout = errors.New("worker: join timed out")
)

// Default worker tunables.
const (
	// DefaultPollInterval is the sleep between loop iterations.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultReceiveTimeout is the transport receive timeout per iteration.
	DefaultReceiveTimeout = 1 * time.Second

	// DefaultFailureCap is the number of consecutive transport failures
	// after which a worker stops itself.
	DefaultFailureCap = 5

	// DefaultStopJoinTimeout bounds the wait for a worker to exit on Stop.
	DefaultStopJoinTimeout = 2 * time.Second
)

// LevelCritical marks consolidated failures that exhausted their retry
// budget. slog has no built-in level above Error.
const LevelCritical = slog.LevelError + 4

// goid returns the current goroutine's id, parsed from the runtime stack
// header ("goroutine N [running]:"). Used only to detect a worker stopping
// itself from its own goroutine, never for synchronization.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// sleepOrStop sleeps for d, returning false early if stop closes.
func sleepOrStop(stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
