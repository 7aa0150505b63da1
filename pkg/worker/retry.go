package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// Default send retry tunables.
const (
	// DefaultSendAttempts bounds transport send attempts per frame.
	DefaultSendAttempts = 3

	// DefaultSendRetryDelay is the wait between send attempts.
	DefaultSendRetryDelay = 1 * time.Second
)

// RetryPolicy bounds the send retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of send attempts (default 3).
	MaxAttempts int

	// Delay is the fixed wait between attempts (default 1s).
	Delay time.Duration
}

// applyDefaults fills zero values with defaults.
func (p *RetryPolicy) applyDefaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultSendAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultSendRetryDelay
	}
}

// sendWithRetry attempts transport.Send up to policy.MaxAttempts times,
// waiting policy.Delay between attempts. The first failure logs at warning,
// intermediate failures at error, and exhaustion produces exactly one
// consolidated critical entry. The error never propagates: a frame that
// cannot be sent is dropped and the caller's loop continues.
//
// Returns true if a send attempt succeeded. stop aborts the backoff wait
// early (counted as a failure, not a success).
func sendWithRetry(transport *canbus.Transport, payload [canbus.PayloadSize]byte, policy RetryPolicy, stop <-chan struct{}, logger *slog.Logger) bool {
	policy.applyDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = transport.Send(payload)
		if lastErr == nil {
			return true
		}
		if attempt == policy.MaxAttempts {
			// No retry follows; exhaustion is reported once, below.
			break
		}
		if attempt == 1 {
			logger.Warn("send failed, retrying",
				"attempt", attempt, "max_attempts", policy.MaxAttempts, "err", lastErr)
		} else {
			logger.Error("send failed, retrying",
				"attempt", attempt, "max_attempts", policy.MaxAttempts, "err", lastErr)
		}
		if !sleepOrStop(stop, policy.Delay) {
			return false
		}
	}
	logger.Log(context.Background(), LevelCritical, "send failed after all attempts, frame dropped",
		"attempts", policy.MaxAttempts, "err", lastErr)
	return false
}
