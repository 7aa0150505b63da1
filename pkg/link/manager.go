package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// Link errors.
var (
	// ErrInterface is returned when the interface could not be brought to a
	// usable state after exhausting retries. It is fatal at startup.
	ErrInterface = errors.New("link: interface error")

	// ErrNotOpen is returned when the bus handle is requested before Open.
	ErrNotOpen = errors.New("link: bus not open")
)

// Default lifecycle tunables.
const (
	// DefaultUpRetries is the bound on attempts to bring the interface up.
	DefaultUpRetries = 3

	// DefaultUpRetryDelay is the fixed backoff between up attempts.
	DefaultUpRetryDelay = 2 * time.Second

	// DefaultErrorCooldown is the wait after bringing a faulted interface down.
	DefaultErrorCooldown = 5 * time.Second

	// DefaultStabilization is the wait after bringing the interface back up
	// before it is considered ready.
	DefaultStabilization = 5 * time.Second
)

// Config configures a Manager.
type Config struct {
	// Channel is the CAN interface name (e.g. "can0").
	Channel string

	// Bitrate is the arbitration bitrate in bits per second.
	Bitrate uint32

	// HardwareFilters are kernel acceptance filters applied once at socket
	// setup. They are a coarse pre-filter; software matching still runs.
	HardwareFilters []canbus.HardwareFilter

	// UpRetries bounds attempts to bring the interface up (default 3).
	UpRetries int

	// UpRetryDelay is the fixed backoff between up attempts (default 2s).
	UpRetryDelay time.Duration

	// ErrorCooldown is the wait between down and up during recovery (default 5s).
	ErrorCooldown time.Duration

	// Stabilization is the wait after recovery up (default 5s).
	Stabilization time.Duration

	// SessionID stamps bus log events (optional).
	SessionID string

	// Logger for operational output (optional, nil means slog.Default()).
	Logger *slog.Logger

	// BusLogger for structured state-change events (optional).
	BusLogger buslog.Logger
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.UpRetries <= 0 {
		c.UpRetries = DefaultUpRetries
	}
	if c.UpRetryDelay <= 0 {
		c.UpRetryDelay = DefaultUpRetryDelay
	}
	if c.ErrorCooldown <= 0 {
		c.ErrorCooldown = DefaultErrorCooldown
	}
	if c.Stabilization <= 0 {
		c.Stabilization = DefaultStabilization
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.BusLogger == nil {
		c.BusLogger = buslog.NoopLogger{}
	}
}

// DialFunc opens the bus handle once the interface is ready.
type DialFunc func() (canbus.Bus, error)

// Manager owns the physical CAN link: interface state, error recovery, and
// the bus handle. State writes are serialized by the Manager's mutex;
// State() may be called from any goroutine.
type Manager struct {
	mu sync.RWMutex

	config  Config
	netlink NetLink
	dial    DialFunc
	state   State
	bus     canbus.Bus
}

// NewManager creates a link Manager. netlink and dial default to the
// production SocketCAN implementations when nil.
func NewManager(config Config, netlink NetLink, dial DialFunc) *Manager {
	config.applyDefaults()
	m := &Manager{
		config:  config,
		netlink: netlink,
		dial:    dial,
		state:   StateDown,
	}
	if m.dial == nil {
		m.dial = platformDial(config)
	}
	if m.netlink == nil {
		m.netlink = NewNetLink()
	}
	return m
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Bus returns the open bus handle, or ErrNotOpen.
func (m *Manager) Bus() (canbus.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.bus == nil {
		return nil, ErrNotOpen
	}
	return m.bus, nil
}

// Open brings the link to a traffic-ready state: ensure the interface is up,
// run the advisory error-counter check, and dial the bus handle.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.EnsureUp(ctx); err != nil {
		return err
	}
	if err := m.CheckAndRecover(ctx); err != nil {
		return err
	}

	bus, err := m.dial()
	if err != nil {
		m.setState(StateDown, "dial failed")
		return fmt.Errorf("%w: open bus: %w", ErrInterface, err)
	}

	m.mu.Lock()
	m.bus = bus
	m.mu.Unlock()
	return nil
}

// EnsureUp checks the interface state and, if down, applies the configured
// bitrate and brings it up, retrying up to the configured bound with a fixed
// backoff. Exhausting retries is fatal: the returned error wraps ErrInterface.
func (m *Manager) EnsureUp(ctx context.Context) error {
	up, err := m.netlink.IsUp(m.config.Channel)
	if err != nil {
		return fmt.Errorf("%w: check %q: %w", ErrInterface, m.config.Channel, err)
	}
	if up {
		m.config.Logger.Debug("interface already up", "channel", m.config.Channel)
		m.setState(StateUp, "")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.config.UpRetries; attempt++ {
		lastErr = m.bringUp()
		if lastErr == nil {
			m.config.Logger.Debug("interface brought up", "channel", m.config.Channel, "attempt", attempt)
			m.setState(StateUp, "")
			return nil
		}
		m.config.Logger.Error("failed to bring up interface",
			"channel", m.config.Channel,
			"attempt", attempt,
			"retries", m.config.UpRetries,
			"err", lastErr)
		if attempt < m.config.UpRetries {
			if err := sleepCtx(ctx, m.config.UpRetryDelay); err != nil {
				return err
			}
		}
	}
	m.setState(StateDown, "up retries exhausted")
	return fmt.Errorf("%w: bring up %q after %d attempts: %w",
		ErrInterface, m.config.Channel, m.config.UpRetries, lastErr)
}

// bringUp applies the bitrate and sets the interface up.
func (m *Manager) bringUp() error {
	if m.config.Bitrate > 0 {
		if err := m.netlink.SetBitrate(m.config.Channel, m.config.Bitrate); err != nil {
			return err
		}
	}
	return m.netlink.SetUp(m.config.Channel)
}

// CheckAndRecover reads the interface error counters and, if either is
// nonzero, resets the interface: down, cooldown, up, stabilization wait.
// The check is advisory - it runs at initialization and on demand, never on
// the per-frame hot path. Counter read failures are logged, not fatal.
func (m *Manager) CheckAndRecover(ctx context.Context) error {
	rx, tx, err := m.netlink.ErrorCounters(m.config.Channel)
	if err != nil {
		m.config.Logger.Error("failed to read bus error counters",
			"channel", m.config.Channel, "err", err)
		return nil
	}
	if rx == 0 && tx == 0 {
		m.config.Logger.Debug("no bus errors detected", "channel", m.config.Channel)
		return nil
	}

	m.config.Logger.Debug("bus errors detected, resetting interface",
		"channel", m.config.Channel, "rx_errors", rx, "tx_errors", tx)
	m.setState(StateErrorDetected, fmt.Sprintf("rx=%d tx=%d", rx, tx))

	m.setState(StateRecovering, "")
	if err := m.netlink.SetDown(m.config.Channel); err != nil {
		m.config.Logger.Error("failed to bring down interface during recovery",
			"channel", m.config.Channel, "err", err)
	}
	if err := sleepCtx(ctx, m.config.ErrorCooldown); err != nil {
		return err
	}
	if err := m.EnsureUp(ctx); err != nil {
		return err
	}
	return sleepCtx(ctx, m.config.Stabilization)
}

// Shutdown closes the bus handle and marks the link down. It is safe to call
// multiple times.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	bus := m.bus
	m.bus = nil
	m.mu.Unlock()

	var err error
	if bus != nil {
		m.config.Logger.Info("shutting down CAN bus", "channel", m.config.Channel)
		err = bus.Close()
	}
	m.setState(StateDown, "shutdown")
	return err
}

// setState records a state transition and logs it.
func (m *Manager) setState(newState State, reason string) {
	m.mu.Lock()
	oldState := m.state
	m.state = newState
	m.mu.Unlock()

	if oldState == newState {
		return
	}
	m.config.BusLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: m.config.SessionID,
		Category:  buslog.CategoryState,
		Channel:   m.config.Channel,
		StateChange: &buslog.StateChangeEvent{
			Entity:   buslog.StateEntityLink,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// sleepCtx sleeps for d, returning early with ctx.Err() on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
