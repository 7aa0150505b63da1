package canbus

import (
	"time"

	"github.com/kioskbus/kioskbus-go/pkg/buslog"
)

// Transport is the frame-level interface the workers use. It binds a Bus to
// the kiosk's fixed arbitration identifier and records every frame as a bus
// log event.
type Transport struct {
	bus       Bus
	deviceID  uint32
	channel   string
	sessionID string
	busLogger buslog.Logger
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// DeviceID is the fixed arbitration identifier used for every outbound
	// frame.
	DeviceID uint32

	// Channel is the CAN interface name, used for log events only.
	Channel string

	// SessionID stamps log events with the controller run (optional).
	SessionID string

	// BusLogger receives frame events (optional).
	BusLogger buslog.Logger
}

// NewTransport creates a Transport over the given bus.
func NewTransport(bus Bus, config TransportConfig) *Transport {
	logger := config.BusLogger
	if logger == nil {
		logger = buslog.NoopLogger{}
	}
	return &Transport{
		bus:       bus,
		deviceID:  config.DeviceID,
		channel:   config.Channel,
		sessionID: config.SessionID,
		busLogger: logger,
	}
}

// DeviceID returns the fixed outbound arbitration identifier.
func (t *Transport) DeviceID() uint32 {
	return t.deviceID
}

// Send transmits one frame with the configured identifier and the given
// 8-byte payload.
func (t *Transport) Send(payload [PayloadSize]byte) error {
	frame := Frame{ID: t.deviceID, Len: PayloadSize, Data: payload}
	err := t.bus.Send(frame)
	if err != nil {
		t.busLogger.Log(buslog.Event{
			Timestamp: time.Now(),
			SessionID: t.sessionID,
			Category:  buslog.CategoryError,
			Channel:   t.channel,
			Error:     &buslog.ErrorEvent{Message: err.Error(), Context: "send"},
		})
		return err
	}
	t.logFrame(frame, buslog.DirectionOut, "")
	return nil
}

// Receive waits up to timeout for one frame. A timeout returns (nil, nil):
// it is a normal outcome, not an error.
func (t *Transport) Receive(timeout time.Duration) (*Frame, error) {
	frame, ok, err := t.bus.Receive(timeout)
	if err != nil {
		t.busLogger.Log(buslog.Event{
			Timestamp: time.Now(),
			SessionID: t.sessionID,
			Category:  buslog.CategoryError,
			Channel:   t.channel,
			Error:     &buslog.ErrorEvent{Message: err.Error(), Context: "receive"},
		})
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	// Inbound frames are logged by the listener once matching has run, so
	// the trace records which rule (if any) each frame hit.
	return &frame, nil
}

func (t *Transport) logFrame(frame Frame, dir buslog.Direction, matched string) {
	data := make([]byte, frame.Len)
	copy(data, frame.Data[:frame.Len])
	t.busLogger.Log(buslog.Event{
		Timestamp: time.Now(),
		SessionID: t.sessionID,
		Direction: dir,
		Category:  buslog.CategoryFrame,
		Channel:   t.channel,
		Frame: &buslog.FrameEvent{
			ID:      frame.ID,
			Len:     frame.Len,
			Data:    data,
			Matched: matched,
		},
	})
}
