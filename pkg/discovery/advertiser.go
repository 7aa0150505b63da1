package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser publishes the kiosk's maintenance announcement.
type Advertiser interface {
	// Start registers the service with the given state.
	Start(info MaintenanceInfo) error

	// Update refreshes the TXT records (link state changes, mostly).
	Update(info MaintenanceInfo) error

	// Stop withdraws the announcement. Safe to call repeatedly.
	Stop()
}

// AdvertiserConfig configures an MDNSAdvertiser.
type AdvertiserConfig struct {
	// Instance is the advertised instance name. Empty derives
	// "kioskbus-<session prefix>" from the session ID at Start.
	Instance string

	// Port is the advertised port (default 7712).
	Port int

	// Interface restricts announcements to one network interface name.
	// Empty uses all interfaces.
	Interface string

	// Logger for operational output (optional).
	Logger *slog.Logger
}

// MDNSAdvertiser is the zeroconf-backed Advertiser.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates an advertiser; nothing is announced until Start.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &MDNSAdvertiser{config: config}
}

// Start registers the service. A running announcement is replaced.
func (a *MDNSAdvertiser) Start(info MaintenanceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instance := instanceName(a.config.Instance, info.SessionID)
	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		a.config.Port,
		EncodeTXT(info),
		a.interfaces(),
	)
	if err != nil {
		return fmt.Errorf("discovery: registering %s: %w", ServiceType, err)
	}
	a.server = server
	a.config.Logger.Info("maintenance announcement started",
		"instance", instance, "port", a.config.Port)
	return nil
}

// Update refreshes the TXT records of a running announcement. A no-op when
// the advertiser is stopped.
func (a *MDNSAdvertiser) Update(info MaintenanceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}
	a.server.SetText(EncodeTXT(info))
	return nil
}

// Stop withdraws the announcement.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.config.Logger.Info("maintenance announcement stopped")
}

// interfaces returns the interfaces to announce on; nil means all.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		a.config.Logger.Warn("announce interface not found, using all",
			"interface", a.config.Interface, "err", err)
		return nil
	}
	return []net.Interface{*iface}
}

// instanceName derives the advertised instance name.
func instanceName(configured, sessionID string) string {
	name := configured
	if name == "" {
		prefix := sessionID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		name = "kioskbus-" + prefix
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// NoopAdvertiser is the Advertiser used when discovery is disabled.
type NoopAdvertiser struct{}

// Start implements Advertiser.
func (NoopAdvertiser) Start(MaintenanceInfo) error { return nil }

// Update implements Advertiser.
func (NoopAdvertiser) Update(MaintenanceInfo) error { return nil }

// Stop implements Advertiser.
func (NoopAdvertiser) Stop() {}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Advertiser = NoopAdvertiser{}
)
