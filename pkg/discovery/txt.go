package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Service constants for the maintenance announcement.
const (
	// ServiceType is the advertised mDNS service type.
	ServiceType = "_kioskbus._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the advertised port when none is configured.
	DefaultPort = 7712

	// MaxInstanceNameLen caps the advertised instance name per RFC 6763.
	MaxInstanceNameLen = 63
)

// MaintenanceInfo is the kiosk state carried in the TXT records.
type MaintenanceInfo struct {
	// SessionID identifies the current controller run.
	SessionID string

	// Version is the build version string.
	Version string

	// DeviceID is the kiosk's CAN arbitration identifier.
	DeviceID uint32

	// LinkState is the current link manager state string.
	LinkState string
}

// EncodeTXT renders the info as mDNS TXT key=value strings.
func EncodeTXT(info MaintenanceInfo) []string {
	return []string{
		"session=" + info.SessionID,
		"version=" + info.Version,
		fmt.Sprintf("device=0x%03X", info.DeviceID),
		"link=" + info.LinkState,
	}
}

// DecodeTXT parses TXT records produced by EncodeTXT. Unknown keys are
// ignored so record sets can grow.
func DecodeTXT(records []string) (MaintenanceInfo, error) {
	var info MaintenanceInfo
	for _, record := range records {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		switch key {
		case "session":
			info.SessionID = value
		case "version":
			info.Version = value
		case "device":
			id, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 32)
			if err != nil {
				return MaintenanceInfo{}, fmt.Errorf("discovery: bad device id %q: %w", value, err)
			}
			info.DeviceID = uint32(id)
		case "link":
			info.LinkState = value
		}
	}
	return info, nil
}
