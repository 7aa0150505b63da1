// Package discovery announces the kiosk on the maintenance network.
//
// Unattended kiosks are fleet-managed; the advertiser publishes a
// _kioskbus._tcp mDNS service whose TXT records carry the session ID,
// build version, CAN device identifier and current link state, so a
// technician can find and triage units without touching the bus.
package discovery
