// Package link manages the lifecycle of the physical CAN interface.
//
// The Manager owns the bus handle: it brings the interface to a
// send/receive-ready state (applying bitrate and kernel filters), detects
// accumulated bus error counters and recovers with a down/cooldown/up cycle,
// and tears the handle down on shutdown. State transitions are written only
// by the Manager; any goroutine may read the current state.
package link
