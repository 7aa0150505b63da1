// Package canbus provides the CAN frame type, the Bus abstraction, and the
// Transport used by the kiosk workers.
//
// Bus has two implementations: SocketCAN over raw AF_CAN sockets (Linux) and
// an in-memory LoopbackBus for tests. Transport wraps a Bus with the kiosk's
// fixed arbitration identifier and structured bus event logging; it is the
// only type the workers talk to.
//
// Only classical CAN with standard (11-bit) identifiers is supported - that
// is all the kiosk bus carries.
package canbus
