// Package worker contains the two long-lived bus workers.
//
// The Listener polls the transport, matches inbound frames against the
// filter rules, and invokes the bound handler; handlers enqueue onto the
// dispatch queue and never block on presentation work. The Responder emits
// status frames on a periodic schedule, preempted by an immediate-response
// latch, with bounded send retry.
//
// Both workers stop cooperatively: a stop flag checked once per poll
// interval, then a join bounded by a timeout. A worker that exceeds its
// consecutive-failure cap stops itself rather than retrying forever.
package worker
