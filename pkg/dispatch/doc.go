// Package dispatch routes matched CAN frames to handlers and marshals the
// resulting work onto the single-threaded presentation loop.
//
// Handler dispatch is over a closed set of message kinds known at
// configuration time; filter rule names bind to kinds when the handler table
// is built, so no string-keyed lookup happens per frame.
//
// The Queue is the only bridge between the background bus workers and
// presentation state: anything may enqueue from any goroutine, and commands
// execute strictly in FIFO order on the presentation loop, never
// concurrently with each other.
package dispatch
