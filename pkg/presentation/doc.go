// Package presentation holds the kiosk's presentation state and the
// single-threaded loop that mutates it.
//
// All presentation work runs on the Loop goroutine: bus handlers enqueue
// commands onto the dispatch queue, the loop drains them once per tick, and
// registered tickers (countdown, hint expiry) advance on the same goroutine.
// The Surface interface is the boundary to the actual playback collaborator;
// rendering is outside this package.
package presentation
