// Package lifecycle orchestrates restart and shutdown of the controller.
//
// A single flag guards against overlapping teardowns: while a restart or
// shutdown is in progress, further requests are logged and rejected. The
// teardown itself runs on its own goroutine in a fixed order, ending with a
// terminal action posted back to the presentation loop. Workers never hold a
// reference to the orchestrator; requests reach it only through the queue or
// the signal handler.
package lifecycle
