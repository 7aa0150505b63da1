// Package buslog provides structured bus event logging for the kiosk
// controller.
//
// This package defines the Logger interface and Event types for capturing
// CAN-level events (frames in/out, link state changes, worker errors). It is
// separate from operational logging (slog) - bus capture provides a complete
// machine-readable event trace for debugging a deployed kiosk after the fact.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.BusLogger = buslog.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.BusLogger, _ = buslog.NewFileLogger("/var/log/kioskbus/bus.klog")
//
//	// Both: use MultiLogger
//	cfg.BusLogger = buslog.NewMultiLogger(
//	    buslog.NewSlogAdapter(slog.Default()),
//	    buslog.NewFileLogger("/var/log/kioskbus/bus.klog"),
//	)
//
// # Event Types
//
// Events carry one type-specific payload:
//   - Frame: one CAN frame sent or received (FrameEvent)
//   - StateChange: link or worker lifecycle transitions (StateChangeEvent)
//   - Error: transport and worker errors (ErrorEvent)
//
// # File Format
//
// Log files use CBOR encoding with .klog extension, one event per record.
package buslog
