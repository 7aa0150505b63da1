package buslog

import (
	"os"
	"sync"
)

// FileLogger appends events to a CBOR record file, one record per event.
// A single FileLogger is shared by every component of a session; Log is safe
// for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewFileLogger opens the record file at path for appending, creating it
// (mode 0644) if needed. Records from earlier sessions are preserved.
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: file}, nil
}

// Log appends one event. The event is encoded outside the lock; only the
// write itself is serialized. Encode and write errors are dropped, event
// logging is best effort.
func (l *FileLogger) Log(event Event) {
	raw, err := EncodeEvent(event)
	if err != nil {
		return
	}
	l.mu.Lock()
	if !l.closed {
		_, _ = l.file.Write(raw)
	}
	l.mu.Unlock()
}

// Close closes the record file. Log calls after Close become no-ops, and
// closing twice is harmless.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
