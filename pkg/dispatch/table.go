package dispatch

import (
	"fmt"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// HandlerFunc processes one matched frame. Handlers run on the listener
// goroutine and must not block: their job is to enqueue work onto the Queue.
type HandlerFunc func(id uint32, data [canbus.PayloadSize]byte)

// HandlerTable maps message kinds to handlers. It is built once per session
// and never mutated concurrently with dispatch.
type HandlerTable struct {
	handlers map[MessageKind]HandlerFunc
}

// NewHandlerTable builds a table from the given handlers. Every kind named
// by the active rule set must be present; Bind checks this.
func NewHandlerTable(handlers map[MessageKind]HandlerFunc) *HandlerTable {
	copied := make(map[MessageKind]HandlerFunc, len(handlers))
	for k, h := range handlers {
		copied[k] = h
	}
	return &HandlerTable{handlers: copied}
}

// Lookup returns the handler for a kind.
func (t *HandlerTable) Lookup(kind MessageKind) (HandlerFunc, bool) {
	h, ok := t.handlers[kind]
	return h, ok
}

// Bind validates that every rule name resolves to a kind with a registered
// handler and returns the name-to-kind binding the listener dispatches with.
func (t *HandlerTable) Bind(ruleNames []string) (map[string]MessageKind, error) {
	binding := make(map[string]MessageKind, len(ruleNames))
	for _, name := range ruleNames {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if _, ok := t.handlers[kind]; !ok {
			return nil, fmt.Errorf("dispatch: no handler registered for kind %q", kind)
		}
		binding[name] = kind
	}
	return binding, nil
}
