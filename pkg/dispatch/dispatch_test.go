package dispatch

import (
	"errors"
	"testing"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

func TestParseKind(t *testing.T) {
	cases := map[string]MessageKind{
		"control": KindControl,
		"timer":   KindTimer,
		"hint":    KindHint,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			kind, err := ParseKind(name)
			if err != nil {
				t.Fatalf("ParseKind(%q) failed: %v", name, err)
			}
			if kind != want {
				t.Fatalf("kind = %v, want %v", kind, want)
			}
			if kind.String() != name {
				t.Fatalf("String() = %q, want %q", kind.String(), name)
			}
		})
	}

	if _, err := ParseKind("telemetry"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown name error = %v", err)
	}
	if MessageKind(99).String() != "unknown" {
		t.Fatal("unknown kind String() wrong")
	}

	// Status is outbound only: it has a name but no rule binding.
	if KindStatus.String() != "status" {
		t.Fatal("status kind String() wrong")
	}
	if _, err := ParseKind("status"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("status bound to a handler kind: %v", err)
	}
}

func TestHandlerTableBind(t *testing.T) {
	table := NewHandlerTable(map[MessageKind]HandlerFunc{
		KindControl: func(uint32, [canbus.PayloadSize]byte) {},
		KindTimer:   func(uint32, [canbus.PayloadSize]byte) {},
	})

	t.Run("binds registered kinds", func(t *testing.T) {
		binding, err := table.Bind([]string{"control", "timer"})
		if err != nil {
			t.Fatalf("bind failed: %v", err)
		}
		if binding["control"] != KindControl || binding["timer"] != KindTimer {
			t.Fatalf("binding = %v", binding)
		}
	})

	t.Run("unknown rule name", func(t *testing.T) {
		if _, err := table.Bind([]string{"bogus"}); !errors.Is(err, ErrUnknownKind) {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("kind without handler", func(t *testing.T) {
		if _, err := table.Bind([]string{"hint"}); err == nil {
			t.Fatal("bind accepted a kind with no handler")
		}
	})
}

func TestHandlerTableLookup(t *testing.T) {
	called := false
	table := NewHandlerTable(map[MessageKind]HandlerFunc{
		KindControl: func(uint32, [canbus.PayloadSize]byte) { called = true },
	})

	h, ok := table.Lookup(KindControl)
	if !ok {
		t.Fatal("registered handler not found")
	}
	h(0x0DA, [canbus.PayloadSize]byte{})
	if !called {
		t.Fatal("handler not invoked")
	}

	if _, ok := table.Lookup(KindHint); ok {
		t.Fatal("unregistered kind found")
	}
}
