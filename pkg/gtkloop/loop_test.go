package gtkloop

import (
	"runtime"
	"testing"

	"github.com/gotk3/gotk3/gtk"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

func newLoop(t *testing.T) *Loop {
	t.Helper()
	runtime.LockOSThread()
	l, err := New()
	if err != nil {
		t.Skipf("no display available: %v", err)
	}
	return l
}

func TestLoopSignals(t *testing.T) {
	l := newLoop(t)

	btn, err := gtk.ButtonNewWithLabel("Click")
	if err != nil {
		t.Fatalf("Cannot create button: %v", err)
	}
	widget := btn.Native()

	var events []gtkserver.Event
	record := func(ev gtkserver.Event) { events = append(events, ev) }

	t.Run("Generic signal reports response", func(t *testing.T) {
		events = nil
		opts := gtkserver.ConnectOptions{Handler: gtkserver.HandlerGeneric, Response: "pressed", UseResponse: true}
		id, err := l.Connect(widget, "clicked", opts, record)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		btn.Clicked()
		if len(events) != 1 {
			t.Fatalf("Expected 1 event, got %d", len(events))
		}
		if events[0].Text != "pressed" || events[0].Widget != widget {
			t.Errorf("Expected pressed from %d, got %q from %d", widget, events[0].Text, events[0].Widget)
		}
		if !l.Disconnect(widget, id) {
			t.Errorf("Expected disconnect to succeed")
		}
		btn.Clicked()
		if len(events) != 1 {
			t.Errorf("Expected no event after disconnect, got %d", len(events))
		}
	})

	t.Run("Unknown signal", func(t *testing.T) {
		if _, err := l.Connect(widget, "no-such-signal", gtkserver.ConnectOptions{}, record); err == nil {
			t.Errorf("Expected an error for an unknown signal")
		}
	})

	t.Run("Disconnect unknown id", func(t *testing.T) {
		if l.Disconnect(widget, 9999) {
			t.Errorf("Expected disconnect of an unknown id to fail")
		}
	})

	t.Run("Timer removal", func(t *testing.T) {
		id := l.AddTimeout(1000, widget, "clicked")
		if !l.RemoveTimeout(id) {
			t.Errorf("Expected timer %d to be removed", id)
		}
		if l.RemoveTimeout(id) {
			t.Errorf("Expected second removal to fail")
		}
	})
}
