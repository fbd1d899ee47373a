//go:build linux

package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

func testApp(opts *gtkserver.Options) *app {
	s := gtkserver.New(opts.Config())
	s.SetLogger(gtkserver.NewLoggerTo(io.Discard, false))
	return &app{opts: opts, server: s, log: s.Logger()}
}

func TestServeStream(t *testing.T) {
	t.Run("One answer per line", func(t *testing.T) {
		a := testApp(&gtkserver.Options{Mode: gtkserver.ModeStdin})
		var out bytes.Buffer
		in := strings.NewReader("gtk_server_version\nno_such_call\ngtk_server_echo hi\n")
		if err := a.serveStream(in, &out); err != nil {
			t.Fatalf("serveStream failed: %v", err)
		}
		expected := gtkserver.Version + "\n-1\nhi\n"
		if out.String() != expected {
			t.Errorf("Expected %q, got %q", expected, out.String())
		}
	})

	t.Run("Init string comes first", func(t *testing.T) {
		a := testApp(&gtkserver.Options{Mode: gtkserver.ModeStdin, Init: "ready"})
		var out bytes.Buffer
		if err := a.serveStream(strings.NewReader("gtk_server_echo x\n"), &out); err != nil {
			t.Fatalf("serveStream failed: %v", err)
		}
		if out.String() != "ready\nx\n" {
			t.Errorf("Expected init then answer, got %q", out.String())
		}
	})

	t.Run("Prefix and suffix", func(t *testing.T) {
		a := testApp(&gtkserver.Options{Mode: gtkserver.ModeStdin, Pre: "<", Post: ">"})
		var out bytes.Buffer
		if err := a.serveStream(strings.NewReader("gtk_server_echo x\n"), &out); err != nil {
			t.Fatalf("serveStream failed: %v", err)
		}
		if out.String() != "<x>\n" {
			t.Errorf("Expected \"<x>\\n\", got %q", out.String())
		}
	})
}

func TestShutdownOrder(t *testing.T) {
	a := testApp(&gtkserver.Options{})
	var order []int
	a.onShutdown(func() { order = append(order, 1) })
	a.onShutdown(func() { order = append(order, 2) })
	a.shutdown()
	a.shutdown()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("Expected cleanups [2 1] once, got %v", order)
	}
}

func TestConfigFailureIsFatal(t *testing.T) {
	a := testApp(&gtkserver.Options{Cfg: filepath.Join(t.TempDir(), "missing.cfg")})
	var got *gtkserver.FatalError
	a.onFatal = func(err *gtkserver.FatalError) { got = err }

	if a.loadConfig() {
		t.Fatal("Expected loading a missing configuration to fail")
	}
	if got == nil || got.Message == "" {
		t.Errorf("Expected the fatal handler to receive the error, got %v", got)
	}
}
