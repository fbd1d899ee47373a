package gtkserver

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseOptions(t *testing.T) {
	t.Run("Dash is optional", func(t *testing.T) {
		o, err := ParseOptions([]string{"stdin", "-cfg=my.cfg", "nonl", "pre=<"}, nil, nil)
		if err != nil {
			t.Fatalf("ParseOptions failed: %v", err)
		}
		if o.Mode != ModeStdin || o.Cfg != "my.cfg" || !o.NoNewline || o.Pre != "<" {
			t.Errorf("Unexpected options %+v", o)
		}
	})

	t.Run("TCP with connection limit", func(t *testing.T) {
		o, err := ParseOptions([]string{"tcp=localhost:5000:3"}, nil, nil)
		if err != nil {
			t.Fatalf("ParseOptions failed: %v", err)
		}
		if o.Mode != ModeTCP || o.Address != "localhost:5000" || o.MaxConns != 3 {
			t.Errorf("Unexpected options %+v", o)
		}
	})

	t.Run("Plain TCP address", func(t *testing.T) {
		o, err := ParseOptions([]string{"-tcp=127.0.0.1:4000"}, nil, nil)
		if err != nil {
			t.Fatalf("ParseOptions failed: %v", err)
		}
		if o.Address != "127.0.0.1:4000" || o.MaxConns != 0 {
			t.Errorf("Unexpected options %+v", o)
		}
	})

	t.Run("FIFO and UDP", func(t *testing.T) {
		o, _ := ParseOptions([]string{"fifo=/tmp/gtk.pipe"}, nil, nil)
		if o.Mode != ModeFIFO || o.Address != "/tmp/gtk.pipe" {
			t.Errorf("Unexpected fifo options %+v", o)
		}
		o, _ = ParseOptions([]string{"udp=localhost:6000"}, nil, nil)
		if o.Mode != ModeUDP || o.Mode.String() != "udp" {
			t.Errorf("Unexpected udp options %+v", o)
		}
	})

	t.Run("Only one transport", func(t *testing.T) {
		if _, err := ParseOptions([]string{"stdin", "udp=localhost:6000"}, nil, nil); err == nil {
			t.Error("Expected an error for two transports")
		}
	})

	t.Run("Bad TCP address", func(t *testing.T) {
		if _, err := ParseOptions([]string{"tcp=nohost"}, nil, nil); err == nil {
			t.Error("Expected an error for an address without port")
		}
		if _, err := ParseOptions([]string{"tcp=h:1:many"}, nil, nil); err == nil {
			t.Error("Expected an error for a bad connection limit")
		}
	})

	t.Run("Unknown option", func(t *testing.T) {
		if _, err := ParseOptions([]string{"frobnicate"}, nil, nil); err == nil {
			t.Error("Expected an error for an unknown option")
		}
	})

	t.Run("Base values are kept", func(t *testing.T) {
		base := &Options{Post: ">", Signal: 10}
		o, err := ParseOptions([]string{"stdin"}, base, nil)
		if err != nil {
			t.Fatalf("ParseOptions failed: %v", err)
		}
		if o.Post != ">" || o.Signal != 10 {
			t.Errorf("Expected base values, got %+v", o)
		}
		if base.Mode != ModeNone {
			t.Error("Expected base to stay unchanged")
		}
	})
}

func TestOptionsConfig(t *testing.T) {
	o := &Options{Mode: ModeTCP, Pre: "a", Post: "b", Handle: true, Signal: 15, EscapeChars: "'"}
	c := o.Config()
	if c.Prefix != "a" || c.Suffix != "b" || !c.UseHandle || c.ExitSignal != 15 || c.EscapeChars != "'" {
		t.Errorf("Unexpected config %+v", c)
	}
	if c.EchoExit {
		t.Error("Expected no exit echo over TCP")
	}
	if !(&Options{Mode: ModeStdin}).Config().EchoExit {
		t.Error("Expected exit echo on stdin")
	}
	if (&Options{}).Config().EscapeChars != DefaultEscapeChars {
		t.Error("Expected default escape set")
	}
}

func TestLoadSettings(t *testing.T) {
	t.Run("Missing file is empty", func(t *testing.T) {
		st, err := LoadSettings(filepath.Join(t.TempDir(), "settings.toml"))
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if st.Cfg != "" || st.Path != "" {
			t.Errorf("Expected empty settings, got %+v", st)
		}
	})

	t.Run("Values become option defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		text := "cfg = \"/etc/my.cfg\"\npre = \"[\"\nhandle = true\nsignal = 12\nline_count = true\n"
		os.WriteFile(path, []byte(text), 0o644)

		st, err := LoadSettings(path)
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if st.Path != path {
			t.Errorf("Expected path %s, got %s", path, st.Path)
		}
		o, err := ParseOptions([]string{"pre=<"}, st.Options(), nil)
		if err != nil {
			t.Fatalf("ParseOptions failed: %v", err)
		}
		if o.Cfg != "/etc/my.cfg" || !o.Handle || o.Signal != 12 || !o.LineCount {
			t.Errorf("Expected settings as defaults, got %+v", o)
		}
		if o.Pre != "<" {
			t.Errorf("Expected the command line to win, got %q", o.Pre)
		}
	})

	t.Run("Parse error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		os.WriteFile(path, []byte("cfg = \n"), 0o644)
		if _, err := LoadSettings(path); err == nil {
			t.Error("Expected a parse error")
		}
	})

	t.Run("Escape set too long", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "settings.toml")
		os.WriteFile(path, []byte("escape_chars = \"abcdefghijklmnopq\"\n"), 0o644)
		if _, err := LoadSettings(path); err == nil {
			t.Error("Expected an error for more than 16 escape characters")
		}
	})
}
