package gtkserver

import "testing"

func TestFormatter(t *testing.T) {
	t.Run("Prefix handle and suffix", func(t *testing.T) {
		f := NewFormatter(DefaultConfig())
		if got := f.Format("h1 ", "<", "body", ">", false); got != "<h1 body>\n" {
			t.Errorf("Expected \"<h1 body>\\n\", got %q", got)
		}
	})

	t.Run("No newline", func(t *testing.T) {
		c := DefaultConfig()
		c.NoNewline = true
		if got := NewFormatter(c).Format("", "", "ok", "", false); got != "ok" {
			t.Errorf("Expected \"ok\", got %q", got)
		}
	})

	t.Run("Escaping only applies to string results", func(t *testing.T) {
		c := DefaultConfig()
		c.Escaping = true
		f := NewFormatter(c)
		if got := f.Format("", "", "a\tb", "", true); got != "\"a\\tb\"\n" {
			t.Errorf("Expected quoted escaped body, got %q", got)
		}
		if got := f.Format("", "", "a\tb", "", false); got != "a\tb\n" {
			t.Errorf("Expected raw body, got %q", got)
		}
	})

	t.Run("Quote and newline in a string result", func(t *testing.T) {
		c := DefaultConfig()
		c.Escaping = true
		got := NewFormatter(c).Format("", "", "a\"b\nc\x01", "", true)
		if got != `"a\"b\nc\x01"`+"\n" {
			t.Errorf("Expected escaped and quoted body, got %q", got)
		}
	})

	t.Run("Escaping disabled", func(t *testing.T) {
		f := NewFormatter(DefaultConfig())
		if got := f.Format("", "", "x\"y", "", true); got != "x\"y\n" {
			t.Errorf("Expected raw body, got %q", got)
		}
	})

	t.Run("Line count", func(t *testing.T) {
		c := DefaultConfig()
		c.LineCount = true
		f := NewFormatter(c)
		if got := f.Format("", "", "one\ntwo", "", false); got != "2\none\ntwo\n" {
			t.Errorf("Expected line count 2, got %q", got)
		}
		if got := f.Format("", "", "single", "", false); got != "1\nsingle\n" {
			t.Errorf("Expected line count 1, got %q", got)
		}
	})

	t.Run("Line count only looks at the body", func(t *testing.T) {
		c := DefaultConfig()
		c.LineCount = true
		c.Escaping = true
		f := NewFormatter(c)
		if got := f.Format("", "P\n", "x", "", false); got != "1\nP\nx\n" {
			t.Errorf("Expected prefix newline not counted, got %q", got)
		}
		if got := f.Format("", "", "a\nb", "", true); got != "2\n\"a\\nb\"\n" {
			t.Errorf("Expected escaped newline counted, got %q", got)
		}
	})

	t.Run("Buffer is reused", func(t *testing.T) {
		f := NewFormatter(DefaultConfig())
		f.Format("", "", "a long first answer", "", false)
		if got := f.Format("", "", "b", "", false); got != "b\n" {
			t.Errorf("Expected \"b\\n\", got %q", got)
		}
	})
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		set      string
		expected string
	}{
		{"Default set", "a\tb\n\"c\"\\", DefaultEscapeChars, `a\tb\n\"c\"\\`},
		{"Bell", "\a", DefaultEscapeChars, `\a`},
		{"Control bytes as hex", "x\x01y", DefaultEscapeChars, `x\x01y`},
		{"High bytes as hex", "é", DefaultEscapeChars, `\xC3\xA9`},
		{"Custom set", "a'b", "'", `a\'b`},
		{"Newline outside set", "a\nb", "'", `a\x0Ab`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.in, tt.set); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
