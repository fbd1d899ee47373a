package gtkserver

import (
	"io"
	"os"
	"strconv"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("Unknown command", func(t *testing.T) {
		s := newTestServer(t, nil)
		if out := s.Handle("no_such_call 1 2"); out != "-1\n" {
			t.Errorf("Expected -1, got %q", out)
		}
	})

	t.Run("Empty line", func(t *testing.T) {
		s := newTestServer(t, nil)
		if out := s.Handle(""); out != "-1\n" {
			t.Errorf("Expected -1, got %q", out)
		}
	})

	t.Run("Uppercase builtin", func(t *testing.T) {
		s := newTestServer(t, nil)
		if out := s.Handle("GTK_SERVER_ECHO x y"); out != "x y\n" {
			t.Errorf("Expected \"x y\", got %q", out)
		}
	})

	t.Run("Handle token is echoed", func(t *testing.T) {
		c := DefaultConfig()
		c.UseHandle = true
		s := newTestServer(t, c)
		if out := s.Handle("h1 gtk_server_echo hi"); out != "h1 hi\n" {
			t.Errorf("Expected \"h1 hi\", got %q", out)
		}
		if out := s.Handle("h2"); out != "h2 -1\n" {
			t.Errorf("Expected \"h2 -1\", got %q", out)
		}
	})

	t.Run("Prefix and suffix", func(t *testing.T) {
		c := DefaultConfig()
		c.Prefix, c.Suffix = "[", "]"
		s := newTestServer(t, c)
		if out := s.Handle("gtk_server_version"); out != "["+Version+"]\n" {
			t.Errorf("Expected bracketed version, got %q", out)
		}
	})

	t.Run("Line count toggles", func(t *testing.T) {
		s := newTestServer(t, nil)
		if out := s.Handle("gtk_server_enable_print_line_count"); out != "1\nok\n" {
			t.Errorf("Expected counted ok, got %q", out)
		}
		if out := s.Handle(`gtk_server_echo "a\nb"`); out != "2\na\nb\n" {
			t.Errorf("Expected two counted lines, got %q", out)
		}
		if out := s.Handle("gtk_server_disable_print_line_count"); out != "ok\n" {
			t.Errorf("Expected plain ok, got %q", out)
		}
	})
}

func TestBuiltins(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		line     string
		expected string
	}{
		{"gtk_server_version", Version},
		{"gtk_server_pid", strconv.Itoa(os.Getpid())},
		{"gtk_server_ffi", "none"},
		{"gtk_server_pack %i%i 1 2", "AQAAAAIAAAA="},
		{"gtk_server_unpack %i%i AQAAAAIAAAA=", "1 2"},
		{"gtk_server_data_format %i%d", "ok"},
		{"gtk_server_set_c_string_escaping \\'", "C string escaping set to \\'"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if out := s.Handle(tt.line); out != tt.expected+"\n" {
				t.Errorf("Expected %q, got %q", tt.expected+"\n", out)
			}
		})
	}

	t.Run("Operating system", func(t *testing.T) {
		if out := s.Handle("gtk_server_os"); out == "\n" || out == "-1\n" {
			t.Errorf("Expected an OS description, got %q", out)
		}
	})
}

func TestBuiltinsWithInvoker(t *testing.T) {
	inv := newFakeInvoker()
	s := newTestServer(t, nil)
	s.SetInvoker(inv)

	t.Run("Backend name", func(t *testing.T) {
		if out := s.Handle("gtk_server_ffi"); out != "fake\n" {
			t.Errorf("Expected fake, got %q", out)
		}
	})

	t.Run("Opaque block is zeroed memory", func(t *testing.T) {
		out := s.Handle("gtk_server_opaque")
		addr := uintptr(CAtoi(out))
		if addr == 0 {
			t.Fatalf("Expected an address, got %q", out)
		}
		if len(inv.mem[addr]) != opaqueSize {
			t.Errorf("Expected %d bytes, got %d", opaqueSize, len(inv.mem[addr]))
		}
	})

	t.Run("Unpack from pointer", func(t *testing.T) {
		addr := inv.Alloc(8)
		copy(inv.mem[addr], []byte{1, 0, 0, 0, 2, 0, 0, 0})
		line := "gtk_server_unpack_from_pointer %i%i " + strconv.FormatUint(uint64(addr), 10)
		if out := s.Handle(line); out != "1 2\n" {
			t.Errorf("Expected \"1 2\", got %q", out)
		}
	})

	t.Run("String from pointer", func(t *testing.T) {
		addr := inv.CString("from C")
		if out := s.Handle("gtk_server_string_from_pointer " + strconv.FormatUint(uint64(addr), 10)); out != "from C\n" {
			t.Errorf("Expected \"from C\", got %q", out)
		}
		if out := s.Handle("gtk_server_string_from_pointer 0"); out != "\n" {
			t.Errorf("Expected empty answer for NULL, got %q", out)
		}
	})

	t.Run("Require a library", func(t *testing.T) {
		if out := s.Handle("gtk_server_require libtest.so"); out != "ok\n" {
			t.Errorf("Expected ok, got %q", out)
		}
		if out := s.Handle("gtk_server_require libtest.so"); out != "ok\n" {
			t.Errorf("Expected ok for an already open library, got %q", out)
		}
		if out := s.Handle("gtk_server_require libnone.so"); out == "ok\n" {
			t.Error("Expected an error text for a missing library")
		}
	})

	t.Run("Define at runtime", func(t *testing.T) {
		inv.define("twice", func(args []ArgValue) ReturnValue {
			return ReturnValue{Int: args[0].Int * 2}
		})
		if out := s.Handle("gtk_server_define twice NONE INT 1 INT"); out != "ok\n" {
			t.Fatalf("Expected ok, got %q", out)
		}
		if out := s.Handle("twice 21"); out != "42\n" {
			t.Errorf("Expected 42, got %q", out)
		}
		s.Handle("gtk_server_redefine twice NONE LONG 1 INT")
		if sig, _ := s.Registry().Lookup("twice"); sig.Return != KindLong {
			t.Errorf("Expected LONG after redefinition, got %v", sig.Return)
		}
	})
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{"gtk_server_enum", "Cannot find argument in GTK_SERVER_ENUM!"},
		{"gtk_server_enum NOPE", "Cannot find enumeration NOPE in GTK_SERVER_ENUM!"},
		{"gtk_server_unpack %i", "Cannot find base64 string in GTK_SERVER_UNPACK!"},
		{"gtk_server_pack %x 1", "unknown type 'x' in format \"%x\" in GTK_SERVER_PACK!"},
		{"gtk_server_opaque", "No native call backend available!"},
		{"gtk_server_set_c_string_escaping 01234567890123456", "Argument may not exceed 16 characters in GTK_SERVER_SET_C_STRING_ESCAPING!"},
		{"gtk_server_macro_var nothing a", "Cannot find macro nothing in GTK_SERVER_MACRO_VAR!"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := newTestServer(t, nil)
			if msg := expectFatal(t, s, tt.line); msg != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, msg)
			}
		})
	}
}

func TestExitHandler(t *testing.T) {
	s := newTestServer(t, nil)
	exited := false
	s.SetExitHandler(func() { exited = true })
	if out := s.Handle("gtk_server_exit"); out != "ok\n" {
		t.Errorf("Expected ok, got %q", out)
	}
	if !exited {
		t.Error("Expected the exit handler to run")
	}
}

func TestFatalHandler(t *testing.T) {
	s := New(nil)
	s.SetLogger(NewLoggerTo(io.Discard, false))
	var got *FatalError
	s.SetFatalHandler(func(err *FatalError) { got = err })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected a panic after the handler returned")
			}
		}()
		s.Handle("gtk_server_enum")
	}()
	if got == nil || got.Message != "Cannot find argument in GTK_SERVER_ENUM!" {
		t.Errorf("Expected the handler to see the error, got %v", got)
	}

	t.Run("Mutex is released", func(t *testing.T) {
		if out := s.Handle("gtk_server_echo fine"); out != "fine\n" {
			t.Errorf("Expected fine, got %q", out)
		}
	})
}
