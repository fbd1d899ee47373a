package gtkserver

import (
	"os"
	"strconv"
	"strings"
)

// opaqueSize is the byte size of a gtk_server_opaque block
const opaqueSize = 8 * 8

// RegisterStandardLibrary registers the gtk_server_* builtin commands
func (s *Server) RegisterStandardLibrary() {
	// gtk_server_version - server version
	s.RegisterCommand("gtk_server_version", func(ctx *Context) Reply {
		return okReply(Version)
	})

	// gtk_server_echo - return the arguments
	s.RegisterCommand("gtk_server_echo", func(ctx *Context) Reply {
		return okReply(strings.Join(ctx.Args, " "))
	})

	// gtk_server_exit - end the session
	s.RegisterCommand("gtk_server_exit", func(ctx *Context) Reply {
		s.logger.DebugCat(CatSystem, "exit requested")
		if s.onExit != nil {
			s.onExit()
		}
		return okReply(OK)
	})

	s.RegisterCommand("gtk_server_pid", func(ctx *Context) Reply {
		return okReply(strconv.Itoa(os.Getpid()))
	})

	s.RegisterCommand("gtk_server_os", func(ctx *Context) Reply {
		return okReply(osDescription())
	})

	// gtk_server_ffi - name of the native call backend
	s.RegisterCommand("gtk_server_ffi", func(ctx *Context) Reply {
		if s.native == nil {
			return okReply("none")
		}
		return okReply(s.native.Name())
	})

	s.RegisterCommand("gtk_server_toolkit", func(ctx *Context) Reply {
		if s.loop == nil {
			return okReply("console")
		}
		return okReply("GTK3")
	})

	s.RegisterCommand("gtk_server_enum", func(ctx *Context) Reply {
		name := ctx.Arg(0, "argument")
		v, ok := s.registry.Enum(name)
		if !ok {
			ctx.Fatalf("Cannot find enumeration %s in GTK_SERVER_ENUM!", name)
		}
		return okReply(strconv.FormatInt(int64(int32(v)), 10))
	})

	s.registerCodecCommands()
	s.registerDefinitionCommands()
	s.registerEventCommands()
	s.registerOutputCommands()
}

// registerCodecCommands registers pack/unpack and raw memory access
func (s *Server) registerCodecCommands() {
	s.RegisterCommand("gtk_server_pack", func(ctx *Context) Reply {
		format := ctx.Arg(0, "format")
		out, err := Pack(format, ctx.Args[1:])
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_PACK!", err)
		}
		return okReply(out)
	})

	s.RegisterCommand("gtk_server_unpack", func(ctx *Context) Reply {
		format := ctx.Arg(0, "format")
		data := ctx.Arg(1, "base64 string")
		out, err := Unpack(format, data)
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_UNPACK!", err)
		}
		return okReply(out)
	})

	// gtk_server_data_format - width of PTR_BASE64 arguments
	s.RegisterCommand("gtk_server_data_format", func(ctx *Context) Reply {
		size, err := FormatSize(ctx.Arg(0, "format"))
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_DATA_FORMAT!", err)
		}
		s.dataWidth = size
		return okReply(OK)
	})

	s.RegisterCommand("gtk_server_unpack_from_pointer", func(ctx *Context) Reply {
		format := ctx.Arg(0, "format")
		addr := uintptr(CAtoi(ctx.Arg(1, "pointer")))
		size, err := FormatSize(format)
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_UNPACK_FROM_POINTER!", err)
		}
		out, err := UnpackBytes(format, s.requireNative().ReadMemory(addr, size))
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_UNPACK_FROM_POINTER!", err)
		}
		return okReply(out)
	})

	s.RegisterCommand("gtk_server_string_from_pointer", func(ctx *Context) Reply {
		addr := uintptr(CAtoi(ctx.Arg(0, "pointer")))
		if addr == 0 {
			return okReply("")
		}
		return okReply(s.requireNative().ReadCString(addr))
	})

	// gtk_server_opaque - a zeroed block for opaque structures
	s.RegisterCommand("gtk_server_opaque", func(ctx *Context) Reply {
		addr := s.requireNative().Alloc(opaqueSize)
		if addr == 0 {
			ctx.Fatalf("Cannot get sufficient memory for GTK_SERVER_OPAQUE!")
		}
		return okReply(strconv.FormatUint(uint64(addr), 10))
	})
}

// registerDefinitionCommands registers runtime changes to the registry
func (s *Server) registerDefinitionCommands() {
	define := func(ctx *Context) Reply {
		name := ctx.Arg(0, "function name")
		cbk := ctx.Arg(1, "callbacktype")
		ret := ctx.Arg(2, "return value")
		arity := int(CAtoi(ctx.Arg(3, "argument amount")))
		if _, err := s.registry.DefineOrRedefine(name, cbk, ret, arity, ctx.Args[4:]); err != nil {
			ctx.Fatalf("%v in %s!", err, strings.ToUpper(ctx.Name))
		}
		s.logger.DebugCat(CatConfig, "defined %s", name)
		return okReply(OK)
	}
	s.RegisterCommand("gtk_server_define", define)
	s.RegisterCommand("gtk_server_redefine", define)

	macroDefine := func(ctx *Context) Reply {
		text := strings.Join(ctx.Args, " ")
		macros, err := ParseMacroBlocks(text)
		if err != nil {
			ctx.Fatalf("%v in GTK_SERVER_MACRO_DEFINE!", err)
		}
		for _, m := range macros {
			if err := s.registry.AddMacro(m, false); err != nil {
				ctx.Fatalf("%v in GTK_SERVER_MACRO_DEFINE!", err)
			}
			s.logger.DebugCat(CatMacro, "defined macro %s", m.Name)
		}
		return okReply(OK)
	}
	s.RegisterCommand("gtk_server_macro_define", macroDefine)
	s.RegisterCommand("gtk_server_macro_redefine", macroDefine)

	s.RegisterCommand("gtk_server_macro_var", func(ctx *Context) Reply {
		name := ctx.Arg(0, "macro name")
		letter := ctx.Arg(1, "variable name")
		m, ok := s.registry.ResolveMacro(name)
		if !ok {
			ctx.Fatalf("Cannot find macro %s in GTK_SERVER_MACRO_VAR!", name)
		}
		return okReply(macroVar(m, strings.TrimPrefix(letter, "$")))
	})

	// gtk_server_require - load an extra library at runtime
	s.RegisterCommand("gtk_server_require", func(ctx *Context) Reply {
		name := ctx.Arg(0, "library")
		if lib, ok := s.registry.FindLibrary(name); ok {
			if lib.Handle != 0 {
				return okReply(OK)
			}
			return okReply(lib.Err)
		}
		handle, err := s.openLibrary(name)
		if err != nil {
			return okReply(err.Error())
		}
		if err := s.registry.AddLibrary(&Library{Name: name, Handle: handle}); err != nil {
			return okReply(err.Error())
		}
		s.logger.DebugCat(CatConfig, "required library %s", name)
		return okReply(OK)
	})
}

// registerEventCommands registers signal, callback and timer commands
func (s *Server) registerEventCommands() {
	connect := func(after bool) BuiltinFunc {
		return func(ctx *Context) Reply {
			widget := uintptr(CAtoi(ctx.Arg(0, "widget reference")))
			signal := ctx.Arg(1, "signal type")
			response := ctx.Arg(2, "response string")
			returnFalse := false
			if flag, ok := ctx.OptArg(3); ok {
				returnFalse = CAtoi(flag) != 0
			}
			s.connectSignal(widget, signal, response, after, returnFalse)
			return okReply(OK)
		}
	}
	s.RegisterCommand("gtk_server_connect", connect(false))
	s.RegisterCommand("gtk_server_connect_after", connect(true))

	s.RegisterCommand("gtk_server_disconnect", func(ctx *Context) Reply {
		widget := uintptr(CAtoi(ctx.Arg(0, "widget reference")))
		response := ctx.Arg(1, "response string")
		return okReply(s.disconnectSignal(widget, response))
	})

	// gtk_server_callback - WAIT blocks for an event, UPDATE polls
	s.RegisterCommand("gtk_server_callback", func(ctx *Context) Reply {
		if len(ctx.Args) == 0 {
			ctx.Fatalf("Missing WAIT state GTK_SERVER_CALLBACK!")
		}
		switch ctx.Args[0] {
		case "WAIT", "wait", "1":
			return okReply(s.Wait())
		case "UPDATE", "update", "2":
			return okReply(s.PollOnce())
		}
		ctx.Fatalf("Missing WAIT state GTK_SERVER_CALLBACK!")
		return Reply{}
	})

	s.RegisterCommand("gtk_server_key", func(ctx *Context) Reply {
		return okReply(strconv.FormatInt(s.ReadField(FieldKey), 10))
	})

	s.RegisterCommand("gtk_server_state", func(ctx *Context) Reply {
		return okReply(strconv.FormatInt(s.ReadField(FieldKeyState), 10))
	})

	s.RegisterCommand("gtk_server_mouse", func(ctx *Context) Reply {
		fields := []Field{FieldMouseX, FieldMouseY, FieldButton, FieldScroll}
		n := CAtoi(ctx.Arg(0, "argument"))
		if n < 0 || int(n) >= len(fields) {
			ctx.Fatalf("Called gtk_server_mouse with ILLEGAL argument.")
		}
		return okReply(strconv.FormatInt(s.ReadField(fields[n]), 10))
	})

	s.RegisterCommand("gtk_server_callback_value", func(ctx *Context) Reply {
		n := int(CAtoi(ctx.Arg(0, "value")))
		typ := ctx.Arg(1, "type")
		return okReply(s.callbackValue(n, typ))
	})

	s.RegisterCommand("gtk_server_timeout", func(ctx *Context) Reply {
		ms := CAtoi(ctx.Arg(0, "milliseconds"))
		widget := uintptr(CAtoi(ctx.Arg(1, "widget")))
		signal := ctx.Arg(2, "signal")
		if ms < 0 {
			ms = 0
		}
		return okReply(strconv.FormatUint(s.addTimer(uint(ms), widget, signal), 10))
	})

	s.RegisterCommand("gtk_server_timeout_remove", func(ctx *Context) Reply {
		id, err := strconv.ParseUint(strings.TrimSpace(ctx.Arg(0, "timeout handle")), 10, 64)
		if err != nil {
			ctx.Fatalf("Illegal timeout handle %s in GTK_SERVER_TIMEOUT_REMOVE!", ctx.Args[0])
		}
		s.removeTimer(id)
		return okReply(OK)
	})
}

// registerOutputCommands registers the response formatting toggles
func (s *Server) registerOutputCommands() {
	s.RegisterCommand("gtk_server_enable_c_string_escaping", func(ctx *Context) Reply {
		s.config.Escaping = true
		return okReply(OK)
	})

	s.RegisterCommand("gtk_server_disable_c_string_escaping", func(ctx *Context) Reply {
		s.config.Escaping = false
		return okReply(OK)
	})

	s.RegisterCommand("gtk_server_set_c_string_escaping", func(ctx *Context) Reply {
		chars := ctx.Arg(0, "argument")
		if len(chars) > 16 {
			ctx.Fatalf("Argument may not exceed 16 characters in GTK_SERVER_SET_C_STRING_ESCAPING!")
		}
		s.config.EscapeChars = chars
		return okReply("C string escaping set to " + chars)
	})

	s.RegisterCommand("gtk_server_enable_print_line_count", func(ctx *Context) Reply {
		s.config.LineCount = true
		return okReply(OK)
	})

	s.RegisterCommand("gtk_server_disable_print_line_count", func(ctx *Context) Reply {
		s.config.LineCount = false
		return okReply(OK)
	})
}

func (s *Server) requireNative() NativeInvoker {
	if s.native == nil {
		s.fatalf("No native call backend available!")
	}
	return s.native
}
