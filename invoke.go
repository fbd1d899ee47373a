package gtkserver

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgValue is one marshaled argument handed to a CallPlan
type ArgValue struct {
	Kind  Kind
	Int   int64
	Float float64
	Ptr   uintptr
	Str   string
	Bytes []byte
	Cell  *Cell
}

// ReturnValue is the raw result of a native call. Integer results are
// sign-extended into Int; a STRING result sets Str, or IsNull for NULL.
type ReturnValue struct {
	Int    int64
	Float  float64
	Ptr    uintptr
	Str    string
	IsNull bool
}

// CallPlan collects arguments for one native call. Call writes PTR_*
// results back into the cells of the pushed arguments.
type CallPlan interface {
	PushArg(v ArgValue) error
	Call(fn uintptr) (ReturnValue, error)
}

// NativeInvoker is the foreign-function backend: library loading, symbol
// lookup, typed calls and the raw memory access the dispatcher needs.
type NativeInvoker interface {
	Name() string
	Open(path string) (uintptr, error)
	Symbol(lib uintptr, name string) (uintptr, bool)
	// Prepare builds a plan for a call returning ret with the given
	// argument kinds; fixed is the count of non-variadic arguments.
	Prepare(ret Kind, args []Kind, fixed int) (CallPlan, error)
	ReadMemory(addr uintptr, n int) []byte
	ReadCString(addr uintptr) string
	Alloc(n int) uintptr
	// CString copies s into memory that is never freed
	CString(s string) uintptr
	// Trampoline returns the address of a C function taking eight
	// pointer-sized arguments that forwards them to hook.
	Trampoline(hook func(args [8]uintptr) uintptr) uintptr
}

// Reply is an unformatted dispatcher answer. Escape marks results of a
// STRING return kind, the only ones the formatter escapes.
type Reply struct {
	Value  string
	Escape bool
}

func okReply(value string) Reply {
	return Reply{Value: value}
}

// resolveSymbol searches the open libraries in order for name
func (s *Server) resolveSymbol(name string) uintptr {
	if fn, ok := s.symbols[name]; ok {
		return fn
	}
	if s.native != nil {
		for _, lib := range s.registry.Libraries() {
			if lib.Handle == 0 {
				continue
			}
			if fn, ok := s.native.Symbol(lib.Handle, name); ok {
				s.symbols[name] = fn
				return fn
			}
		}
	}
	s.fatalf("the function '%s' was defined\n\n\tbut cannot be found in libraries!", name)
	return 0
}

// callNative marshals args per sig, performs the call and renders the result
func (s *Server) callNative(sig *CallSignature, args []string) Reply {
	if sig.Return == KindUnknown {
		s.fatalf("Unknown returnvalue found for GUI call: %s", sig.ReturnName)
	}

	fn := s.resolveSymbol(sig.Name)
	if sig.Return == KindAddress {
		return okReply(strconv.FormatUint(uint64(fn), 10))
	}

	frame := s.calls.enter()
	defer s.calls.leave()

	slots := s.marshalArgs(sig, args, frame)
	kinds := make([]Kind, len(slots))
	fixed := 0
	for i, v := range slots {
		kinds[i] = v.Kind
		if i < len(sig.Args) && sig.Args[i] != KindVarargs {
			fixed++
		}
	}

	plan, err := s.native.Prepare(sig.Return, kinds, fixed)
	if err != nil {
		s.fatalf("Cannot prepare call to %s: %v", sig.Name, err)
	}
	for _, v := range slots {
		if err := plan.PushArg(v); err != nil {
			s.fatalf("Cannot pass argument to %s: %v", sig.Name, err)
		}
	}

	s.logger.DebugCat(CatCall, "calling %s with %d args", sig.Name, len(slots))
	ret, err := plan.Call(fn)
	if err != nil {
		s.fatalf("Call to %s failed: %v", sig.Name, err)
	}

	outputs := renderPointerOutputs(slots)

	switch sig.Return {
	case KindNone:
		if outputs == "" {
			return okReply(OK)
		}
		return okReply(strings.TrimPrefix(outputs, " "))
	case KindWidget:
		s.registerWidget(ret.Ptr, sig.CallbackKind)
		return okReply(strconv.FormatUint(uint64(ret.Ptr), 10) + outputs)
	case KindPointer:
		return okReply(strconv.FormatUint(uint64(ret.Ptr), 10) + outputs)
	case KindString:
		if ret.IsNull {
			return Reply{Value: outputs, Escape: true}
		}
		return Reply{Value: ret.Str + outputs, Escape: true}
	case KindBool, KindInt:
		return okReply(strconv.FormatInt(int64(int32(ret.Int)), 10) + outputs)
	case KindLong:
		return okReply(strconv.FormatInt(ret.Int, 10) + outputs)
	case KindFloat, KindDouble:
		return okReply(fmt.Sprintf("%f", ret.Float) + outputs)
	}
	s.fatalf("Unknown returnvalue found for GUI call: %s", sig.ReturnName)
	return Reply{}
}

// marshalArgs converts request tokens into typed argument slots
func (s *Server) marshalArgs(sig *CallSignature, args []string, frame *[MaxArgs]Cell) []ArgValue {
	var (
		slots        []ArgValue
		pendingMacro string
		macroAddr    uintptr
		macroSeen    bool
		dataSeen     bool
	)

	for i, declared := range sig.Args {
		kind := declared
		var arg string
		present := i < len(args)
		if present {
			arg = args[i]
		}

		if !present {
			if kind == KindVarargs {
				break
			}
			if kind != KindNull {
				s.fatalf("No value entered where \"%s\" expects one!", sig.Name)
			}
		}

		if kind == KindVarargs {
			if arg == "NULL" {
				kind = KindNull
			} else {
				tag, value, _ := strings.Cut(arg, ":")
				kind = KindUnknown
				if tag != "" {
					if k, ok := varargTags[tag[0]]; ok {
						kind = k
					}
				}
				arg = value
			}
		}

		v := ArgValue{Kind: kind}
		switch kind {
		case KindInt, KindEnum, KindLong, KindBool:
			if e, ok := s.registry.Enum(arg); ok {
				v.Int = e
			} else {
				v.Int = CAtoi(arg)
			}
		case KindString:
			if str, ok := s.registry.StringConst(arg); ok {
				v.Str = str
			} else {
				v.Str = arg
			}
		case KindWidget, KindPointer:
			if arg != "NULL" {
				v.Ptr = uintptr(CAtoi(arg))
			}
		case KindFloat, KindDouble:
			v.Float = CAtof(arg)
		case KindBase64:
			v.Bytes = DecodeBase64(arg)
		case KindNull:
			v.Ptr = 0
		case KindMacro:
			v.Ptr = s.trampolineAddr()
			pendingMacro = arg
			macroAddr = s.native.CString(arg)
			macroSeen = true
		case KindData:
			if !macroSeen {
				s.fatalf("No MACRO type found for DATA type!")
			}
			data := arg
			if data == "NULL" {
				data = "0"
			}
			s.calls.bind(macroAddr, pendingMacro, data)
			v.Kind = KindPointer
			v.Ptr = macroAddr
			dataSeen = true
		case KindPtrLong, KindPtrInt, KindPtrShort, KindPtrBool:
			frame[i] = Cell{Kind: kind, Int: CAtoi(arg)}
			v.Cell = &frame[i]
		case KindPtrFloat, KindPtrDouble:
			frame[i] = Cell{Kind: kind, Float: CAtof(arg)}
			v.Cell = &frame[i]
		case KindPtrWidget, KindPtrString:
			frame[i] = Cell{Kind: kind, Ptr: uintptr(CAtoi(arg))}
			v.Cell = &frame[i]
		case KindPtrBase64:
			size := s.dataWidth
			frame[i] = Cell{Kind: kind, Bytes: make([]byte, size), Size: size}
			v.Cell = &frame[i]
		default:
			name := arg
			if i < len(sig.ArgNames) && declared != KindVarargs {
				name = sig.ArgNames[i]
			}
			s.fatalf("Unrecognized type for argument: \"%s\"", name)
		}

		s.logger.TraceCat(CatMarshal, "%s arg %d as %s", sig.Name, i, kind)
		slots = append(slots, v)
	}

	if macroSeen && !dataSeen {
		s.fatalf("MACRO argument without DATA argument in call to %s!", sig.Name)
	}
	return slots
}

// renderPointerOutputs appends the values of PTR_* cells, each with a
// leading space, in argument order.
func renderPointerOutputs(slots []ArgValue) string {
	var b strings.Builder
	for _, v := range slots {
		c := v.Cell
		if c == nil {
			continue
		}
		var piece string
		switch c.Kind {
		case KindPtrLong:
			piece = strconv.FormatInt(c.Int, 10)
		case KindPtrInt, KindPtrBool:
			piece = strconv.FormatInt(int64(int32(c.Int)), 10)
		case KindPtrShort:
			piece = strconv.FormatInt(int64(int16(c.Int)), 10)
		case KindPtrWidget:
			piece = strconv.FormatUint(uint64(c.Ptr), 10)
		case KindPtrFloat, KindPtrDouble:
			piece = fmt.Sprintf("%f", c.Float)
		case KindPtrString:
			b.WriteByte(' ')
			b.WriteString(c.Text)
			continue
		case KindPtrBase64:
			b.WriteByte(' ')
			b.WriteString(EncodeBase64(c.Bytes))
			continue
		}
		if len(piece) >= MaxDigits {
			piece = piece[:MaxDigits-1]
		}
		b.WriteByte(' ')
		b.WriteString(piece)
	}
	return b.String()
}

// trampolineAddr returns the shared C entry point for macro callbacks
func (s *Server) trampolineAddr() uintptr {
	if s.trampoline == 0 {
		s.trampoline = s.native.Trampoline(s.runCallback)
	}
	return s.trampoline
}

// runCallback is invoked from native code through the trampoline. The
// first argument that identifies a bound user-data string selects the
// macro; the remaining arguments become its parameters.
func (s *Server) runCallback(args [8]uintptr) uintptr {
	slot := -1
	var bound pendingCallback
	for i, a := range args {
		if a == 0 {
			continue
		}
		if p, ok := s.calls.lookup(a); ok {
			slot, bound = i, p
			break
		}
	}
	if slot < 0 {
		s.fatalf("Macro in user function not found!")
	}

	parts := []string{bound.Macro}
	for i, a := range args {
		switch {
		case i == slot:
			parts = append(parts, bound.Data)
		case a != 0:
			parts = append(parts, strconv.FormatUint(uint64(a), 10))
		default:
			parts = append(parts, "0")
		}
	}

	s.logger.DebugCat(CatEvent, "callback into macro %s", bound.Macro)
	r := s.execute(FormatLine(parts))
	return uintptr(CAtoi(r.Value))
}
