package gtkserver

import (
	"strings"
)

// macroOp is the instruction class of one macro line
type macroOp int

const (
	opAssign macroOp = iota
	opEmpty
	opValue
	opJump
	opAssoc
	opGet
	opCompare
	opDebug
	opReturn
	opCall
)

var opNames = map[string]macroOp{
	":":       opAssign,
	"EMPTY":   opEmpty,
	"VALUE":   opValue,
	"ASSOC":   opAssoc,
	"GET":     opGet,
	"COMPARE": opCompare,
}

// assocWidth bounds the stored value of an association
const assocWidth = MaxDigits - 1

// classifyMacroLine returns the op and the index of its first operand
func classifyMacroLine(tokens []string) (macroOp, int) {
	if len(tokens) > 1 {
		if op, ok := opNames[tokens[1]]; ok {
			return op, 2
		}
	}
	if len(tokens) > 0 {
		switch tokens[0] {
		case "JUMP":
			return opJump, 1
		case "DEBUG":
			return opDebug, 1
		case "RETURN":
			return opReturn, 0
		}
	}
	return opCall, 0
}

// isValue reports whether s holds only digits, blanks and signs
func isValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != ' ' && c != '\t' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}

// macroFrame is the per-invocation state of a running macro
type macroFrame struct {
	def  *MacroDef
	name string
	args [10]*string
}

func (f *macroFrame) arg(d byte) (string, bool) {
	if p := f.args[d-'0']; p != nil {
		return *p, true
	}
	return "", false
}

// ref reads "$x" where x is an argument digit or a variable letter
func (f *macroFrame) ref(sym string) (string, bool) {
	if len(sym) < 2 || sym[0] != '$' {
		return "", false
	}
	switch c := sym[1]; {
	case c >= '0' && c <= '9':
		return f.arg(c)
	case c >= 'a' && c <= 'z':
		return f.def.Var(c)
	}
	return "", false
}

func isVarRef(sym string) bool {
	return len(sym) >= 2 && sym[0] == '$' && sym[1] >= 'a' && sym[1] <= 'z'
}

func isArgRef(sym string) bool {
	return len(sym) >= 2 && sym[0] == '$' && sym[1] >= '0' && sym[1] <= '9'
}

// RunMacro runs a registered macro by name with the given arguments and
// returns its result value.
func (s *Server) RunMacro(name string, args ...string) string {
	m, ok := s.registry.ResolveMacro(name)
	if !ok {
		return NotFound
	}
	return s.runMacro(m, name, args).Value
}

// runMacro interprets the body of m. The result is the value of the last
// line executed, or "ok" for an empty body.
func (s *Server) runMacro(m *MacroDef, invokedAs string, args []string) Reply {
	f := &macroFrame{def: m, name: invokedAs}
	f.args[0] = &f.name
	for i := 0; i < len(args) && i < 9; i++ {
		v := args[i]
		f.args[i+1] = &v
	}

	result := okReply(OK)
	for idx := 0; idx >= 0 && idx < len(m.Body); {
		line := m.Body[idx]
		tokens := ParseLine(line)
		op, first := classifyMacroLine(tokens)
		if first >= len(tokens) {
			s.fatalf("Illegal syntax in macro: %s\n\nError in line: %s", m.Name, line)
		}

		buf := s.expandMacroLine(f, tokens, first, op == opCall || op == opAssign)

		if op == opAssign {
			s.traceMacro(m.Name, buf)
		} else {
			s.traceMacro(m.Name, line)
		}

		// Lines that do not name a command produce their text or "ok"
		literal := op == opAssign && !isValue(buf) && !strings.HasPrefix(buf, "&") &&
			!strings.HasPrefix(buf, "$") && !s.isCommand(buf)
		switch {
		case op != opReturn && op != opDebug && op != opGet && op != opAssoc && op != opCompare &&
			!isValue(buf) && !strings.HasPrefix(buf, "&") && !strings.HasPrefix(buf, "$") && !literal:
			result = s.execute(buf)
		case op == opDebug && strings.HasPrefix(buf, "$"):
			v, _ := f.ref(buf)
			result = okReply(v)
		case !literal && !strings.HasPrefix(buf, "&") && !strings.HasPrefix(buf, "$") && !isValue(buf) &&
			op != opGet && op != opAssoc && op != opCompare:
			_, rest, _ := strings.Cut(buf, " ")
			result = okReply(rest)
		default:
			result = okReply(OK)
		}
		s.traceServer(result.Value)

		if op < opDebug {
			s.applyMacroOp(f, op, tokens[0], buf, literal, result)
		}

		if op == opReturn {
			break
		}

		truthy := true
		if len(tokens[0]) > 1 && tokens[0][0] == '$' && op != opGet && op != opAssoc && op != opDebug && op != opCompare {
			v, ok := f.ref(tokens[0])
			truthy = ok && v != "" && v != "0"
		}

		jump := (op == opEmpty && !truthy) || (op == opValue && truthy) || op == opJump
		if !jump {
			idx++
			continue
		}
		if !isValue(buf) {
			s.fatalf("Illegal jump in %s!\n\nMacro: %s", jumpName(op), m.Name)
		}
		idx += int(CAtoi(buf))
	}
	return result
}

func jumpName(op macroOp) string {
	switch op {
	case opEmpty:
		return "EMPTY"
	case opValue:
		return "VALUE"
	}
	return "JUMP"
}

// expandMacroLine builds the operand text: the first operand verbatim,
// later tokens with $-references substituted, joined by spaces. With
// quote set, literal tokens are re-quoted so the text parses back into
// the same tokens.
func (s *Server) expandMacroLine(f *macroFrame, tokens []string, first int, quote bool) string {
	var b strings.Builder
	b.WriteString(tokens[first])
	for _, tok := range tokens[first+1:] {
		b.WriteByte(' ')
		if !strings.HasPrefix(tok, "$") {
			if quote {
				tok = quoteToken(tok)
			}
			b.WriteString(tok)
			continue
		}
		if len(tok) < 2 {
			s.fatalf("Illegal variablename!\n\nMacro: %s\n\nVariable name: %s", f.def.Name, tok[1:])
		}
		switch c := tok[1]; {
		case c >= '0' && c <= '9':
			if v, ok := f.arg(c); ok {
				b.WriteString(v)
			} else {
				b.WriteString("0")
			}
		case c >= 'a' && c <= 'z':
			if v, ok := f.def.Var(c); ok {
				b.WriteString(v)
			} else {
				b.WriteString("0")
			}
		case c == '@':
			for d := byte('1'); d <= '9'; d++ {
				if v, ok := f.arg(d); ok {
					b.WriteString(v)
					b.WriteByte(' ')
				}
			}
		default:
			s.fatalf("Illegal variablename!\n\nMacro: %s\n\nVariable name: %s", f.def.Name, tok[1:])
		}
	}
	return b.String()
}

// isCommand reports whether the first word of line names something the
// dispatcher can run.
func (s *Server) isCommand(line string) bool {
	name, _, _ := strings.Cut(line, " ")
	if _, ok := s.builtins[name]; ok {
		return true
	}
	if _, ok := s.registry.ResolveCall(name); ok {
		return true
	}
	_, ok := s.registry.ResolveMacro(name)
	return ok
}

// applyMacroOp performs the variable side effects of assignment, ASSOC,
// GET and COMPARE lines.
func (s *Server) applyMacroOp(f *macroFrame, op macroOp, target, buf string, literal bool, result Reply) {
	m := f.def
	if !strings.HasPrefix(target, "$") && op != opJump {
		s.fatalf("left-operand must be a legal variablename!\n\nMacro: %s\n\nVariable name: %s", m.Name, target)
	}
	if op == opJump || op == opEmpty || op == opValue {
		return
	}
	sym := strings.TrimPrefix(target, "$")

	switch op {
	case opAssign:
		if !isVarRef(target) {
			s.fatalf("Illegal variablename in assignment!\n\nMacro: %s\n\nVariablename: %s", m.Name, sym)
		}
		var value string
		switch {
		case strings.HasPrefix(buf, "&"):
			value = buf[1:]
		case strings.HasPrefix(buf, "$"):
			if !isVarRef(buf) && !isArgRef(buf) {
				s.fatalf("Illegal assignment!\n\nMacro: %s\n\nTrying to assign: %s", m.Name, buf)
			}
			value, _ = f.ref(buf)
		case isValue(buf):
			value = strings.TrimSpace(buf)
		case literal:
			value = buf
		default:
			value = strings.TrimSpace(result.Value)
		}
		m.SetVar(sym[0], value)

	case opCompare:
		if !isVarRef(target) && !isArgRef(target) {
			s.fatalf("Illegal variablename in COMPARE!\n\nMacro: %s\n\nVariablename: %s", m.Name, sym)
		}
		left, _ := f.ref(target)
		right := buf
		if isVarRef(buf) || isArgRef(buf) {
			right, _ = f.ref(buf)
		}
		if left == right {
			m.SetVar('z', "0")
		} else {
			m.SetVar('z', "1")
		}

	case opAssoc:
		if !isVarRef(target) && !isArgRef(target) {
			s.fatalf("Illegal assocname!\n\nMacro: %s\n\nAssocname: %s", m.Name, sym)
		}
		if !isVarRef(buf) {
			s.fatalf("Illegal assocID!\n\nMacro: %s\n\nAssocID: %s", m.Name, buf)
		}
		key, _ := f.ref(target)
		value, _ := f.ref(buf)
		if len(value) > assocWidth {
			value = value[:assocWidth]
		}
		s.assocs[key] = value

	case opGet:
		if !isVarRef(target) {
			s.fatalf("Illegal variablename!\n\nMacro: %s\n\nVariablename: %s", m.Name, sym)
		}
		if !isVarRef(buf) && !isArgRef(buf) {
			s.fatalf("Illegal reference to assoc!\n\nMacro: %s\n\nAssocreference: %s", m.Name, buf)
		}
		key, _ := f.ref(buf)
		value, ok := s.assocs[key]
		if !ok {
			value = "0"
		}
		m.SetVar(sym[0], value)
	}
}

// macroVar renders variable letter of a macro for gtk_server_macro_var
func macroVar(m *MacroDef, letter string) string {
	if len(letter) == 0 {
		return "0"
	}
	if v, ok := m.Var(letter[0]); ok {
		return v
	}
	return "0"
}
