package gtkserver

import (
	"strings"
)

// Protocol limits and fixed answers
const (
	Version            = "2.4.6"
	MaxArgs            = 32
	MaxLibs            = 64
	MaxDigits          = 32
	DefaultLibSequence = 100
	NotFound           = "-1"
	OK                 = "ok"
)

// Kind is the marshaling tag of an argument or return value
type Kind int

const (
	KindUnknown Kind = iota
	KindNone
	KindWidget
	KindPointer
	KindString
	KindBool
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindAddress
	KindEnum
	KindBase64
	KindNull
	KindMacro
	KindData
	KindPtrLong
	KindPtrInt
	KindPtrShort
	KindPtrFloat
	KindPtrDouble
	KindPtrString
	KindPtrWidget
	KindPtrBase64
	KindPtrBool
	KindVarargs
)

var kindNames = map[string]Kind{
	"NONE":       KindNone,
	"VOID":       KindNone,
	"WIDGET":     KindWidget,
	"POINTER":    KindPointer,
	"STRING":     KindString,
	"STR":        KindString,
	"BOOL":       KindBool,
	"INT":        KindInt,
	"LONG":       KindLong,
	"FLOAT":      KindFloat,
	"DOUBLE":     KindDouble,
	"ADDRESS":    KindAddress,
	"ENUM":       KindEnum,
	"BASE64":     KindBase64,
	"NULL":       KindNull,
	"MACRO":      KindMacro,
	"DATA":       KindData,
	"PTR_LONG":   KindPtrLong,
	"PTR_INT":    KindPtrInt,
	"PTR_SHORT":  KindPtrShort,
	"PTR_FLOAT":  KindPtrFloat,
	"PTR_DOUBLE": KindPtrDouble,
	"PTR_STRING": KindPtrString,
	"PTR_WIDGET": KindPtrWidget,
	"PTR_BASE64": KindPtrBase64,
	"PTR_BOOL":   KindPtrBool,
	"VARARGS":    KindVarargs,
}

// varargTags maps the one-letter prefix of a "type:value" VARARGS token
var varargTags = map[byte]Kind{
	'i': KindInt,
	'e': KindEnum,
	'l': KindLong,
	's': KindString,
	'd': KindDouble,
	'f': KindFloat,
	'b': KindBool,
	'w': KindWidget,
	'p': KindPointer,
}

// ParseKind resolves a kind token. Unknown tokens yield KindUnknown.
func ParseKind(s string) Kind {
	if k, ok := kindNames[strings.TrimSpace(s)]; ok {
		return k
	}
	return KindUnknown
}

// String returns the canonical token for the kind
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindString:
		return "STRING"
	}
	for name, kind := range kindNames {
		if kind == k && name != "VOID" && name != "STR" {
			return name
		}
	}
	return "UNKNOWN"
}

// IsReturn reports whether the kind may be declared as a return kind
func (k Kind) IsReturn() bool {
	switch k {
	case KindNone, KindWidget, KindPointer, KindString, KindBool,
		KindInt, KindLong, KindFloat, KindDouble, KindAddress:
		return true
	}
	return false
}

// IsPointerOut reports whether the kind is a PTR_* output slot
func (k Kind) IsPointerOut() bool {
	return k >= KindPtrLong && k <= KindPtrBool
}

// CallSignature declares a native function the dispatcher may invoke
type CallSignature struct {
	Name         string
	CallbackKind string
	Return       Kind
	ReturnName   string
	Args         []Kind
	ArgNames     []string
}

// Arity returns the declared number of arguments
func (s *CallSignature) Arity() int {
	return len(s.Args)
}

// HasVarargs reports whether the signature ends in a VARARGS tail
func (s *CallSignature) HasVarargs() bool {
	return len(s.Args) > 0 && s.Args[len(s.Args)-1] == KindVarargs
}

// AliasEntry points an alternate name at a call or a macro
type AliasEntry struct {
	Name  string
	Call  *CallSignature
	Macro *MacroDef
}

// MacroDef is a named body of lines run by the macro interpreter.
// Variables a..z persist across invocations.
type MacroDef struct {
	Name string
	Body []string
	vars [26]*string
}

// NewMacroDef creates an empty macro
func NewMacroDef(name string, body []string) *MacroDef {
	return &MacroDef{Name: name, Body: body}
}

// Var returns the value of variable letter, if set
func (m *MacroDef) Var(letter byte) (string, bool) {
	if letter < 'a' || letter > 'z' || m.vars[letter-'a'] == nil {
		return "", false
	}
	return *m.vars[letter-'a'], true
}

// SetVar stores value into variable letter
func (m *MacroDef) SetVar(letter byte, value string) {
	if letter < 'a' || letter > 'z' {
		return
	}
	v := value
	m.vars[letter-'a'] = &v
}

// Config holds the options of one server instance
type Config struct {
	Prefix      string
	Suffix      string
	UseHandle   bool
	NoNewline   bool
	EscapeChars string
	Escaping    bool
	LineCount   bool
	LibSequence int
	Debug       bool
	// ExitSignal is sent to the parent process on exit and on fatal errors when non-zero
	ExitSignal int
	// EchoExit prints "ok" before exiting on gtk_server_exit
	EchoExit bool
}

// DefaultEscapeChars is bell, tab, newline, carriage return, backslash and double quote
const DefaultEscapeChars = "\a\t\n\r\\\""

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		EscapeChars: DefaultEscapeChars,
		LibSequence: DefaultLibSequence,
		EchoExit:    true,
	}
}
