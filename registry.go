package gtkserver

import (
	"fmt"
	"strings"
)

// Library is one entry of the ordered library search list
type Library struct {
	Name   string
	Handle uintptr
	Err    string
}

// Registry stores call signatures, aliases, enumerations, string constants
// and macros by name.
type Registry struct {
	calls   map[string]*CallSignature
	aliases map[string]*AliasEntry
	enums   map[string]int64
	strs    map[string]string
	macros  map[string]*MacroDef
	libs    []*Library
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		calls:   make(map[string]*CallSignature),
		aliases: make(map[string]*AliasEntry),
		enums:   make(map[string]int64),
		strs:    make(map[string]string),
		macros:  make(map[string]*MacroDef),
	}
}

// Lookup returns the signature registered under name
func (r *Registry) Lookup(name string) (*CallSignature, bool) {
	sig, ok := r.calls[name]
	return sig, ok
}

// LookupAlias returns the alias registered under name
func (r *Registry) LookupAlias(name string) (*AliasEntry, bool) {
	a, ok := r.aliases[name]
	return a, ok
}

// ResolveCall finds a signature directly or through one alias hop
func (r *Registry) ResolveCall(name string) (*CallSignature, bool) {
	if sig, ok := r.calls[name]; ok {
		return sig, true
	}
	if a, ok := r.aliases[name]; ok && a.Call != nil {
		return a.Call, true
	}
	return nil, false
}

// ResolveMacro finds a macro directly or through one alias hop
func (r *Registry) ResolveMacro(name string) (*MacroDef, bool) {
	if m, ok := r.macros[name]; ok {
		return m, true
	}
	if a, ok := r.aliases[name]; ok && a.Macro != nil {
		return a.Macro, true
	}
	return nil, false
}

// buildArgs expands declared kinds, turning a VARARGS tag into a tail that
// fills every remaining slot.
func buildArgs(arity int, kinds []string) ([]Kind, []string, error) {
	if arity < 0 {
		return nil, nil, fmt.Errorf("negative argument amount %d", arity)
	}
	if arity > MaxArgs {
		return nil, nil, fmt.Errorf("definition cannot have more than %d arguments", MaxArgs)
	}

	args := make([]Kind, 0, arity)
	names := make([]string, 0, arity)
	for i := 0; i < arity; i++ {
		if i >= len(kinds) {
			return nil, nil, fmt.Errorf("missing argument(s): declared %d, found %d", arity, len(kinds))
		}
		name := strings.TrimSpace(kinds[i])
		if name == "VARARGS" {
			for j := i; j < MaxArgs; j++ {
				args = append(args, KindVarargs)
				names = append(names, name)
			}
			break
		}
		args = append(args, ParseKind(name))
		names = append(names, name)
	}
	return args, names, nil
}

// DefineOrRedefine creates a signature or overwrites an existing one in
// place, so aliases that already point at it see the new fields.
func (r *Registry) DefineOrRedefine(name, callbackKind, returnKind string, arity int, kinds []string) (*CallSignature, error) {
	args, names, err := buildArgs(arity, kinds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sig, exists := r.calls[name]
	if !exists {
		sig = &CallSignature{Name: name}
		r.calls[name] = sig
	}
	sig.CallbackKind = strings.TrimSpace(callbackKind)
	sig.ReturnName = strings.TrimSpace(returnKind)
	sig.Return = ParseKind(returnKind)
	sig.Args = args
	sig.ArgNames = names
	return sig, nil
}

// Define adds a signature and rejects duplicates
func (r *Registry) Define(name, callbackKind, returnKind string, arity int, kinds []string) (*CallSignature, error) {
	if _, exists := r.calls[name]; exists {
		return nil, fmt.Errorf("duplicate function name %q", name)
	}
	return r.DefineOrRedefine(name, callbackKind, returnKind, arity, kinds)
}

// AddEnum registers an enumeration constant
func (r *Registry) AddEnum(name string, value int64) error {
	if _, exists := r.enums[name]; exists {
		return fmt.Errorf("duplicate enumeration name %q", name)
	}
	r.enums[name] = value
	return nil
}

// Enum returns the value of an enumeration constant
func (r *Registry) Enum(name string) (int64, bool) {
	v, ok := r.enums[name]
	return v, ok
}

// AddString registers a named string constant
func (r *Registry) AddString(name, value string) error {
	if _, exists := r.strs[name]; exists {
		return fmt.Errorf("duplicate string name %q", name)
	}
	r.strs[name] = value
	return nil
}

// StringConst returns the value of a named string constant
func (r *Registry) StringConst(name string) (string, bool) {
	v, ok := r.strs[name]
	return v, ok
}

// AddAlias points alias at an existing call or macro
func (r *Registry) AddAlias(alias, real string) error {
	if _, exists := r.aliases[alias]; exists {
		return fmt.Errorf("duplicate alias name %q", alias)
	}
	entry := &AliasEntry{Name: alias}
	if sig, ok := r.calls[real]; ok {
		entry.Call = sig
	} else if m, ok := r.macros[real]; ok {
		entry.Macro = m
	} else {
		return fmt.Errorf("realname %q for alias %q not found", real, alias)
	}
	r.aliases[alias] = entry
	return nil
}

// AddMacro registers a macro. With strict set a duplicate is an error;
// otherwise the existing definition is replaced in place.
func (r *Registry) AddMacro(m *MacroDef, strict bool) error {
	existing, exists := r.macros[m.Name]
	if !exists {
		r.macros[m.Name] = m
		return nil
	}
	if strict {
		return fmt.Errorf("duplicate macro name %q", m.Name)
	}
	existing.Body = m.Body
	existing.vars = [26]*string{}
	return nil
}

// Macro returns the macro registered under name
func (r *Registry) Macro(name string) (*MacroDef, bool) {
	m, ok := r.macros[name]
	return m, ok
}

// AddLibrary appends a library to the search list
func (r *Registry) AddLibrary(lib *Library) error {
	if len(r.libs) >= MaxLibs {
		return fmt.Errorf("maximum amount of %d libraries reached", MaxLibs)
	}
	r.libs = append(r.libs, lib)
	return nil
}

// FindLibrary returns the listed library with the given name
func (r *Registry) FindLibrary(name string) (*Library, bool) {
	for _, lib := range r.libs {
		if lib.Name == name {
			return lib, true
		}
	}
	return nil, false
}

// Libraries returns the library search list in order
func (r *Registry) Libraries() []*Library {
	return r.libs
}

// Counts summarizes the registry contents
func (r *Registry) Counts() map[string]int {
	return map[string]int{
		"libraries": len(r.libs),
		"functions": len(r.calls),
		"aliases":   len(r.aliases),
		"enums":     len(r.enums),
		"strings":   len(r.strs),
		"macros":    len(r.macros),
	}
}
