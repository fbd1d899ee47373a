package gtkserver

import (
	"fmt"
	"strings"
)

// Context is passed to builtin handlers
type Context struct {
	Name   string
	Args   []string
	server *Server
}

// BuiltinFunc is the signature of a builtin command handler
type BuiltinFunc func(ctx *Context) Reply

// Arg returns argument i. A missing argument is fatal; what names the
// argument in the error message.
func (c *Context) Arg(i int, what string) string {
	if i >= len(c.Args) {
		c.server.fatalf("Cannot find %s in %s!", what, strings.ToUpper(c.Name))
	}
	return c.Args[i]
}

// OptArg returns argument i, if present
func (c *Context) OptArg(i int) (string, bool) {
	if i >= len(c.Args) {
		return "", false
	}
	return c.Args[i], true
}

// Fatalf raises a fatal error
func (c *Context) Fatalf(format string, args ...interface{}) {
	c.server.fatalf(format, args...)
}

// Server returns the server running the command
func (c *Context) Server() *Server {
	return c.server
}

// RegisterCommand registers a builtin under name and its uppercase spelling
func (s *Server) RegisterCommand(name string, handler BuiltinFunc) {
	s.builtins[name] = handler
	if upper := strings.ToUpper(name); upper != name {
		s.builtins[upper] = handler
	}
}

// Handle runs one request line and returns the formatted response line
func (s *Server) Handle(line string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traceScript(line)
	tokens := ParseLine(line)
	s.logger.TraceCat(CatParse, "request %q: %d tokens", line, len(tokens))

	handle := ""
	if s.config.UseHandle && len(tokens) > 0 {
		handle = tokens[0] + " "
		tokens = tokens[1:]
	}

	r := s.dispatch(tokens)
	out := s.formatter.Format(handle, s.config.Prefix, r.Value, s.config.Suffix, r.Escape)
	s.traceServer(out)
	return out
}

// HandleErr runs one request line and returns a fatal error instead of
// ending the process. The fatal handler is bypassed for the call.
func (s *Server) HandleErr(line string) (out string, err error) {
	saved := s.onFatal
	s.onFatal = PanicOnFatal
	defer func() { s.onFatal = saved }()
	defer RecoverFatal(&err)
	return s.Handle(line), nil
}

// execute runs a line without handle token or formatting. Macros and
// callbacks use it to re-enter the dispatcher.
func (s *Server) execute(line string) Reply {
	return s.dispatch(ParseLine(line))
}

// dispatch resolves the first token as builtin, call or macro, in that
// order; an unknown name yields "-1".
func (s *Server) dispatch(tokens []string) Reply {
	if len(tokens) == 0 {
		return okReply(NotFound)
	}
	name, args := tokens[0], tokens[1:]

	if fn, ok := s.builtins[name]; ok {
		s.logger.DebugCat(CatCall, "builtin %s", name)
		return fn(&Context{Name: name, Args: args, server: s})
	}

	if sig, ok := s.registry.ResolveCall(name); ok {
		return s.callNative(sig, args)
	}

	if m, ok := s.registry.ResolveMacro(name); ok {
		s.logger.DebugCat(CatMacro, "macro %s with %d args", name, len(args))
		return s.runMacro(m, name, args)
	}

	s.logger.DebugCat(CatCall, "unknown command %s", name)
	return okReply(NotFound)
}

// Start runs the startup macro, if any, and returns its result
func (s *Server) Start(macro string) (string, error) {
	m, ok := s.registry.ResolveMacro(macro)
	if !ok {
		return "", fmt.Errorf("startup macro %q not found", macro)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runMacro(m, macro, nil).Value, nil
}
