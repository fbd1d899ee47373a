// Package gtkserver implements a line-protocol server that lets any
// language drive a GUI toolkit: each request line names a native function,
// a built-in command or a macro, and each request gets exactly one
// response line.
//
// Basic usage:
//
//	s := gtkserver.New(gtkserver.DefaultConfig())
//	s.SetInvoker(ffi.New())
//	s.SetLoop(gtkloop.New())
//	if err := s.LoadConfigFile("gtk-server.cfg"); err != nil {
//		log.Fatal(err)
//	}
//	fmt.Print(s.Handle("gtk_init NULL NULL"))
package gtkserver

import (
	"sync"
)

// Server is one dispatcher instance with its registry, event mailbox and
// formatting options.
type Server struct {
	mu sync.Mutex

	config    *Config
	registry  *Registry
	logger    *Logger
	trace     *TraceLog
	formatter *Formatter

	native NativeInvoker
	loop   Loop

	onFatal FatalHandler
	onExit  func()

	calls    *CallState
	events   *EventState
	signals  []*signalRecord
	symbols  map[string]uintptr
	assocs   map[string]string
	builtins map[string]BuiltinFunc

	trampoline uintptr
	dataWidth  int
}

// New creates a new server
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.LibSequence == 0 {
		config.LibSequence = DefaultLibSequence
	}
	if config.EscapeChars == "" {
		config.EscapeChars = DefaultEscapeChars
	}

	logger := NewLogger(config.Debug)
	if config.Debug {
		logger.EnableAllCategories()
	}

	s := &Server{
		config:    config,
		registry:  NewRegistry(),
		logger:    logger,
		formatter: NewFormatter(config),
		calls:     NewCallState(),
		events:    NewEventState(),
		symbols:   make(map[string]uintptr),
		assocs:    make(map[string]string),
		builtins:  make(map[string]BuiltinFunc),
	}

	s.RegisterStandardLibrary()
	return s
}

// Config returns the live configuration
func (s *Server) Config() *Config {
	return s.config
}

// Registry returns the signature registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Logger returns the diagnostic logger
func (s *Server) Logger() *Logger {
	return s.logger
}

// Events returns the event mailbox
func (s *Server) Events() *EventState {
	return s.events
}

// SetLogger replaces the diagnostic logger
func (s *Server) SetLogger(logger *Logger) {
	s.logger = logger
}

// SetInvoker installs the native call backend
func (s *Server) SetInvoker(native NativeInvoker) {
	s.native = native
}

// SetLoop installs the GUI event loop
func (s *Server) SetLoop(loop Loop) {
	s.loop = loop
}

// SetFatalHandler installs the handler that reports fatal errors
func (s *Server) SetFatalHandler(h FatalHandler) {
	s.onFatal = h
}

// SetExitHandler installs the action run by gtk_server_exit
func (s *Server) SetExitHandler(fn func()) {
	s.onExit = fn
}

// SetTraceLog installs the request trace
func (s *Server) SetTraceLog(t *TraceLog) {
	s.trace = t
}

// Close disconnects every signal handler the server attached
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		for _, rec := range s.signals {
			for _, c := range rec.conns {
				s.loop.Disconnect(c.widget, c.id)
			}
		}
	}
	s.signals = nil
}
