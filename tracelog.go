package gtkserver

import (
	"strings"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const traceLogName = "gtk-server"

// TraceLog records every request, answer and executed macro line
type TraceLog struct {
	log commonlog.Logger
}

// OpenTraceLog directs the request trace to the file at path
func OpenTraceLog(path string) *TraceLog {
	commonlog.Configure(1, &path)
	return &TraceLog{log: commonlog.GetLogger(traceLogName)}
}

// NewTraceLog wraps an already configured commonlog logger
func NewTraceLog(log commonlog.Logger) *TraceLog {
	return &TraceLog{log: log}
}

// Script records an incoming request line
func (t *TraceLog) Script(line string) {
	if t == nil || t.log == nil {
		return
	}
	t.log.Noticef("SCRIPT: %s", strings.TrimRight(line, "\r\n"))
}

// Server records an outgoing answer
func (t *TraceLog) Server(answer string) {
	if t == nil || t.log == nil {
		return
	}
	t.log.Noticef("SERVER: %s", strings.TrimRight(answer, "\r\n"))
}

// Macro records one executed macro line
func (t *TraceLog) Macro(name, text string) {
	if t == nil || t.log == nil {
		return
	}
	t.log.Noticef("MACRO '%s': %s", name, text)
}

func (s *Server) traceScript(line string) {
	s.trace.Script(line)
}

func (s *Server) traceServer(answer string) {
	s.trace.Server(answer)
}

func (s *Server) traceMacro(name, text string) {
	s.trace.Macro(name, text)
}
