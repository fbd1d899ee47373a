package gtkserver

import "fmt"

// FatalError is a condition after which the server must not continue:
// bad configuration, an unresolved symbol or a malformed call.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return e.Message
}

// FatalHandler reports a fatal error and ends the process. A handler that
// returns makes the server panic with the error instead.
type FatalHandler func(err *FatalError)

// PanicOnFatal is a FatalHandler that panics with the error, for embedding
// and tests that need to recover.
func PanicOnFatal(err *FatalError) {
	panic(err)
}

// RecoverFatal turns a panic raised by PanicOnFatal back into an error.
// Use it deferred: defer gtkserver.RecoverFatal(&err)
func RecoverFatal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*FatalError); ok {
		*errp = fe
		return
	}
	panic(r)
}

// fatalf raises a fatal error through the server's handler
func (s *Server) fatalf(format string, args ...interface{}) {
	err := &FatalError{Message: fmt.Sprintf(format, args...)}
	s.logger.Log(LevelFatal, CatNone, err.Message)
	if s.onFatal != nil {
		s.onFatal(err)
	}
	panic(err)
}
