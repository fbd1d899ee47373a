//go:build linux && cgo

// Command libgtkserver builds the dispatcher as a shared library that
// exports one entry point:
//
//	char *gtk(char *request);
//
// Build with: go build -buildmode=c-shared -o libgtk-server.so ./cmd/libgtkserver
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"os"
	"strings"
	"sync"
	"unsafe"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
	"github.com/smallbasic/smallbasic.plugins-sub001/pkg/ffi"
	"github.com/smallbasic/smallbasic.plugins-sub001/pkg/gtkloop"
)

// configCommand configures the library when it is the first request
const configCommand = "gtk_server_cfg"

var (
	mu     sync.Mutex
	server *gtkserver.Server
	// answer stays valid until the next call
	answer *C.char
)

//export gtk
func gtk(request *C.char) *C.char {
	mu.Lock()
	defer mu.Unlock()

	line := C.GoString(request)
	var out string
	if server == nil {
		var args []string
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == configCommand {
			args = fields[1:]
			line = ""
		}
		s, err := setup(args)
		if err != nil {
			out = err.Error()
		} else {
			server = s
			out = gtkserver.OK
		}
	}
	if server != nil && line != "" {
		out = server.Handle(line)
	}

	if answer != nil {
		C.free(unsafe.Pointer(answer))
	}
	answer = C.CString(out)
	return answer
}

// setup creates the server from command-line style options
func setup(args []string) (*gtkserver.Server, error) {
	st, err := gtkserver.LoadSettings(gtkserver.DefaultSettingsPath())
	if err != nil {
		return nil, err
	}
	opts, err := gtkserver.ParseOptions(args, st.Options(), nil)
	if err != nil {
		return nil, err
	}
	config := opts.Config()
	// the caller reads the answer as a C string
	config.NoNewline = true

	s := gtkserver.New(config)
	if opts.Log != "" {
		s.SetTraceLog(gtkserver.OpenTraceLog(opts.Log))
	}
	s.SetInvoker(ffi.New())
	if loop, err := gtkloop.New(); err == nil {
		s.SetLoop(loop)
	} else {
		s.Logger().WarnCat(gtkserver.CatSystem, "%v, running without event loop", err)
	}
	s.SetFatalHandler(func(*gtkserver.FatalError) { os.Exit(1) })
	s.SetExitHandler(func() {
		os.Stdout.WriteString(gtkserver.OK + "\n")
		os.Exit(0)
	})

	cfg := opts.Cfg
	if cfg == "" {
		found, ok := gtkserver.FindConfig()
		if !ok {
			return nil, &gtkserver.FatalError{Message: "No configuration file found!"}
		}
		cfg = found
	}
	if err := s.LoadConfigFile(cfg); err != nil {
		return nil, err
	}
	if opts.Start != "" {
		if _, err := s.Start(opts.Start); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func main() {}
