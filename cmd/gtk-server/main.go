//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/sqweek/dialog"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
	"github.com/smallbasic/smallbasic.plugins-sub001/pkg/ffi"
	"github.com/smallbasic/smallbasic.plugins-sub001/pkg/gtkloop"
)

// detachedEnv marks the background copy started by -detach
const detachedEnv = "GTK_SERVER_DETACHED"

func init() {
	// GTK must be driven from the thread that initialized it
	runtime.LockOSThread()
}

// app holds the process-wide state around one server
type app struct {
	opts   *gtkserver.Options
	server *gtkserver.Server
	log    *gtkserver.Logger

	// out receives the final "ok" of gtk_server_exit
	out      io.Writer
	cleanups []func()
	onFatal  gtkserver.FatalHandler
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := loadOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gtk-server: %v\n", err)
		showUsage()
		return 1
	}

	if opts.Version {
		fmt.Printf("GTK-server %s\n", gtkserver.Version)
		return 0
	}
	if opts.Mode == gtkserver.ModeNone && !opts.ShowConf {
		showUsage()
		return 1
	}
	if opts.Detach && os.Getenv(detachedEnv) == "" {
		if err := detach(args); err != nil {
			fmt.Fprintf(os.Stderr, "gtk-server: cannot detach: %v\n", err)
			return 1
		}
		return 0
	}

	a := newApp(opts)
	defer a.shutdown()
	defer a.server.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.shutdown()
		os.Exit(130)
	}()

	if !a.loadConfig() {
		return 1
	}

	if opts.ShowConf {
		showConfig(a.server)
		return 0
	}

	if opts.Start != "" {
		if _, err := a.server.Start(opts.Start); err != nil {
			a.log.Error("%v", err)
			return 1
		}
	}

	if err := a.serve(); err != nil {
		a.log.Error("%v", err)
		return 1
	}
	return 0
}

// loadOptions reads the settings file, then applies the command line on top
func loadOptions(args []string) (*gtkserver.Options, error) {
	pre, err := gtkserver.ParseOptions(args, nil, io.Discard)
	if err != nil {
		return nil, err
	}
	path := pre.Settings
	if path == "" {
		path = gtkserver.DefaultSettingsPath()
	}
	st, err := gtkserver.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return gtkserver.ParseOptions(args, st.Options(), os.Stderr)
}

func newApp(opts *gtkserver.Options) *app {
	config := opts.Config()
	s := gtkserver.New(config)
	a := &app{opts: opts, server: s, log: s.Logger(), out: os.Stdout}

	if opts.Log != "" {
		s.SetTraceLog(gtkserver.OpenTraceLog(opts.Log))
	}
	s.SetInvoker(ffi.New())
	if loop, err := gtkloop.New(); err != nil {
		a.log.WarnCat(gtkserver.CatSystem, "%v, running without event loop", err)
	} else {
		s.SetLoop(loop)
	}
	a.onFatal = a.fatal
	s.SetFatalHandler(a.fatal)
	s.SetExitHandler(a.exit)
	return a
}

// loadConfig finds and loads the configuration file. A failure is fatal.
func (a *app) loadConfig() bool {
	cfg := a.opts.Cfg
	if cfg == "" {
		found, ok := gtkserver.FindConfig()
		if !ok {
			a.fail("No configuration file found!")
			return false
		}
		cfg = found
	}
	if err := a.server.LoadConfigFile(cfg); err != nil {
		a.fail(err.Error())
		return false
	}
	return true
}

func (a *app) fail(msg string) {
	a.log.Error("%s", msg)
	if a.onFatal != nil {
		a.onFatal(&gtkserver.FatalError{Message: msg})
	}
}

// fatal reports err and ends the process. The server already logged it.
func (a *app) fatal(err *gtkserver.FatalError) {
	if a.opts.Dialog {
		dialog.Message("%s", err.Message).Title("GTK-server Error!").Error()
	}
	a.signalParent()
	a.shutdown()
	os.Exit(1)
}

// exit implements gtk_server_exit
func (a *app) exit() {
	config := a.server.Config()
	if config.EchoExit && a.out != nil {
		answer := gtkserver.OK
		if !config.NoNewline {
			answer += "\n"
		}
		io.WriteString(a.out, answer)
	}
	a.signalParent()
	a.shutdown()
	os.Exit(0)
}

func (a *app) signalParent() {
	if a.opts.Signal <= 0 {
		return
	}
	if err := syscall.Kill(os.Getppid(), syscall.Signal(a.opts.Signal)); err != nil {
		a.log.WarnCat(gtkserver.CatSystem, "cannot signal parent: %v", err)
	}
}

func (a *app) onShutdown(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// shutdown runs the registered cleanups once, newest first
func (a *app) shutdown() {
	fns := a.cleanups
	a.cleanups = nil
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// detach starts a copy of the server in a new session and returns
func detach(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), detachedEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func showConfig(s *gtkserver.Server) {
	reg := s.Registry()
	for _, lib := range reg.Libraries() {
		status := "opened"
		if lib.Handle == 0 {
			status = "not opened: " + lib.Err
		}
		fmt.Printf("library %s (%s)\n", lib.Name, status)
	}
	counts := reg.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %d\n", k, counts[k])
	}
}

func showUsage() {
	usage := `Usage: gtk-server <stdin | tcp=host:port[:max] | udp=host:port | fifo=file> [options]

Options (the leading '-' is optional):
  cfg=<file>        Configuration file (default: ~/.gtk4bas, /etc/gtk-server.cfg,
                    /usr/local/etc/gtk-server.cfg, ./gtk-server.cfg)
  log=<file>        Append every request and answer to file
  pre=<string>      Prefix for every answer
  post=<string>     Suffix for every answer
  handle            Requests start with a handle that is echoed back
  nonl              Do not end answers with a newline
  signal=<n>        Send signal n to the parent process on exit
  start=<macro>     Run macro after the configuration is loaded
  init=<string>     First answer sent in stdin mode
  detach            Run in the background
  debug             Enable debug output on stderr
  dialog            Show fatal errors in a dialog
  settings=<file>   Settings file with option defaults
  showconf          Print the loaded configuration and exit
  version           Show version and exit
`
	fmt.Fprint(os.Stderr, usage)
}
