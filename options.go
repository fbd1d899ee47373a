package gtkserver

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Mode is the transport a server instance listens on
type Mode int

const (
	ModeNone Mode = iota
	ModeStdin
	ModeTCP
	ModeUDP
	ModeFIFO
)

func (m Mode) String() string {
	switch m {
	case ModeStdin:
		return "stdin"
	case ModeTCP:
		return "tcp"
	case ModeUDP:
		return "udp"
	case ModeFIFO:
		return "fifo"
	}
	return "none"
}

// Options are the startup options of a server process
type Options struct {
	Mode     Mode
	Address  string
	MaxConns int

	Cfg  string
	Log  string
	Pre  string
	Post string

	Handle      bool
	NoNewline   bool
	Signal      int
	Start       string
	Init        string
	Detach      bool
	Debug       bool
	ShowConf    bool
	Version     bool
	Dialog      bool
	Settings    string
	EscapeChars string
	LineCount   bool
}

// ParseOptions parses gtk-server style arguments on top of base. The
// leading '-' of each option is optional, so "cfg=file" and "-cfg=file"
// are the same.
func ParseOptions(args []string, base *Options, output io.Writer) (*Options, error) {
	o := &Options{}
	if base != nil {
		*o = *base
	}

	fs := flag.NewFlagSet("gtk-server", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	} else {
		fs.SetOutput(io.Discard)
	}

	stdin := fs.Bool("stdin", o.Mode == ModeStdin, "Read requests from standard input")
	tcp := fs.String("tcp", "", "Listen on host:port[:maxconnections]")
	udp := fs.String("udp", "", "Listen for datagrams on host:port")
	fifo := fs.String("fifo", "", "Communicate through the named pipe at this path")

	fs.StringVar(&o.Cfg, "cfg", o.Cfg, "Configuration file")
	fs.StringVar(&o.Log, "log", o.Log, "Request trace file")
	fs.StringVar(&o.Pre, "pre", o.Pre, "Prefix for every response")
	fs.StringVar(&o.Post, "post", o.Post, "Suffix for every response")
	fs.BoolVar(&o.Handle, "handle", o.Handle, "Requests start with a handle that is echoed back")
	fs.BoolVar(&o.NoNewline, "nonl", o.NoNewline, "Do not end responses with a newline")
	fs.IntVar(&o.Signal, "signal", o.Signal, "Signal sent to the parent process on exit")
	fs.StringVar(&o.Start, "start", o.Start, "Macro run after configuration is loaded")
	fs.StringVar(&o.Init, "init", o.Init, "String returned as the first response")
	fs.BoolVar(&o.Detach, "detach", o.Detach, "Run in the background")
	fs.BoolVar(&o.Debug, "debug", o.Debug, "Enable debug output")
	fs.BoolVar(&o.ShowConf, "showconf", o.ShowConf, "Print the parsed configuration and exit")
	fs.BoolVar(&o.Version, "version", o.Version, "Show version")
	fs.BoolVar(&o.Dialog, "dialog", o.Dialog, "Show fatal errors in a dialog")
	fs.StringVar(&o.Settings, "settings", o.Settings, "Settings file")

	if err := fs.Parse(normalizeArgs(args)); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unknown argument %q", fs.Arg(0))
	}

	modes := 0
	if *stdin {
		o.Mode = ModeStdin
		modes++
	}
	if *tcp != "" {
		addr, max, err := splitTCPAddress(*tcp)
		if err != nil {
			return nil, err
		}
		o.Mode, o.Address, o.MaxConns = ModeTCP, addr, max
		modes++
	}
	if *udp != "" {
		o.Mode, o.Address = ModeUDP, *udp
		modes++
	}
	if *fifo != "" {
		o.Mode, o.Address = ModeFIFO, *fifo
		modes++
	}
	if modes > 1 {
		return nil, fmt.Errorf("only one of stdin, tcp, udp or fifo may be given")
	}
	return o, nil
}

func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" && !strings.HasPrefix(a, "-") {
			a = "-" + a
		}
		out = append(out, a)
	}
	return out
}

// splitTCPAddress separates an optional connection limit from host:port
func splitTCPAddress(s string) (string, int, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return s, 0, nil
	case 3:
		max, err := strconv.Atoi(parts[2])
		if err != nil || max < 0 {
			return "", 0, fmt.Errorf("illegal maximum connections in %q", s)
		}
		return parts[0] + ":" + parts[1], max, nil
	}
	return "", 0, fmt.Errorf("illegal tcp address %q, expected host:port[:max]", s)
}

// Config builds a server configuration from the options
func (o *Options) Config() *Config {
	c := DefaultConfig()
	c.Prefix = o.Pre
	c.Suffix = o.Post
	c.UseHandle = o.Handle
	c.NoNewline = o.NoNewline
	c.Debug = o.Debug
	c.ExitSignal = o.Signal
	c.LineCount = o.LineCount
	if o.EscapeChars != "" {
		c.EscapeChars = o.EscapeChars
	}
	c.EchoExit = o.Mode == ModeStdin || o.Mode == ModeFIFO || o.Mode == ModeNone
	return c
}
