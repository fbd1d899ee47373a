package gtkserver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestServer returns a server that panics on fatal errors and logs nowhere
func newTestServer(t *testing.T, config *Config) *Server {
	t.Helper()
	s := New(config)
	s.SetLogger(NewLoggerTo(io.Discard, false))
	s.SetFatalHandler(PanicOnFatal)
	return s
}

func mustLoad(t *testing.T, s *Server, text string) {
	t.Helper()
	if err := s.LoadConfig(strings.NewReader(text), "test.cfg"); err != nil {
		t.Fatalf("Config failed to load: %v", err)
	}
}

// loadFile writes text to a temporary configuration file and loads it,
// which also opens the listed libraries.
func loadFile(t *testing.T, s *Server, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtk-server.cfg")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("Cannot write config: %v", err)
	}
	if err := s.LoadConfigFile(path); err != nil {
		t.Fatalf("Config failed to load: %v", err)
	}
	return path
}

// expectFatal runs line and returns the fatal message it must produce
func expectFatal(t *testing.T, s *Server, line string) string {
	t.Helper()
	out, err := s.HandleErr(line)
	if err == nil {
		t.Fatalf("Expected a fatal error for %q, got answer %q", line, out)
	}
	return err.Error()
}

// nativeFunc is the Go body behind a fake native symbol
type nativeFunc func(args []ArgValue) ReturnValue

// fakeCall records one performed call
type fakeCall struct {
	Name  string
	Ret   Kind
	Kinds []Kind
	Fixed int
	Args  []ArgValue
}

// fakeInvoker is an in-memory NativeInvoker
type fakeInvoker struct {
	libs     map[string]uintptr
	funcs    map[string]nativeFunc
	addrs    map[uintptr]string
	mem      map[uintptr][]byte
	strs     map[uintptr]string
	next     uintptr
	hook     func(args [8]uintptr) uintptr
	calls    []fakeCall
	opened   []string
	prepared int
}

const fakeTrampoline = 0x7000

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		libs:  map[string]uintptr{"libtest.so": 1},
		funcs: make(map[string]nativeFunc),
		addrs: make(map[uintptr]string),
		mem:   make(map[uintptr][]byte),
		strs:  make(map[uintptr]string),
		next:  0x1000,
	}
}

// define registers a Go function as a symbol of every library
func (f *fakeInvoker) define(name string, fn nativeFunc) {
	f.funcs[name] = fn
	f.next += 0x10
	f.addrs[f.next] = name
}

func (f *fakeInvoker) addrOf(name string) uintptr {
	for a, n := range f.addrs {
		if n == name {
			return a
		}
	}
	return 0
}

func (f *fakeInvoker) Name() string { return "fake" }

func (f *fakeInvoker) Open(path string) (uintptr, error) {
	f.opened = append(f.opened, path)
	if h, ok := f.libs[path]; ok {
		return h, nil
	}
	return 0, fmt.Errorf("%s: cannot open shared object file", path)
}

func (f *fakeInvoker) Symbol(lib uintptr, name string) (uintptr, bool) {
	a := f.addrOf(name)
	return a, a != 0
}

func (f *fakeInvoker) Prepare(ret Kind, args []Kind, fixed int) (CallPlan, error) {
	f.prepared++
	return &fakePlan{inv: f, ret: ret, kinds: append([]Kind(nil), args...), fixed: fixed}, nil
}

func (f *fakeInvoker) ReadMemory(addr uintptr, n int) []byte {
	out := make([]byte, n)
	copy(out, f.mem[addr])
	return out
}

func (f *fakeInvoker) ReadCString(addr uintptr) string {
	return f.strs[addr]
}

func (f *fakeInvoker) Alloc(n int) uintptr {
	f.next += 0x100
	f.mem[f.next] = make([]byte, n)
	return f.next
}

func (f *fakeInvoker) CString(s string) uintptr {
	f.next += 0x10
	f.strs[f.next] = s
	return f.next
}

func (f *fakeInvoker) Trampoline(hook func(args [8]uintptr) uintptr) uintptr {
	f.hook = hook
	return fakeTrampoline
}

// fire calls the installed trampoline hook as native code would
func (f *fakeInvoker) fire(args ...uintptr) uintptr {
	var in [8]uintptr
	copy(in[:], args)
	return f.hook(in)
}

func (f *fakeInvoker) lastCall() fakeCall {
	if len(f.calls) == 0 {
		return fakeCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakePlan struct {
	inv   *fakeInvoker
	ret   Kind
	kinds []Kind
	fixed int
	args  []ArgValue
}

func (p *fakePlan) PushArg(v ArgValue) error {
	p.args = append(p.args, v)
	return nil
}

func (p *fakePlan) Call(fn uintptr) (ReturnValue, error) {
	name := p.inv.addrs[fn]
	p.inv.calls = append(p.inv.calls, fakeCall{Name: name, Ret: p.ret, Kinds: p.kinds, Fixed: p.fixed, Args: p.args})
	impl, ok := p.inv.funcs[name]
	if !ok {
		return ReturnValue{}, fmt.Errorf("no function at %d", fn)
	}
	return impl(p.args), nil
}

// fakeConn is one connection held by fakeLoop
type fakeConn struct {
	widget uintptr
	signal string
	opts   ConnectOptions
	record func(Event)
}

// fakeLoop is a Loop whose events are queued by the test
type fakeLoop struct {
	conns    map[uint64]*fakeConn
	next     uint64
	queue    []func()
	timers   map[uint64]string
	nextT    uint64
	iterated int
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{conns: make(map[uint64]*fakeConn), timers: make(map[uint64]string)}
}

func (l *fakeLoop) Iterate() {
	l.iterated++
	if len(l.queue) == 0 {
		return
	}
	ev := l.queue[0]
	l.queue = l.queue[1:]
	ev()
}

func (l *fakeLoop) Pending() bool {
	return len(l.queue) > 0
}

func (l *fakeLoop) Connect(widget uintptr, signal string, opts ConnectOptions, record func(Event)) (uint64, error) {
	if signal == "no-such-signal" {
		return 0, fmt.Errorf("unknown signal %s", signal)
	}
	l.next++
	l.conns[l.next] = &fakeConn{widget: widget, signal: signal, opts: opts, record: record}
	return l.next, nil
}

func (l *fakeLoop) Disconnect(widget uintptr, id uint64) bool {
	c, ok := l.conns[id]
	if !ok || c.widget != widget {
		return false
	}
	delete(l.conns, id)
	return true
}

func (l *fakeLoop) AddTimeout(ms uint, widget uintptr, signal string) uint64 {
	l.nextT++
	l.timers[l.nextT] = signal
	return l.nextT
}

func (l *fakeLoop) RemoveTimeout(id uint64) bool {
	if _, ok := l.timers[id]; !ok {
		return false
	}
	delete(l.timers, id)
	return true
}

// emit queues a signal on widget, delivered by the next Iterate
func (l *fakeLoop) emit(widget uintptr, signal string, ev Event) {
	l.queue = append(l.queue, func() {
		for _, c := range l.conns {
			if c.widget != widget || c.signal != signal {
				continue
			}
			e := ev
			e.Widget = widget
			e.Handler = c.opts.Handler
			if c.opts.UseResponse {
				e.Text, e.HasText = c.opts.Response, true
			}
			c.record(e)
		}
	})
}
