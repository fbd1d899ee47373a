package gtkserver

import (
	"strconv"
	"strings"
	"sync"
)

// HandlerKind selects how a connected signal decodes its event
type HandlerKind int

const (
	HandlerGeneric HandlerKind = iota
	HandlerButton
	HandlerKey
	HandlerScroll
)

// HandlerFor picks the handler kind for a signal name. Both the dashed
// and the underscored spellings are recognized.
func HandlerFor(signal string) HandlerKind {
	sig := strings.ReplaceAll(strings.TrimSpace(signal), "_", "-")
	switch {
	case strings.HasPrefix(sig, "button-press-event"), strings.HasPrefix(sig, "button-release-event"):
		return HandlerButton
	case strings.HasPrefix(sig, "key-press-event"):
		return HandlerKey
	case strings.HasPrefix(sig, "scroll-event"):
		return HandlerScroll
	}
	return HandlerGeneric
}

// ConnectOptions describes one signal connection
type ConnectOptions struct {
	Handler     HandlerKind
	After       bool
	ReturnFalse bool
	// Response is reported by Wait when UseResponse is set; otherwise Wait
	// reports the widget address.
	Response    string
	UseResponse bool
}

// Event is what a fired signal reports to the bridge
type Event struct {
	Widget   uintptr
	Text     string
	HasText  bool
	Handler  HandlerKind
	Params   [7]uintptr
	NParams  int
	MouseX   int
	MouseY   int
	HasMouse bool
	Button   int
	Key      uint
	KeyState uint
	Scroll   int
}

// Loop is the GUI toolkit side of the bridge: one main-loop iteration,
// signal connections on raw widget addresses and timers.
type Loop interface {
	Iterate()
	Pending() bool
	Connect(widget uintptr, signal string, opts ConnectOptions, record func(Event)) (uint64, error)
	Disconnect(widget uintptr, id uint64) bool
	// AddTimeout emits signal on widget every ms milliseconds
	AddTimeout(ms uint, widget uintptr, signal string) uint64
	RemoveTimeout(id uint64) bool
}

// Field names a value kept from the most recent event
type Field int

const (
	FieldKey Field = iota
	FieldKeyState
	FieldMouseX
	FieldMouseY
	FieldButton
	FieldScroll
)

// EventState is the single-slot mailbox between fired signals and the
// request loop. The fields of the last event stay readable after the
// event itself has been consumed.
type EventState struct {
	mu    sync.Mutex
	fired bool
	last  Event
}

// NewEventState creates an empty mailbox
func NewEventState() *EventState {
	return &EventState{}
}

// Record merges ev into the mailbox and marks it fired. Fields the
// handler kind does not carry keep their previous values.
func (e *EventState) Record(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fired = true
	e.last.Widget = ev.Widget
	e.last.Text = ev.Text
	e.last.HasText = ev.HasText
	e.last.Handler = ev.Handler
	if ev.HasMouse {
		e.last.MouseX = ev.MouseX
		e.last.MouseY = ev.MouseY
		e.last.HasMouse = true
	}
	switch ev.Handler {
	case HandlerButton:
		e.last.Button = ev.Button
	case HandlerKey:
		e.last.Key = ev.Key
		e.last.KeyState = ev.KeyState
	case HandlerScroll:
		e.last.Scroll = ev.Scroll
	default:
		e.last.Params = ev.Params
		e.last.NParams = ev.NParams
	}
}

// Fired reports whether an unconsumed event is waiting
func (e *EventState) Fired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

// take consumes the waiting event, if any
func (e *EventState) take() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.fired {
		return Event{}, false
	}
	e.fired = false
	return e.last, true
}

// Last returns the most recent event, consumed or not
func (e *EventState) Last() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// ReadField returns a value of the most recent event
func (e *EventState) ReadField(f Field) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch f {
	case FieldKey:
		return int64(e.last.Key)
	case FieldKeyState:
		return int64(e.last.KeyState)
	case FieldMouseX:
		return int64(e.last.MouseX)
	case FieldMouseY:
		return int64(e.last.MouseY)
	case FieldButton:
		return int64(e.last.Button)
	case FieldScroll:
		return int64(e.last.Scroll)
	}
	return 0
}

func eventAnswer(ev Event) string {
	if ev.HasText {
		return ev.Text
	}
	return strconv.FormatUint(uint64(ev.Widget), 10)
}

// signalConn is one handler attached to a widget
type signalConn struct {
	widget uintptr
	id     uint64
}

// signalRecord groups the handlers connected with the same user data
type signalRecord struct {
	data  string
	conns []signalConn
}

func (s *Server) requireLoop(call string) Loop {
	if s.loop == nil {
		s.fatalf("No GUI event loop available for %s!", call)
	}
	return s.loop
}

// Wait blocks, iterating the main loop, until a connected signal fires.
// It returns the connection's response string, or the widget address.
func (s *Server) Wait() string {
	loop := s.requireLoop("gtk_server_callback")
	for {
		if ev, ok := s.events.take(); ok {
			s.logger.DebugCat(CatEvent, "event from widget %d", ev.Widget)
			return eventAnswer(ev)
		}
		loop.Iterate()
	}
}

// PollOnce drains pending main-loop work without blocking. It returns the
// answer of an event that fired meanwhile, or "0".
func (s *Server) PollOnce() string {
	loop := s.requireLoop("gtk_server_callback")
	for loop.Pending() {
		loop.Iterate()
		if s.events.Fired() {
			break
		}
	}
	if ev, ok := s.events.take(); ok {
		return eventAnswer(ev)
	}
	return "0"
}

// ReadField returns a field of the most recent event
func (s *Server) ReadField(f Field) int64 {
	return s.events.ReadField(f)
}

// connectSignal attaches a handler and remembers it under response
func (s *Server) connectSignal(widget uintptr, signal, response string, after, returnFalse bool) {
	loop := s.requireLoop("gtk_server_connect")
	opts := ConnectOptions{
		Handler:     HandlerFor(signal),
		After:       after,
		ReturnFalse: returnFalse,
		Response:    response,
		UseResponse: true,
	}
	id, err := loop.Connect(widget, strings.TrimSpace(signal), opts, s.events.Record)
	if err != nil {
		s.fatalf("Cannot find signal %s in GTK_SERVER_CONNECT!", signal)
	}
	s.signals = append(s.signals, &signalRecord{
		data:  response,
		conns: []signalConn{{widget: widget, id: id}},
	})
	s.logger.DebugCat(CatEvent, "connected %s on %d", signal, widget)
}

// disconnectSignal removes the handlers of widget that were connected with
// the first record matching response.
func (s *Server) disconnectSignal(widget uintptr, response string) string {
	loop := s.requireLoop("gtk_server_disconnect")
	for i, rec := range s.signals {
		if rec.data != response {
			continue
		}
		count := 0
		kept := rec.conns[:0]
		for _, c := range rec.conns {
			if c.widget == widget && loop.Disconnect(c.widget, c.id) {
				count++
				continue
			}
			kept = append(kept, c)
		}
		rec.conns = kept
		if count == 0 {
			return `WARNING: No widget with userdata "` + response + `" disconnected.`
		}
		s.signals = append(s.signals[:i], s.signals[i+1:]...)
		return OK
	}
	return `WARNING: Cannot disconnect signal because userdata "` + response + `" was not found.`
}

// registerWidget connects the default signal of a freshly created widget,
// so that Wait reports the widget address when it fires.
func (s *Server) registerWidget(widget uintptr, callbackKind string) {
	if widget == 0 || callbackKind == "" || strings.EqualFold(callbackKind, "NONE") {
		return
	}
	if s.loop == nil {
		s.logger.DebugCat(CatEvent, "no event loop, %s on %d not connected", callbackKind, widget)
		return
	}
	opts := ConnectOptions{Handler: HandlerFor(callbackKind)}
	id, err := s.loop.Connect(widget, callbackKind, opts, s.events.Record)
	if err != nil {
		s.fatalf("Cannot find signal %s in GTK_SERVER_CONNECT!", callbackKind)
	}
	s.signals = append(s.signals, &signalRecord{
		data:  callbackKind,
		conns: []signalConn{{widget: widget, id: id}},
	})
}

// callbackValue renders payload slot n of the most recent event as typ
func (s *Server) callbackValue(n int, typ string) string {
	ev := s.events.Last()
	if n == 0 {
		return strconv.FormatUint(uint64(ev.Widget), 10)
	}
	if n < 1 || n > len(ev.Params) {
		s.fatalf("Called gtk_server_callback_value with ILLEGAL argument.")
	}
	p := ev.Params[n-1]
	switch typ {
	case "STRING":
		if p == 0 || s.native == nil {
			return ""
		}
		return s.native.ReadCString(p)
	case "INT":
		return strconv.FormatInt(int64(int32(p)), 10)
	case "POINTER":
		return strconv.FormatUint(uint64(p), 10)
	}
	s.fatalf("Called gtk_server_callback_value with ILLEGAL argument.")
	return ""
}

// addTimer starts a periodic signal emission and returns its handle
func (s *Server) addTimer(ms uint, widget uintptr, signal string) uint64 {
	loop := s.requireLoop("gtk_server_timeout")
	id := loop.AddTimeout(ms, widget, signal)
	s.logger.DebugCat(CatEvent, "timer %d every %dms emits %s", id, ms, signal)
	return id
}

// removeTimer stops a timer started by addTimer
func (s *Server) removeTimer(id uint64) {
	loop := s.requireLoop("gtk_server_timeout_remove")
	if !loop.RemoveTimeout(id) {
		s.logger.WarnCat(CatEvent, "timer %d was not active", id)
	}
}
