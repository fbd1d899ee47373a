// Package gtkloop connects the dispatcher to the GTK 3 main loop. Widgets
// are raw addresses handed out by native calls; signals on them are
// recorded into the dispatcher's event mailbox.
package gtkloop

/*
#cgo pkg-config: gtk+-3.0
#include <gtk/gtk.h>
#include <stdint.h>
#include <stdlib.h>

extern int gsLoopSignal(uintptr_t id, uintptr_t instance, uintptr_t* params, int n);

static gboolean gs_cb0(gpointer w, gpointer d) {
	uintptr_t p[7] = {0};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 0);
}
static gboolean gs_cb1(gpointer w, gpointer a, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 1);
}
static gboolean gs_cb2(gpointer w, gpointer a, gpointer b, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 2);
}
static gboolean gs_cb3(gpointer w, gpointer a, gpointer b, gpointer c, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b, (uintptr_t)c};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 3);
}
static gboolean gs_cb4(gpointer w, gpointer a, gpointer b, gpointer c, gpointer e, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b, (uintptr_t)c, (uintptr_t)e};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 4);
}
static gboolean gs_cb5(gpointer w, gpointer a, gpointer b, gpointer c, gpointer e,
    gpointer f, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b, (uintptr_t)c, (uintptr_t)e, (uintptr_t)f};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 5);
}
static gboolean gs_cb6(gpointer w, gpointer a, gpointer b, gpointer c, gpointer e,
    gpointer f, gpointer g, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b, (uintptr_t)c, (uintptr_t)e, (uintptr_t)f,
		(uintptr_t)g};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 6);
}
static gboolean gs_cb7(gpointer w, gpointer a, gpointer b, gpointer c, gpointer e,
    gpointer f, gpointer g, gpointer h, gpointer d) {
	uintptr_t p[7] = {(uintptr_t)a, (uintptr_t)b, (uintptr_t)c, (uintptr_t)e, (uintptr_t)f,
		(uintptr_t)g, (uintptr_t)h};
	return gsLoopSignal((uintptr_t)d, (uintptr_t)w, p, 7);
}

static GCallback gs_callback(int n) {
	switch (n) {
	case 0: return G_CALLBACK(gs_cb0);
	case 1: return G_CALLBACK(gs_cb1);
	case 2: return G_CALLBACK(gs_cb2);
	case 3: return G_CALLBACK(gs_cb3);
	case 4: return G_CALLBACK(gs_cb4);
	case 5: return G_CALLBACK(gs_cb5);
	case 6: return G_CALLBACK(gs_cb6);
	case 7: return G_CALLBACK(gs_cb7);
	}
	return NULL;
}

// gs_signal_params returns the parameter count of a signal, or -1
static int gs_signal_params(uintptr_t w, const char* sig) {
	guint id;
	GQuark detail;
	if (!G_IS_OBJECT((gpointer)w))
		return -1;
	if (!g_signal_parse_name(sig, G_OBJECT_TYPE((gpointer)w), &id, &detail, TRUE))
		return -1;
	GSignalQuery q;
	g_signal_query(id, &q);
	return (int)q.n_params;
}

static gulong gs_connect(uintptr_t w, const char* sig, int n, uintptr_t id, int after) {
	GCallback cb = gs_callback(n);
	if (cb == NULL)
		return 0;
	return g_signal_connect_data((gpointer)w, sig, cb, (gpointer)id, NULL,
		after ? G_CONNECT_AFTER : 0);
}

static int gs_disconnect(uintptr_t w, gulong h) {
	if (!G_IS_OBJECT((gpointer)w) || !g_signal_handler_is_connected((gpointer)w, h))
		return 0;
	g_signal_handler_disconnect((gpointer)w, h);
	return 1;
}

static int gs_pointer(uintptr_t w, int* x, int* y) {
	*x = 0;
	*y = 0;
	if (!GTK_IS_WIDGET((gpointer)w))
		return 0;
	GdkWindow* win = gtk_widget_get_window(GTK_WIDGET((gpointer)w));
	if (win == NULL)
		return 0;
	GdkSeat* seat = gdk_display_get_default_seat(gdk_window_get_display(win));
	if (seat == NULL)
		return 0;
	gdk_window_get_device_position(win, gdk_seat_get_pointer(seat), x, y, NULL);
	return 1;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

// binding is one connected handler
type binding struct {
	widget uintptr
	opts   gtkserver.ConnectOptions
	record func(gtkserver.Event)

	native C.gulong
	obj    *glib.Object
	handle glib.SignalHandle
}

var (
	bindingsMu sync.Mutex
	bindings   = map[uint64]*binding{}
	nextID     uint64
)

func addBinding(b *binding) uint64 {
	bindingsMu.Lock()
	defer bindingsMu.Unlock()
	nextID++
	bindings[nextID] = b
	return nextID
}

func findBinding(id uint64) *binding {
	bindingsMu.Lock()
	defer bindingsMu.Unlock()
	return bindings[id]
}

func dropBinding(id uint64) *binding {
	bindingsMu.Lock()
	defer bindingsMu.Unlock()
	b := bindings[id]
	delete(bindings, id)
	return b
}

// Loop implements gtkserver.Loop on the default GTK main context. All
// methods must run on the thread that initialized GTK.
type Loop struct {
	mu     sync.Mutex
	timers map[uint64]glib.SourceHandle
	nextT  uint64
}

// New initializes GTK and returns the loop
func New() (*Loop, error) {
	if err := gtk.InitCheck(nil); err != nil {
		return nil, fmt.Errorf("cannot initialize GTK: %w", err)
	}
	return &Loop{timers: make(map[uint64]glib.SourceHandle)}, nil
}

func (l *Loop) Iterate() {
	gtk.MainIteration()
}

func (l *Loop) Pending() bool {
	return gtk.EventsPending()
}

func object(widget uintptr) *glib.Object {
	return &glib.Object{GObject: glib.ToGObject(unsafe.Pointer(widget))}
}

// Connect attaches a handler for signal on widget. Button, key and scroll
// events are decoded through gdk; other signals get their raw parameters.
func (l *Loop) Connect(widget uintptr, signal string, opts gtkserver.ConnectOptions, record func(gtkserver.Event)) (uint64, error) {
	if widget == 0 {
		return 0, errors.New("NULL widget")
	}
	b := &binding{widget: widget, opts: opts, record: record}

	if opts.Handler != gtkserver.HandlerGeneric {
		b.obj = object(widget)
		handler := func(_ interface{}, ev *gdk.Event) bool {
			return b.fire(decodeEvent(opts.Handler, ev))
		}
		if opts.After {
			b.handle = b.obj.ConnectAfter(signal, handler)
		} else {
			b.handle = b.obj.Connect(signal, handler)
		}
		return addBinding(b), nil
	}

	cs := C.CString(signal)
	defer C.free(unsafe.Pointer(cs))
	n := C.gs_signal_params(C.uintptr_t(widget), cs)
	if n < 0 {
		return 0, fmt.Errorf("unknown signal %s", signal)
	}
	if n > 7 {
		return 0, fmt.Errorf("signal %s has %d parameters", signal, int(n))
	}

	id := addBinding(b)
	after := C.int(0)
	if opts.After {
		after = 1
	}
	b.native = C.gs_connect(C.uintptr_t(widget), cs, n, C.uintptr_t(id), after)
	if b.native == 0 {
		dropBinding(id)
		return 0, fmt.Errorf("cannot connect signal %s", signal)
	}
	return id, nil
}

func (l *Loop) Disconnect(widget uintptr, id uint64) bool {
	b := findBinding(id)
	if b == nil || b.widget != widget {
		return false
	}
	dropBinding(id)
	if b.obj != nil {
		b.obj.HandlerDisconnect(b.handle)
		return true
	}
	return C.gs_disconnect(C.uintptr_t(widget), b.native) != 0
}

// AddTimeout emits signal on widget every ms milliseconds until removed
func (l *Loop) AddTimeout(ms uint, widget uintptr, signal string) uint64 {
	obj := object(widget)
	src := glib.TimeoutAdd(ms, func() bool {
		_, err := obj.Emit(signal)
		return err == nil
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextT++
	l.timers[l.nextT] = src
	return l.nextT
}

func (l *Loop) RemoveTimeout(id uint64) bool {
	l.mu.Lock()
	src, ok := l.timers[id]
	delete(l.timers, id)
	l.mu.Unlock()
	if !ok {
		return false
	}
	glib.SourceRemove(src)
	return true
}

// fire records ev and returns the value the signal handler reports
func (b *binding) fire(ev gtkserver.Event) bool {
	ev.Widget = b.widget
	if b.opts.UseResponse {
		ev.Text = b.opts.Response
		ev.HasText = true
	}
	if !ev.HasMouse {
		var x, y C.int
		if C.gs_pointer(C.uintptr_t(b.widget), &x, &y) != 0 {
			ev.MouseX, ev.MouseY, ev.HasMouse = int(x), int(y), true
		}
	}
	b.record(ev)
	return !b.opts.ReturnFalse
}

func decodeEvent(kind gtkserver.HandlerKind, e *gdk.Event) gtkserver.Event {
	ev := gtkserver.Event{Handler: kind}
	if e == nil {
		return ev
	}
	switch kind {
	case gtkserver.HandlerButton:
		btn := gdk.EventButtonNewFromEvent(e)
		ev.Button = int(btn.Button())
		ev.MouseX, ev.MouseY, ev.HasMouse = int(btn.X()), int(btn.Y()), true
	case gtkserver.HandlerKey:
		key := gdk.EventKeyNewFromEvent(e)
		ev.Key = key.KeyVal()
		ev.KeyState = key.State()
	case gtkserver.HandlerScroll:
		scroll := gdk.EventScrollNewFromEvent(e)
		ev.Scroll = int(scroll.Direction())
		ev.MouseX, ev.MouseY, ev.HasMouse = int(scroll.X()), int(scroll.Y()), true
	}
	return ev
}
