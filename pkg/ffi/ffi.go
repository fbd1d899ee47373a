//go:build linux && cgo

// Package ffi is the libffi backend of the dispatcher: it opens shared
// libraries with dlopen, resolves symbols and performs typed calls.
package ffi

/*
#define _GNU_SOURCE
#cgo LDFLAGS: -ldl
#cgo pkg-config: libffi
#include <ffi.h>
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>
#include <stdint.h>

enum {
	GS_VOID, GS_SINT, GS_SLONG, GS_FLOAT, GS_DOUBLE, GS_POINTER
};

static ffi_type* gs_type(int code) {
	switch (code) {
	case GS_VOID:   return &ffi_type_void;
	case GS_SINT:   return &ffi_type_sint;
	case GS_SLONG:  return &ffi_type_slong;
	case GS_FLOAT:  return &ffi_type_float;
	case GS_DOUBLE: return &ffi_type_double;
	}
	return &ffi_type_pointer;
}

static ffi_cif* gs_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}

static int gs_prep_cif(ffi_cif* cif, unsigned int nfixed, unsigned int ntotal,
    ffi_type* rtype, ffi_type** atypes) {
	if (nfixed < ntotal)
		return ffi_prep_cif_var(cif, FFI_DEFAULT_ABI, nfixed, ntotal, rtype, atypes);
	return ffi_prep_cif(cif, FFI_DEFAULT_ABI, ntotal, rtype, atypes);
}

static void gs_ffi_call(ffi_cif* cif, uintptr_t fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

static uintptr_t gs_dlopen(const char* path) {
	return (uintptr_t)dlopen(path, RTLD_LAZY | RTLD_GLOBAL);
}

static const char* gs_dlerror(void) {
	return dlerror();
}

static uintptr_t gs_dlsym(uintptr_t h, const char* name) {
	dlerror();
	void* p = dlsym((void*)h, name);
	if (dlerror() != NULL)
		return 0;
	return (uintptr_t)p;
}

static void* gs_ptr(uintptr_t p) {
	return (void*)p;
}

static uintptr_t gs_addr(void* p) {
	return (uintptr_t)p;
}

static uintptr_t gs_calloc(size_t n) {
	return (uintptr_t)calloc(1, n);
}

// -------------------------
// callback trampoline
// -------------------------

extern uintptr_t gsTrampolineInvoke(uintptr_t* args);

static uintptr_t gs_trampoline(void* a0, void* a1, void* a2, void* a3,
    void* a4, void* a5, void* a6, void* a7) {
	uintptr_t args[8] = {
		(uintptr_t)a0, (uintptr_t)a1, (uintptr_t)a2, (uintptr_t)a3,
		(uintptr_t)a4, (uintptr_t)a5, (uintptr_t)a6, (uintptr_t)a7,
	};
	return gsTrampolineInvoke(args);
}

static uintptr_t gs_trampoline_addr(void) {
	return (uintptr_t)&gs_trampoline;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

// slotSize is large enough for any scalar argument or ffi_arg return
const slotSize = 16

func dlerr() string {
	if e := C.gs_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown error"
}

// Invoker implements gtkserver.NativeInvoker on top of libffi
type Invoker struct{}

// New returns the libffi invoker
func New() *Invoker {
	return &Invoker{}
}

func (*Invoker) Name() string {
	return "libffi"
}

// Open loads a shared library. An empty path opens the running program.
func (*Invoker) Open(path string) (uintptr, error) {
	var cs *C.char
	if path != "" {
		cs = C.CString(path)
		defer C.free(unsafe.Pointer(cs))
	}
	h := C.gs_dlopen(cs)
	if h == 0 {
		return 0, fmt.Errorf("dlopen(%q) failed: %s", path, dlerr())
	}
	return uintptr(h), nil
}

func (*Invoker) Symbol(lib uintptr, name string) (uintptr, bool) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	p := C.gs_dlsym(C.uintptr_t(lib), cs)
	return uintptr(p), p != 0
}

func (*Invoker) ReadMemory(addr uintptr, n int) []byte {
	if addr == 0 || n <= 0 {
		return make([]byte, n)
	}
	return C.GoBytes(C.gs_ptr(C.uintptr_t(addr)), C.int(n))
}

func (*Invoker) ReadCString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	return C.GoString((*C.char)(C.gs_ptr(C.uintptr_t(addr))))
}

func (*Invoker) Alloc(n int) uintptr {
	return uintptr(C.gs_calloc(C.size_t(n)))
}

func (*Invoker) CString(s string) uintptr {
	return uintptr(C.gs_addr(unsafe.Pointer(C.CString(s))))
}

var (
	hookMu sync.RWMutex
	hook   func(args [8]uintptr) uintptr
)

// Trampoline installs h as the target of the shared callback entry point.
// There is one entry point per process; a later call replaces the hook.
func (*Invoker) Trampoline(h func(args [8]uintptr) uintptr) uintptr {
	hookMu.Lock()
	hook = h
	hookMu.Unlock()
	return uintptr(C.gs_trampoline_addr())
}

func currentHook() func(args [8]uintptr) uintptr {
	hookMu.RLock()
	defer hookMu.RUnlock()
	return hook
}

// typeCode maps a value kind to its C calling type. Float arguments in
// the variadic part are promoted to double.
func typeCode(k gtkserver.Kind, variadic bool) C.int {
	switch k {
	case gtkserver.KindNone:
		return C.GS_VOID
	case gtkserver.KindInt, gtkserver.KindEnum, gtkserver.KindBool:
		return C.GS_SINT
	case gtkserver.KindLong:
		return C.GS_SLONG
	case gtkserver.KindFloat:
		if variadic {
			return C.GS_DOUBLE
		}
		return C.GS_FLOAT
	case gtkserver.KindDouble:
		return C.GS_DOUBLE
	}
	return C.GS_POINTER
}

// Prepare builds a call interface for ret and args
func (*Invoker) Prepare(ret gtkserver.Kind, args []gtkserver.Kind, fixed int) (gtkserver.CallPlan, error) {
	n := len(args)
	if fixed > n {
		fixed = n
	}
	p := &plan{
		ret:   ret,
		kinds: args,
		fixed: fixed,
		cif:   C.gs_alloc_cif(),
		slots: make([]unsafe.Pointer, 0, n),
		cells: make([]cellRef, 0),
	}
	if n > 0 {
		p.atypes = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		p.avalues = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		types := unsafe.Slice((**C.ffi_type)(p.atypes), n)
		for i, k := range args {
			types[i] = C.gs_type(typeCode(k, i >= fixed))
		}
	}

	st := C.gs_prep_cif(p.cif, C.uint(fixed), C.uint(n), C.gs_type(typeCode(ret, false)), (**C.ffi_type)(p.atypes))
	if st != C.FFI_OK {
		p.free()
		return nil, fmt.Errorf("ffi_prep_cif failed: %d", int(st))
	}
	return p, nil
}

// cellRef ties a PTR_* argument to the C memory it points at
type cellRef struct {
	cell   *gtkserver.Cell
	target unsafe.Pointer
}

// plan is a single-use call
type plan struct {
	ret     gtkserver.Kind
	kinds   []gtkserver.Kind
	fixed   int
	cif     *C.ffi_cif
	atypes  unsafe.Pointer
	avalues unsafe.Pointer
	slots   []unsafe.Pointer
	cells   []cellRef
	temps   []unsafe.Pointer
}

func (p *plan) PushArg(v gtkserver.ArgValue) error {
	i := len(p.slots)
	if i >= len(p.kinds) {
		return fmt.Errorf("too many arguments, expected %d", len(p.kinds))
	}
	if p.kinds[i] != v.Kind {
		return fmt.Errorf("argument %d is %s, prepared as %s", i+1, v.Kind, p.kinds[i])
	}

	slot := C.calloc(1, slotSize)
	p.slots = append(p.slots, slot)
	unsafe.Slice((*unsafe.Pointer)(p.avalues), len(p.kinds))[i] = slot

	switch v.Kind {
	case gtkserver.KindInt, gtkserver.KindEnum, gtkserver.KindBool:
		*(*C.int)(slot) = C.int(v.Int)
	case gtkserver.KindLong:
		*(*C.long)(slot) = C.long(v.Int)
	case gtkserver.KindFloat:
		if i >= p.fixed {
			*(*C.double)(slot) = C.double(v.Float)
		} else {
			*(*C.float)(slot) = C.float(v.Float)
		}
	case gtkserver.KindDouble:
		*(*C.double)(slot) = C.double(v.Float)
	case gtkserver.KindString:
		cs := C.CString(v.Str)
		p.temps = append(p.temps, unsafe.Pointer(cs))
		*(*unsafe.Pointer)(slot) = unsafe.Pointer(cs)
	case gtkserver.KindBase64:
		// the callee may keep the buffer, so it is never freed
		if len(v.Bytes) > 0 {
			*(*unsafe.Pointer)(slot) = C.CBytes(v.Bytes)
		}
	default:
		if v.Cell != nil {
			target := p.bindCell(v.Cell)
			*(*unsafe.Pointer)(slot) = target
			break
		}
		*(*C.uintptr_t)(slot) = C.uintptr_t(v.Ptr)
	}
	return nil
}

// bindCell copies the initial cell value into C memory
func (p *plan) bindCell(c *gtkserver.Cell) unsafe.Pointer {
	size := slotSize
	if c.Kind == gtkserver.KindPtrBase64 && c.Size > size {
		size = c.Size
	}
	target := C.calloc(1, C.size_t(size))
	p.temps = append(p.temps, target)

	switch c.Kind {
	case gtkserver.KindPtrLong:
		*(*C.long)(target) = C.long(c.Int)
	case gtkserver.KindPtrInt, gtkserver.KindPtrBool:
		*(*C.int)(target) = C.int(c.Int)
	case gtkserver.KindPtrShort:
		*(*C.short)(target) = C.short(c.Int)
	case gtkserver.KindPtrFloat:
		*(*C.float)(target) = C.float(c.Float)
	case gtkserver.KindPtrDouble:
		*(*C.double)(target) = C.double(c.Float)
	case gtkserver.KindPtrWidget, gtkserver.KindPtrString:
		*(*C.uintptr_t)(target) = C.uintptr_t(c.Ptr)
	case gtkserver.KindPtrBase64:
		if len(c.Bytes) > 0 {
			copy(unsafe.Slice((*byte)(target), size), c.Bytes)
		}
	}
	p.cells = append(p.cells, cellRef{cell: c, target: target})
	return target
}

func (p *plan) Call(fn uintptr) (gtkserver.ReturnValue, error) {
	defer p.free()

	var ret gtkserver.ReturnValue
	if fn == 0 {
		return ret, fmt.Errorf("call through NULL function pointer")
	}
	if len(p.slots) != len(p.kinds) {
		return ret, fmt.Errorf("%d of %d arguments pushed", len(p.slots), len(p.kinds))
	}

	rvalue := C.calloc(1, slotSize)
	defer C.free(rvalue)
	C.gs_ffi_call(p.cif, C.uintptr_t(fn), rvalue, (*unsafe.Pointer)(p.avalues))

	switch p.ret {
	case gtkserver.KindNone:
	case gtkserver.KindInt, gtkserver.KindEnum, gtkserver.KindBool:
		ret.Int = int64(*(*C.ffi_sarg)(rvalue))
	case gtkserver.KindLong:
		ret.Int = int64(*(*C.long)(rvalue))
	case gtkserver.KindFloat:
		ret.Float = float64(*(*C.float)(rvalue))
	case gtkserver.KindDouble:
		ret.Float = float64(*(*C.double)(rvalue))
	case gtkserver.KindString:
		cs := *(**C.char)(rvalue)
		if cs == nil {
			ret.IsNull = true
		} else {
			ret.Str = C.GoString(cs)
		}
	default:
		ret.Ptr = uintptr(*(*C.uintptr_t)(rvalue))
	}

	for _, r := range p.cells {
		readCell(r.cell, r.target)
	}
	return ret, nil
}

// readCell copies the value a callee wrote back into the cell
func readCell(c *gtkserver.Cell, target unsafe.Pointer) {
	switch c.Kind {
	case gtkserver.KindPtrLong:
		c.Int = int64(*(*C.long)(target))
	case gtkserver.KindPtrInt, gtkserver.KindPtrBool:
		c.Int = int64(*(*C.int)(target))
	case gtkserver.KindPtrShort:
		c.Int = int64(*(*C.short)(target))
	case gtkserver.KindPtrFloat:
		c.Float = float64(*(*C.float)(target))
	case gtkserver.KindPtrDouble:
		c.Float = float64(*(*C.double)(target))
	case gtkserver.KindPtrWidget:
		c.Ptr = uintptr(*(*C.uintptr_t)(target))
	case gtkserver.KindPtrString:
		c.Ptr = uintptr(*(*C.uintptr_t)(target))
		c.Text = ""
		if cs := *(**C.char)(target); cs != nil {
			c.Text = C.GoString(cs)
		}
	case gtkserver.KindPtrBase64:
		c.Bytes = C.GoBytes(target, C.int(c.Size))
	}
}

func (p *plan) free() {
	for _, s := range p.slots {
		C.free(s)
	}
	for _, t := range p.temps {
		C.free(t)
	}
	p.slots, p.temps, p.cells = nil, nil, nil
	if p.atypes != nil {
		C.free(p.atypes)
		p.atypes = nil
	}
	if p.avalues != nil {
		C.free(p.avalues)
		p.avalues = nil
	}
	if p.cif != nil {
		C.free(unsafe.Pointer(p.cif))
		p.cif = nil
	}
}
