package gtkloop

/*
#include <stdint.h>
*/
import "C"

import (
	"unsafe"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

//export gsLoopSignal
func gsLoopSignal(id, instance C.uintptr_t, params *C.uintptr_t, n C.int) C.int {
	b := findBinding(uint64(id))
	if b == nil {
		return 0
	}
	ev := gtkserver.Event{Handler: gtkserver.HandlerGeneric, NParams: int(n)}
	for i, p := range unsafe.Slice(params, 7) {
		ev.Params[i] = uintptr(p)
	}
	if b.fire(ev) {
		return 1
	}
	return 0
}
