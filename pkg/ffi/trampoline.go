//go:build linux && cgo

package ffi

/*
#include <stdint.h>
*/
import "C"

import "unsafe"

//export gsTrampolineInvoke
func gsTrampolineInvoke(args *C.uintptr_t) C.uintptr_t {
	var in [8]uintptr
	for i, a := range unsafe.Slice(args, 8) {
		in[i] = uintptr(a)
	}
	h := currentHook()
	if h == nil {
		return 0
	}
	return C.uintptr_t(h(in))
}
