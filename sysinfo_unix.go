//go:build unix

package gtkserver

import (
	"golang.org/x/sys/unix"
)

// osDescription returns "sysname release on machine"
func osDescription() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "Unknown"
	}
	return unix.ByteSliceToString(u.Sysname[:]) + " " +
		unix.ByteSliceToString(u.Release[:]) + " on " +
		unix.ByteSliceToString(u.Machine[:])
}
