//go:build !unix

package gtkserver

import "runtime"

func osDescription() string {
	return runtime.GOOS + " on " + runtime.GOARCH
}
