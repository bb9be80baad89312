//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The global hotkey needs the OS main thread on darwin, so the command runs
// on a second goroutine.
func main() {
	setupCrashLog()
	mainthread.Init(run)
}
