//go:build !linux

package main

import (
	"context"
	"os"
)

// Without epoll each device gets its own blocking reader. Readers stop when
// runInputDevices closes their files.
func startDeviceReaders(_ context.Context, files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
