package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"carousel3d/carousel"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// decodeInputEvent parses one raw input_event record.
func decodeInputEvent(reader *bytes.Reader, buf []byte) (inputEvent, error) {
	reader.Reset(buf)
	var ev inputEvent
	err := binary.Read(reader, binary.LittleEndian, &ev)
	return ev, err
}

// readInputEvents reads input events from a single device and sends them to a channel.
// This runs in a dedicated goroutine and blocks on read operations.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error) {
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
			return
		}
		ev, err := decodeInputEvent(reader, buf)
		if err != nil {
			// Skip malformed events
			continue
		}
		events <- ev
	}
}

// translateInputEvent maps a raw key or relative-axis event to a daemon event.
// Arrow and page keys navigate on press and auto-repeat; dials and wheels
// become rotary turns.
func translateInputEvent(ev inputEvent) (Event, bool) {
	switch ev.Type {
	case EV_KEY:
		if ev.Value != evValuePress && ev.Value != evValueRepeat {
			return nil, false
		}
		switch ev.Code {
		case KEY_LEFT, KEY_PAGEUP:
			return KeyPressed{Key: carousel.KeyArrowLeft}, true
		case KEY_RIGHT, KEY_PAGEDOWN:
			return KeyPressed{Key: carousel.KeyArrowRight}, true
		}

	case EV_REL:
		switch ev.Code {
		case REL_DIAL, REL_WHEEL, REL_HWHEEL:
			if ev.Value == 0 {
				return nil, false
			}
			return RotaryTurn{Steps: int(ev.Value)}, true
		}
	}
	return nil, false
}

// runInputDevices opens the evdev devices at paths and forwards translated
// events until ctx is canceled or a device fails.
func runInputDevices(ctx context.Context, paths []string, events chan<- Event, logger *slog.Logger) error {
	if len(paths) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
	}
	logger.Info("input devices opened", "devices", paths)

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	startDeviceReaders(ctx, files, raw, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-raw:
			out, ok := translateInputEvent(ev)
			if !ok {
				continue
			}
			select {
			case events <- out:
			default:
				logger.Warn("event queue full, dropping input", "code", ev.Code)
			}
		}
	}
}
