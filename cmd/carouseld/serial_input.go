package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"carousel3d/carousel"
)

// parseKnobLine maps one line from the serial knob to an event.
//
// The knob firmware sends "+" or "-" per detent (optionally with a count,
// "+3"), and "L" / "R" for its two buttons.
func parseKnobLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	switch line {
	case "L", "l":
		return KeyPressed{Key: carousel.KeyArrowLeft}, true
	case "R", "r":
		return KeyPressed{Key: carousel.KeyArrowRight}, true
	}

	sign := 0
	switch line[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return nil, false
	}

	n := 1
	if rest := line[1:]; rest != "" {
		v, err := strconv.Atoi(rest)
		if err != nil || v <= 0 {
			return nil, false
		}
		n = v
	}
	return RotaryTurn{Steps: sign * n}, true
}

// openSerialKnob opens the knob's serial port at 8N1.
func openSerialKnob(port string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return p, nil
}

// runSerialKnob reads knob lines from r and forwards them as events until
// ctx is canceled or r fails. Closing r unblocks the scanner.
func runSerialKnob(ctx context.Context, r io.ReadCloser, events chan<- Event, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		ev, ok := parseKnobLine(line)
		if !ok {
			logger.Debug("serial knob line ignored", "line", line)
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read serial knob: %w", err)
	}
	return fmt.Errorf("serial knob closed")
}
