package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_REL = 0x02

	KEY_LEFT     = 105
	KEY_RIGHT    = 106
	KEY_PAGEUP   = 104
	KEY_PAGEDOWN = 109

	// Rotary encoder relative axis codes
	REL_HWHEEL = 0x06
	REL_DIAL   = 0x07
	REL_WHEEL  = 0x08
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

const (
	defaultFrameHz    = 60
	defaultSocketPath = "/tmp/carouseld.sock"
	defaultHTTPListen = ":8088"

	// frameEpsilonDeg is the smallest rotation change worth broadcasting.
	frameEpsilonDeg = 0.001

	// Rotary encoder velocity detection
	defaultRotaryVelocityWindowMS   = 200 // Time window for velocity detection (ms)
	defaultRotaryVelocityThreshold  = 3   // Steps in window to trigger velocity mode
	defaultRotaryVelocityMultiplier = 2   // Items per detent while spinning fast

	defaultSerialBaud = 9600

	// snapshotTimeout bounds how long HTTP and WS handlers wait on the daemon loop.
	snapshotTimeoutMS = 1000
)
