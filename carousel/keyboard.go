package carousel

import "strings"

// Key is a navigation key name as reported by the host.
type Key string

const (
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowRight Key = "ArrowRight"
)

// ParseKey accepts the host key names plus the short forms "left" and
// "right". Unknown names return false.
func ParseKey(s string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrowleft", "left":
		return KeyArrowLeft, true
	case "arrowright", "right":
		return KeyArrowRight, true
	}
	return "", false
}

// step maps a key to an index delta and the spin direction that makes the
// ring appear to move with the key.
func (k Key) step() (delta int, dir Direction, ok bool) {
	switch k {
	case KeyArrowRight:
		return 1, CounterClockwise, true
	case KeyArrowLeft:
		return -1, Clockwise, true
	}
	return 0, Auto, false
}
