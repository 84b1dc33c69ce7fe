package main

import (
	"encoding/json"
	"fmt"

	"carousel3d/carousel"
)

// ============================================================================
// Wire events
// ============================================================================
// Wire events carry user intent from IPC, the state WebSocket and local input
// devices. They are reduced by the daemon loop, which owns the engine.
// ============================================================================

// PointerDown starts a drag gesture at horizontal position X (px).
// Pointers is the number of simultaneous touch points; 0 is treated as 1.
type PointerDown struct {
	X        float64 `json:"x"`
	Pointers int     `json:"pointers,omitempty"`
}

func (PointerDown) eventMarker() {}

// PointerMove continues a drag gesture.
type PointerMove struct {
	X        float64 `json:"x"`
	Pointers int     `json:"pointers,omitempty"`
}

func (PointerMove) eventMarker() {}

// PointerUp ends a drag gesture.
type PointerUp struct{}

func (PointerUp) eventMarker() {}

// RotateByDelta jumps Delta items away from the current center.
type RotateByDelta struct {
	Delta     int                `json:"delta"`
	Direction carousel.Direction `json:"direction"`
}

func (RotateByDelta) eventMarker() {}

// KeyPressed is a navigation key from a keyboard or remote.
type KeyPressed struct {
	Key carousel.Key `json:"key"`
}

func (KeyPressed) eventMarker() {}

// HoverEnter pauses auto-rotation while the pointer is over the carousel.
type HoverEnter struct{}

func (HoverEnter) eventMarker() {}

// HoverLeave schedules auto-rotation to resume.
type HoverLeave struct{}

func (HoverLeave) eventMarker() {}

type SetAutoRotate struct {
	Enabled bool `json:"enabled"`
}

func (SetAutoRotate) eventMarker() {}

type SetKeyboardNav struct {
	Enabled bool `json:"enabled"`
}

func (SetKeyboardNav) eventMarker() {}

// ResetSignificantDrag clears the captured press rotation after a click was
// handled by the view.
type ResetSignificantDrag struct{}

func (ResetSignificantDrag) eventMarker() {}

// RotaryTurn represents raw rotary encoder movement (detents/steps).
// The reducer owns policy for converting this into item jumps (including velocity scaling).
type RotaryTurn struct {
	Steps int `json:"steps"` // positive=next, negative=previous
}

func (RotaryTurn) eventMarker() {}

// SetItems replaces the carousel contents.
type SetItems struct {
	Items []carousel.Item `json:"items"`
}

func (SetItems) eventMarker() {}

// ============================================================================
// Envelope codec
// ============================================================================

// EventEnvelope is the JSON wire format for events: {"type": ..., "data": ...}.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeData[T Event](env EventEnvelope) (Event, error) {
	var v T
	if len(env.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalEvent decodes a wire envelope into a typed event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "pointer_down":
		return decodeData[PointerDown](env)
	case "pointer_move":
		return decodeData[PointerMove](env)
	case "pointer_up":
		return PointerUp{}, nil

	case "rotate_by_delta":
		return decodeData[RotateByDelta](env)

	case "key_pressed":
		ev, err := decodeData[KeyPressed](env)
		if err != nil {
			return nil, err
		}
		k, ok := carousel.ParseKey(string(ev.(KeyPressed).Key))
		if !ok {
			return nil, fmt.Errorf("unknown key %q", ev.(KeyPressed).Key)
		}
		return KeyPressed{Key: k}, nil

	case "hover_enter":
		return HoverEnter{}, nil
	case "hover_leave":
		return HoverLeave{}, nil

	case "set_auto_rotate":
		return decodeData[SetAutoRotate](env)
	case "set_keyboard_nav":
		return decodeData[SetKeyboardNav](env)
	case "reset_significant_drag":
		return ResetSignificantDrag{}, nil

	case "rotary_turn":
		return decodeData[RotaryTurn](env)

	case "set_items":
		return decodeData[SetItems](env)

	case "":
		return nil, fmt.Errorf("event type is empty")
	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// MarshalEvent encodes a wire event into its envelope. Internal events
// (ticks, snapshot requests) have no wire form.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e.(type) {
	case PointerDown:
		env.Type = "pointer_down"
	case PointerMove:
		env.Type = "pointer_move"
	case PointerUp:
		env.Type = "pointer_up"
	case RotateByDelta:
		env.Type = "rotate_by_delta"
	case KeyPressed:
		env.Type = "key_pressed"
	case HoverEnter:
		env.Type = "hover_enter"
	case HoverLeave:
		env.Type = "hover_leave"
	case SetAutoRotate:
		env.Type = "set_auto_rotate"
	case SetKeyboardNav:
		env.Type = "set_keyboard_nav"
	case ResetSignificantDrag:
		env.Type = "reset_significant_drag"
	case RotaryTurn:
		env.Type = "rotary_turn"
	case SetItems:
		env.Type = "set_items"
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	switch e.(type) {
	case PointerUp, HoverEnter, HoverLeave, ResetSignificantDrag:
	default:
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
