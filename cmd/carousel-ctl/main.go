package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ============================================================================
// carousel-ctl - Command-line IPC Client
// ============================================================================
// This tool sends events and queries to carouseld via IPC.
//
// Usage:
//   carousel-ctl next
//   carousel-ctl jump -2 ccw
//   carousel-ctl key left
//   carousel-ctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/carouseld.sock)
// ============================================================================

const defaultSocketPath = "/tmp/carouseld.sock"

// Envelope is the daemon's wire format (duplicated from carouseld for a
// standalone binary).
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	lines, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	var out json.RawMessage
	for _, env := range lines {
		out, err = send(socketPath, env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if len(out) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty any
	if err := json.Unmarshal(out, &pretty); err != nil {
		fmt.Println(string(out))
		return
	}
	b, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(b))
}

func envelope(typ string, data any) (Envelope, error) {
	env := Envelope{Type: typ}
	if data == nil {
		return env, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	env.Data = b
	return env, nil
}

func one(typ string, data any) ([]Envelope, error) {
	env, err := envelope(typ, data)
	if err != nil {
		return nil, err
	}
	return []Envelope{env}, nil
}

func parseOnOff(cmd string, args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("%s requires on or off", cmd)
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%s: expected on or off, got %q", cmd, args[0])
}

// parseCommand turns command-line arguments into the envelopes to send, in
// order. A drag expands to a down/move/up sequence.
func parseCommand(args []string) ([]Envelope, error) {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "next":
		return one("rotate_by_delta", map[string]any{"delta": 1, "direction": "counterClockwise"})

	case "prev", "previous":
		return one("rotate_by_delta", map[string]any{"delta": -1, "direction": "clockwise"})

	case "jump":
		if len(rest) < 1 {
			return nil, fmt.Errorf("jump requires an item delta")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid delta: %w", err)
		}
		dir := "auto"
		if len(rest) > 1 {
			dir = rest[1]
		}
		return one("rotate_by_delta", map[string]any{"delta": n, "direction": dir})

	case "key":
		if len(rest) < 1 {
			return nil, fmt.Errorf("key requires left or right")
		}
		return one("key_pressed", map[string]any{"key": rest[0]})

	case "auto", "auto-rotate":
		on, err := parseOnOff(cmd, rest)
		if err != nil {
			return nil, err
		}
		return one("set_auto_rotate", map[string]any{"enabled": on})

	case "keyboard":
		on, err := parseOnOff(cmd, rest)
		if err != nil {
			return nil, err
		}
		return one("set_keyboard_nav", map[string]any{"enabled": on})

	case "hover":
		if len(rest) < 1 {
			return nil, fmt.Errorf("hover requires enter or leave")
		}
		switch rest[0] {
		case "enter":
			return one("hover_enter", nil)
		case "leave":
			return one("hover_leave", nil)
		}
		return nil, fmt.Errorf("hover: expected enter or leave, got %q", rest[0])

	case "turn":
		if len(rest) < 1 {
			return nil, fmt.Errorf("turn requires a step count")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("invalid step count: %w", err)
		}
		return one("rotary_turn", map[string]any{"steps": n})

	case "drag":
		if len(rest) < 2 {
			return nil, fmt.Errorf("drag requires from and to x positions")
		}
		from, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid from: %w", err)
		}
		to, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid to: %w", err)
		}
		down, _ := envelope("pointer_down", map[string]any{"x": from})
		move, _ := envelope("pointer_move", map[string]any{"x": to})
		up, _ := envelope("pointer_up", nil)
		return []Envelope{down, move, up}, nil

	case "reset-drag":
		return one("reset_significant_drag", nil)

	case "state":
		return one("get_state", nil)

	case "significant-drag", "sig":
		return one("significant_drag", nil)

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

func send(socketPath string, env Envelope) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send %s: %w", env.Type, err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", response.Error)
	}
	return response.Data, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `carousel-ctl - Control carouseld via IPC

Usage:
  carousel-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  next, prev                 Jump one item forward or back
  jump <n> [direction]       Jump n items; direction is auto, cw or ccw
  key left|right             Send an arrow key
  turn <steps>               Simulate rotary encoder detents
  drag <from> <to>           Drag from one x position to another and release
  hover enter|leave          Simulate the pointer entering or leaving
  auto on|off                Enable or disable auto-rotation
  keyboard on|off            Enable or disable keyboard navigation
  reset-drag                 Forget the last press rotation
  state                      Print the engine snapshot
  significant-drag, sig      Print whether the last press was a drag
  help, -h, --help           Show this help message

Examples:
  carousel-ctl next
  carousel-ctl jump 3 ccw
  carousel-ctl -socket /run/carouseld.sock state
`, defaultSocketPath)
}
