package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

// ============================================================================
// carousel-watch - state WebSocket listener
// ============================================================================
// Connects to carouseld's /ws endpoint and prints what the carousel is doing.
// On a terminal the frame stream is folded into one status line; otherwise
// each message is printed as a line.
// ============================================================================

type message struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type frameData struct {
	FinalRotation float64 `json:"final_rotation"`
	CenterIndex   int     `json:"center_index"`
}

type centerData struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

type layoutData struct {
	Items []struct {
		ID           string  `json:"id"`
		Orientation  string  `json:"orientation"`
		AngularWidth float64 `json:"angular_width"`
	} `json:"items"`
	Perspective float64 `json:"perspective"`
}

// printer renders messages. When live, frames overwrite a single status line.
type printer struct {
	out  io.Writer
	live bool

	statusShown bool
	frames      int
}

func (p *printer) clearStatus() {
	if p.live && p.statusShown {
		fmt.Fprint(p.out, "\r\033[K")
		p.statusShown = false
	}
}

func (p *printer) line(format string, args ...any) {
	p.clearStatus()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) handle(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.line("[TEXT] %s", string(raw))
		return
	}

	switch msg.Type {
	case "frame":
		var f frameData
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			return
		}
		p.frames++
		if p.live {
			fmt.Fprintf(p.out, "\r\033[K[FRAME] rotation %8.2f°  center %d  frames %d", f.FinalRotation, f.CenterIndex, p.frames)
			p.statusShown = true
			return
		}
		p.line("[FRAME] rotation %.2f center %d", f.FinalRotation, f.CenterIndex)

	case "center_changed":
		var c centerData
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			return
		}
		p.line("[CENTER] %d (%s)", c.Index, c.ID)

	case "layout_changed", "state_init":
		var l layoutData
		if err := json.Unmarshal(msg.Data, &l); err != nil {
			return
		}
		parts := make([]string, len(l.Items))
		for i, it := range l.Items {
			parts[i] = fmt.Sprintf("%s:%s/%.1f°", it.ID, it.Orientation, it.AngularWidth)
		}
		label := "LAYOUT"
		if msg.Type == "state_init" {
			label = "INIT"
		}
		p.line("[%s] %d items, perspective %.0fpx  %s", label, len(l.Items), l.Perspective, strings.Join(parts, " "))

	default:
		p.line("[%s] %s", strings.ToUpper(msg.Type), string(msg.Data))
	}
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8088/ws", "carouseld state WebSocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON messages")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The daemon pings every 20s; answer and extend the deadline.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	p := &printer{out: os.Stdout, live: term.IsTerminal(int(os.Stdout.Fd()))}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				p.clearStatus()
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			p.handle(message)
		}
	}()

	select {
	case <-sigc:
		p.clearStatus()
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}
