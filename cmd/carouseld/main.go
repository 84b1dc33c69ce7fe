package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"carousel3d/frame"
	"carousel3d/orientation"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("carouseld v%s\n", version)
	fmt.Println("3D carousel rotation and layout daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  carouseld [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Owns one carousel engine and steps it at the frame rate. Accepts drag,")
	fmt.Println("  keyboard, hover and jump events over a Unix socket, the state WebSocket,")
	fmt.Println("  Linux input devices and an optional serial knob, and streams per-item")
	fmt.Println("  transforms to WebSocket clients.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (defaults apply when omitted)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device for arrow keys / rotary encoder")
	fmt.Println()
	fmt.Println("  -serial-port string")
	fmt.Println("        Serial port of a rotary knob sending +/-/L/R lines")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP/WebSocket listen address, empty disables (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -frame-hz int")
	fmt.Printf("        Frame loop frequency in Hz (default %d)\n", defaultFrameHz)
	fmt.Println()
	fmt.Println("  -auto-rotate")
	fmt.Println("        Start with auto-rotation enabled")
	fmt.Println()
	fmt.Println("  -radius float")
	fmt.Println("        Ring radius in px (default 600)")
	fmt.Println()
	fmt.Println("  -image-dir string")
	fmt.Println("        Directory relative item image paths are resolved against")
	fmt.Println()
	fmt.Println("  -orientation-cache string")
	fmt.Println("        SQLite file for persistent image orientations (memory cache when unset)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  carouseld -config ~/.config/carouseld/config.yaml")
	fmt.Println("  carouseld -input-device /dev/input/event3 -auto-rotate")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "YAML config file")
		inputDevice = flag.String("input-device", "", "Linux input event device")
		serialPort  = flag.String("serial-port", "", "Serial port of a rotary knob")
		socketPath  = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpListen  = flag.String("http-listen", defaultHTTPListen, "HTTP/WebSocket listen address")
		frameHz     = flag.Int("frame-hz", defaultFrameHz, "Frame loop frequency in Hz")
		autoRotate  = flag.Bool("auto-rotate", false, "Start with auto-rotation enabled")
		radius      = flag.Float64("radius", 600, "Ring radius in px")
		imageDir    = flag.String("image-dir", "", "Base directory for item images")
		cachePath   = flag.String("orientation-cache", "", "SQLite orientation cache file")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_           = flag.Bool("version", false, "Print version and exit")
		_           = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			ov.InputDevice = inputDevice
		case "serial-port":
			ov.SerialPort = serialPort
		case "ipc-socket":
			ov.SocketPath = socketPath
		case "http-listen":
			ov.HTTPListen = httpListen
		case "frame-hz":
			ov.FrameHz = frameHz
		case "auto-rotate":
			ov.AutoRotate = autoRotate
		case "radius":
			ov.Radius = radius
		case "image-dir":
			ov.ImageDir = imageDir
		case "orientation-cache":
			ov.CachePath = cachePath
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("carouseld exited with error", "error", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until a signal or a component failure.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.ToEngineOptions()
	if err != nil {
		return err
	}

	cache, closeCache, err := openOrientationCache(cfg.OrientationCache)
	if err != nil {
		return err
	}
	defer closeCache()

	resolver := &orientation.Resolver{
		Cache:       cache,
		Logger:      logger.With("component", "orientation"),
		Client:      &http.Client{Timeout: time.Duration(cfg.OrientationCache.FetchTimeoutMS) * time.Millisecond},
		BaseDir:     cfg.OrientationCache.ImageDir,
		Concurrency: cfg.OrientationCache.Concurrency,
	}

	state, err := NewDaemonState(opts, frame.RealClock{}, logger.With("component", "engine"))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	state.Items = cfg.Items

	// Devices that can fail to open are opened before anything starts.
	var knob io.ReadCloser
	if cfg.Serial.Port != "" {
		port, err := openSerialKnob(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		knob = port
	}

	events := make(chan Event, 256)

	// Broadcasts only flow when there is a WebSocket fan-out to consume them.
	var broadcasts chan StateBroadcast
	if cfg.HTTP.Listen != "" {
		broadcasts = make(chan StateBroadcast, 256)
	}

	logger.Info("starting carouseld",
		"version", version,
		"items", len(cfg.Items),
		"frame_hz", cfg.FrameHz,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Listen,
		"input_devices", cfg.Input.Devices,
		"serial_port", cfg.Serial.Port,
		"orientation_cache", cfg.OrientationCache.Backend,
		"auto_rotate", opts.AutoRotate)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, state, DaemonConfig{
			Reducer: ReducerConfig{Rotary: RotaryConfig{
				VelocityWindowMS:   cfg.Input.RotaryVelocityWindowMS,
				VelocityThreshold:  cfg.Input.RotaryVelocityThreshold,
				VelocityMultiplier: cfg.Input.RotaryVelocityMultiplier,
			}},
			FrameHz:  cfg.FrameHz,
			Resolver: resolver,
		}, broadcasts, logger.With("component", "daemon"))
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger.With("component", "ipc"))
	})

	if cfg.HTTP.Listen != "" {
		wsLogger := logger.With("component", "ws")
		ws := NewServer(wsLogger, events, ServerConfig{})
		g.Go(func() error {
			ws.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, ws.Hub(), broadcasts, wsLogger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Listen, newHTTPMux(ws, events, logger), logger.With("component", "http"))
		})
	} else {
		logger.Info("HTTP disabled")
	}

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			err := runInputDevices(gctx, cfg.Input.Devices, events, logger.With("component", "input"))
			if err != nil {
				logger.Error("input devices failed", "error", err, "tip", "run as root or add user to 'input' group")
			}
			return err
		})
	}

	if knob != nil {
		g.Go(func() error {
			return runSerialKnob(gctx, knob, events, logger.With("component", "serial"))
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// openOrientationCache returns the configured cache and a function releasing it.
func openOrientationCache(cfg OrientationCacheConfig) (orientation.Cache, func(), error) {
	switch cfg.Backend {
	case CacheSQLite:
		c, err := orientation.OpenSQLiteCache(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return orientation.NewMemoryCache(), func() {}, nil
	}
}
