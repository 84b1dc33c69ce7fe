package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"carousel3d/carousel"
)

type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`

	Interaction InteractionConfig `yaml:"interaction"`

	AutoRotate AutoRotateConfig `yaml:"auto_rotate"`

	Keyboard KeyboardConfig `yaml:"keyboard"`

	Items []carousel.Item `yaml:"items"`

	OrientationCache OrientationCacheConfig `yaml:"orientation_cache"`

	FrameHz int `yaml:"frame_hz"`

	Input InputConfig `yaml:"input"`

	Serial SerialConfig `yaml:"serial"`

	IPC IPCConfig `yaml:"ipc"`

	HTTP HTTPConfig `yaml:"http"`

	Logging LoggingConfig `yaml:"logging"`
}

type GeometryConfig struct {
	Radius         float64 `yaml:"radius"`
	DepthIntensity float64 `yaml:"depth_intensity"`
	MinOpacity     float64 `yaml:"min_opacity"`
	MaxOpacity     float64 `yaml:"max_opacity"`
	MinScale       float64 `yaml:"min_scale"`
	BaseHeight     float64 `yaml:"base_height"`
	MaxItems       int     `yaml:"max_items"`

	// Perspective overrides the derived viewer distance when > 0.
	Perspective              float64 `yaml:"perspective,omitempty"`
	PerspectiveMultiplier    float64 `yaml:"perspective_multiplier"`
	PerspectiveMinMultiplier float64 `yaml:"perspective_min_multiplier"`
}

type InteractionConfig struct {
	DragSensitivity        float64 `yaml:"drag_sensitivity"`
	DragStartDistance      float64 `yaml:"drag_start_distance"`
	Momentum               bool    `yaml:"momentum"`
	MomentumFriction       float64 `yaml:"momentum_friction"`
	MomentumStartThreshold float64 `yaml:"momentum_start_threshold"`
	MomentumStopThreshold  float64 `yaml:"momentum_stop_threshold"`
	JumpDurationMS         int     `yaml:"jump_duration_ms"`
}

type AutoRotateConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Speed         float64 `yaml:"speed"` // deg per frame
	ResumeDelayMS int     `yaml:"resume_delay_ms"`
	RampMS        int     `yaml:"ramp_ms"`
}

type KeyboardConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// OrientationCacheBackend selects where resolved image orientations live.
type OrientationCacheBackend string

const (
	CacheMemory OrientationCacheBackend = "memory"
	CacheSQLite OrientationCacheBackend = "sqlite"
)

type OrientationCacheConfig struct {
	Backend OrientationCacheBackend `yaml:"backend"`
	Path    string                  `yaml:"path,omitempty"`

	// ImageDir anchors relative item image paths.
	ImageDir       string `yaml:"image_dir,omitempty"`
	FetchTimeoutMS int    `yaml:"fetch_timeout_ms"`
	Concurrency    int    `yaml:"concurrency"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`

	RotaryVelocityWindowMS   int `yaml:"rotary_velocity_window_ms"`
	RotaryVelocityThreshold  int `yaml:"rotary_velocity_threshold"`
	RotaryVelocityMultiplier int `yaml:"rotary_velocity_multiplier"`
}

type SerialConfig struct {
	Port string `yaml:"port,omitempty"` // empty disables the serial knob
	Baud int    `yaml:"baud"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables HTTP and WebSocket
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() Config {
	opts := carousel.DefaultOptions()
	return Config{
		Geometry: GeometryConfig{
			Radius:                   opts.Radius,
			DepthIntensity:           opts.DepthIntensity,
			MinOpacity:               opts.MinOpacity,
			MaxOpacity:               opts.MaxOpacity,
			MinScale:                 opts.MinScale,
			BaseHeight:               opts.BaseHeight,
			MaxItems:                 opts.MaxItems,
			PerspectiveMultiplier:    opts.PerspectiveMultiplier,
			PerspectiveMinMultiplier: opts.PerspectiveMinMultiplier,
		},
		Interaction: InteractionConfig{
			DragSensitivity:        opts.DragSensitivity,
			DragStartDistance:      opts.DragStartDistance,
			Momentum:               opts.Momentum,
			MomentumFriction:       opts.MomentumFriction,
			MomentumStartThreshold: opts.MomentumStartThreshold,
			MomentumStopThreshold:  opts.MomentumStopThreshold,
			JumpDurationMS:         int(opts.JumpDuration / time.Millisecond),
		},
		AutoRotate: AutoRotateConfig{
			Enabled:       opts.AutoRotate,
			Speed:         opts.AutoRotateSpeed,
			ResumeDelayMS: int(opts.AutoRotateResumeDelay / time.Millisecond),
			RampMS:        int(opts.AutoRotateRamp / time.Millisecond),
		},
		Keyboard: KeyboardConfig{
			Enabled:    opts.KeyboardNavigation,
			DebounceMS: int(opts.KeyboardDebounce / time.Millisecond),
		},
		OrientationCache: OrientationCacheConfig{
			Backend:        CacheMemory,
			FetchTimeoutMS: 10000,
			Concurrency:    4,
		},
		FrameHz: defaultFrameHz,
		Input: InputConfig{
			RotaryVelocityWindowMS:   defaultRotaryVelocityWindowMS,
			RotaryVelocityThreshold:  defaultRotaryVelocityThreshold,
			RotaryVelocityMultiplier: defaultRotaryVelocityMultiplier,
		},
		Serial: SerialConfig{
			Baud: defaultSerialBaud,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Listen: defaultHTTPListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads YAML from path on top of DefaultConfig. Unknown keys
// are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults only.
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line values that win over the config file.
// Nil fields were not set on the command line.
type FlagOverrides struct {
	InputDevice *string
	SerialPort  *string
	SocketPath  *string
	HTTPListen  *string
	FrameHz     *int
	AutoRotate  *bool
	Radius      *float64
	ImageDir    *string
	CachePath   *string
	LogLevel    *string
}

func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.SerialPort != nil {
		cfg.Serial.Port = *o.SerialPort
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.FrameHz != nil {
		cfg.FrameHz = *o.FrameHz
	}
	if o.AutoRotate != nil {
		cfg.AutoRotate.Enabled = *o.AutoRotate
	}
	if o.Radius != nil {
		cfg.Geometry.Radius = *o.Radius
	}
	if o.ImageDir != nil {
		cfg.OrientationCache.ImageDir = *o.ImageDir
	}
	if o.CachePath != nil {
		cfg.OrientationCache.Backend = CacheSQLite
		cfg.OrientationCache.Path = *o.CachePath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks the config and fills derived values: items without an id
// get a random one and paths are expanded.
func (c *Config) Validate() error {
	if _, err := c.ToEngineOptions(); err != nil {
		return err
	}

	assignItemIDs(c.Items)
	seen := make(map[string]int, len(c.Items))
	for i := range c.Items {
		if j, dup := seen[c.Items[i].ID]; dup {
			return fmt.Errorf("items[%d].id %q duplicates items[%d]", i, c.Items[i].ID, j)
		}
		seen[c.Items[i].ID] = i
		if o := c.Items[i].Orientation; o != "" && !o.Valid() {
			return fmt.Errorf("items[%d].orientation %q must be landscape, portrait or square", i, o)
		}
	}

	switch c.OrientationCache.Backend {
	case CacheMemory:
	case CacheSQLite:
		if c.OrientationCache.Path == "" {
			return errors.New("orientation_cache.path is required for the sqlite backend")
		}
		c.OrientationCache.Path = ExpandPath(c.OrientationCache.Path)
	default:
		return fmt.Errorf("orientation_cache.backend must be %q or %q", CacheMemory, CacheSQLite)
	}
	if c.OrientationCache.FetchTimeoutMS <= 0 {
		return errors.New("orientation_cache.fetch_timeout_ms must be > 0")
	}
	if c.OrientationCache.Concurrency <= 0 {
		return errors.New("orientation_cache.concurrency must be > 0")
	}
	c.OrientationCache.ImageDir = ExpandPath(c.OrientationCache.ImageDir)

	if c.FrameHz <= 0 || c.FrameHz > 240 {
		return errors.New("frame_hz must be between 1 and 240")
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.RotaryVelocityWindowMS <= 0 {
		return errors.New("input.rotary_velocity_window_ms must be > 0")
	}
	if c.Input.RotaryVelocityThreshold <= 0 {
		return errors.New("input.rotary_velocity_threshold must be > 0")
	}
	if c.Input.RotaryVelocityMultiplier < 1 {
		return errors.New("input.rotary_velocity_multiplier must be >= 1")
	}

	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		return errors.New("serial.baud must be > 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	c.IPC.SocketPath = ExpandPath(c.IPC.SocketPath)

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// assignItemIDs gives every item without an id a random one.
func assignItemIDs(items []carousel.Item) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}
}

// ToEngineOptions maps the config onto carousel engine options.
func (c *Config) ToEngineOptions() (carousel.Options, error) {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }

	opts := carousel.Options{
		Radius:         c.Geometry.Radius,
		DepthIntensity: c.Geometry.DepthIntensity,
		MinOpacity:     c.Geometry.MinOpacity,
		MaxOpacity:     c.Geometry.MaxOpacity,
		MinScale:       c.Geometry.MinScale,
		BaseHeight:     c.Geometry.BaseHeight,
		MaxItems:       c.Geometry.MaxItems,

		Perspective:              c.Geometry.Perspective,
		PerspectiveMultiplier:    c.Geometry.PerspectiveMultiplier,
		PerspectiveMinMultiplier: c.Geometry.PerspectiveMinMultiplier,

		DragSensitivity:        c.Interaction.DragSensitivity,
		DragStartDistance:      c.Interaction.DragStartDistance,
		Momentum:               c.Interaction.Momentum,
		MomentumFriction:       c.Interaction.MomentumFriction,
		MomentumStartThreshold: c.Interaction.MomentumStartThreshold,
		MomentumStopThreshold:  c.Interaction.MomentumStopThreshold,

		AutoRotate:            c.AutoRotate.Enabled,
		AutoRotateSpeed:       c.AutoRotate.Speed,
		AutoRotateResumeDelay: ms(c.AutoRotate.ResumeDelayMS),
		AutoRotateRamp:        ms(c.AutoRotate.RampMS),

		JumpDuration:       ms(c.Interaction.JumpDurationMS),
		KeyboardNavigation: c.Keyboard.Enabled,
		KeyboardDebounce:   ms(c.Keyboard.DebounceMS),
	}
	if err := opts.Validate(); err != nil {
		return carousel.Options{}, fmt.Errorf("engine options: %w", err)
	}
	return opts, nil
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
