package carousel

import (
	"errors"
	"fmt"
	"time"
)

// Options configures an Engine. Start from DefaultOptions and override.
type Options struct {
	// Geometry. Radius is in pixels, DepthIntensity in rem.
	Radius         float64
	DepthIntensity float64
	MinOpacity     float64
	MaxOpacity     float64
	MinScale       float64
	BaseHeight     float64
	MaxItems       int

	// Perspective is a custom viewer distance; 0 derives it from Radius.
	Perspective              float64
	PerspectiveMultiplier    float64
	PerspectiveMinMultiplier float64

	// Drag and momentum
	DragSensitivity        float64
	DragStartDistance      float64 // px
	Momentum               bool
	MomentumFriction       float64
	MomentumStartThreshold float64 // deg/frame
	MomentumStopThreshold  float64 // deg/frame

	// Auto-rotate
	AutoRotate            bool
	AutoRotateSpeed       float64 // deg/frame
	AutoRotateResumeDelay time.Duration
	AutoRotateRamp        time.Duration

	// Index jumps and keyboard navigation
	JumpDuration       time.Duration
	KeyboardNavigation bool
	KeyboardDebounce   time.Duration
}

// DefaultOptions returns the stock carousel tuning.
func DefaultOptions() Options {
	return Options{
		Radius:         600,
		DepthIntensity: 0,
		MinOpacity:     0.2,
		MaxOpacity:     1,
		MinScale:       0.7,
		BaseHeight:     400,
		MaxItems:       MaxItems,

		PerspectiveMultiplier:    3.33,
		PerspectiveMinMultiplier: 2,

		DragSensitivity:        1,
		DragStartDistance:      5,
		Momentum:               true,
		MomentumFriction:       0.95,
		MomentumStartThreshold: 0.5,
		MomentumStopThreshold:  0.01,

		AutoRotate:            false,
		AutoRotateSpeed:       0.1,
		AutoRotateResumeDelay: 3000 * time.Millisecond,
		AutoRotateRamp:        800 * time.Millisecond,

		JumpDuration:       500 * time.Millisecond,
		KeyboardNavigation: true,
		KeyboardDebounce:   50 * time.Millisecond,
	}
}

// Validate reports the first option that would make the engine misbehave.
func (o Options) Validate() error {
	if o.Radius <= 0 {
		return errors.New("radius must be > 0")
	}
	if o.MinOpacity < 0 || o.MaxOpacity > 1 || o.MinOpacity > o.MaxOpacity {
		return fmt.Errorf("opacity range [%v, %v] must satisfy 0 <= min <= max <= 1", o.MinOpacity, o.MaxOpacity)
	}
	if o.MinScale < 0 || o.MinScale > 1 {
		return fmt.Errorf("min scale %v must be within [0, 1]", o.MinScale)
	}
	if o.BaseHeight <= 0 {
		return errors.New("base height must be > 0")
	}
	if o.MaxItems < 0 {
		return errors.New("max items must be >= 0")
	}
	if o.Perspective < 0 {
		return errors.New("perspective must be >= 0 (0 derives it from radius)")
	}
	if o.PerspectiveMultiplier <= 0 || o.PerspectiveMinMultiplier <= 0 {
		return errors.New("perspective multipliers must be > 0")
	}
	if o.DragSensitivity <= 0 {
		return errors.New("drag sensitivity must be > 0")
	}
	if o.DragStartDistance < 0 {
		return errors.New("drag start distance must be >= 0")
	}
	if o.Momentum {
		if o.MomentumFriction <= 0 || o.MomentumFriction >= 1 {
			return fmt.Errorf("momentum friction %v must be within (0, 1)", o.MomentumFriction)
		}
		if o.MomentumStopThreshold <= 0 {
			return errors.New("momentum stop threshold must be > 0")
		}
		if o.MomentumStartThreshold < o.MomentumStopThreshold {
			return errors.New("momentum start threshold must be >= stop threshold")
		}
	}
	if o.AutoRotateSpeed < 0 {
		return errors.New("auto-rotate speed must be >= 0")
	}
	if o.AutoRotateResumeDelay < 0 || o.AutoRotateRamp < 0 {
		return errors.New("auto-rotate durations must be >= 0")
	}
	if o.JumpDuration < 0 || o.KeyboardDebounce < 0 {
		return errors.New("jump and debounce durations must be >= 0")
	}
	return nil
}

func (o Options) transformParams() TransformParams {
	return TransformParams{
		Radius:         o.Radius,
		DepthIntensity: o.DepthIntensity,
		MinOpacity:     o.MinOpacity,
		MaxOpacity:     o.MaxOpacity,
		MinScale:       o.MinScale,
	}
}

func (o Options) dragConfig() DragConfig {
	return DragConfig{
		Radius:         o.Radius,
		Sensitivity:    o.DragSensitivity,
		StartDistance:  o.DragStartDistance,
		Momentum:       o.Momentum,
		Friction:       o.MomentumFriction,
		StartThreshold: o.MomentumStartThreshold,
		StopThreshold:  o.MomentumStopThreshold,
	}
}
