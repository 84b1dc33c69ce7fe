package main

import "time"

// RotaryConfig is the fast-spin policy applied to rotary encoder turns.
type RotaryConfig struct {
	// VelocityWindowMS is the window in which same-direction steps are counted.
	VelocityWindowMS int
	// VelocityThreshold is the count at which a step starts jumping further.
	VelocityThreshold int
	// VelocityMultiplier is how many items one detent moves while spinning fast.
	VelocityMultiplier int
}

func (c RotaryConfig) withDefaults() RotaryConfig {
	if c.VelocityWindowMS <= 0 {
		c.VelocityWindowMS = defaultRotaryVelocityWindowMS
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = defaultRotaryVelocityThreshold
	}
	if c.VelocityMultiplier < 1 {
		c.VelocityMultiplier = defaultRotaryVelocityMultiplier
	}
	return c
}

// addStep records a new encoder step at now and returns the count of recent
// steps in the same direction within the velocity window.
//
// direction is +1 for next, -1 for previous. The reducer owns this state, so
// no locking is needed.
func (r *RotaryReducerState) addStep(direction int, now time.Time, windowMS int) int {
	cutoff := now.Add(-time.Duration(windowMS) * time.Millisecond)

	// Remove old steps outside the velocity window
	filtered := r.RecentSteps[:0]
	for _, s := range r.RecentSteps {
		if s.At.After(cutoff) {
			filtered = append(filtered, s)
		}
	}

	filtered = append(filtered, RotaryReducerStep{At: now, Direction: direction})
	r.RecentSteps = filtered

	sameDir := 0
	for _, s := range filtered {
		if s.Direction == direction {
			sameDir++
		}
	}
	return sameDir
}

// itemsForTurn converts a raw turn into an item delta, scaling detents that
// arrive while the encoder is spinning fast.
func (r *RotaryReducerState) itemsForTurn(steps int, now time.Time, cfg RotaryConfig) int {
	cfg = cfg.withDefaults()

	dir := 1
	if steps < 0 {
		dir = -1
		steps = -steps
	}

	total := 0
	for range steps {
		n := r.addStep(dir, now, cfg.VelocityWindowMS)
		if n >= cfg.VelocityThreshold {
			total += cfg.VelocityMultiplier
		} else {
			total++
		}
	}
	return dir * total
}
