// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// alpha.go implements the simulation temperature controller: exponential
// decay toward a target, a hard zero below the minimum to kill sub-pixel
// jitter, reheat on interaction, and the progressive damping curve coupled
// to (1 - alpha). The controller never halts the pipeline on its own:
// with alpha at zero forces are still computed, motion is just negligible,
// which keeps drags responsive.

package heroine

// SimStatus is the simulation lifecycle state.
type SimStatus int

const (
	// StatusIdle means no graph is loaded or Start has not been called.
	StatusIdle SimStatus = iota
	// StatusRunning means ticks advance the simulation.
	StatusRunning
	// StatusPaused means ticks are ignored until Start or visibility restore.
	StatusPaused
	// StatusStopped means the simulation was explicitly stopped or hit a
	// fatal condition.
	StatusStopped
)

// String returns the status name.
func (s SimStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// alphaController holds the temperature state. Defaults: alpha 1, target 0,
// minimum 0.001, fast decay preset.
type alphaController struct {
	alpha       float32
	alphaTarget float32
	alphaMin    float32
	alphaDecay  float32

	tickCount uint64
	status    SimStatus

	isWarmingUp            bool
	wasRunningBeforeHidden bool
}

func newAlphaController() *alphaController {
	return &alphaController{
		alpha:      1,
		alphaMin:   0.001,
		alphaDecay: AlphaDecayFast,
		status:     StatusIdle,
	}
}

// tick advances one frame: alpha += (target - alpha) * decay, with the hard
// zero once both alpha and its target are under the minimum. Returns the
// alpha to use for the frame.
func (c *alphaController) tick() float32 {
	c.tickCount++
	c.alpha += (c.alphaTarget - c.alpha) * c.alphaDecay
	if c.alpha < c.alphaMin && c.alphaTarget <= c.alphaMin {
		c.alpha = 0
	}
	return c.alpha
}

// bump raises alpha to at least min and re-enters the running state.
// Drag, add, remove, algorithm switch, and visibility restore go through
// here.
func (c *alphaController) bump(min float32) {
	if c.alpha < min {
		c.alpha = min
	}
	if c.status == StatusIdle || c.status == StatusStopped || c.status == StatusPaused {
		c.status = StatusRunning
	}
}

// effectiveDamping couples the per-frame velocity multiplier to the
// temperature: cold simulations decelerate faster than hot ones without
// touching the controller state. velocityDecay is the configured decay in
// [0, 1]; the returned value multiplies velocities in the integrator.
func (c *alphaController) effectiveDamping(velocityDecay float32) float32 {
	base := 1 - velocityDecay
	d := base - (1-c.alpha)*0.12
	if d < 0.05 {
		d = 0.05
	}
	return d
}

// hidden pauses a running simulation, remembering whether to resume.
func (c *alphaController) hidden() {
	c.wasRunningBeforeHidden = c.status == StatusRunning
	if c.status == StatusRunning {
		c.status = StatusPaused
	}
}

// visible resumes iff the simulation ran before the tab hid.
func (c *alphaController) visible() {
	if c.wasRunningBeforeHidden {
		c.status = StatusRunning
		c.bump(0.05)
	}
	c.wasRunningBeforeHidden = false
}
