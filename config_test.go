// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package heroine

import "testing"

func TestDefaultForceConfig(t *testing.T) {
	c := DefaultForceConfig()
	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"repulsion strength", c.RepulsionStrength, -50},
		{"repulsion distance min", c.RepulsionDistanceMin, 1},
		{"repulsion distance max", c.RepulsionDistanceMax, 1000},
		{"spring strength", c.SpringStrength, 0.1},
		{"spring length", c.SpringLength, 30},
		{"center strength", c.CenterStrength, 0.01},
		{"velocity decay", c.VelocityDecay, 0.4},
		{"max velocity", c.MaxVelocity, 50},
		{"time step", c.TimeStep, 1},
		{"theta", c.Theta, 0.8},
		{"collision strength", c.Collision.Strength, 0.7},
		{"collision radius multiplier", c.Collision.RadiusMultiplier, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	if !c.Collision.Enabled {
		t.Error("collision should default enabled")
	}
	if c.Collision.Iterations != 1 {
		t.Errorf("collision iterations = %d, want 1", c.Collision.Iterations)
	}
}

func TestSanitize_Clamps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ForceConfig)
		check  func(t *testing.T, c ForceConfig)
	}{
		{
			name:   "theta clamps low",
			mutate: func(c *ForceConfig) { c.Theta = 0.001 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().Theta; got != 0.1 {
					t.Errorf("theta = %v, want 0.1", got)
				}
			},
		},
		{
			name:   "theta clamps high",
			mutate: func(c *ForceConfig) { c.Theta = 9 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().Theta; got != 2 {
					t.Errorf("theta = %v, want 2", got)
				}
			},
		},
		{
			name:   "velocity decay clamps to unit range",
			mutate: func(c *ForceConfig) { c.VelocityDecay = 1.7 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().VelocityDecay; got != 1 {
					t.Errorf("velocity decay = %v, want 1", got)
				}
			},
		},
		{
			name:   "collision strength clamps",
			mutate: func(c *ForceConfig) { c.Collision.Strength = 3 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().CollisionStrength; got != 1 {
					t.Errorf("collision strength = %v, want 1", got)
				}
			},
		},
		{
			name:   "zero iterations become one",
			mutate: func(c *ForceConfig) { c.Collision.Iterations = 0 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().CollisionIterations; got != 1 {
					t.Errorf("iterations = %d, want 1", got)
				}
			},
		},
		{
			name:   "max distance floors at min distance",
			mutate: func(c *ForceConfig) { c.RepulsionDistanceMin = 50; c.RepulsionDistanceMax = 10 },
			check: func(t *testing.T, c ForceConfig) {
				p := c.sanitize()
				if p.RepulsionDistanceMax < p.RepulsionDistanceMin {
					t.Errorf("max %v < min %v", p.RepulsionDistanceMax, p.RepulsionDistanceMin)
				}
			},
		},
		{
			name:   "tfdp gamma floors at one",
			mutate: func(c *ForceConfig) { c.TFDP.Gamma = 0.2 },
			check: func(t *testing.T, c ForceConfig) {
				if got := c.sanitize().TFDP.Gamma; got != 1 {
					t.Errorf("gamma = %v, want 1", got)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultForceConfig()
			tt.mutate(&c)
			tt.check(t, c)
		})
	}
}

func TestSanitize_TFDPStability(t *testing.T) {
	// alpha*(1+beta) must stay under 1; beta auto-reduces.
	c := DefaultForceConfig()
	c.TFDP.Alpha = 0.5
	c.TFDP.Beta = 3 // 0.5 * 4 = 2 >= 1
	p := c.sanitize()
	if prod := p.TFDP.Alpha * (1 + p.TFDP.Beta); prod >= 1 {
		t.Errorf("alpha*(1+beta) = %v, want < 1", prod)
	}
	if p.TFDP.Alpha != 0.5 {
		t.Errorf("alpha changed to %v; beta is the adjustable side", p.TFDP.Alpha)
	}
}

func TestSanitize_NeverPanics(t *testing.T) {
	// Garbage in every field still produces a usable parameter set.
	c := ForceConfig{
		RepulsionStrength:    -1e30,
		RepulsionDistanceMin: -5,
		RepulsionDistanceMax: -10,
		VelocityDecay:        -3,
		MaxVelocity:          -1,
		TimeStep:             -100,
		Theta:                -1,
	}
	p := c.sanitize()
	if p.RepulsionDistanceMin <= 0 {
		t.Errorf("min distance = %v, want > 0", p.RepulsionDistanceMin)
	}
	if p.MaxVelocity <= 0 {
		t.Errorf("max velocity = %v, want > 0", p.MaxVelocity)
	}
	if p.TimeStep <= 0 {
		t.Errorf("time step = %v, want > 0", p.TimeStep)
	}
}
