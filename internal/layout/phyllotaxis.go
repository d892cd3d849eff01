// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package layout computes CPU-side node positions: the deterministic
// phyllotaxis seeding used on load, and the precomputed layouts (tidy tree,
// Louvain communities, nested circle packing) whose targets the degenerate
// spring-to-target repulsion stage pulls toward.
package layout

import "math"

// goldenAngle is the phyllotaxis divergence angle in radians.
const goldenAngle = 2.399963229728653

// Phyllotaxis returns the i-th position on the sunflower-seed spiral.
// The spiral has near-uniform density and reaches radius spacing*sqrt(n)
// at the n-th seed; the engine seeds with spacing 10 so a graph of N nodes
// starts inside radius sqrt(N)*10.
func Phyllotaxis(i uint32, spacing float64) (x, y float32) {
	r := spacing * math.Sqrt(float64(i))
	theta := float64(i) * goldenAngle
	return float32(r * math.Cos(theta)), float32(r * math.Sin(theta))
}
