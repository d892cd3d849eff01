// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// kernels.go holds the CPU ports of the fixed-stage WGSL kernels: force
// clear, naive O(N^2) repulsion, edge springs, and integration. Variable
// names follow the shader sources in internal/gpu/shaders so the two
// implementations can be cross-checked line by line. Dead slots (rows below
// the high-water mark whose alive flag is cleared) exert and receive no
// forces, exactly as the shaders test node_flags.

package sim

import (
	"math"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func alive(flags []uint32, slot uint32) bool {
	return flags[slot]&graphstate.FlagAlive != 0
}

// clearForces is the CPU port of clear_forces.wgsl.
func clearForces(forceX, forceY []float32, nodeCount uint32) {
	for i := uint32(0); i < nodeCount; i++ {
		forceX[i] = 0
		forceY[i] = 0
	}
}

// repulsionN2 is the CPU port of repulsion_n2.wgsl. Every node pairs with
// every node; force magnitude is strength / max(d^2, d_min^2) with a hard
// cutoff at d_max. A negative strength (the default) pushes nodes apart.
func repulsionN2(
	posX, posY, forceX, forceY []float32,
	flags []uint32,
	nodeCount uint32,
	strength, minDistance, maxDistance float32,
) {
	minSq := minDistance * minDistance
	maxSq := maxDistance * maxDistance
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		px, py := posX[i], posY[i]
		var fx, fy float32
		for j := uint32(0); j < nodeCount; j++ {
			if j == i || !alive(flags, j) {
				continue
			}
			dx := px - posX[j]
			dy := py - posY[j]
			distSq := dx*dx + dy*dy
			if distSq > maxSq {
				continue
			}
			if distSq < minSq {
				distSq = minSq
			}
			dist := sqrt32(distSq)
			if dist <= 0 {
				// Coincident pair: deterministic separation by index order.
				if i < j {
					dx, dy, dist = 1, 0, 1
				} else {
					dx, dy, dist = -1, 0, 1
				}
			}
			// strength < 0 repels: the force points from j toward i.
			f := -strength / distSq
			fx += dx / dist * f
			fy += dy / dist * f
		}
		forceX[i] += fx
		forceY[i] += fy
	}
}

// repulsionLinLog is the CPU port of repulsion_linlog.wgsl: magnitude k_r/d
// rather than k/d^2, yielding the LinLog energy model's flatter falloff.
func repulsionLinLog(
	posX, posY, forceX, forceY []float32,
	flags []uint32,
	nodeCount uint32,
	repulsion, minDistance float32,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		px, py := posX[i], posY[i]
		var fx, fy float32
		for j := uint32(0); j < nodeCount; j++ {
			if j == i || !alive(flags, j) {
				continue
			}
			dx := px - posX[j]
			dy := py - posY[j]
			dist := sqrt32(dx*dx + dy*dy)
			if dist < minDistance {
				dist = minDistance
			}
			f := repulsion / dist
			fx += dx / dist * f
			fy += dy / dist * f
		}
		forceX[i] += fx
		forceY[i] += fy
	}
}

// repulsionTFDP is the CPU port of repulsion_tfdp.wgsl: the bounded t-force
// (1/(1+d^2))^gamma, finite even at zero distance.
func repulsionTFDP(
	posX, posY, forceX, forceY []float32,
	flags []uint32,
	nodeCount uint32,
	repulsion, gamma float32,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		px, py := posX[i], posY[i]
		var fx, fy float32
		for j := uint32(0); j < nodeCount; j++ {
			if j == i || !alive(flags, j) {
				continue
			}
			dx := px - posX[j]
			dy := py - posY[j]
			distSq := dx*dx + dy*dy
			t := float32(math.Pow(1/(1+float64(distSq)), float64(gamma)))
			dist := sqrt32(distSq)
			if dist < 1e-6 {
				ux, uy := jitterDir(i)
				fx += ux * repulsion * t
				fy += uy * repulsion * t
				continue
			}
			fx += dx / dist * repulsion * t
			fy += dy / dist * repulsion * t
		}
		forceX[i] += fx
		forceY[i] += fy
	}
}

// springs is the CPU port of springs.wgsl. Each edge applies
// F = strength * (d - rest_length) * unit(d), split between endpoints.
// The alpha temperature scales this force in the integration stage, not
// here; the spring uniform carries no alpha (see SpringUniforms).
func springs(
	posX, posY, forceX, forceY []float32,
	edgeSrc, edgeTgt []uint32,
	edgeCount uint32,
	strength, restLength float32,
) {
	for e := uint32(0); e < edgeCount; e++ {
		src, tgt := edgeSrc[e], edgeTgt[e]
		dx := posX[tgt] - posX[src]
		dy := posY[tgt] - posY[src]
		dist := sqrt32(dx*dx + dy*dy)
		if dist <= 1e-6 {
			continue
		}
		f := strength * (dist - restLength) * 0.5
		ux, uy := dx/dist, dy/dist
		forceX[src] += ux * f
		forceY[src] += uy * f
		forceX[tgt] -= ux * f
		forceY[tgt] -= uy * f
	}
}

// weightedSprings is the LinLog attraction variant: F = d * weight^w along
// the edge, replacing the linear spring while LinLog is active.
func weightedSprings(
	posX, posY, forceX, forceY []float32,
	edgeSrc, edgeTgt []uint32,
	edgeWeight []float32,
	edgeCount uint32,
	attractionExponent float32,
) {
	for e := uint32(0); e < edgeCount; e++ {
		src, tgt := edgeSrc[e], edgeTgt[e]
		dx := posX[tgt] - posX[src]
		dy := posY[tgt] - posY[src]
		dist := sqrt32(dx*dx + dy*dy)
		if dist <= 1e-6 {
			continue
		}
		w := edgeWeight[e]
		if w <= 0 {
			w = 1
		}
		scale := float32(math.Pow(float64(w), float64(attractionExponent))) * 0.5
		forceX[src] += dx * scale
		forceY[src] += dy * scale
		forceX[tgt] -= dx * scale
		forceY[tgt] -= dy * scale
	}
}

// tfdpAttraction is the t-FDP attraction term: F = alpha * d^(1+beta) along
// the edge. The config sanitizer guarantees alpha*(1+beta) < 1, the paper's
// stability constraint.
func tfdpAttraction(
	posX, posY, forceX, forceY []float32,
	edgeSrc, edgeTgt []uint32,
	edgeCount uint32,
	tAlpha, tBeta float32,
) {
	for e := uint32(0); e < edgeCount; e++ {
		src, tgt := edgeSrc[e], edgeTgt[e]
		dx := posX[tgt] - posX[src]
		dy := posY[tgt] - posY[src]
		dist := sqrt32(dx*dx + dy*dy)
		if dist <= 1e-6 {
			continue
		}
		f := tAlpha * float32(math.Pow(float64(dist), float64(1+tBeta))) * 0.5
		ux, uy := dx/dist, dy/dist
		forceX[src] += ux * f
		forceY[src] += uy * f
		forceX[tgt] -= ux * f
		forceY[tgt] -= uy * f
	}
}

// integrateParams mirrors IntegrationUniforms (see internal/gpu/uniforms.go).
type integrateParams struct {
	dt              float32
	damping         float32
	maxVelocity     float32
	alpha           float32
	depthSpread     float32
	alphaMin        float32
	gravityStrength float32
	centerX         float32
	centerY         float32
	pinnedSlot      uint32
}

// integrate is the CPU port of integrate.wgsl. It reads positions_in and
// velocities_in, writes positions_out and velocities_out:
//
//	a = F / m (m = 1)
//	v = (v + alpha * a * dt * (1 + depth*spread)) * damping, |v| <= max_velocity
//	p_out = p_in + v * dt
//
// The centering pull is folded into the accumulated force here; algorithms
// that handle gravity themselves zero gravityStrength for the tick. The
// pinned slot holds its position exactly with velocity zeroed.
func integrate(
	posInX, posInY, velInX, velInY []float32,
	posOutX, posOutY, velOutX, velOutY []float32,
	forceX, forceY, depth []float32,
	flags []uint32,
	nodeCount uint32,
	p integrateParams,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if i == p.pinnedSlot || flags[i]&graphstate.FlagPinned != 0 || !alive(flags, i) {
			posOutX[i] = posInX[i]
			posOutY[i] = posInY[i]
			velOutX[i] = 0
			velOutY[i] = 0
			continue
		}

		ax := forceX[i] + (p.centerX-posInX[i])*p.gravityStrength
		ay := forceY[i] + (p.centerY-posInY[i])*p.gravityStrength

		stagger := 1 + depth[i]*p.depthSpread
		vx := (velInX[i] + p.alpha*ax*p.dt*stagger) * p.damping
		vy := (velInY[i] + p.alpha*ay*p.dt*stagger) * p.damping

		speedSq := vx*vx + vy*vy
		if maxSq := p.maxVelocity * p.maxVelocity; speedSq > maxSq {
			scale := p.maxVelocity / sqrt32(speedSq)
			vx *= scale
			vy *= scale
		}

		// After the alpha hard-zero, drain sub-pixel residuals outright.
		if p.alpha == 0 && vx*vx+vy*vy < p.alphaMin*p.alphaMin {
			vx, vy = 0, 0
		}

		velOutX[i] = vx
		velOutY[i] = vy
		posOutX[i] = posInX[i] + vx*p.dt
		posOutY[i] = posInY[i] + vy*p.dt
	}
}

// springToTarget is the CPU port of spring_to_target.wgsl, the degenerate
// repulsion stage used by precomputed layouts: a stiffness pull toward the
// per-node target with damping of the incoming velocity.
func springToTarget(
	posX, posY, velX, velY, forceX, forceY []float32,
	targetX, targetY []float32,
	flags []uint32,
	nodeCount uint32,
	stiffness, damping float32,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		forceX[i] += (targetX[i]-posX[i])*stiffness - velX[i]*damping
		forceY[i] += (targetY[i]-posY[i])*stiffness - velY[i]*damping
	}
}

// centerPull applies the algorithm-owned gravity used by LinLog and the
// hierarchical algorithm when they suppress the integrator's centering term.
func centerPull(
	posX, posY, forceX, forceY []float32,
	mass []float32,
	flags []uint32,
	nodeCount uint32,
	cx, cy, strength float32,
	curve simcore.GravityCurve,
	exponent float32,
) {
	for i := uint32(0); i < nodeCount; i++ {
		if !alive(flags, i) {
			continue
		}
		dx := cx - posX[i]
		dy := cy - posY[i]
		dist := sqrt32(dx*dx + dy*dy)
		if dist <= 1e-6 {
			continue
		}
		var mag float32
		switch curve {
		case simcore.GravityLinear:
			mag = strength * dist
		case simcore.GravityInverse:
			mag = strength / max32(dist, 1)
		case simcore.GravitySoft:
			mag = strength * dist / (dist + 100)
		case simcore.GravityCustom:
			mag = strength * float32(math.Pow(float64(dist), float64(exponent)))
		}
		if mass != nil {
			mag *= mass[i]
		}
		forceX[i] += dx / dist * mag
		forceY[i] += dy / dist * mag
	}
}
