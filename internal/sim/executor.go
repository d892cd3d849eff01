// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// executor.go runs the complete tick sequence on the CPU: clear -> repulsion
// (per algorithm) -> springs -> integrate -> collision -> ping-pong swap.
// The pass order and buffer roles match the GPU pipeline in internal/gpu
// exactly, so the executor doubles as the behavioral reference for tests and
// as the transparent fallback on hosts without a compute-capable GPU.

package sim

import (
	"errors"
	"fmt"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/layout"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// DefaultNodeRadius is the collision radius used for nodes that carry none.
const DefaultNodeRadius = 5

// ErrBoundsRequired reports a tick of a bounds-requiring algorithm with
// degenerate scene bounds.
var ErrBoundsRequired = errors.New("sim: algorithm requires valid scene bounds")

// Executor is the software simulator. It owns CPU ping-pong position and
// velocity buffers mirroring the GPU BufferSet, plus the per-algorithm
// private state (radix tree, masses, CSR, layout targets).
type Executor struct {
	st        *graphstate.State
	params    simcore.Params
	algorithm string

	capacity uint32

	posInX, posInY   []float32
	posOutX, posOutY []float32
	velInX, velInY   []float32
	velOutX, velOutY []float32
	forceX, forceY   []float32

	// Algorithm-private state.
	tree    bhTree
	grid    collisionGrid
	scratch collisionScratch
	density densityField
	mass    []float32
	targetX []float32
	targetY []float32

	fwdOffsets, fwdTargets []uint32
	invOffsets, invTargets []uint32
	topologyDirty          bool

	released bool
}

// NewExecutor creates an idle software simulator.
func NewExecutor() *Executor {
	return &Executor{algorithm: simcore.AlgoN2}
}

// Name identifies the back-end in logs and diagnostics.
func (e *Executor) Name() string { return "software" }

// Reset binds the executor to a freshly loaded graph state: buffers are
// (re)sized to the state's capacity and both ping-pong sets take the shadow
// positions, preserving the ping-pong invariant from the first tick.
func (e *Executor) Reset(st *graphstate.State, params simcore.Params, algorithm string) error {
	e.st = st
	e.params = params
	e.resize(st.NodeCapacity())
	n := st.NodeHighWater()
	copy(e.posInX[:n], st.PosX[:n])
	copy(e.posInY[:n], st.PosY[:n])
	copy(e.posOutX[:n], st.PosX[:n])
	copy(e.posOutY[:n], st.PosY[:n])
	copy(e.velInX[:n], st.VelX[:n])
	copy(e.velInY[:n], st.VelY[:n])
	copy(e.velOutX[:n], st.VelX[:n])
	copy(e.velOutY[:n], st.VelY[:n])
	e.topologyDirty = true
	return e.SetAlgorithm(algorithm)
}

func (e *Executor) resize(capacity uint32) {
	if capacity <= e.capacity {
		return
	}
	grow := func(s []float32) []float32 {
		out := make([]float32, capacity)
		copy(out, s)
		return out
	}
	e.posInX, e.posInY = grow(e.posInX), grow(e.posInY)
	e.posOutX, e.posOutY = grow(e.posOutX), grow(e.posOutY)
	e.velInX, e.velInY = grow(e.velInX), grow(e.velInY)
	e.velOutX, e.velOutY = grow(e.velOutX), grow(e.velOutY)
	e.forceX, e.forceY = grow(e.forceX), grow(e.forceY)
	e.mass = grow(e.mass)
	e.targetX, e.targetY = grow(e.targetX), grow(e.targetY)
	e.capacity = capacity
	slogger().Debug("software buffers resized", "capacity", capacity)
}

// Grow follows a graph-state capacity increase. Live rows keep their current
// simulated positions; rows past the old capacity start zeroed until written
// (WriteNodeFromShadow or WritePosition).
func (e *Executor) Grow() error {
	if e.st == nil {
		return nil
	}
	e.resize(e.st.NodeCapacity())
	return nil
}

// SetAlgorithm switches the repulsion stage. Positions carry over untouched;
// per-algorithm data (CSR, masses, layout targets) is rebuilt.
func (e *Executor) SetAlgorithm(id string) error {
	switch id {
	case simcore.AlgoN2, simcore.AlgoBarnesHut, simcore.AlgoLinLog, simcore.AlgoTFDP,
		simcore.AlgoRelativity, simcore.AlgoTidyTree, simcore.AlgoCommunity, simcore.AlgoCodebase:
	default:
		return fmt.Errorf("sim: unknown algorithm %q", id)
	}
	e.algorithm = id
	e.topologyDirty = true
	if isPrecomputed(id) {
		return e.Recompute()
	}
	return nil
}

// Algorithm returns the active algorithm ID.
func (e *Executor) Algorithm() string { return e.algorithm }

// Configure replaces the force parameters for subsequent ticks.
func (e *Executor) Configure(params simcore.Params) { e.params = params }

// MarkTopologyDirty schedules a CSR/mass/target refresh before the next
// tick of any structure-consuming algorithm.
func (e *Executor) MarkTopologyDirty() { e.topologyDirty = true }

// RequiresBounds reports whether ticking needs a valid scene bounding box.
func (e *Executor) RequiresBounds() bool {
	return e.algorithm == simcore.AlgoBarnesHut ||
		(e.algorithm == simcore.AlgoRelativity && e.params.Relativity.DensityEnabled)
}

// HandlesGravity reports whether the active algorithm supplies its own
// centering, suppressing the integrator's term.
func (e *Executor) HandlesGravity() bool {
	return e.algorithm == simcore.AlgoLinLog || e.algorithm == simcore.AlgoRelativity
}

// SkipSprings reports whether the spring pass is replaced by the algorithm
// (precomputed layouts pull toward targets instead).
func (e *Executor) SkipSprings() bool { return isPrecomputed(e.algorithm) }

func isPrecomputed(id string) bool {
	return id == simcore.AlgoTidyTree || id == simcore.AlgoCommunity || id == simcore.AlgoCodebase
}

// Recompute rebuilds the precomputed layout targets from the current graph.
// For force algorithms it is a no-op.
func (e *Executor) Recompute() error {
	if e.st == nil {
		return nil
	}
	switch e.algorithm {
	case simcore.AlgoTidyTree:
		layout.TidyTree(e.st, e.params.TidyTree, e.targetX, e.targetY)
	case simcore.AlgoCommunity:
		layout.CommunityLayout(e.st, e.params.Community, e.targetX, e.targetY)
	case simcore.AlgoCodebase:
		layout.CodebaseLayout(e.st, e.params.Codebase, e.targetX, e.targetY)
	}
	return nil
}

// refreshTopology rebuilds CSR and hierarchical masses when dirty.
func (e *Executor) refreshTopology() {
	if !e.topologyDirty {
		return
	}
	e.topologyDirty = false
	if e.algorithm != simcore.AlgoRelativity {
		return
	}
	e.st.ComputeDepths()
	e.fwdOffsets, e.fwdTargets = e.st.ForwardCSR()
	e.invOffsets, e.invTargets = e.st.InverseCSR()
	accumulateMass(
		e.mass, e.st.NodeDepth, e.st.NodeFlags,
		e.fwdOffsets, e.fwdTargets,
		e.st.NodeHighWater(),
		e.params.Relativity.BaseMass, e.params.Relativity.ChildMassFactor,
	)
}

// Step runs one full tick. An empty graph is a no-op.
func (e *Executor) Step(frame simcore.Frame) error {
	if e.released || e.st == nil {
		return nil
	}
	n := e.st.NodeHighWater()
	if n == 0 {
		return nil
	}
	p := e.params

	clearForces(e.forceX, e.forceY, n)

	if err := e.repulsionPass(frame, n); err != nil {
		return err
	}

	e.springPass()

	gravity := p.CenterStrength
	if e.HandlesGravity() {
		gravity = 0
	}
	integrate(
		e.posInX, e.posInY, e.velInX, e.velInY,
		e.posOutX, e.posOutY, e.velOutX, e.velOutY,
		e.forceX, e.forceY, e.st.NodeDepth, e.st.NodeFlags,
		n,
		integrateParams{
			dt:              p.TimeStep,
			damping:         frame.Damping,
			maxVelocity:     p.MaxVelocity,
			alpha:           frame.Alpha,
			depthSpread:     p.DepthSettlingSpread,
			alphaMin:        0.001,
			gravityStrength: gravity,
			centerX:         p.CenterX,
			centerY:         p.CenterY,
			pinnedSlot:      frame.PinnedSlot,
		},
	)

	if p.CollisionEnabled {
		e.collisionPass(frame, n)
	}

	// Ping-pong swap: the freshly integrated (and collision-corrected)
	// positions become the next tick's input.
	e.posInX, e.posOutX = e.posOutX, e.posInX
	e.posInY, e.posOutY = e.posOutY, e.posInY
	e.velInX, e.velOutX = e.velOutX, e.velInX
	e.velInY, e.velOutY = e.velOutY, e.velInY

	if frame.SyncPositions {
		e.SyncPositions()
	}
	return nil
}

func (e *Executor) repulsionPass(frame simcore.Frame, n uint32) error {
	p := e.params
	flags := e.st.NodeFlags
	switch e.algorithm {
	case simcore.AlgoN2:
		repulsionN2(
			e.posInX, e.posInY, e.forceX, e.forceY, flags, n,
			p.RepulsionStrength, p.RepulsionDistanceMin, p.RepulsionDistanceMax,
		)

	case simcore.AlgoBarnesHut:
		if !frame.Bounds.Valid() {
			return ErrBoundsRequired
		}
		e.tree.build(e.posInX, e.posInY, nil, flags, n, frame.Bounds)
		e.tree.aggregate()
		e.tree.repulsion(
			e.posInX, e.posInY, e.forceX, e.forceY, flags, n,
			p.RepulsionStrength, p.RepulsionDistanceMin, p.Theta,
		)

	case simcore.AlgoLinLog:
		repulsionLinLog(
			e.posInX, e.posInY, e.forceX, e.forceY, flags, n,
			p.LinLog.Repulsion, p.RepulsionDistanceMin,
		)
		curve := simcore.GravityInverse
		if p.LinLog.StrongGravity {
			curve = simcore.GravityLinear
		}
		centerPull(
			e.posInX, e.posInY, e.forceX, e.forceY, nil, flags, n,
			p.CenterX, p.CenterY, p.LinLog.Gravity, curve, 1,
		)

	case simcore.AlgoTFDP:
		repulsionTFDP(
			e.posInX, e.posInY, e.forceX, e.forceY, flags, n,
			p.TFDP.Repulsion, p.TFDP.Gamma,
		)

	case simcore.AlgoRelativity:
		if p.Relativity.DensityEnabled && !frame.Bounds.Valid() {
			return ErrBoundsRequired
		}
		e.refreshTopology()
		r := p.Relativity
		orbitForces(
			e.posInX, e.posInY, e.forceX, e.forceY, flags,
			e.invOffsets, e.invTargets, e.fwdOffsets, n,
			r.OrbitRadius, r.OrbitStrength,
		)
		siblingForces(
			e.posInX, e.posInY, e.forceX, e.forceY, e.mass, flags,
			e.fwdOffsets, e.fwdTargets, n,
			r.SiblingRepulsion, r.TangentialMultiplier,
			r.CousinEnabled, r.CousinRepulsion,
		)
		if r.PhantomEnabled {
			phantomZone(
				e.posInX, e.posInY, e.forceX, e.forceY, e.mass,
				e.st.NodeAttrs, flags, n, r.PhantomMargin,
			)
		}
		if r.DensityEnabled {
			e.density.apply(
				e.posInX, e.posInY, e.forceX, e.forceY, e.mass, flags, n,
				frame.Bounds, r.DensityStrength,
			)
		}
		centerPull(
			e.posInX, e.posInY, e.forceX, e.forceY, e.mass, flags, n,
			p.CenterX, p.CenterY, p.CenterStrength,
			r.GravityCurve, r.GravityExponent,
		)

	case simcore.AlgoTidyTree:
		springToTarget(
			e.posInX, e.posInY, e.velInX, e.velInY, e.forceX, e.forceY,
			e.targetX, e.targetY, flags, n,
			p.TidyTree.Stiffness, p.TidyTree.Damping,
		)
	case simcore.AlgoCommunity:
		springToTarget(
			e.posInX, e.posInY, e.velInX, e.velInY, e.forceX, e.forceY,
			e.targetX, e.targetY, flags, n,
			p.Community.Stiffness, p.Community.Damping,
		)
	case simcore.AlgoCodebase:
		springToTarget(
			e.posInX, e.posInY, e.velInX, e.velInY, e.forceX, e.forceY,
			e.targetX, e.targetY, flags, n,
			p.Codebase.Stiffness, p.Codebase.Damping,
		)
	}
	return nil
}

func (e *Executor) springPass() {
	if e.SkipSprings() {
		return
	}
	edgeCount := e.st.EdgeCount()
	if edgeCount == 0 {
		return
	}
	p := e.params
	switch e.algorithm {
	case simcore.AlgoLinLog:
		weightedSprings(
			e.posInX, e.posInY, e.forceX, e.forceY,
			e.st.EdgeSrc, e.st.EdgeTgt, e.st.EdgeWeight, edgeCount,
			p.LinLog.AttractionExponent,
		)
	case simcore.AlgoTFDP:
		tfdpAttraction(
			e.posInX, e.posInY, e.forceX, e.forceY,
			e.st.EdgeSrc, e.st.EdgeTgt, edgeCount,
			p.TFDP.Alpha, p.TFDP.Beta,
		)
	default:
		springs(
			e.posInX, e.posInY, e.forceX, e.forceY,
			e.st.EdgeSrc, e.st.EdgeTgt, edgeCount,
			p.SpringStrength, p.SpringLength,
		)
	}
}

func (e *Executor) collisionPass(frame simcore.Frame, n uint32) {
	p := e.params
	if e.st.NodeCount() <= collisionTiledThreshold {
		collideTiled(
			&e.scratch,
			e.posOutX, e.posOutY, e.st.NodeAttrs, e.st.NodeFlags, n,
			p.CollisionStrength, p.CollisionRadiusMultiplier, DefaultNodeRadius,
			p.CollisionIterations,
		)
		return
	}
	bounds := frame.Bounds
	if !bounds.Valid() {
		bounds = e.st.ComputeBounds().WithMargin()
	}
	collideGrid(
		&e.grid,
		e.posOutX, e.posOutY, e.st.NodeAttrs, e.st.NodeFlags, n,
		bounds,
		p.CollisionStrength, p.CollisionRadiusMultiplier, DefaultNodeRadius,
		e.st.MaxRadius(DefaultNodeRadius),
		p.CollisionIterations,
	)
}

// SyncPositions copies the committed ping-pong positions and velocities back
// into the CPU shadow. The software path has no readback latency, so this is
// exact.
func (e *Executor) SyncPositions() error {
	if e.st == nil {
		return nil
	}
	n := e.st.NodeHighWater()
	copy(e.st.PosX[:n], e.posInX[:n])
	copy(e.st.PosY[:n], e.posInY[:n])
	copy(e.st.VelX[:n], e.velInX[:n])
	copy(e.st.VelY[:n], e.velInY[:n])
	return nil
}

// WritePosition places a node at (x, y) in both ping-pong buffers so the
// move survives the next swap without a one-frame jump, and zeroes its
// velocity.
func (e *Executor) WritePosition(slot uint32, x, y float32) {
	if slot >= e.capacity {
		return
	}
	e.posInX[slot], e.posInY[slot] = x, y
	e.posOutX[slot], e.posOutY[slot] = x, y
	e.velInX[slot], e.velInY[slot] = 0, 0
	e.velOutX[slot], e.velOutY[slot] = 0, 0
}

// WriteNodeFromShadow uploads a single node row (position and velocity)
// from the CPU shadow, used for targeted adds.
func (e *Executor) WriteNodeFromShadow(slot uint32) {
	if e.st == nil || slot >= e.capacity {
		return
	}
	e.posInX[slot], e.posInY[slot] = e.st.PosX[slot], e.st.PosY[slot]
	e.posOutX[slot], e.posOutY[slot] = e.st.PosX[slot], e.st.PosY[slot]
	e.velInX[slot], e.velInY[slot] = e.st.VelX[slot], e.st.VelY[slot]
	e.velOutX[slot], e.velOutY[slot] = e.st.VelX[slot], e.st.VelY[slot]
}

// WriteEdgeFromShadow is a no-op on the CPU path: edge endpoints are read
// straight from the shadow each tick. It exists so the facade can treat both
// back-ends uniformly after edge mutations.
func (e *Executor) WriteEdgeFromShadow(slot uint32) {}

// Release drops the executor's buffers. Further Steps are no-ops.
func (e *Executor) Release() {
	e.released = true
	e.st = nil
}
