// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// algorithm.go defines the pluggable repulsion-algorithm contract and the
// registry. Each algorithm owns its private pipelines and buffers; the
// shared position/force buffers arrive through the FrameContext each tick.
// Bind groups are created per frame and released after submission, so
// ping-pong orientation and buffer growth never leave stale references.

package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// FrameContext carries the per-tick inputs an algorithm needs to update its
// uniforms and record its repulsion passes.
type FrameContext struct {
	Buffers *BufferSet

	// NodeCount is the dispatch bound (the high-water mark); LiveCount the
	// number of live nodes; EdgeCount the live edge count.
	NodeCount uint32
	LiveCount uint32
	EdgeCount uint32

	// MaxRadius is the largest live collision radius, for grid sizing.
	MaxRadius float32

	Params simcore.Params
	Frame  simcore.Frame
}

// defaultNodeRadius is the collision radius for nodes that carry none.
const defaultNodeRadius = 5

// Algorithm is the repulsion-stage plug-in contract.
type Algorithm interface {
	// ID returns the registry key ("n2", "barnes-hut", ...).
	ID() string

	// CreatePipelines builds the algorithm's compute pipelines once.
	CreatePipelines(device hal.Device) error

	// CreateBuffers allocates private buffers sized to the node capacity.
	// Called again (after DestroyBuffers-style cleanup inside) when the
	// shared buffers grow.
	CreateBuffers(device hal.Device, nodeCapacity uint32) error

	// UploadGraphData refreshes per-graph inputs (CSR, weights, layout
	// targets) after load, mutation, or recompute.
	UploadGraphData(queue hal.Queue, st *graphstate.State) error

	// UpdateUniforms refreshes the algorithm's per-frame uniform buffers.
	UpdateUniforms(queue hal.Queue, ctx *FrameContext)

	// RecordRepulsion encodes the compute passes that accumulate repulsion
	// into the shared force buffer. Transient bind groups register with res
	// for post-submission cleanup.
	RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error

	// Recompute rebuilds CPU-side layout targets (precomputed layouts) or
	// refreshes derived topology; a no-op for pure force algorithms.
	Recompute(st *graphstate.State, params simcore.Params) error

	// HandlesGravity reports that the integrator's centering term must be
	// suppressed while this algorithm runs.
	HandlesGravity() bool

	// RequiresBounds reports that ticking without a valid scene bounding
	// box is a fatal condition.
	RequiresBounds() bool

	// SkipSprings reports that the spring pass is replaced by the
	// algorithm's own attraction (or by a target pull).
	SkipSprings() bool

	// Destroy releases every pipeline and buffer the algorithm owns.
	Destroy(device hal.Device)
}

// newAlgorithm instantiates a registered algorithm by ID.
func newAlgorithm(id string, params simcore.Params) (Algorithm, error) {
	switch id {
	case simcore.AlgoN2:
		return &n2Algorithm{}, nil
	case simcore.AlgoBarnesHut:
		return &barnesHutAlgorithm{}, nil
	case simcore.AlgoLinLog:
		return &linLogAlgorithm{}, nil
	case simcore.AlgoTFDP:
		return &tfdpAlgorithm{}, nil
	case simcore.AlgoRelativity:
		return &relativityAlgorithm{params: params.Relativity}, nil
	case simcore.AlgoTidyTree, simcore.AlgoCommunity, simcore.AlgoCodebase:
		return &precomputedAlgorithm{id: id}, nil
	default:
		return nil, fmt.Errorf("gpu: unknown algorithm %q", id)
	}
}

// frameResources tracks transient per-tick GPU resources for cleanup after
// the submission completes.
type frameResources struct {
	device     hal.Device
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
}

// track registers a bind group for cleanup.
func (r *frameResources) track(bg hal.BindGroup) hal.BindGroup {
	r.bindGroups = append(r.bindGroups, bg)
	return bg
}

// cleanup destroys all tracked per-tick resources.
func (r *frameResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
		r.fence = nil
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
		r.cmdBuf = nil
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
	r.bindGroups = r.bindGroups[:0]
}
