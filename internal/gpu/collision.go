// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// collision.go owns the post-integration overlap resolution pipelines. Two
// back-ends are chosen per frame by live node count: the tiled O(N^2) pass
// for small graphs and the spatial-hash grid (clear -> build -> resolve,
// repeated per iteration) for large ones. Both bind positions_out so
// corrections survive the ping-pong swap.

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// collisionTiledThreshold selects the back-end: above it the grid runs.
const collisionTiledThreshold = 5000

// maxGridDim caps the grid resolution per axis; cell size grows instead.
const maxGridDim = 256

// CollisionResolver owns the collision pipelines and grid buffers.
type CollisionResolver struct {
	tiled       *computeStage
	gridClear   *computeStage
	gridBuild   *computeStage
	gridResolve *computeStage

	uTiled hal.Buffer
	uGrid  hal.Buffer

	cellHeads hal.Buffer
	nodeNext  hal.Buffer

	nodeCapacity uint32
}

func newCollisionResolver(device hal.Device, nodeCapacity uint32) (*CollisionResolver, error) {
	c := &CollisionResolver{}

	type stageSpec struct {
		target  **computeStage
		label   string
		src     string
		entry   string
		layouts []bindingKind
	}
	specs := []stageSpec{
		{&c.tiled, "collision_tiled", withCommon(shaderCollision), "main",
			[]bindingKind{bindUniform, bindStorageRW, bindStorageRO, bindStorageRO}},
		{&c.gridClear, "grid_collision_clear", withCommon(shaderGridCollision), "clear_cells",
			[]bindingKind{bindUniform, bindStorageRW, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
		{&c.gridBuild, "grid_collision_build", withCommon(shaderGridCollision), "build_lists",
			[]bindingKind{bindUniform, bindStorageRW, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
		{&c.gridResolve, "grid_collision_resolve", withCommon(shaderGridCollision), "resolve",
			[]bindingKind{bindUniform, bindStorageRW, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
	}
	for _, s := range specs {
		stage, err := newComputeStage(device, s.label, s.src, s.entry, layoutEntries(s.layouts...))
		if err != nil {
			c.destroy(device)
			return nil, err
		}
		*s.target = stage
	}

	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	var err error
	c.uTiled, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collision_u_tiled", Size: CollisionUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		c.destroy(device)
		return nil, fmt.Errorf("gpu: create collision uniform: %w", err)
	}
	c.uGrid, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collision_u_grid", Size: GridCollisionUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		c.destroy(device)
		return nil, fmt.Errorf("gpu: create grid collision uniform: %w", err)
	}

	if err := c.createGridBuffers(device, nodeCapacity); err != nil {
		c.destroy(device)
		return nil, err
	}
	return c, nil
}

func (c *CollisionResolver) createGridBuffers(device hal.Device, nodeCapacity uint32) error {
	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	var err error
	c.cellHeads, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collision_cell_heads", Size: maxGridDim * maxGridDim * 4, Usage: storage,
	})
	if err != nil {
		return fmt.Errorf("gpu: create cell heads: %w", err)
	}
	c.nodeNext, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collision_node_next", Size: max64(uint64(nodeCapacity)*4, 4), Usage: storage,
	})
	if err != nil {
		return fmt.Errorf("gpu: create node next: %w", err)
	}
	c.nodeCapacity = nodeCapacity
	return nil
}

// grow resizes the per-node linked-list buffer after capacity growth.
func (c *CollisionResolver) grow(device hal.Device, nodeCapacity uint32) error {
	if nodeCapacity <= c.nodeCapacity {
		return nil
	}
	if c.nodeNext != nil {
		device.DestroyBuffer(c.nodeNext)
		c.nodeNext = nil
	}
	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	var err error
	c.nodeNext, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collision_node_next", Size: uint64(nodeCapacity) * 4, Usage: storage,
	})
	if err != nil {
		return fmt.Errorf("gpu: grow node next: %w", err)
	}
	c.nodeCapacity = nodeCapacity
	return nil
}

// gridGeometry computes the frame's grid dimensions from the margin-expanded
// bounds. The cell size starts at 2*max_radius*radius_multiplier and doubles
// until the grid fits maxGridDim cells per axis.
func gridGeometry(bounds simcore.Bounds, maxRadius, radiusMultiplier float32) (cellSize float32, w, h uint32) {
	cellSize = 2 * maxRadius * radiusMultiplier
	if cellSize <= 0 {
		cellSize = 1
	}
	extentX := bounds.MaxX - bounds.MinX
	extentY := bounds.MaxY - bounds.MinY
	for extentX/cellSize > maxGridDim || extentY/cellSize > maxGridDim {
		cellSize *= 2
	}
	w = uint32(extentX/cellSize) + 1
	h = uint32(extentY/cellSize) + 1
	return cellSize, w, h
}

// updateUniforms refreshes whichever back-end will run this frame.
func (c *CollisionResolver) updateUniforms(queue hal.Queue, ctx *FrameContext, maxRadius float32) {
	p := ctx.Params
	if ctx.LiveCount <= collisionTiledThreshold {
		queue.WriteBuffer(c.uTiled, 0, CollisionUniforms{
			NodeCount:        ctx.NodeCount,
			Strength:         p.CollisionStrength,
			RadiusMultiplier: p.CollisionRadiusMultiplier,
			Iterations:       p.CollisionIterations,
			DefaultRadius:    defaultNodeRadius,
		}.toBytes())
		return
	}
	cellSize, w, h := gridGeometry(ctx.Frame.Bounds, maxRadius, p.CollisionRadiusMultiplier)
	queue.WriteBuffer(c.uGrid, 0, GridCollisionUniforms{
		NodeCount:        ctx.NodeCount,
		GridW:            w,
		GridH:            h,
		CellSize:         cellSize,
		BoundsMinX:       ctx.Frame.Bounds.MinX,
		BoundsMinY:       ctx.Frame.Bounds.MinY,
		Strength:         p.CollisionStrength,
		RadiusMultiplier: p.CollisionRadiusMultiplier,
		DefaultRadius:    defaultNodeRadius,
		TotalCells:       w * h,
	}.toBytes())
}

// record encodes the collision passes for this frame.
func (c *CollisionResolver) record(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	n := ctx.NodeCount

	if ctx.LiveCount <= collisionTiledThreshold {
		bg, err := c.tiled.bindGroup(device, "collision_tiled_bg",
			c.uTiled, b.PosOut(), b.NodeAttrs, b.NodeFlags)
		if err != nil {
			return err
		}
		c.tiled.dispatch(encoder, "collision_tiled", res.track(bg), workgroupsFor(n))
		return nil
	}

	if !ctx.Frame.Bounds.Valid() {
		return nil
	}
	_, w, h := gridGeometry(ctx.Frame.Bounds, ctx.MaxRadius, ctx.Params.CollisionRadiusMultiplier)
	gridBufs := []hal.Buffer{
		c.uGrid, b.PosOut(), b.NodeAttrs, b.NodeFlags, c.cellHeads, c.nodeNext,
	}
	for it := uint32(0); it < ctx.Params.CollisionIterations; it++ {
		cbg, err := c.gridClear.bindGroup(device, "grid_clear_bg", gridBufs...)
		if err != nil {
			return err
		}
		c.gridClear.dispatch(encoder, "grid_collision_clear", res.track(cbg), workgroupsFor(w*h))

		bbg, err := c.gridBuild.bindGroup(device, "grid_build_bg", gridBufs...)
		if err != nil {
			return err
		}
		c.gridBuild.dispatch(encoder, "grid_collision_build", res.track(bbg), workgroupsFor(n))

		rbg, err := c.gridResolve.bindGroup(device, "grid_resolve_bg", gridBufs...)
		if err != nil {
			return err
		}
		c.gridResolve.dispatch(encoder, "grid_collision_resolve", res.track(rbg), workgroupsFor(n))
	}
	return nil
}

func (c *CollisionResolver) destroy(device hal.Device) {
	for _, s := range []**computeStage{&c.tiled, &c.gridClear, &c.gridBuild, &c.gridResolve} {
		(*s).destroy(device)
		*s = nil
	}
	release := func(buf *hal.Buffer) {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	release(&c.uTiled)
	release(&c.uGrid)
	release(&c.cellHeads)
	release(&c.nodeNext)
}
