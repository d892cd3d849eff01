// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// algo_relativity.go drives the hierarchical "Relativity Atlas" pipeline:
// a per-level mass sweep over the CSR (recorded only after topology
// changes), the gather-style force pass (orbit, sibling, cousin, phantom,
// gravity), and the optional density-field passes (clear, splat, gradient).

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// relativityMaxLevels caps the per-level mass sweep; deeper nodes keep the
// base mass. Matches the parent-walk caps used elsewhere.
const relativityMaxLevels = 32

// densityGridDim matches GRID_DIM in density.wgsl.
const densityGridDim = 64

type relativityAlgorithm struct {
	params simcore.RelativityParams
	device hal.Device

	massStage    *computeStage
	forceStage   *computeStage
	densityClear *computeStage
	densitySplat *computeStage
	densityGrad  *computeStage

	mass         hal.Buffer
	fwdOffsets   hal.Buffer
	fwdTargets   hal.Buffer
	invOffsets   hal.Buffer
	invTargets   hal.Buffer
	densityCells hal.Buffer

	uForce   hal.Buffer
	uDensity hal.Buffer
	uMass    [relativityMaxLevels]hal.Buffer

	nodeCapacity uint32
	edgeCapacity uint32

	// massDirty schedules the mass sweep into the next tick's encoder.
	massDirty bool
	maxDepth  uint32
}

func (a *relativityAlgorithm) ID() string { return simcore.AlgoRelativity }

func (a *relativityAlgorithm) CreatePipelines(device hal.Device) error {
	a.device = device
	type stageSpec struct {
		target  **computeStage
		label   string
		src     string
		entry   string
		layouts []bindingKind
	}
	specs := []stageSpec{
		{&a.massStage, "relativity_mass", shaderRelativityMass, "main",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW}},
		{&a.forceStage, "relativity_forces", withCommon(shaderRelativity), "main",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW}},
		{&a.densityClear, "density_clear", withCommon(shaderDensity), "clear",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
		{&a.densitySplat, "density_splat", withCommon(shaderDensity), "splat",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
		{&a.densityGrad, "density_gradient", withCommon(shaderDensity), "gradient",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
	}
	for _, s := range specs {
		stage, err := newComputeStage(device, s.label, s.src, s.entry, layoutEntries(s.layouts...))
		if err != nil {
			a.Destroy(device)
			return err
		}
		*s.target = stage
	}
	return nil
}

func (a *relativityAlgorithm) CreateBuffers(device hal.Device, nodeCapacity uint32) error {
	a.destroyBuffers(device)
	a.nodeCapacity = nodeCapacity

	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	n := uint64(nodeCapacity)

	type spec struct {
		target *hal.Buffer
		label  string
		size   uint64
	}
	specs := []spec{
		{&a.mass, "relativity_mass", n * 4},
		{&a.fwdOffsets, "relativity_fwd_offsets", (n + 1) * 4},
		{&a.invOffsets, "relativity_inv_offsets", (n + 1) * 4},
		{&a.densityCells, "relativity_density", densityGridDim * densityGridDim * 4},
	}
	for _, s := range specs {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: s.label, Size: max64(s.size, 4), Usage: storage})
		if err != nil {
			a.destroyBuffers(device)
			return fmt.Errorf("gpu: create %s: %w", s.label, err)
		}
		*s.target = buf
	}

	var err error
	a.uForce, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "relativity_u_force", Size: RelativityUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		a.destroyBuffers(device)
		return fmt.Errorf("gpu: create relativity force uniform: %w", err)
	}
	a.uDensity, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "relativity_u_density", Size: DensityUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		a.destroyBuffers(device)
		return fmt.Errorf("gpu: create relativity density uniform: %w", err)
	}
	for i := range a.uMass {
		a.uMass[i], err = device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("relativity_u_mass_%d", i), Size: MassUniforms{}.sizeInBytes(), Usage: uniform,
		})
		if err != nil {
			a.destroyBuffers(device)
			return fmt.Errorf("gpu: create relativity mass uniform %d: %w", i, err)
		}
	}
	return nil
}

// ensureTargetCapacity re-creates the CSR target buffers when the edge
// count outgrows them.
func (a *relativityAlgorithm) ensureTargetCapacity(edgeCount uint32) error {
	if edgeCount <= a.edgeCapacity && a.fwdTargets != nil {
		return nil
	}
	capacity := edgeCount * 2
	if capacity < graphstate.MinCapacity {
		capacity = graphstate.MinCapacity
	}
	if a.fwdTargets != nil {
		a.device.DestroyBuffer(a.fwdTargets)
		a.device.DestroyBuffer(a.invTargets)
		a.fwdTargets, a.invTargets = nil, nil
	}
	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	var err error
	a.fwdTargets, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "relativity_fwd_targets", Size: uint64(capacity) * 4, Usage: storage,
	})
	if err != nil {
		return fmt.Errorf("gpu: create relativity fwd targets: %w", err)
	}
	a.invTargets, err = a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "relativity_inv_targets", Size: uint64(capacity) * 4, Usage: storage,
	})
	if err != nil {
		return fmt.Errorf("gpu: create relativity inv targets: %w", err)
	}
	a.edgeCapacity = capacity
	return nil
}

// UploadGraphData refreshes both CSRs and schedules the mass sweep.
// Depths must already be computed into the shadow (the pipeline does this
// before calling).
func (a *relativityAlgorithm) UploadGraphData(queue hal.Queue, st *graphstate.State) error {
	fwdOff, fwdTgt := st.ForwardCSR()
	invOff, invTgt := st.InverseCSR()
	if err := a.ensureTargetCapacity(uint32(len(fwdTgt))); err != nil {
		return err
	}
	queue.WriteBuffer(a.fwdOffsets, 0, u32Bytes(fwdOff))
	queue.WriteBuffer(a.invOffsets, 0, u32Bytes(invOff))
	if len(fwdTgt) > 0 {
		queue.WriteBuffer(a.fwdTargets, 0, u32Bytes(fwdTgt))
	}
	if len(invTgt) > 0 {
		queue.WriteBuffer(a.invTargets, 0, u32Bytes(invTgt))
	}

	maxDepth := float32(0)
	for slot := uint32(0); slot < st.NodeHighWater(); slot++ {
		if st.NodeLive(slot) && st.NodeDepth[slot] > maxDepth {
			maxDepth = st.NodeDepth[slot]
		}
	}
	a.maxDepth = uint32(maxDepth)
	a.massDirty = true
	return nil
}

func (a *relativityAlgorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	r := ctx.Params.Relativity
	a.params = r
	var flags uint32
	if r.CousinEnabled {
		flags |= RelativityFlagCousins
	}
	if r.PhantomEnabled {
		flags |= RelativityFlagPhantom
	}
	if r.DensityEnabled {
		flags |= RelativityFlagDensity
	}
	queue.WriteBuffer(a.uForce, 0, RelativityUniforms{
		NodeCount:            ctx.NodeCount,
		OrbitRadius:          r.OrbitRadius,
		OrbitStrength:        r.OrbitStrength,
		SiblingRepulsion:     r.SiblingRepulsion,
		TangentialMultiplier: r.TangentialMultiplier,
		CousinRepulsion:      r.CousinRepulsion,
		PhantomMargin:        r.PhantomMargin,
		DensityStrength:      r.DensityStrength,
		CenterX:              ctx.Params.CenterX,
		CenterY:              ctx.Params.CenterY,
		GravityStrength:      ctx.Params.CenterStrength,
		GravityExponent:      r.GravityExponent,
		GravityCurve:         uint32(r.GravityCurve),
		Flags:                flags,
	}.toBytes())

	if r.DensityEnabled {
		queue.WriteBuffer(a.uDensity, 0, DensityUniforms{
			NodeCount:  ctx.NodeCount,
			BoundsMinX: ctx.Frame.Bounds.MinX,
			BoundsMinY: ctx.Frame.Bounds.MinY,
			BoundsMaxX: ctx.Frame.Bounds.MaxX,
			BoundsMaxY: ctx.Frame.Bounds.MaxY,
			Strength:   r.DensityStrength,
		}.toBytes())
	}

	if a.massDirty {
		levels := a.maxDepth
		if levels >= relativityMaxLevels {
			levels = relativityMaxLevels - 1
		}
		for i := uint32(0); i <= levels; i++ {
			queue.WriteBuffer(a.uMass[i], 0, MassUniforms{
				NodeCount:   ctx.NodeCount,
				BaseMass:    r.BaseMass,
				ChildFactor: r.ChildMassFactor,
				Level:       float32(a.maxDepth - i),
			}.toBytes())
		}
	}
}

func (a *relativityAlgorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	n := ctx.NodeCount

	// Mass sweep, deepest level first, only after topology changes.
	if a.massDirty {
		levels := a.maxDepth
		if levels >= relativityMaxLevels {
			levels = relativityMaxLevels - 1
		}
		for i := uint32(0); i <= levels; i++ {
			bg, err := a.massStage.bindGroup(device, "relativity_mass_bg",
				a.uMass[i], b.NodeFlags, b.NodeDepth, a.fwdOffsets, a.fwdTargets, a.mass)
			if err != nil {
				return err
			}
			a.massStage.dispatch(encoder, "relativity_mass", res.track(bg), workgroupsFor(n))
		}
		a.massDirty = false
	}

	// Density field: clear, splat, gradient.
	if a.params.DensityEnabled {
		densityBufs := []hal.Buffer{
			a.uDensity, b.PosIn(), b.NodeFlags, a.mass, a.densityCells, b.Forces,
		}
		cbg, err := a.densityClear.bindGroup(device, "density_clear_bg", densityBufs...)
		if err != nil {
			return err
		}
		a.densityClear.dispatch(encoder, "density_clear", res.track(cbg), workgroupsFor(densityGridDim*densityGridDim))

		sbg, err := a.densitySplat.bindGroup(device, "density_splat_bg", densityBufs...)
		if err != nil {
			return err
		}
		a.densitySplat.dispatch(encoder, "density_splat", res.track(sbg), workgroupsFor(n))

		gbg, err := a.densityGrad.bindGroup(device, "density_gradient_bg", densityBufs...)
		if err != nil {
			return err
		}
		a.densityGrad.dispatch(encoder, "density_gradient", res.track(gbg), workgroupsFor(n))
	}

	// Hierarchical force gather.
	fbg, err := a.forceStage.bindGroup(device, "relativity_forces_bg",
		a.uForce, b.PosIn(), b.NodeFlags, b.NodeAttrs, a.mass,
		a.fwdOffsets, a.fwdTargets, a.invOffsets, a.invTargets, b.Forces)
	if err != nil {
		return err
	}
	a.forceStage.dispatch(encoder, "relativity_forces", res.track(fbg), workgroupsFor(n))
	return nil
}

func (a *relativityAlgorithm) Recompute(st *graphstate.State, params simcore.Params) error {
	a.params = params.Relativity
	return nil
}

func (a *relativityAlgorithm) HandlesGravity() bool { return true }

func (a *relativityAlgorithm) RequiresBounds() bool { return a.params.DensityEnabled }

func (a *relativityAlgorithm) SkipSprings() bool { return false }

func (a *relativityAlgorithm) destroyBuffers(device hal.Device) {
	release := func(buf *hal.Buffer) {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	release(&a.mass)
	release(&a.fwdOffsets)
	release(&a.fwdTargets)
	release(&a.invOffsets)
	release(&a.invTargets)
	release(&a.densityCells)
	release(&a.uForce)
	release(&a.uDensity)
	for i := range a.uMass {
		release(&a.uMass[i])
	}
	a.edgeCapacity = 0
}

func (a *relativityAlgorithm) Destroy(device hal.Device) {
	for _, s := range []**computeStage{
		&a.massStage, &a.forceStage, &a.densityClear, &a.densitySplat, &a.densityGrad,
	} {
		(*s).destroy(device)
		*s = nil
	}
	a.destroyBuffers(device)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
