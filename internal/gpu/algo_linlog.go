// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// linLogAlgorithm implements the LinLog energy model: repulsion k_r/d,
// attraction d * weight^w, and its own gravity (gravity/max(d, 1) by default,
// distance-proportional in strong mode), so the integrator's centering is
// suppressed and the standard spring pass is replaced.
type linLogAlgorithm struct {
	repulsion  *computeStage
	attraction *computeStage

	uRepulsion  hal.Buffer
	uAttraction hal.Buffer
}

func (a *linLogAlgorithm) ID() string { return simcore.AlgoLinLog }

func (a *linLogAlgorithm) CreatePipelines(device hal.Device) error {
	rep, err := newComputeStage(
		device, "repulsion_linlog", withCommon(shaderRepulsionLinLog), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		return err
	}
	att, err := newComputeStage(
		device, "attraction_weighted", withCommon(shaderAttractionWeighted), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		rep.destroy(device)
		return err
	}
	a.repulsion = rep
	a.attraction = att
	return nil
}

func (a *linLogAlgorithm) CreateBuffers(device hal.Device, nodeCapacity uint32) error {
	for _, buf := range []*hal.Buffer{&a.uRepulsion, &a.uAttraction} {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	var err error
	a.uRepulsion, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "linlog_u_repulsion", Size: LinLogUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		return fmt.Errorf("gpu: create linlog uniform: %w", err)
	}
	a.uAttraction, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "linlog_u_attraction", Size: AttractionUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		return fmt.Errorf("gpu: create linlog attraction uniform: %w", err)
	}
	return nil
}

func (a *linLogAlgorithm) UploadGraphData(hal.Queue, *graphstate.State) error { return nil }

func (a *linLogAlgorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	p := ctx.Params
	strong := uint32(0)
	if p.LinLog.StrongGravity {
		strong = 1
	}
	queue.WriteBuffer(a.uRepulsion, 0, LinLogUniforms{
		NodeCount:     ctx.NodeCount,
		Repulsion:     p.LinLog.Repulsion,
		MinDistance:   p.RepulsionDistanceMin,
		Gravity:       p.LinLog.Gravity,
		CenterX:       p.CenterX,
		CenterY:       p.CenterY,
		StrongGravity: strong,
	}.toBytes())
	queue.WriteBuffer(a.uAttraction, 0, AttractionUniforms{
		EdgeCount: ctx.EdgeCount,
		ParamA:    p.LinLog.AttractionExponent,
	}.toBytes())
}

func (a *linLogAlgorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	bg, err := a.repulsion.bindGroup(device, "repulsion_linlog_bg",
		a.uRepulsion, b.PosIn(), b.NodeFlags, b.Forces)
	if err != nil {
		return err
	}
	a.repulsion.dispatch(encoder, "repulsion_linlog", res.track(bg), workgroupsFor(ctx.NodeCount))

	if ctx.EdgeCount > 0 {
		abg, err := a.attraction.bindGroup(device, "attraction_weighted_bg",
			a.uAttraction, b.PosIn(), b.EdgeSources, b.EdgeTargets, b.EdgeWeights, b.Forces)
		if err != nil {
			return err
		}
		a.attraction.dispatch(encoder, "attraction_weighted", res.track(abg), workgroupsFor(ctx.EdgeCount))
	}
	return nil
}

func (a *linLogAlgorithm) Recompute(*graphstate.State, simcore.Params) error { return nil }

func (a *linLogAlgorithm) HandlesGravity() bool { return true }
func (a *linLogAlgorithm) RequiresBounds() bool { return false }
func (a *linLogAlgorithm) SkipSprings() bool    { return true }

func (a *linLogAlgorithm) Destroy(device hal.Device) {
	a.repulsion.destroy(device)
	a.attraction.destroy(device)
	if a.uRepulsion != nil {
		device.DestroyBuffer(a.uRepulsion)
		a.uRepulsion = nil
	}
	if a.uAttraction != nil {
		device.DestroyBuffer(a.uAttraction)
		a.uAttraction = nil
	}
}
