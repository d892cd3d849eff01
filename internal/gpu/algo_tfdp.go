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

// tfdpAlgorithm implements the t-FDP model: bounded repulsion
// (1/(1+d^2))^gamma and attraction alpha * d^(1+beta). The host enforces
// the paper's alpha*(1+beta) < 1 constraint before values reach the GPU.
type tfdpAlgorithm struct {
	repulsion  *computeStage
	attraction *computeStage

	uRepulsion  hal.Buffer
	uAttraction hal.Buffer
}

func (a *tfdpAlgorithm) ID() string { return simcore.AlgoTFDP }

func (a *tfdpAlgorithm) CreatePipelines(device hal.Device) error {
	rep, err := newComputeStage(
		device, "repulsion_tfdp", withCommon(shaderRepulsionTFDP), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		return err
	}
	att, err := newComputeStage(
		device, "attraction_tfdp", withCommon(shaderAttractionTFDP), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		rep.destroy(device)
		return err
	}
	a.repulsion = rep
	a.attraction = att
	return nil
}

func (a *tfdpAlgorithm) CreateBuffers(device hal.Device, nodeCapacity uint32) error {
	for _, buf := range []*hal.Buffer{&a.uRepulsion, &a.uAttraction} {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	var err error
	a.uRepulsion, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tfdp_u_repulsion", Size: TFDPUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		return fmt.Errorf("gpu: create tfdp uniform: %w", err)
	}
	a.uAttraction, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tfdp_u_attraction", Size: AttractionUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		return fmt.Errorf("gpu: create tfdp attraction uniform: %w", err)
	}
	return nil
}

func (a *tfdpAlgorithm) UploadGraphData(hal.Queue, *graphstate.State) error { return nil }

func (a *tfdpAlgorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	p := ctx.Params
	queue.WriteBuffer(a.uRepulsion, 0, TFDPUniforms{
		NodeCount: ctx.NodeCount,
		Repulsion: p.TFDP.Repulsion,
		Gamma:     p.TFDP.Gamma,
	}.toBytes())
	queue.WriteBuffer(a.uAttraction, 0, AttractionUniforms{
		EdgeCount: ctx.EdgeCount,
		ParamA:    p.TFDP.Alpha,
		ParamB:    p.TFDP.Beta,
	}.toBytes())
}

func (a *tfdpAlgorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	bg, err := a.repulsion.bindGroup(device, "repulsion_tfdp_bg",
		a.uRepulsion, b.PosIn(), b.NodeFlags, b.Forces)
	if err != nil {
		return err
	}
	a.repulsion.dispatch(encoder, "repulsion_tfdp", res.track(bg), workgroupsFor(ctx.NodeCount))

	if ctx.EdgeCount > 0 {
		abg, err := a.attraction.bindGroup(device, "attraction_tfdp_bg",
			a.uAttraction, b.PosIn(), b.EdgeSources, b.EdgeTargets, b.Forces)
		if err != nil {
			return err
		}
		a.attraction.dispatch(encoder, "attraction_tfdp", res.track(abg), workgroupsFor(ctx.EdgeCount))
	}
	return nil
}

func (a *tfdpAlgorithm) Recompute(*graphstate.State, simcore.Params) error { return nil }

func (a *tfdpAlgorithm) HandlesGravity() bool { return false }
func (a *tfdpAlgorithm) RequiresBounds() bool { return false }
func (a *tfdpAlgorithm) SkipSprings() bool    { return true }

func (a *tfdpAlgorithm) Destroy(device hal.Device) {
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
