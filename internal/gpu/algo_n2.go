// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// n2Algorithm is the naive O(N^2) repulsion stage. It has no private
// buffers: the shared repulsion uniform and force accumulator are all it
// needs. Recommended for graphs up to roughly 10k nodes.
type n2Algorithm struct {
	repulsion *computeStage
}

func (a *n2Algorithm) ID() string { return simcore.AlgoN2 }

func (a *n2Algorithm) CreatePipelines(device hal.Device) error {
	stage, err := newComputeStage(
		device, "repulsion_n2", withCommon(shaderRepulsionN2), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		return err
	}
	a.repulsion = stage
	return nil
}

func (a *n2Algorithm) CreateBuffers(hal.Device, uint32) error { return nil }

func (a *n2Algorithm) UploadGraphData(hal.Queue, *graphstate.State) error { return nil }

func (a *n2Algorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	queue.WriteBuffer(ctx.Buffers.URepulsion, 0, RepulsionUniforms{
		NodeCount:   ctx.NodeCount,
		Strength:    ctx.Params.RepulsionStrength,
		MinDistance: ctx.Params.RepulsionDistanceMin,
		MaxDistance: ctx.Params.RepulsionDistanceMax,
	}.toBytes())
}

func (a *n2Algorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	bg, err := a.repulsion.bindGroup(device, "repulsion_n2_bg",
		b.URepulsion, b.PosIn(), b.NodeFlags, b.Forces)
	if err != nil {
		return err
	}
	a.repulsion.dispatch(encoder, "repulsion_n2", res.track(bg), workgroupsFor(ctx.NodeCount))
	return nil
}

func (a *n2Algorithm) Recompute(*graphstate.State, simcore.Params) error { return nil }

func (a *n2Algorithm) HandlesGravity() bool { return false }
func (a *n2Algorithm) RequiresBounds() bool { return false }
func (a *n2Algorithm) SkipSprings() bool    { return false }

func (a *n2Algorithm) Destroy(device hal.Device) {
	a.repulsion.destroy(device)
	a.repulsion = nil
}
