// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/layout"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// precomputedAlgorithm serves the tidy-tree, community, and codebase
// layouts: positions are computed once on the CPU when the layout is
// selected or recomputed, and the repulsion stage degenerates to a
// spring-to-target pull. Springs are skipped entirely.
type precomputedAlgorithm struct {
	id string

	pull *computeStage

	uTargets hal.Buffer
	targets  hal.Buffer

	// CPU-side target scratch, refreshed by Recompute.
	targetX, targetY []float32
	stiffness        float32
	damping          float32
}

func (a *precomputedAlgorithm) ID() string { return a.id }

func (a *precomputedAlgorithm) CreatePipelines(device hal.Device) error {
	stage, err := newComputeStage(
		device, "spring_to_target", withCommon(shaderSpringToTarget), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		return err
	}
	a.pull = stage
	return nil
}

func (a *precomputedAlgorithm) CreateBuffers(device hal.Device, nodeCapacity uint32) error {
	if a.targets != nil {
		device.DestroyBuffer(a.targets)
		a.targets = nil
	}
	var err error
	a.targets, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: a.id + "_targets",
		Size:  uint64(nodeCapacity) * 8,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create %s targets buffer: %w", a.id, err)
	}
	if a.uTargets == nil {
		a.uTargets, err = device.CreateBuffer(&hal.BufferDescriptor{
			Label: a.id + "_u_targets",
			Size:  TargetUniforms{}.sizeInBytes(),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("gpu: create %s target uniform: %w", a.id, err)
		}
	}
	if uint32(len(a.targetX)) < nodeCapacity {
		a.targetX = make([]float32, nodeCapacity)
		a.targetY = make([]float32, nodeCapacity)
	}
	return nil
}

// Recompute rebuilds the layout targets on the CPU.
func (a *precomputedAlgorithm) Recompute(st *graphstate.State, params simcore.Params) error {
	if uint32(len(a.targetX)) < st.NodeCapacity() {
		a.targetX = make([]float32, st.NodeCapacity())
		a.targetY = make([]float32, st.NodeCapacity())
	}
	switch a.id {
	case simcore.AlgoTidyTree:
		layout.TidyTree(st, params.TidyTree, a.targetX, a.targetY)
		a.stiffness, a.damping = params.TidyTree.Stiffness, params.TidyTree.Damping
	case simcore.AlgoCommunity:
		layout.CommunityLayout(st, params.Community, a.targetX, a.targetY)
		a.stiffness, a.damping = params.Community.Stiffness, params.Community.Damping
	case simcore.AlgoCodebase:
		layout.CodebaseLayout(st, params.Codebase, a.targetX, a.targetY)
		a.stiffness, a.damping = params.Codebase.Stiffness, params.Codebase.Damping
	}
	return nil
}

// UploadGraphData pushes the freshly recomputed targets to the GPU.
func (a *precomputedAlgorithm) UploadGraphData(queue hal.Queue, st *graphstate.State) error {
	n := st.NodeHighWater()
	if n == 0 || a.targets == nil {
		return nil
	}
	queue.WriteBuffer(a.targets, 0, vec2Bytes(a.targetX, a.targetY, n))
	return nil
}

func (a *precomputedAlgorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	queue.WriteBuffer(a.uTargets, 0, TargetUniforms{
		NodeCount: ctx.NodeCount,
		Stiffness: a.stiffness,
		Damping:   a.damping,
	}.toBytes())
}

func (a *precomputedAlgorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	bg, err := a.pull.bindGroup(device, a.id+"_bg",
		a.uTargets, b.PosIn(), b.VelIn(), a.targets, b.NodeFlags, b.Forces)
	if err != nil {
		return err
	}
	a.pull.dispatch(encoder, a.id, res.track(bg), workgroupsFor(ctx.NodeCount))
	return nil
}

func (a *precomputedAlgorithm) HandlesGravity() bool { return false }
func (a *precomputedAlgorithm) RequiresBounds() bool { return false }
func (a *precomputedAlgorithm) SkipSprings() bool    { return true }

func (a *precomputedAlgorithm) Destroy(device hal.Device) {
	a.pull.destroy(device)
	if a.targets != nil {
		device.DestroyBuffer(a.targets)
		a.targets = nil
	}
	if a.uTargets != nil {
		device.DestroyBuffer(a.uTargets)
		a.uTargets = nil
	}
}
