// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// algo_barneshut.go drives the Barnes-Hut pipeline: Morton assignment,
// eight 4-bit LSD radix sort rounds, Karras tree construction, bottom-up
// center-of-mass aggregation, and the theta-criterion traversal. All stages
// record into one command encoder; pass boundaries order them.

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// bhSortPasses is the number of 4-bit radix rounds; eight rounds cover the
// 30-bit Morton codes plus the dead-slot sentinel.
const bhSortPasses = 8

// bhSortBlock matches the BLOCK constant in bh_sort.wgsl.
const bhSortBlock = 256

type barnesHutAlgorithm struct {
	morton    *computeStage
	sortClear *computeStage
	sortHist  *computeStage
	sortScan  *computeStage
	sortScat  *computeStage
	build     *computeStage
	seed      *computeStage
	aggregate *computeStage
	traverse  *computeStage

	// Ping-pong code/order pairs for the sort rounds.
	codes [2]hal.Buffer
	order [2]hal.Buffer

	histograms hal.Buffer
	childLeft  hal.Buffer
	childRight hal.Buffer
	parents    hal.Buffer
	cellMass   hal.Buffer
	cellCom    hal.Buffer
	cellSize   hal.Buffer
	visit      hal.Buffer

	// uFrame carries the traversal parameters; uSort[i] carries the shift
	// for round i (uniform writes land before submission, so each round
	// needs its own buffer).
	uFrame hal.Buffer
	uSort  [bhSortPasses]hal.Buffer

	capacity uint32
}

func (a *barnesHutAlgorithm) ID() string { return simcore.AlgoBarnesHut }

func (a *barnesHutAlgorithm) CreatePipelines(device hal.Device) error {
	type stageSpec struct {
		target  **computeStage
		label   string
		src     string
		entry   string
		layouts []bindingKind
	}
	specs := []stageSpec{
		{&a.morton, "bh_morton", shaderBHMorton, "main",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW}},
		{&a.sortClear, "bh_sort_clear", shaderBHSort, "clear_hist",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.sortHist, "bh_sort_histogram", shaderBHSort, "histogram",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.sortScan, "bh_sort_scan", shaderBHSort, "scan",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.sortScat, "bh_sort_scatter", shaderBHSort, "scatter",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.build, "bh_build", shaderBHBuild, "build",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.seed, "bh_seed_leaves", shaderBHBuild, "seed_leaves",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.aggregate, "bh_aggregate", shaderBHAggregate, "main",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW, bindStorageRW, bindStorageRW}},
		{&a.traverse, "bh_traverse", withCommon(shaderBHTraverse), "main",
			[]bindingKind{bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW}},
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

func (a *barnesHutAlgorithm) CreateBuffers(device hal.Device, nodeCapacity uint32) error {
	a.destroyBuffers(device)
	a.capacity = nodeCapacity

	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst

	n := uint64(nodeCapacity)
	total := 2*n - 1
	if nodeCapacity == 0 {
		total = 1
	}
	blocks := (n + bhSortBlock - 1) / bhSortBlock

	type spec struct {
		target *hal.Buffer
		label  string
		size   uint64
	}
	specs := []spec{
		{&a.codes[0], "bh_codes_a", n * 4},
		{&a.codes[1], "bh_codes_b", n * 4},
		{&a.order[0], "bh_order_a", n * 4},
		{&a.order[1], "bh_order_b", n * 4},
		{&a.histograms, "bh_histograms", blocks * 16 * 4},
		{&a.childLeft, "bh_child_left", n * 4},
		{&a.childRight, "bh_child_right", n * 4},
		{&a.parents, "bh_parents", total * 4},
		{&a.cellMass, "bh_cell_mass", total * 4},
		{&a.cellCom, "bh_cell_com", total * 8},
		{&a.cellSize, "bh_cell_size", total * 4},
		{&a.visit, "bh_visit", total * 4},
	}
	for _, s := range specs {
		size := s.size
		if size < 4 {
			size = 4
		}
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: s.label, Size: size, Usage: storage})
		if err != nil {
			a.destroyBuffers(device)
			return fmt.Errorf("gpu: create %s: %w", s.label, err)
		}
		*s.target = buf
	}

	var err error
	a.uFrame, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "bh_u_frame", Size: BHUniforms{}.sizeInBytes(), Usage: uniform,
	})
	if err != nil {
		a.destroyBuffers(device)
		return fmt.Errorf("gpu: create bh frame uniform: %w", err)
	}
	for i := range a.uSort {
		a.uSort[i], err = device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("bh_u_sort_%d", i), Size: BHUniforms{}.sizeInBytes(), Usage: uniform,
		})
		if err != nil {
			a.destroyBuffers(device)
			return fmt.Errorf("gpu: create bh sort uniform %d: %w", i, err)
		}
	}
	return nil
}

func (a *barnesHutAlgorithm) UploadGraphData(hal.Queue, *graphstate.State) error { return nil }

func (a *barnesHutAlgorithm) UpdateUniforms(queue hal.Queue, ctx *FrameContext) {
	u := BHUniforms{
		NodeCount:   ctx.NodeCount,
		Strength:    ctx.Params.RepulsionStrength,
		MinDistance: ctx.Params.RepulsionDistanceMin,
		Theta:       ctx.Params.Theta,
		BoundsMinX:  ctx.Frame.Bounds.MinX,
		BoundsMinY:  ctx.Frame.Bounds.MinY,
		BoundsMaxX:  ctx.Frame.Bounds.MaxX,
		BoundsMaxY:  ctx.Frame.Bounds.MaxY,
		LeafCount:   ctx.LiveCount,
	}
	queue.WriteBuffer(a.uFrame, 0, u.toBytes())
	for i := range a.uSort {
		u.SortShift = uint32(i * 4)
		queue.WriteBuffer(a.uSort[i], 0, u.toBytes())
	}
}

// sortBindGroup binds one radix round with the given code/order orientation.
func (a *barnesHutAlgorithm) sortBindGroup(device hal.Device, stage *computeStage, label string, round int, in int) (hal.BindGroup, error) {
	return stage.bindGroup(device, label,
		a.uSort[round], a.codes[in], a.order[in], a.codes[1-in], a.order[1-in], a.histograms)
}

func (a *barnesHutAlgorithm) RecordRepulsion(device hal.Device, encoder hal.CommandEncoder, res *frameResources, ctx *FrameContext) error {
	b := ctx.Buffers
	n := ctx.NodeCount
	if n == 0 || ctx.LiveCount == 0 {
		return nil
	}
	blocks := (n + bhSortBlock - 1) / bhSortBlock

	// 1. Morton assignment into the A pair.
	mbg, err := a.morton.bindGroup(device, "bh_morton_bg",
		a.uFrame, b.PosIn(), b.NodeFlags, a.codes[0], a.order[0])
	if err != nil {
		return err
	}
	a.morton.dispatch(encoder, "bh_morton", res.track(mbg), workgroupsFor(n))

	// 2. Radix rounds, ping-ponging the pairs. An even round count lands
	// the sorted data back in the A pair.
	in := 0
	for round := 0; round < bhSortPasses; round++ {
		cbg, err := a.sortBindGroup(device, a.sortClear, "bh_sort_clear_bg", round, in)
		if err != nil {
			return err
		}
		a.sortClear.dispatch(encoder, "bh_sort_clear", res.track(cbg), workgroupsFor(blocks*16))

		hbg, err := a.sortBindGroup(device, a.sortHist, "bh_sort_hist_bg", round, in)
		if err != nil {
			return err
		}
		a.sortHist.dispatch(encoder, "bh_sort_histogram", res.track(hbg), workgroupsFor(n))

		sbg, err := a.sortBindGroup(device, a.sortScan, "bh_sort_scan_bg", round, in)
		if err != nil {
			return err
		}
		a.sortScan.dispatch(encoder, "bh_sort_scan", res.track(sbg), 1)

		tbg, err := a.sortBindGroup(device, a.sortScat, "bh_sort_scatter_bg", round, in)
		if err != nil {
			return err
		}
		a.sortScat.dispatch(encoder, "bh_sort_scatter", res.track(tbg), blocks)

		in = 1 - in
	}

	// 3. Tree build and leaf seeding over the sorted pair.
	treeBufs := []hal.Buffer{
		a.uFrame, a.codes[0], a.order[0], b.PosIn(),
		a.childLeft, a.childRight, a.parents,
		a.cellMass, a.cellCom, a.cellSize, a.visit,
	}
	bbg, err := a.build.bindGroup(device, "bh_build_bg", treeBufs...)
	if err != nil {
		return err
	}
	a.build.dispatch(encoder, "bh_build", res.track(bbg), workgroupsFor(ctx.LiveCount))

	lbg, err := a.seed.bindGroup(device, "bh_seed_bg", treeBufs...)
	if err != nil {
		return err
	}
	a.seed.dispatch(encoder, "bh_seed_leaves", res.track(lbg), workgroupsFor(ctx.LiveCount))

	// 4. Bottom-up aggregation via the second-visitor pattern.
	abg, err := a.aggregate.bindGroup(device, "bh_aggregate_bg",
		a.uFrame, a.childLeft, a.childRight, a.parents,
		a.cellMass, a.cellCom, a.cellSize, a.visit)
	if err != nil {
		return err
	}
	a.aggregate.dispatch(encoder, "bh_aggregate", res.track(abg), workgroupsFor(ctx.LiveCount))

	// 5. Per-node traversal accumulating repulsion.
	vbg, err := a.traverse.bindGroup(device, "bh_traverse_bg",
		a.uFrame, b.PosIn(), b.NodeFlags,
		a.childLeft, a.childRight, a.order[0],
		a.cellMass, a.cellCom, a.cellSize, b.Forces)
	if err != nil {
		return err
	}
	a.traverse.dispatch(encoder, "bh_traverse", res.track(vbg), workgroupsFor(n))

	return nil
}

func (a *barnesHutAlgorithm) Recompute(*graphstate.State, simcore.Params) error { return nil }

func (a *barnesHutAlgorithm) HandlesGravity() bool { return false }
func (a *barnesHutAlgorithm) RequiresBounds() bool { return true }
func (a *barnesHutAlgorithm) SkipSprings() bool    { return false }

func (a *barnesHutAlgorithm) destroyBuffers(device hal.Device) {
	release := func(buf *hal.Buffer) {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	release(&a.codes[0])
	release(&a.codes[1])
	release(&a.order[0])
	release(&a.order[1])
	release(&a.histograms)
	release(&a.childLeft)
	release(&a.childRight)
	release(&a.parents)
	release(&a.cellMass)
	release(&a.cellCom)
	release(&a.cellSize)
	release(&a.visit)
	release(&a.uFrame)
	for i := range a.uSort {
		release(&a.uSort[i])
	}
}

func (a *barnesHutAlgorithm) Destroy(device hal.Device) {
	for _, s := range []**computeStage{
		&a.morton, &a.sortClear, &a.sortHist, &a.sortScan, &a.sortScat,
		&a.build, &a.seed, &a.aggregate, &a.traverse,
	} {
		(*s).destroy(device)
		*s = nil
	}
	a.destroyBuffers(device)
}
