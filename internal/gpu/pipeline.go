// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// pipeline.go orchestrates per-tick command encoding: clear -> repulsion
// (delegated to the active algorithm) -> springs -> integrate -> collision,
// a single submission per tick with pass boundaries ordering the stages.
// The ping-pong swap happens after submission; every sync interval the
// committed positions are copied to the readback staging buffer and folded
// into the CPU shadow.

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
	"github.com/tomWhiting/heroine-graph/internal/simcore"
)

// fenceTimeout is the maximum time to wait for a tick's GPU work.
const fenceTimeout = 5 * time.Second

// Pipeline is the GPU simulator: the counterpart of the software executor
// in internal/sim, running the identical pass sequence on a wgpu device.
type Pipeline struct {
	dc *deviceContext

	st     *graphstate.State
	params simcore.Params

	buffers   *BufferSet
	collision *CollisionResolver

	clearStage     *computeStage
	springsStage   *computeStage
	integrateStage *computeStage

	algorithm Algorithm

	topologyDirty bool
	released      bool
}

// NewPipeline opens a headless compute device and builds the fixed-stage
// pipelines. The caller owns the returned pipeline and must Release it.
func NewPipeline() (*Pipeline, error) {
	dc, err := openDevice()
	if err != nil {
		return nil, err
	}
	p, err := newPipelineOn(dc)
	if err != nil {
		dc.close()
		return nil, err
	}
	return p, nil
}

// NewPipelineWithProvider builds the pipeline on a host-shared device.
func NewPipelineWithProvider(provider DeviceHandle) (*Pipeline, error) {
	dc, err := borrowDevice(provider)
	if err != nil {
		return nil, err
	}
	return newPipelineOn(dc)
}

func newPipelineOn(dc *deviceContext) (*Pipeline, error) {
	p := &Pipeline{dc: dc}

	var err error
	p.clearStage, err = newComputeStage(
		dc.device, "clear_forces", shaderClearForces, "main",
		layoutEntries(bindUniform, bindStorageRW),
	)
	if err != nil {
		return nil, err
	}
	p.springsStage, err = newComputeStage(
		dc.device, "springs", withCommon(shaderSprings), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRO, bindStorageRW),
	)
	if err != nil {
		p.destroyStages()
		return nil, err
	}
	p.integrateStage, err = newComputeStage(
		dc.device, "integrate", withCommon(shaderIntegrate), "main",
		layoutEntries(bindUniform, bindStorageRO, bindStorageRO, bindStorageRO,
			bindStorageRO, bindStorageRO, bindStorageRW, bindStorageRW),
	)
	if err != nil {
		p.destroyStages()
		return nil, err
	}
	return p, nil
}

// Name identifies the back-end in logs and diagnostics.
func (p *Pipeline) Name() string { return "gpu" }

// Reset binds the pipeline to a freshly loaded graph: shared buffers and
// the collision resolver are (re)built at the state's capacity, the shadow
// is uploaded to both ping-pong sides, and the algorithm is prepared.
func (p *Pipeline) Reset(st *graphstate.State, params simcore.Params, algorithm string) error {
	p.st = st
	p.params = params

	if p.buffers != nil {
		p.buffers.destroy(p.dc.device)
		p.buffers = nil
	}
	buffers, err := newBufferSet(p.dc.device, st.NodeCapacity(), st.EdgeCapacity())
	if err != nil {
		return err
	}
	p.buffers = buffers
	p.buffers.uploadAll(p.dc.queue, st)

	if p.collision == nil {
		p.collision, err = newCollisionResolver(p.dc.device, st.NodeCapacity())
		if err != nil {
			return err
		}
	} else if err := p.collision.grow(p.dc.device, st.NodeCapacity()); err != nil {
		return err
	}

	return p.SetAlgorithm(algorithm)
}

// SetAlgorithm switches the repulsion stage: the old algorithm's pipelines
// and buffers are destroyed, the new one's are created at current capacity,
// and its per-graph data is uploaded. Positions carry over untouched.
func (p *Pipeline) SetAlgorithm(id string) error {
	fresh, err := newAlgorithm(id, p.params)
	if err != nil {
		return err
	}
	if err := fresh.CreatePipelines(p.dc.device); err != nil {
		return err
	}
	if err := fresh.CreateBuffers(p.dc.device, p.st.NodeCapacity()); err != nil {
		fresh.Destroy(p.dc.device)
		return err
	}
	if p.algorithm != nil {
		p.algorithm.Destroy(p.dc.device)
	}
	p.algorithm = fresh
	p.topologyDirty = true
	if err := fresh.Recompute(p.st, p.params); err != nil {
		return err
	}
	slogger().Info("algorithm selected", "id", id)
	return nil
}

// Algorithm returns the active algorithm ID.
func (p *Pipeline) Algorithm() string {
	if p.algorithm == nil {
		return ""
	}
	return p.algorithm.ID()
}

// Configure replaces the force parameters for subsequent ticks.
func (p *Pipeline) Configure(params simcore.Params) { p.params = params }

// MarkTopologyDirty schedules a CSR/targets re-upload before the next tick.
func (p *Pipeline) MarkTopologyDirty() { p.topologyDirty = true }

// RequiresBounds reports whether ticking needs a valid scene bounding box.
func (p *Pipeline) RequiresBounds() bool {
	return p.algorithm != nil && p.algorithm.RequiresBounds()
}

// Recompute rebuilds precomputed-layout targets and re-uploads them.
func (p *Pipeline) Recompute() error {
	if p.algorithm == nil {
		return nil
	}
	if err := p.algorithm.Recompute(p.st, p.params); err != nil {
		return err
	}
	p.topologyDirty = true
	return nil
}

// refreshTopology recomputes depths and re-uploads structure-derived data
// after mutations.
func (p *Pipeline) refreshTopology() error {
	if !p.topologyDirty {
		return nil
	}
	p.topologyDirty = false
	p.st.ComputeDepths()
	n := p.st.NodeHighWater()
	if n > 0 {
		p.dc.queue.WriteBuffer(p.buffers.NodeDepth, 0, f32Bytes(p.st.NodeDepth[:n]))
	}
	return p.algorithm.UploadGraphData(p.dc.queue, p.st)
}

// Step runs one full tick. An empty graph is a no-op: no compute work is
// enqueued.
func (p *Pipeline) Step(frame simcore.Frame) error {
	if p.released || p.st == nil {
		return nil
	}
	n := p.st.NodeHighWater()
	if n == 0 {
		return nil
	}
	if err := p.refreshTopology(); err != nil {
		return err
	}

	ctx := &FrameContext{
		Buffers:   p.buffers,
		NodeCount: n,
		LiveCount: p.st.NodeCount(),
		EdgeCount: p.st.EdgeCount(),
		MaxRadius: p.st.MaxRadius(defaultNodeRadius),
		Params:    p.params,
		Frame:     frame,
	}

	p.updateUniforms(ctx)

	res := &frameResources{device: p.dc.device}
	defer res.cleanup()

	if err := p.encodeTick(res, ctx); err != nil {
		return err
	}
	if err := p.submitAndWait(res); err != nil {
		return err
	}

	p.buffers.Swap()

	if frame.SyncPositions {
		// A failed readback retries at the next interval; the simulation
		// keeps running on the stale shadow meanwhile.
		if err := p.SyncPositions(); err != nil {
			slogger().Warn("position readback failed", "error", err)
		}
	}
	return nil
}

// updateUniforms refreshes the fixed-stage uniforms plus the algorithm's
// and collision resolver's own.
func (p *Pipeline) updateUniforms(ctx *FrameContext) {
	queue := p.dc.queue
	prm := p.params

	queue.WriteBuffer(p.buffers.UClear, 0, ClearUniforms{NodeCount: ctx.NodeCount}.toBytes())
	queue.WriteBuffer(p.buffers.USprings, 0, SpringUniforms{
		EdgeCount:  ctx.EdgeCount,
		Strength:   prm.SpringStrength,
		RestLength: prm.SpringLength,
	}.toBytes())

	gravity := prm.CenterStrength
	if p.algorithm.HandlesGravity() {
		gravity = 0
	}
	queue.WriteBuffer(p.buffers.UIntegration, 0, IntegrationUniforms{
		NodeCount:           ctx.NodeCount,
		Dt:                  prm.TimeStep,
		Damping:             ctx.Frame.Damping,
		MaxVelocity:         prm.MaxVelocity,
		Alpha:               ctx.Frame.Alpha,
		DepthSettlingSpread: prm.DepthSettlingSpread,
		AlphaMin:            0.001,
		GravityStrength:     gravity,
		CenterX:             prm.CenterX,
		CenterY:             prm.CenterY,
		PinnedNode:          ctx.Frame.PinnedSlot,
	}.toBytes())

	p.algorithm.UpdateUniforms(queue, ctx)
	if prm.CollisionEnabled {
		p.collision.updateUniforms(queue, ctx, ctx.MaxRadius)
	}
}

// encodeTick records the tick's pass sequence into one command buffer.
func (p *Pipeline) encodeTick(res *frameResources, ctx *FrameContext) error {
	device := p.dc.device
	b := p.buffers

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sim_tick"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sim_tick"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	discard := func(err error) error {
		encoder.DiscardEncoding()
		return err
	}

	// 1. Clear forces.
	cbg, err := p.clearStage.bindGroup(device, "clear_forces_bg", b.UClear, b.Forces)
	if err != nil {
		return discard(err)
	}
	p.clearStage.dispatch(encoder, "clear_forces", res.track(cbg), workgroupsFor(ctx.NodeCount))

	// 2. Repulsion, delegated to the active algorithm.
	if err := p.algorithm.RecordRepulsion(device, encoder, res, ctx); err != nil {
		return discard(err)
	}

	// 3. Springs, skipped when empty or replaced by the algorithm.
	if ctx.EdgeCount > 0 && !p.algorithm.SkipSprings() {
		sbg, err := p.springsStage.bindGroup(device, "springs_bg",
			b.USprings, b.PosIn(), b.EdgeSources, b.EdgeTargets, b.Forces)
		if err != nil {
			return discard(err)
		}
		p.springsStage.dispatch(encoder, "springs", res.track(sbg), workgroupsFor(ctx.EdgeCount))
	}

	// 4. Integration.
	ibg, err := p.integrateStage.bindGroup(device, "integrate_bg",
		b.UIntegration, b.PosIn(), b.VelIn(), b.Forces,
		b.NodeFlags, b.NodeDepth, b.PosOut(), b.VelOut())
	if err != nil {
		return discard(err)
	}
	p.integrateStage.dispatch(encoder, "integrate", res.track(ibg), workgroupsFor(ctx.NodeCount))

	// 5. Collision on positions_out.
	if p.params.CollisionEnabled {
		if err := p.collision.record(device, encoder, res, ctx); err != nil {
			return discard(err)
		}
	}

	// 6. Optional readback copy of the freshly committed positions.
	if ctx.Frame.SyncPositions {
		encoder.CopyBufferToBuffer(b.PosOut(), b.Readback, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: uint64(ctx.NodeCount) * 8},
		})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf
	return nil
}

// submitAndWait submits the tick and waits for GPU completion.
func (p *Pipeline) submitAndWait(res *frameResources) error {
	fence, err := p.dc.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	res.fence = fence

	if err := p.dc.queue.Submit([]hal.CommandBuffer{res.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := p.dc.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait: %w", err)
	}
	if !ok {
		return fmt.Errorf("gpu: tick timeout after %v", fenceTimeout)
	}
	return nil
}

// SyncPositions maps the readback staging buffer and folds the committed
// positions into the CPU shadow.
func (p *Pipeline) SyncPositions() error {
	if p.st == nil {
		return nil
	}
	n := p.st.NodeHighWater()
	if n == 0 {
		return nil
	}
	raw := make([]byte, n*8)
	if err := p.dc.queue.ReadBuffer(p.buffers.Readback, 0, raw); err != nil {
		return fmt.Errorf("gpu: readback: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		p.st.PosX[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
		p.st.PosY[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
	}
	return nil
}

// WritePosition places a node at (x, y) in both ping-pong buffers and
// zeroes its velocity, for drags and targeted adds.
func (p *Pipeline) WritePosition(slot uint32, x, y float32) {
	if p.buffers == nil || slot >= p.buffers.NodeCapacity {
		return
	}
	p.buffers.writeNodePosition(p.dc.queue, slot, x, y)
}

// WriteNodeFromShadow mirrors one node row from the CPU shadow.
func (p *Pipeline) WriteNodeFromShadow(slot uint32) {
	if p.st == nil || p.buffers == nil || slot >= p.buffers.NodeCapacity {
		return
	}
	p.buffers.writeNodeRow(p.dc.queue, p.st, slot)
}

// WriteEdgeFromShadow mirrors one edge row from the CPU shadow.
func (p *Pipeline) WriteEdgeFromShadow(slot uint32) {
	if p.st == nil || p.buffers == nil || slot >= p.buffers.EdgeCapacity {
		return
	}
	p.buffers.writeEdgeRow(p.dc.queue, p.st, slot)
}

// Grow follows a graph-state capacity increase: shared buffers reallocate
// and re-upload, the collision list buffer resizes, and the algorithm's
// private buffers are rebuilt at the new capacity.
func (p *Pipeline) Grow() error {
	if p.st == nil || p.buffers == nil {
		return nil
	}
	grown, err := p.buffers.grow(p.dc.device, p.dc.queue, p.st)
	if err != nil {
		return err
	}
	if !grown {
		return nil
	}
	if err := p.collision.grow(p.dc.device, p.st.NodeCapacity()); err != nil {
		return err
	}
	if p.algorithm != nil {
		if err := p.algorithm.CreateBuffers(p.dc.device, p.st.NodeCapacity()); err != nil {
			return err
		}
		p.topologyDirty = true
	}
	return nil
}

// Release destroys every GPU resource. Further Steps are no-ops. A borrowed
// device is left untouched.
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	if p.algorithm != nil {
		p.algorithm.Destroy(p.dc.device)
		p.algorithm = nil
	}
	if p.collision != nil {
		p.collision.destroy(p.dc.device)
		p.collision = nil
	}
	if p.buffers != nil {
		p.buffers.destroy(p.dc.device)
		p.buffers = nil
	}
	p.destroyStages()
	p.dc.close()
	p.st = nil
}

func (p *Pipeline) destroyStages() {
	for _, s := range []**computeStage{&p.clearStage, &p.springsStage, &p.integrateStage} {
		(*s).destroy(p.dc.device)
		*s = nil
	}
}
