// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// bufferset.go owns the shared GPU buffers of the simulation: ping-pong
// positions and velocities, the fixed-point force accumulator, edge
// endpoints and attributes, per-node flags/depth/attributes, the readback
// staging buffer, and the four fixed-stage uniform buffers. Growth follows
// the protocol: allocate new buffers, upload every live row from the CPU
// shadow (both ping-pong sides get the same data), let dependents re-create
// bind groups, destroy the old buffers.

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/tomWhiting/heroine-graph/internal/graphstate"
)

// BufferSet holds the shared simulation buffers. The ping-pong index
// selects which position/velocity pair is the tick's input.
type BufferSet struct {
	NodeCapacity uint32
	EdgeCapacity uint32

	Positions  [2]hal.Buffer
	Velocities [2]hal.Buffer
	Forces     hal.Buffer
	Readback   hal.Buffer

	EdgeSources hal.Buffer
	EdgeTargets hal.Buffer
	EdgeWeights hal.Buffer
	EdgeAttrs   hal.Buffer

	NodeFlags hal.Buffer
	NodeDepth hal.Buffer
	NodeAttrs hal.Buffer

	UClear       hal.Buffer
	URepulsion   hal.Buffer
	USprings     hal.Buffer
	UIntegration hal.Buffer

	// pingpong is the index of positions_in/velocities_in for this tick.
	pingpong int
}

// PosIn returns the tick's input position buffer.
func (b *BufferSet) PosIn() hal.Buffer { return b.Positions[b.pingpong] }

// PosOut returns the tick's output position buffer.
func (b *BufferSet) PosOut() hal.Buffer { return b.Positions[1-b.pingpong] }

// VelIn returns the tick's input velocity buffer.
func (b *BufferSet) VelIn() hal.Buffer { return b.Velocities[b.pingpong] }

// VelOut returns the tick's output velocity buffer.
func (b *BufferSet) VelOut() hal.Buffer { return b.Velocities[1-b.pingpong] }

// Swap flips the ping-pong roles after a submitted tick.
func (b *BufferSet) Swap() { b.pingpong = 1 - b.pingpong }

// newBufferSet allocates all shared buffers for the given capacities.
func newBufferSet(device hal.Device, nodeCapacity, edgeCapacity uint32) (*BufferSet, error) {
	b := &BufferSet{NodeCapacity: nodeCapacity, EdgeCapacity: edgeCapacity}

	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	storageSrc := storage | gputypes.BufferUsageCopySrc
	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	staging := gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead

	vec2Size := uint64(nodeCapacity) * 8
	edgeU32 := uint64(edgeCapacity) * 4

	type spec struct {
		target *hal.Buffer
		label  string
		size   uint64
		usage  gputypes.BufferUsage
	}
	specs := []spec{
		{&b.Positions[0], "sim_positions_a", vec2Size, storageSrc},
		{&b.Positions[1], "sim_positions_b", vec2Size, storageSrc},
		{&b.Velocities[0], "sim_velocities_a", vec2Size, storage},
		{&b.Velocities[1], "sim_velocities_b", vec2Size, storage},
		{&b.Forces, "sim_forces", vec2Size, storage},
		{&b.Readback, "sim_readback", vec2Size, staging},
		{&b.EdgeSources, "sim_edge_sources", edgeU32, storage},
		{&b.EdgeTargets, "sim_edge_targets", edgeU32, storage},
		{&b.EdgeWeights, "sim_edge_weights", edgeU32, storage},
		{&b.EdgeAttrs, "sim_edge_attrs", uint64(edgeCapacity) * graphstate.EdgeAttrStride * 4, storage},
		{&b.NodeFlags, "sim_node_flags", uint64(nodeCapacity) * 4, storage},
		{&b.NodeDepth, "sim_node_depth", uint64(nodeCapacity) * 4, storage},
		{&b.NodeAttrs, "sim_node_attrs", uint64(nodeCapacity) * graphstate.NodeAttrStride * 4, storage},
		{&b.UClear, "sim_u_clear", ClearUniforms{}.sizeInBytes(), uniform},
		{&b.URepulsion, "sim_u_repulsion", RepulsionUniforms{}.sizeInBytes(), uniform},
		{&b.USprings, "sim_u_springs", SpringUniforms{}.sizeInBytes(), uniform},
		{&b.UIntegration, "sim_u_integration", IntegrationUniforms{}.sizeInBytes(), uniform},
	}

	for _, s := range specs {
		size := s.size
		if size < 4 {
			size = 4
		}
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: s.label,
			Size:  size,
			Usage: s.usage,
		})
		if err != nil {
			b.destroy(device)
			return nil, fmt.Errorf("gpu: create %s buffer: %w", s.label, err)
		}
		*s.target = buf
	}

	slogger().Debug("buffer set allocated",
		"node_capacity", nodeCapacity,
		"edge_capacity", edgeCapacity)
	return b, nil
}

// destroy releases all buffers. Safe on partially allocated sets.
func (b *BufferSet) destroy(device hal.Device) {
	release := func(buf *hal.Buffer) {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	release(&b.Positions[0])
	release(&b.Positions[1])
	release(&b.Velocities[0])
	release(&b.Velocities[1])
	release(&b.Forces)
	release(&b.Readback)
	release(&b.EdgeSources)
	release(&b.EdgeTargets)
	release(&b.EdgeWeights)
	release(&b.EdgeAttrs)
	release(&b.NodeFlags)
	release(&b.NodeDepth)
	release(&b.NodeAttrs)
	release(&b.UClear)
	release(&b.URepulsion)
	release(&b.USprings)
	release(&b.UIntegration)
}

// =============================================================================
// Serialization helpers
// =============================================================================

func f32Bytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func u32Bytes(vals []uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// vec2Bytes interleaves two lanes into vec2 rows.
func vec2Bytes(xs, ys []float32, count uint32) []byte {
	buf := make([]byte, count*8)
	for i := uint32(0); i < count; i++ {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(xs[i]))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(ys[i]))
	}
	return buf
}

// =============================================================================
// Uploads
// =============================================================================

// uploadAll mirrors every live row of the CPU shadow to the GPU. Both
// ping-pong sides receive the same positions and velocities so the swap
// stays correct after a reload or growth.
func (b *BufferSet) uploadAll(queue hal.Queue, st *graphstate.State) {
	n := st.NodeHighWater()
	e := st.EdgeCount()
	if n > 0 {
		pos := vec2Bytes(st.PosX, st.PosY, n)
		vel := vec2Bytes(st.VelX, st.VelY, n)
		queue.WriteBuffer(b.Positions[0], 0, pos)
		queue.WriteBuffer(b.Positions[1], 0, pos)
		queue.WriteBuffer(b.Velocities[0], 0, vel)
		queue.WriteBuffer(b.Velocities[1], 0, vel)
		queue.WriteBuffer(b.NodeFlags, 0, u32Bytes(st.NodeFlags[:n]))
		queue.WriteBuffer(b.NodeDepth, 0, f32Bytes(st.NodeDepth[:n]))
		queue.WriteBuffer(b.NodeAttrs, 0, f32Bytes(st.NodeAttrs[:n*graphstate.NodeAttrStride]))
	}
	if e > 0 {
		queue.WriteBuffer(b.EdgeSources, 0, u32Bytes(st.EdgeSrc[:e]))
		queue.WriteBuffer(b.EdgeTargets, 0, u32Bytes(st.EdgeTgt[:e]))
		queue.WriteBuffer(b.EdgeWeights, 0, f32Bytes(st.EdgeWeight[:e]))
		queue.WriteBuffer(b.EdgeAttrs, 0, f32Bytes(st.EdgeAttrs[:e*graphstate.EdgeAttrStride]))
	}
}

// writeNodePosition writes an 8-byte position row at slot into both
// ping-pong buffers and zeroes the velocity row, for drags and targeted
// adds.
func (b *BufferSet) writeNodePosition(queue hal.Queue, slot uint32, x, y float32) {
	row := make([]byte, 8)
	binary.LittleEndian.PutUint32(row[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(row[4:], math.Float32bits(y))
	off := uint64(slot) * 8
	queue.WriteBuffer(b.Positions[0], off, row)
	queue.WriteBuffer(b.Positions[1], off, row)
	zero := make([]byte, 8)
	queue.WriteBuffer(b.Velocities[0], off, zero)
	queue.WriteBuffer(b.Velocities[1], off, zero)
}

// writeNodeRow mirrors one node's shadow row: position, velocity, flags,
// depth, and attributes.
func (b *BufferSet) writeNodeRow(queue hal.Queue, st *graphstate.State, slot uint32) {
	b.writeNodePosition(queue, slot, st.PosX[slot], st.PosY[slot])
	queue.WriteBuffer(b.NodeFlags, uint64(slot)*4, u32Bytes(st.NodeFlags[slot:slot+1]))
	queue.WriteBuffer(b.NodeDepth, uint64(slot)*4, f32Bytes(st.NodeDepth[slot:slot+1]))
	off := uint64(slot) * graphstate.NodeAttrStride * 4
	queue.WriteBuffer(b.NodeAttrs, off, f32Bytes(st.NodeAttrs[slot*graphstate.NodeAttrStride:(slot+1)*graphstate.NodeAttrStride]))
}

// writeEdgeRow mirrors one edge's shadow row.
func (b *BufferSet) writeEdgeRow(queue hal.Queue, st *graphstate.State, slot uint32) {
	queue.WriteBuffer(b.EdgeSources, uint64(slot)*4, u32Bytes(st.EdgeSrc[slot:slot+1]))
	queue.WriteBuffer(b.EdgeTargets, uint64(slot)*4, u32Bytes(st.EdgeTgt[slot:slot+1]))
	queue.WriteBuffer(b.EdgeWeights, uint64(slot)*4, f32Bytes(st.EdgeWeight[slot:slot+1]))
	off := uint64(slot) * graphstate.EdgeAttrStride * 4
	queue.WriteBuffer(b.EdgeAttrs, off, f32Bytes(st.EdgeAttrs[slot*graphstate.EdgeAttrStride:(slot+1)*graphstate.EdgeAttrStride]))
}

// grow reallocates when the graph state's capacities exceed the buffers',
// re-uploading the shadow. Returns true when buffers were re-created, in
// which case every dependent bind group must be rebuilt.
func (b *BufferSet) grow(device hal.Device, queue hal.Queue, st *graphstate.State) (bool, error) {
	if st.NodeCapacity() <= b.NodeCapacity && st.EdgeCapacity() <= b.EdgeCapacity {
		return false, nil
	}
	nodeCap := st.NodeCapacity()
	edgeCap := st.EdgeCapacity()
	fresh, err := newBufferSet(device, nodeCap, edgeCap)
	if err != nil {
		return false, err
	}
	fresh.pingpong = b.pingpong
	fresh.uploadAll(queue, st)
	old := *b
	*b = *fresh
	old.destroy(device)
	slogger().Debug("buffer set grown",
		"node_capacity", nodeCap,
		"edge_capacity", edgeCap)
	return true, nil
}
