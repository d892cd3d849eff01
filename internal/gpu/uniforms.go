// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// uniforms.go defines the uniform buffer layouts shared with the WGSL
// shaders. Every struct serializes little-endian with explicit 16-byte
// alignment padding; each toBytes layout must match the corresponding WGSL
// struct field for field. Sizes are fixed by the shader side and asserted
// in tests.

package gpu

import (
	"encoding/binary"
	"math"
)

// putF32 writes a float32 at the given offset.
func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
}

// putU32 writes a uint32 at the given offset.
func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], v)
}

// =============================================================================
// ClearUniforms
// =============================================================================

// ClearUniforms parameterizes the force-clear pass.
// Layout (16 bytes): node_count: u32, 12 bytes pad.
type ClearUniforms struct {
	NodeCount uint32
}

func (u ClearUniforms) sizeInBytes() uint64 { return 16 }

func (u ClearUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	return buf
}

// =============================================================================
// RepulsionUniforms
// =============================================================================

// RepulsionUniforms parameterizes the pairwise repulsion passes.
// Layout (16 bytes): node_count: u32, strength: f32, min_distance: f32,
// max_distance: f32 in the trailing word.
type RepulsionUniforms struct {
	NodeCount   uint32
	Strength    float32
	MinDistance float32
	MaxDistance float32
}

func (u RepulsionUniforms) sizeInBytes() uint64 { return 16 }

func (u RepulsionUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Strength)
	putF32(buf, 8, u.MinDistance)
	putF32(buf, 12, u.MaxDistance)
	return buf
}

// =============================================================================
// SpringUniforms
// =============================================================================

// SpringUniforms parameterizes the spring pass. Alpha is deliberately
// absent: the temperature scales forces once, in the integration stage.
// Layout (16 bytes): edge_count: u32, strength: f32, rest_length: f32,
// 4 bytes pad.
type SpringUniforms struct {
	EdgeCount  uint32
	Strength   float32
	RestLength float32
}

func (u SpringUniforms) sizeInBytes() uint64 { return 16 }

func (u SpringUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.EdgeCount)
	putF32(buf, 4, u.Strength)
	putF32(buf, 8, u.RestLength)
	return buf
}

// =============================================================================
// AttractionUniforms
// =============================================================================

// AttractionUniforms parameterizes the algorithm-owned attraction variants
// (LinLog weight exponent, t-FDP alpha/beta).
// Layout (16 bytes): edge_count: u32, param_a: f32, param_b: f32, 4 bytes pad.
type AttractionUniforms struct {
	EdgeCount uint32
	ParamA    float32
	ParamB    float32
}

func (u AttractionUniforms) sizeInBytes() uint64 { return 16 }

func (u AttractionUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.EdgeCount)
	putF32(buf, 4, u.ParamA)
	putF32(buf, 8, u.ParamB)
	return buf
}

// =============================================================================
// LinLogUniforms
// =============================================================================

// LinLogUniforms parameterizes the LinLog repulsion+gravity pass.
// Layout (32 bytes): node_count: u32, repulsion, min_distance, gravity,
// center_x, center_y: f32, strong_gravity: u32, 4 bytes pad.
type LinLogUniforms struct {
	NodeCount     uint32
	Repulsion     float32
	MinDistance   float32
	Gravity       float32
	CenterX       float32
	CenterY       float32
	StrongGravity uint32
}

func (u LinLogUniforms) sizeInBytes() uint64 { return 32 }

func (u LinLogUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Repulsion)
	putF32(buf, 8, u.MinDistance)
	putF32(buf, 12, u.Gravity)
	putF32(buf, 16, u.CenterX)
	putF32(buf, 20, u.CenterY)
	putU32(buf, 24, u.StrongGravity)
	return buf
}

// =============================================================================
// TFDPUniforms
// =============================================================================

// TFDPUniforms parameterizes the t-FDP repulsion pass.
// Layout (16 bytes): node_count: u32, repulsion: f32, gamma: f32,
// 4 bytes pad.
type TFDPUniforms struct {
	NodeCount uint32
	Repulsion float32
	Gamma     float32
}

func (u TFDPUniforms) sizeInBytes() uint64 { return 16 }

func (u TFDPUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Repulsion)
	putF32(buf, 8, u.Gamma)
	return buf
}

// =============================================================================
// MassUniforms
// =============================================================================

// MassUniforms parameterizes one level of the hierarchical mass sweep.
// Layout (16 bytes): node_count: u32, base_mass: f32, child_factor: f32,
// level: f32.
type MassUniforms struct {
	NodeCount   uint32
	BaseMass    float32
	ChildFactor float32
	Level       float32
}

func (u MassUniforms) sizeInBytes() uint64 { return 16 }

func (u MassUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.BaseMass)
	putF32(buf, 8, u.ChildFactor)
	putF32(buf, 12, u.Level)
	return buf
}

// =============================================================================
// DensityUniforms
// =============================================================================

// DensityUniforms parameterizes the density-field passes.
// Layout (32 bytes): node_count: u32, bounds_min_x, bounds_min_y,
// bounds_max_x, bounds_max_y, strength: f32, 8 bytes pad.
type DensityUniforms struct {
	NodeCount  uint32
	BoundsMinX float32
	BoundsMinY float32
	BoundsMaxX float32
	BoundsMaxY float32
	Strength   float32
}

func (u DensityUniforms) sizeInBytes() uint64 { return 32 }

func (u DensityUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.BoundsMinX)
	putF32(buf, 8, u.BoundsMinY)
	putF32(buf, 12, u.BoundsMaxX)
	putF32(buf, 16, u.BoundsMaxY)
	putF32(buf, 20, u.Strength)
	return buf
}

// =============================================================================
// IntegrationUniforms
// =============================================================================

// IntegrationUniforms parameterizes the integration pass.
// Layout (48 bytes): node_count: u32, dt, damping, max_velocity, alpha,
// depth_settling_spread, alpha_min, gravity_strength, center_x, center_y: f32,
// pinned_node: u32, 4 bytes pad.
type IntegrationUniforms struct {
	NodeCount           uint32
	Dt                  float32
	Damping             float32
	MaxVelocity         float32
	Alpha               float32
	DepthSettlingSpread float32
	AlphaMin            float32
	GravityStrength     float32
	CenterX             float32
	CenterY             float32
	PinnedNode          uint32
}

func (u IntegrationUniforms) sizeInBytes() uint64 { return 48 }

func (u IntegrationUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Dt)
	putF32(buf, 8, u.Damping)
	putF32(buf, 12, u.MaxVelocity)
	putF32(buf, 16, u.Alpha)
	putF32(buf, 20, u.DepthSettlingSpread)
	putF32(buf, 24, u.AlphaMin)
	putF32(buf, 28, u.GravityStrength)
	putF32(buf, 32, u.CenterX)
	putF32(buf, 36, u.CenterY)
	putU32(buf, 40, u.PinnedNode)
	return buf
}

// =============================================================================
// CollisionUniforms
// =============================================================================

// CollisionUniforms parameterizes the tiled collision pass.
// Layout (32 bytes): node_count: u32, strength, radius_multiplier: f32,
// iterations: u32, default_radius: f32, 12 bytes pad.
type CollisionUniforms struct {
	NodeCount        uint32
	Strength         float32
	RadiusMultiplier float32
	Iterations       uint32
	DefaultRadius    float32
}

func (u CollisionUniforms) sizeInBytes() uint64 { return 32 }

func (u CollisionUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Strength)
	putF32(buf, 8, u.RadiusMultiplier)
	putU32(buf, 12, u.Iterations)
	putF32(buf, 16, u.DefaultRadius)
	return buf
}

// =============================================================================
// GridCollisionUniforms
// =============================================================================

// GridCollisionUniforms parameterizes the spatial-hash grid passes.
// Layout (48 bytes): node_count, grid_w, grid_h: u32, cell_size,
// bounds_min_x, bounds_min_y, strength, radius_multiplier,
// default_radius: f32, total_cells: u32, 8 bytes pad.
type GridCollisionUniforms struct {
	NodeCount        uint32
	GridW            uint32
	GridH            uint32
	CellSize         float32
	BoundsMinX       float32
	BoundsMinY       float32
	Strength         float32
	RadiusMultiplier float32
	DefaultRadius    float32
	TotalCells       uint32
}

func (u GridCollisionUniforms) sizeInBytes() uint64 { return 48 }

func (u GridCollisionUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putU32(buf, 4, u.GridW)
	putU32(buf, 8, u.GridH)
	putF32(buf, 12, u.CellSize)
	putF32(buf, 16, u.BoundsMinX)
	putF32(buf, 20, u.BoundsMinY)
	putF32(buf, 24, u.Strength)
	putF32(buf, 28, u.RadiusMultiplier)
	putF32(buf, 32, u.DefaultRadius)
	putU32(buf, 36, u.TotalCells)
	return buf
}

// =============================================================================
// BHUniforms
// =============================================================================

// BHUniforms parameterizes the Barnes-Hut stages (Morton assignment, tree
// build, aggregation, traversal).
// Layout (48 bytes): node_count: u32, strength, min_distance, theta,
// bounds_min_x, bounds_min_y, bounds_max_x, bounds_max_y: f32,
// leaf_count: u32, sort_shift: u32, 8 bytes pad.
type BHUniforms struct {
	NodeCount   uint32
	Strength    float32
	MinDistance float32
	Theta       float32
	BoundsMinX  float32
	BoundsMinY  float32
	BoundsMaxX  float32
	BoundsMaxY  float32
	LeafCount   uint32
	SortShift   uint32
}

func (u BHUniforms) sizeInBytes() uint64 { return 48 }

func (u BHUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Strength)
	putF32(buf, 8, u.MinDistance)
	putF32(buf, 12, u.Theta)
	putF32(buf, 16, u.BoundsMinX)
	putF32(buf, 20, u.BoundsMinY)
	putF32(buf, 24, u.BoundsMaxX)
	putF32(buf, 28, u.BoundsMaxY)
	putU32(buf, 32, u.LeafCount)
	putU32(buf, 36, u.SortShift)
	return buf
}

// =============================================================================
// RelativityUniforms
// =============================================================================

// RelativityUniforms parameterizes the hierarchical algorithm's passes.
// Layout (64 bytes): node_count: u32, orbit_radius, orbit_strength,
// sibling_repulsion, tangential_multiplier, cousin_repulsion,
// phantom_margin, density_strength, center_x, center_y, gravity_strength,
// gravity_exponent: f32, gravity_curve: u32, flags: u32 (bit0 cousins,
// bit1 phantom, bit2 density), 8 bytes pad.
type RelativityUniforms struct {
	NodeCount            uint32
	OrbitRadius          float32
	OrbitStrength        float32
	SiblingRepulsion     float32
	TangentialMultiplier float32
	CousinRepulsion      float32
	PhantomMargin        float32
	DensityStrength      float32
	CenterX              float32
	CenterY              float32
	GravityStrength      float32
	GravityExponent      float32
	GravityCurve         uint32
	Flags                uint32
}

// RelativityUniforms flag bits.
const (
	RelativityFlagCousins = 1 << 0
	RelativityFlagPhantom = 1 << 1
	RelativityFlagDensity = 1 << 2
)

func (u RelativityUniforms) sizeInBytes() uint64 { return 64 }

func (u RelativityUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.OrbitRadius)
	putF32(buf, 8, u.OrbitStrength)
	putF32(buf, 12, u.SiblingRepulsion)
	putF32(buf, 16, u.TangentialMultiplier)
	putF32(buf, 20, u.CousinRepulsion)
	putF32(buf, 24, u.PhantomMargin)
	putF32(buf, 28, u.DensityStrength)
	putF32(buf, 32, u.CenterX)
	putF32(buf, 36, u.CenterY)
	putF32(buf, 40, u.GravityStrength)
	putF32(buf, 44, u.GravityExponent)
	putU32(buf, 48, u.GravityCurve)
	putU32(buf, 52, u.Flags)
	return buf
}

// =============================================================================
// TargetUniforms
// =============================================================================

// TargetUniforms parameterizes the spring-to-target pass of precomputed
// layouts.
// Layout (16 bytes): node_count: u32, stiffness: f32, damping: f32,
// 4 bytes pad.
type TargetUniforms struct {
	NodeCount uint32
	Stiffness float32
	Damping   float32
}

func (u TargetUniforms) sizeInBytes() uint64 { return 16 }

func (u TargetUniforms) toBytes() []byte {
	buf := make([]byte, u.sizeInBytes())
	putU32(buf, 0, u.NodeCount)
	putF32(buf, 4, u.Stiffness)
	putF32(buf, 8, u.Damping)
	return buf
}
