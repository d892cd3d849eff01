// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// shaders.go embeds the WGSL sources and provides the shared compute-stage
// builder: validate through naga, create the shader module, bind group
// layout, pipeline layout, and compute pipeline in one step, with the
// partial-cleanup discipline the rest of the package relies on.

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// simWGSize is the workgroup size used by all simulation compute shaders.
// It matches the @workgroup_size attribute in every WGSL source.
const simWGSize = 256

//go:embed shaders/force_common.wgsl
var shaderForceCommon string

//go:embed shaders/clear_forces.wgsl
var shaderClearForces string

//go:embed shaders/repulsion_n2.wgsl
var shaderRepulsionN2 string

//go:embed shaders/springs.wgsl
var shaderSprings string

//go:embed shaders/integrate.wgsl
var shaderIntegrate string

//go:embed shaders/collision.wgsl
var shaderCollision string

//go:embed shaders/grid_collision.wgsl
var shaderGridCollision string

//go:embed shaders/spring_to_target.wgsl
var shaderSpringToTarget string

//go:embed shaders/repulsion_linlog.wgsl
var shaderRepulsionLinLog string

//go:embed shaders/attraction_weighted.wgsl
var shaderAttractionWeighted string

//go:embed shaders/repulsion_tfdp.wgsl
var shaderRepulsionTFDP string

//go:embed shaders/attraction_tfdp.wgsl
var shaderAttractionTFDP string

//go:embed shaders/bh_morton.wgsl
var shaderBHMorton string

//go:embed shaders/bh_sort.wgsl
var shaderBHSort string

//go:embed shaders/bh_build.wgsl
var shaderBHBuild string

//go:embed shaders/bh_aggregate.wgsl
var shaderBHAggregate string

//go:embed shaders/bh_traverse.wgsl
var shaderBHTraverse string

//go:embed shaders/relativity_mass.wgsl
var shaderRelativityMass string

//go:embed shaders/relativity.wgsl
var shaderRelativity string

//go:embed shaders/density.wgsl
var shaderDensity string

// withCommon prepends the shared force helpers to a shader source.
func withCommon(src string) string {
	return shaderForceCommon + "\n" + src
}

// validateWGSL runs the source through naga so malformed shaders surface as
// a compile error on the host before any device submission.
func validateWGSL(label, src string) error {
	if _, err := naga.Compile(src); err != nil {
		return fmt.Errorf("gpu: shader %s failed validation: %w", label, err)
	}
	return nil
}

// bindingKind is shorthand for the three buffer binding types the
// simulation uses.
type bindingKind int

const (
	bindUniform bindingKind = iota
	bindStorageRO
	bindStorageRW
)

// layoutEntries expands a kind list into bind group layout entries with
// sequential binding indices, matching the @binding(N) annotations in the
// shader source.
func layoutEntries(kinds ...bindingKind) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, len(kinds))
	for i, k := range kinds {
		var t gputypes.BufferBindingType
		switch k {
		case bindUniform:
			t = gputypes.BufferBindingTypeUniform
		case bindStorageRO:
			t = gputypes.BufferBindingTypeReadOnlyStorage
		case bindStorageRW:
			t = gputypes.BufferBindingTypeStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	return entries
}

// bindGroupEntries maps buffers to sequential binding indices.
func bindGroupEntries(bufs ...hal.Buffer) []gputypes.BindGroupEntry {
	entries := make([]gputypes.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: b.NativeHandle(),
				Offset: 0,
				Size:   0, // entire buffer
			},
		}
	}
	return entries
}

// computeStage bundles one compute pipeline with its layouts and module.
type computeStage struct {
	module         hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline
}

// newComputeStage validates the source and creates the full pipeline chain.
// entryPoint selects the @compute function for multi-entry sources.
func newComputeStage(
	device hal.Device,
	label, src, entryPoint string,
	entries []gputypes.BindGroupLayoutEntry,
) (*computeStage, error) {
	if err := validateWGSL(label, src); err != nil {
		return nil, err
	}

	s := &computeStage{}
	var err error

	s.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: src},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module %s: %w", label, err)
	}

	s.bgLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		s.destroy(device)
		return nil, fmt.Errorf("gpu: create bind group layout %s: %w", label, err)
	}

	s.pipelineLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{s.bgLayout},
	})
	if err != nil {
		s.destroy(device)
		return nil, fmt.Errorf("gpu: create pipeline layout %s: %w", label, err)
	}

	s.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: s.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     s.module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		s.destroy(device)
		return nil, fmt.Errorf("gpu: create compute pipeline %s: %w", label, err)
	}

	slogger().Debug("compute pipeline created", "stage", label, "bindings", len(entries))
	return s, nil
}

// destroy releases all resources of the stage. Safe on partially built
// stages.
func (s *computeStage) destroy(device hal.Device) {
	if s == nil {
		return
	}
	if s.pipeline != nil {
		device.DestroyComputePipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.pipelineLayout != nil {
		device.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = nil
	}
	if s.bgLayout != nil {
		device.DestroyBindGroupLayout(s.bgLayout)
		s.bgLayout = nil
	}
	if s.module != nil {
		device.DestroyShaderModule(s.module)
		s.module = nil
	}
}

// bindGroup creates a bind group for the stage over the given buffers.
func (s *computeStage) bindGroup(device hal.Device, label string, bufs ...hal.Buffer) (hal.BindGroup, error) {
	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  s.bgLayout,
		Entries: bindGroupEntries(bufs...),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group %s: %w", label, err)
	}
	return bg, nil
}

// dispatch encodes one compute pass for the stage.
func (s *computeStage) dispatch(encoder hal.CommandEncoder, label string, bg hal.BindGroup, workgroups uint32) {
	if workgroups == 0 {
		return
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups, 1, 1)
	pass.End()
}

// workgroupsFor performs the ceiling division for a 1D dispatch.
func workgroupsFor(elements uint32) uint32 {
	if elements == 0 {
		return 0
	}
	return (elements + simWGSize - 1) / simWGSize
}
