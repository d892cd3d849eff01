// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// errors.go declares the engine's error taxonomy. Construction errors bubble
// out of NewEngine; post-construction mutation errors are returned per call.
// Use errors.Is to classify wrapped errors.

package heroine

import "errors"

var (
	// ErrUnsupportedPlatform indicates no compute-capable GPU adapter could be
	// acquired. Returned by NewEngine unless WithSoftwareSimulation or
	// WithSoftwareFallback is set.
	ErrUnsupportedPlatform = errors.New("heroine: no compute-capable GPU available")

	// ErrPipelineCompile indicates a WGSL shader failed validation or a compute
	// pipeline could not be created.
	ErrPipelineCompile = errors.New("heroine: compute pipeline compilation failed")

	// ErrBufferAlloc indicates a GPU buffer allocation failed.
	ErrBufferAlloc = errors.New("heroine: GPU buffer allocation failed")

	// ErrCapacityExceeded indicates a slot allocation would exceed capacity
	// while growth is disabled.
	ErrCapacityExceeded = errors.New("heroine: capacity exceeded")

	// ErrDuplicateID indicates an add operation reused a live node or edge ID.
	ErrDuplicateID = errors.New("heroine: duplicate id")

	// ErrUnknownID indicates an operation referenced an ID that is not loaded.
	ErrUnknownID = errors.New("heroine: unknown id")

	// ErrUnknownAlgorithm indicates SetForceAlgorithm was called with an
	// unregistered algorithm ID.
	ErrUnknownAlgorithm = errors.New("heroine: unknown algorithm")

	// ErrInvalidGraphData indicates a bulk setter received a slice whose length
	// does not match the live node or edge count.
	ErrInvalidGraphData = errors.New("heroine: graph data size mismatch")

	// ErrDisposed indicates a call on an engine after Close.
	ErrDisposed = errors.New("heroine: engine disposed")

	// ErrCorrupted indicates every position in the CPU shadow became
	// non-finite. The simulation stops rather than submit undefined work.
	ErrCorrupted = errors.New("heroine: simulation state corrupted")

	// ErrReadbackFailed indicates a position readback could not be mapped.
	// Readback failures are logged and retried at the next sync interval.
	ErrReadbackFailed = errors.New("heroine: position readback failed")
)
