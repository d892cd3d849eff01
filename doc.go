// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package heroine is a GPU-resident force-directed graph layout engine.
//
// Given an arbitrary graph (nodes and edges, optionally typed, weighted, or
// hierarchical) the engine computes and continuously refines 2D positions by
// simulating attractive (spring), repulsive (charge), centering, and collision
// forces on the GPU, and exposes those positions for rendering and interactive
// manipulation (drag, pin, add/remove) without stalling the pipeline.
//
// The simulation runs as a multi-pass compute pipeline with ping-pong position
// buffers: clear -> repulsion -> springs -> integration -> collision. The
// repulsion stage is pluggable; registered algorithms range from naive O(N^2)
// pairing through Barnes-Hut quadtree approximation (Karras radix tree) to
// hierarchical and precomputed layouts.
//
// Basic usage:
//
//	eng, err := heroine.NewEngine()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	if err := eng.Load(graph); err != nil {
//		log.Fatal(err)
//	}
//	eng.Start()
//	for running {
//		eng.Tick()
//	}
//
// Construction acquires a GPU compute device through gogpu/wgpu. Hosts that
// already own a device can share it via WithDeviceProvider; environments
// without a compute-capable GPU can opt into the software simulator with
// WithSoftwareSimulation, which runs the identical pass sequence on the CPU.
//
// The engine produces no log output by default. Call SetLogger to enable
// structured logging via log/slog.
package heroine
