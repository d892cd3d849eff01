// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

package heroine

import "github.com/tomWhiting/heroine-graph/internal/gpu"

// DeviceProvider lets a host that already owns a GPU device share it with
// the engine (see internal/gpu.DeviceHandle). The provider keeps ownership;
// Close leaves the device untouched.
type DeviceProvider = gpu.DeviceHandle

// Option configures an Engine during creation.
//
// Example:
//
//	// Default: the engine opens its own headless compute device.
//	eng, err := heroine.NewEngine()
//
//	// Tests and GPU-less hosts: run the identical pipeline on the CPU.
//	eng, err := heroine.NewEngine(heroine.WithSoftwareSimulation())
type Option func(*engineOptions)

type engineOptions struct {
	software     bool
	fallback     bool
	provider     DeviceProvider
	syncInterval uint64
	alphaDecay   float32
	config       ForceConfig
	algorithm    string
	noGrowth     bool
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		syncInterval: 5,
		alphaDecay:   AlphaDecayFast,
		config:       DefaultForceConfig(),
		algorithm:    AlgoN2,
	}
}

// WithSoftwareSimulation selects the software simulator: the identical
// pass sequence runs on the CPU. Use for tests and hosts without a
// compute-capable GPU.
func WithSoftwareSimulation() Option {
	return func(o *engineOptions) { o.software = true }
}

// WithSoftwareFallback falls back to the software simulator, with a
// warning log, when GPU device acquisition fails instead of surfacing
// ErrUnsupportedPlatform.
func WithSoftwareFallback() Option {
	return func(o *engineOptions) { o.fallback = true }
}

// WithDeviceProvider shares the host's GPU device instead of opening a
// second one.
func WithDeviceProvider(p DeviceProvider) Option {
	return func(o *engineOptions) { o.provider = p }
}

// WithSyncInterval sets the position readback interval in frames
// (default 5).
func WithSyncInterval(frames uint64) Option {
	return func(o *engineOptions) {
		if frames > 0 {
			o.syncInterval = frames
		}
	}
}

// WithAlphaDecay sets the temperature decay per tick; see AlphaDecayFast
// and AlphaDecayQuality.
func WithAlphaDecay(decay float32) Option {
	return func(o *engineOptions) {
		if decay > 0 && decay < 1 {
			o.alphaDecay = decay
		}
	}
}

// WithForceConfig sets the initial force configuration.
func WithForceConfig(cfg ForceConfig) Option {
	return func(o *engineOptions) { o.config = cfg }
}

// WithAlgorithm sets the initial repulsion algorithm (default AlgoN2).
func WithAlgorithm(id string) Option {
	return func(o *engineOptions) { o.algorithm = id }
}

// WithoutGrowth disables capacity growth: allocations past the initial
// capacity fail with ErrCapacityExceeded.
func WithoutGrowth() Option {
	return func(o *engineOptions) { o.noGrowth = true }
}
