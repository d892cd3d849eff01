// Copyright 2026 The heroine-graph Authors
// SPDX-License-Identifier: BSD-3-Clause

// device.go acquires the compute device. The engine either opens its own
// headless Vulkan device through gogpu/wgpu or borrows one from the host
// application via a gpucontext.DeviceProvider, in which case the provider
// retains ownership and the engine never destroys it.

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/vulkan"
	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// ErrNoAdapter reports that no compute-capable GPU adapter was found.
var ErrNoAdapter = errors.New("gpu: no compute-capable adapter available")

// DeviceHandle is the integration point for hosts that already own a GPU
// device (a rendering window, typically). The engine RECEIVES the device
// from the host; it does not create a second one, so buffers can be shared
// with the renderer without cross-device copies.
type DeviceHandle = gpucontext.DeviceProvider

// halProvider is the concrete shape a sharing host exposes: the raw
// wgpu/hal device and queue behind the gpucontext interfaces.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// deviceContext owns (or borrows) the device and queue used by the
// simulation pipeline.
type deviceContext struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	borrowed bool
}

// openDevice acquires a headless compute device on the first available
// Vulkan adapter.
func openDevice() (*deviceContext, error) {
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("gpu: vulkan init: %w", err)
	}

	backend := vulkan.Backend{}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsVulkan,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	openDev, err := adapters[0].Adapter.Open(0, adapters[0].Capabilities.Limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	slogger().Info("compute device opened", "adapter", adapters[0].Info.Name)

	return &deviceContext{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
	}, nil
}

// borrowDevice wraps a host-provided device. Close becomes a no-op for the
// underlying device.
func borrowDevice(provider DeviceHandle) (*deviceContext, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("gpu: device provider does not expose hal device access")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, errors.New("gpu: device provider returned a non-hal device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, errors.New("gpu: device provider returned a non-hal queue")
	}
	slogger().Info("compute device borrowed from host")
	return &deviceContext{device: device, queue: queue, borrowed: true}, nil
}

// close releases the device unless it is borrowed from a host.
func (dc *deviceContext) close() {
	if dc == nil || dc.borrowed {
		return
	}
	if dc.device != nil {
		_ = dc.device.WaitIdle()
		dc.device.Destroy()
		dc.device = nil
	}
	if dc.instance != nil {
		dc.instance.Destroy()
		dc.instance = nil
	}
}
