package webgpu

// BackendBuilderOption is a functional option for configuring the WebGPU backend.
type BackendBuilderOption func(*webgpuBackend)

// WithForceFallbackAdapter requests the software fallback adapter, useful on CI machines without a GPU.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the debug label of the requested device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithDeviceLabel(label string) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.deviceLabel = label
	}
}
