//go:build nonvml
// +build nonvml

package gpu

import "fmt"

// NVMLProbe stub - used when building without NVIDIA libraries.
type NVMLProbe struct{}

func NewNVMLProbe() *NVMLProbe {
	return &NVMLProbe{}
}

func (p *NVMLProbe) Init() error {
	return fmt.Errorf("NVML not available (built with nonvml tag)")
}

func (p *NVMLProbe) Shutdown() error {
	return nil
}

func (p *NVMLProbe) DeviceCount() (int, error) {
	return 0, fmt.Errorf("NVML not available")
}

func (p *NVMLProbe) Spec(index int) (Spec, error) {
	return Spec{}, fmt.Errorf("NVML not available")
}

func (p *NVMLProbe) Stats(index int) (DeviceStats, error) {
	return DeviceStats{}, fmt.Errorf("NVML not available")
}

// Compile-time interface check
var _ Probe = (*NVMLProbe)(nil)
