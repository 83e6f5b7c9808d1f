//go:build !nonvml
// +build !nonvml

package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLProbe reads GPU data through the NVIDIA Management Library.
type NVMLProbe struct{}

func NewNVMLProbe() *NVMLProbe {
	return &NVMLProbe{}
}

func (p *NVMLProbe) Init() error {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML init failed: %v", nvml.ErrorString(ret))
	}
	return nil
}

func (p *NVMLProbe) Shutdown() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML shutdown failed: %v", nvml.ErrorString(ret))
	}
	return nil
}

func (p *NVMLProbe) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("failed to get device count: %v", nvml.ErrorString(ret))
	}
	return count, nil
}

func (p *NVMLProbe) Spec(index int) (Spec, error) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return Spec{}, fmt.Errorf("failed to get device %d: %v", index, nvml.ErrorString(ret))
	}

	spec := Spec{}
	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		spec.Model = name
	}
	if memInfo, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
		spec.VRAMTotalMB = memInfo.Total / (1024 * 1024)
	}
	if driver, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		spec.DriverVersion = driver
	}
	if cuda, ret := nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		spec.CUDAVersion = fmt.Sprintf("%d.%d", cuda/1000, (cuda%1000)/10)
	}
	return spec, nil
}

func (p *NVMLProbe) Stats(index int) (DeviceStats, error) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return DeviceStats{}, fmt.Errorf("failed to get device %d: %v", index, nvml.ErrorString(ret))
	}

	stats := DeviceStats{}
	if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
		stats.UtilizationPercent = float64(util.Gpu)
		stats.MemoryPercent = float64(util.Memory)
	}
	if temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
		stats.TemperatureC = float64(temp)
	}
	if power, ret := device.GetPowerUsage(); ret == nvml.SUCCESS {
		stats.PowerDrawW = float64(power) / 1000 // mW to W
	}
	if memInfo, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
		stats.VRAMUsedMB = memInfo.Used / (1024 * 1024)
	}
	return stats, nil
}

// Compile-time interface check
var _ Probe = (*NVMLProbe)(nil)
