package gpu

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Capability tags a node can advertise, derived from VRAM.
const (
	CapInference  = "inference"
	CapTraining   = "training"
	CapFineTuning = "fine_tuning"
	CapRender     = "render"
	CapVision     = "vision"
	CapCPUCompute = "cpu_compute"
)

// Snapshot describes the node's hardware as advertised at registration.
type Snapshot struct {
	GPUModel      string   `json:"gpu_model"`
	VRAMTotalMB   uint64   `json:"vram_total_mb"`
	DriverVersion string   `json:"driver_version"`
	CUDAVersion   string   `json:"cuda_version"`
	OS            string   `json:"os"`
	CPUModel      string   `json:"cpu_model"`
	RAMTotalMB    uint64   `json:"ram_total_mb"`
	Capabilities  []string `json:"capabilities"`
}

// HealthStatus is the outcome of one health check cycle. It is recomputed
// each telemetry iteration and never persisted.
type HealthStatus struct {
	Healthy bool               `json:"healthy"`
	Issues  []string           `json:"issues"`
	Stats   map[string]float64 `json:"stats"`
}

// Health thresholds. A reading beyond any of these flags an issue.
const (
	maxSafeTemperatureC     = 85
	maxSafeUtilizationPct   = 95
	maxSafeMemoryPercentPct = 95
)

// Builder probes local hardware and derives the node's capability snapshot.
type Builder struct {
	probe    Probe
	gpuIndex int
	logger   *zap.Logger
	hasGPU   bool
}

// NewBuilder creates a snapshot builder over the given probe. Init is
// attempted once here; failure leaves the builder in CPU-only mode.
func NewBuilder(probe Probe, gpuIndex int, logger *zap.Logger) *Builder {
	b := &Builder{probe: probe, gpuIndex: gpuIndex, logger: logger}
	if err := probe.Init(); err != nil {
		logger.Warn("GPU probe unavailable, running CPU-only", zap.Error(err))
		return b
	}
	count, err := probe.DeviceCount()
	if err != nil || count <= gpuIndex {
		logger.Warn("No usable GPU device found",
			zap.Int("device_count", count),
			zap.Int("gpu_index", gpuIndex),
			zap.Error(err),
		)
		return b
	}
	b.hasGPU = true
	return b
}

// Close releases the underlying probe.
func (b *Builder) Close() {
	if err := b.probe.Shutdown(); err != nil {
		b.logger.Debug("GPU probe shutdown failed", zap.Error(err))
	}
}

// Detect always returns a snapshot. Probe failures degrade to a CPU-only
// snapshot; the capability list is never empty.
func (b *Builder) Detect() Snapshot {
	snap := Snapshot{
		GPUModel:      "CPU-only (No GPU detected)",
		DriverVersion: "Unknown",
		CUDAVersion:   "Unknown",
		OS:            detectOS(),
		CPUModel:      detectCPUModel(),
		RAMTotalMB:    detectTotalRAM(),
	}

	if b.hasGPU {
		spec, err := b.probe.Spec(b.gpuIndex)
		if err != nil {
			b.logger.Warn("GPU spec query failed, falling back to CPU-only", zap.Error(err))
		} else {
			snap.GPUModel = spec.Model
			snap.VRAMTotalMB = spec.VRAMTotalMB
			snap.DriverVersion = spec.DriverVersion
			snap.CUDAVersion = spec.CUDAVersion
		}
	}

	snap.Capabilities = Capabilities(snap.VRAMTotalMB / 1024)
	return snap
}

// Capabilities maps a VRAM size in GB to the node's capability tags,
// strictly tiered and never empty.
func Capabilities(vramGB uint64) []string {
	switch {
	case vramGB >= 24:
		return []string{CapInference, CapTraining, CapFineTuning, CapRender, CapVision}
	case vramGB >= 12:
		return []string{CapInference, CapFineTuning, CapRender}
	case vramGB >= 8:
		return []string{CapInference, CapRender}
	case vramGB >= 4:
		return []string{CapInference}
	default:
		return []string{CapCPUCompute}
	}
}

// EstimateMaxBatchSize maps VRAM in MB to an advisory batch-size hint for
// job handlers. It is not enforced anywhere in the agent.
func EstimateMaxBatchSize(vramMB uint64) int {
	vramGB := vramMB / 1024
	switch {
	case vramGB >= 24:
		return 32
	case vramGB >= 16:
		return 16
	case vramGB >= 12:
		return 8
	case vramGB >= 8:
		return 4
	case vramGB >= 6:
		return 2
	default:
		return 1
	}
}

// Stats returns the current GPU readings as a flat map. A probe failure
// yields an empty map: absence of data is not a fault.
func (b *Builder) Stats() map[string]float64 {
	if !b.hasGPU {
		return map[string]float64{}
	}
	stats, err := b.probe.Stats(b.gpuIndex)
	if err != nil {
		b.logger.Debug("GPU stats query failed", zap.Error(err))
		return map[string]float64{}
	}
	return map[string]float64{
		"gpu_percent":        stats.UtilizationPercent,
		"gpu_memory_percent": stats.MemoryPercent,
		"gpu_temp_c":         stats.TemperatureC,
		"gpu_power_w":        stats.PowerDrawW,
		"vram_used_mb":       float64(stats.VRAMUsedMB),
	}
}

// MonitorHealth derives a HealthStatus from the current GPU stats. With no
// stats available the node is considered healthy.
func (b *Builder) MonitorHealth() HealthStatus {
	stats := b.Stats()
	issues := make([]string, 0)

	if temp, ok := stats["gpu_temp_c"]; ok && temp > maxSafeTemperatureC {
		issues = append(issues, "GPU temperature above safe limit")
	}
	if util, ok := stats["gpu_percent"]; ok && util > maxSafeUtilizationPct {
		issues = append(issues, "GPU utilization critically high")
	}
	if memPct, ok := stats["gpu_memory_percent"]; ok && memPct > maxSafeMemoryPercentPct {
		issues = append(issues, "GPU memory utilization critically high")
	}

	return HealthStatus{
		Healthy: len(issues) == 0,
		Issues:  issues,
		Stats:   stats,
	}
}

func detectOS() string {
	info, err := host.Info()
	if err != nil {
		return "Unknown"
	}
	return info.Platform + " " + info.PlatformVersion
}

func detectCPUModel() string {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return "Unknown"
	}
	return infos[0].ModelName
}

func detectTotalRAM() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total / (1024 * 1024)
}
