package telemetry

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
)

// SystemStats is a point-in-time reading of host-level resources.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// Report is one telemetry cycle's worth of data. It is logged locally and,
// when a publisher is configured, pushed off-node.
type Report struct {
	SessionID     string             `json:"session_id"`
	NodeID        string             `json:"node_id,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
	System        SystemStats        `json:"system"`
	GPU           map[string]float64 `json:"gpu"`
	Health        gpu.HealthStatus   `json:"health"`
	EarningsTotal string             `json:"earnings_total"`
	JobsCompleted int                `json:"jobs_completed"`
	JobsFailed    int                `json:"jobs_failed"`
}

// Collector gathers host stats. Individual probe failures degrade to zero
// values rather than failing the cycle.
type Collector struct {
	logger *zap.Logger
}

func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger}
}

func (c *Collector) Collect() SystemStats {
	stats := SystemStats{}

	if percents, err := cpu.Percent(0, false); err != nil {
		c.logger.Debug("CPU usage probe failed", zap.Error(err))
	} else if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		c.logger.Debug("Memory probe failed", zap.Error(err))
	} else {
		stats.RAMPercent = vm.UsedPercent
	}

	diskPath := "/"
	if runtime.GOOS == "windows" {
		diskPath = "C:"
	}
	if usage, err := disk.Usage(diskPath); err != nil {
		c.logger.Debug("Disk probe failed", zap.String("path", diskPath), zap.Error(err))
	} else {
		stats.DiskPercent = usage.UsedPercent
	}

	if uptime, err := host.Uptime(); err != nil {
		c.logger.Debug("Uptime probe failed", zap.Error(err))
	} else {
		stats.UptimeSeconds = uptime
	}

	return stats
}
