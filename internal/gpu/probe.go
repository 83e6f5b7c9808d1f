package gpu

// Spec holds the static facts about one GPU device, gathered once at startup
// for registration.
type Spec struct {
	Model         string `json:"model"`
	VRAMTotalMB   uint64 `json:"vram_total_mb"`
	DriverVersion string `json:"driver_version"`
	CUDAVersion   string `json:"cuda_version"`
}

// DeviceStats holds a point-in-time reading from one GPU device.
type DeviceStats struct {
	UtilizationPercent float64 `json:"utilization_percent"`
	MemoryPercent      float64 `json:"memory_percent"`
	TemperatureC       float64 `json:"temperature_c"`
	PowerDrawW         float64 `json:"power_draw_w"`
	VRAMUsedMB         uint64  `json:"vram_used_mb"`
}

// Probe abstracts the vendor GPU library so the snapshot builder can be
// exercised without NVIDIA hardware.
type Probe interface {
	// Init prepares the underlying library. A failure means no GPU data is
	// available; callers degrade rather than propagate it.
	Init() error
	// Shutdown releases the underlying library.
	Shutdown() error
	// DeviceCount returns the number of visible GPU devices.
	DeviceCount() (int, error)
	// Spec returns the static specification of the device at index.
	Spec(index int) (Spec, error)
	// Stats returns a current reading from the device at index.
	Stats(index int) (DeviceStats, error)
}
