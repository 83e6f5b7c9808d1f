package gpu

import "fmt"

func errIndexOutOfRange(index int) error {
	return fmt.Errorf("device index %d out of range", index)
}

// MockProbe provides fake GPU data for testing.
type MockProbe struct {
	Specs     []Spec
	StatsData []DeviceStats
	InitErr   error
	SpecErr   error
	StatsErr  error
}

func NewMockProbe(specs []Spec, stats []DeviceStats) *MockProbe {
	return &MockProbe{Specs: specs, StatsData: stats}
}

func (p *MockProbe) Init() error {
	return p.InitErr
}

func (p *MockProbe) Shutdown() error {
	return nil
}

func (p *MockProbe) DeviceCount() (int, error) {
	if p.InitErr != nil {
		return 0, p.InitErr
	}
	return len(p.Specs), nil
}

func (p *MockProbe) Spec(index int) (Spec, error) {
	if p.SpecErr != nil {
		return Spec{}, p.SpecErr
	}
	if index < 0 || index >= len(p.Specs) {
		return Spec{}, errIndexOutOfRange(index)
	}
	return p.Specs[index], nil
}

func (p *MockProbe) Stats(index int) (DeviceStats, error) {
	if p.StatsErr != nil {
		return DeviceStats{}, p.StatsErr
	}
	if index < 0 || index >= len(p.StatsData) {
		return DeviceStats{}, errIndexOutOfRange(index)
	}
	return p.StatsData[index], nil
}

// Compile-time interface check
var _ Probe = (*MockProbe)(nil)
