package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCollect(t *testing.T) {
	c := NewCollector(zap.NewNop())
	stats := c.Collect()

	assert.GreaterOrEqual(t, stats.CPUPercent, 0.0)
	assert.LessOrEqual(t, stats.CPUPercent, 100.0)
	assert.GreaterOrEqual(t, stats.RAMPercent, 0.0)
	assert.LessOrEqual(t, stats.RAMPercent, 100.0)
	assert.GreaterOrEqual(t, stats.DiskPercent, 0.0)
}
