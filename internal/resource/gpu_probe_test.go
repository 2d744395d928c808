package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNvidiaSMIProbeParsesCSVOutput(t *testing.T) {
	p := NewNvidiaSMIProbe(2000, 4)
	p.run = func() (string, error) {
		return "0, 512, 24576\n1, 2048, 24576\n2, 2001, 24576\n3, 1999, 24576\n", nil
	}

	snap := p.Snapshot()
	assert.Len(t, snap, 4)
	assert.Equal(t, GPUInfo{DeviceID: 0, MemoryUsed: 512, MemoryTotal: 24576}, snap[0])

	assert.False(t, p.Over(0))  // 512 < 2000
	assert.True(t, p.Over(1))   // 2048 > 2000
	assert.True(t, p.Over(2))   // 2001 > 2000, boundary
	assert.False(t, p.Over(3))  // 1999 < 2000, boundary
}

func TestNvidiaSMIProbeFallsBackToAllBusyOnError(t *testing.T) {
	p := NewNvidiaSMIProbe(2000, 4)
	p.run = func() (string, error) { return "", errors.New("nvidia-smi: command not found") }

	snap := p.Snapshot()
	assert.Len(t, snap, 4)
	for i, gpu := range snap {
		assert.Equal(t, i, gpu.DeviceID)
		assert.Greater(t, gpu.MemoryUsed, uint64(2000))
		assert.True(t, p.Over(i))
	}
}

func TestNvidiaSMIProbeFallsBackToAllBusyOnEmptyOutput(t *testing.T) {
	p := NewNvidiaSMIProbe(2000, 2)
	p.run = func() (string, error) { return "   \n", nil }

	snap := p.Snapshot()
	assert.Len(t, snap, 2)
	assert.True(t, p.Over(0))
	assert.True(t, p.Over(1))
}

func TestNvidiaSMIProbeSkipsMalformedLinesAndFallsBackIfAllAreBad(t *testing.T) {
	p := NewNvidiaSMIProbe(2000, 1)
	p.run = func() (string, error) { return "not, a, csv, line, at, all\n", nil }

	snap := p.Snapshot()
	assert.Len(t, snap, 1)
	assert.True(t, p.Over(0))
}

func TestNvidiaSMIProbeOverTreatsMissingDeviceAsBusy(t *testing.T) {
	p := NewNvidiaSMIProbe(2000, 4)
	p.run = func() (string, error) { return "0, 1, 24576\n", nil }

	assert.False(t, p.Over(0))
	assert.True(t, p.Over(7)) // not in snapshot at all
}

func TestMockGPUProbe(t *testing.T) {
	m := &MockGPUProbe{
		ThresholdMB: 2000,
		Data: []GPUInfo{
			{DeviceID: 0, MemoryUsed: 100, MemoryTotal: 24576},
			{DeviceID: 1, MemoryUsed: 9000, MemoryTotal: 24576},
		},
	}

	assert.False(t, m.Over(0))
	assert.True(t, m.Over(1))
	assert.True(t, m.Over(2)) // missing
	assert.Equal(t, m.Data, m.Snapshot())
}
