package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequencedStat replays a fixed sequence of /proc/stat snapshots, one per
// call, holding on the last entry once exhausted.
func sequencedStat(seq ...map[int]cpuStats) func() (map[int]cpuStats, error) {
	i := 0
	return func() (map[int]cpuStats, error) {
		s := seq[i]
		if i < len(seq)-1 {
			i++
		}
		return s, nil
	}
}

func TestProcStatProbeUtilizationComputesDeltaAgainstIdle(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {user: 100, idle: 900}},
		map[int]cpuStats{0: {user: 150, idle: 950}}, // +50 user, +50 idle -> 50% busy
	)

	util, err := p.Utilization(0)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, util, 0.001)
}

func TestProcStatProbeUtilizationFullyIdle(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {idle: 1000}},
		map[int]cpuStats{0: {idle: 1100}},
	)

	util, err := p.Utilization(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, util, 0.001)
}

func TestProcStatProbeUtilizationFullyBusy(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {user: 1000, idle: 0}},
		map[int]cpuStats{0: {user: 1100, idle: 0}},
	)

	util, err := p.Utilization(0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, util, 0.001)
}

func TestProcStatProbeUtilizationNoMovementIsZero(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	stat := map[int]cpuStats{0: {user: 100, idle: 900}}
	p.readStat = sequencedStat(stat, stat)

	util, err := p.Utilization(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, util)
}

func TestProcStatProbeUtilizationMissingCoreErrors(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {idle: 1000}},
		map[int]cpuStats{0: {idle: 1100}},
	)

	_, err := p.Utilization(7)
	assert.Error(t, err)
}

func TestProcStatProbeSustainedIdleAllSamplesBelowThreshold(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	// Every consecutive pair shows a tiny 1% utilization.
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {user: 0, idle: 0}},
		map[int]cpuStats{0: {user: 1, idle: 99}},
		map[int]cpuStats{0: {user: 2, idle: 198}},
		map[int]cpuStats{0: {user: 3, idle: 297}},
	)

	assert.True(t, p.SustainedIdle(0, 40, 3*time.Millisecond, time.Millisecond))
}

func TestProcStatProbeSustainedIdleBailsOutOnFirstBusySample(t *testing.T) {
	p := NewProcStatProbe()
	p.SampleGap = time.Millisecond
	p.readStat = sequencedStat(
		map[int]cpuStats{0: {user: 0, idle: 0}},
		map[int]cpuStats{0: {user: 90, idle: 10}}, // 90% busy on the very first sample
	)

	assert.False(t, p.SustainedIdle(0, 40, 3*time.Millisecond, time.Millisecond))
}

func TestParseCPULineSkipsAggregateLine(t *testing.T) {
	core, _, ok := parseCPULine("cpu 100 0 200 9000 0 0 0 0 0 0")
	assert.False(t, ok)
	assert.Equal(t, 0, core) // unused when ok is false, but exercise the path
}

func TestParseCPULineParsesPerCoreLine(t *testing.T) {
	core, stat, ok := parseCPULine("cpu3 10 1 20 900 5 0 0 0")
	require.True(t, ok)
	assert.Equal(t, 3, core)
	assert.EqualValues(t, 10, stat.user)
	assert.EqualValues(t, 900, stat.idle)
	assert.EqualValues(t, 5, stat.iowait)
}

func TestMockCPUProbe(t *testing.T) {
	m := &MockCPUProbe{Util: map[int]float64{0: 10, 1: 90}}

	util, err := m.Utilization(0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, util)

	assert.True(t, m.SustainedIdle(0, 40, time.Second, time.Millisecond))
	assert.False(t, m.SustainedIdle(1, 40, time.Second, time.Millisecond))

	_, err = m.Utilization(2)
	assert.Error(t, err)
	assert.False(t, m.SustainedIdle(2, 40, time.Second, time.Millisecond))
}
