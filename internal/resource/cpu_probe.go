package resource

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CPUProbe answers CPU utilization questions. Unlike GPUProbe, which reads a
// single memory snapshot, CPUProbe's SustainedIdle blocks the caller for up
// to window to rule out transient idleness caused by daemons or I/O bursts.
type CPUProbe interface {
	// Utilization returns core's utilization percentage in [0, 100], or an
	// error if /proc/stat could not be read for that core.
	Utilization(core int) (float64, error)
	// SustainedIdle reports whether every sample taken every interval over
	// window stayed strictly below threshold. A read error on any sample is
	// treated as "not idle".
	SustainedIdle(core int, threshold float64, window, interval time.Duration) bool
}

// cpuStats mirrors the fields of one /proc/stat "cpuN" line that matter for
// utilization: jiffies spent in each accounting bucket since boot.
type cpuStats struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (c cpuStats) total() uint64 {
	return c.user + c.nice + c.system + c.idle + c.iowait + c.irq + c.softirq + c.steal
}

func (c cpuStats) idleTime() uint64 {
	return c.idle + c.iowait
}

// ProcStatProbe reads /proc/stat to compute per-core utilization.
type ProcStatProbe struct {
	// SampleGap is the delay between the two /proc/stat readings used to
	// compute one utilization sample. Defaults to 100ms; tests shrink it.
	SampleGap time.Duration

	readStat func() (map[int]cpuStats, error)
}

// NewProcStatProbe builds a probe reading the real /proc/stat.
func NewProcStatProbe() *ProcStatProbe {
	p := &ProcStatProbe{SampleGap: 100 * time.Millisecond}
	p.readStat = readProcStat
	return p
}

func readProcStat() (map[int]cpuStats, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stats := make(map[int]cpuStats)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") || strings.HasPrefix(line, "cpu ") {
			continue // skip the aggregate "cpu " line; keep "cpuN" lines
		}

		core, stat, ok := parseCPULine(line)
		if !ok {
			continue
		}
		stats[core] = stat
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func parseCPULine(line string) (core int, stat cpuStats, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return 0, cpuStats{}, false
	}

	label := strings.TrimPrefix(fields[0], "cpu")
	core, err := strconv.Atoi(label)
	if err != nil {
		return 0, cpuStats{}, false
	}

	vals := make([]uint64, 8)
	for i := 0; i < 8; i++ {
		v, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return 0, cpuStats{}, false
		}
		vals[i] = v
	}

	return core, cpuStats{
		user: vals[0], nice: vals[1], system: vals[2], idle: vals[3],
		iowait: vals[4], irq: vals[5], softirq: vals[6], steal: vals[7],
	}, true
}

func (p *ProcStatProbe) Utilization(core int) (float64, error) {
	before, err := p.readStat()
	if err != nil {
		return 0, err
	}
	time.Sleep(p.SampleGap)
	after, err := p.readStat()
	if err != nil {
		return 0, err
	}

	prev, ok := before[core]
	if !ok {
		return 0, fmt.Errorf("resource: no /proc/stat entry for cpu%d", core)
	}
	curr, ok := after[core]
	if !ok {
		return 0, fmt.Errorf("resource: no /proc/stat entry for cpu%d", core)
	}

	deltaTotal := curr.total() - prev.total()
	if deltaTotal == 0 {
		return 0, nil
	}
	deltaIdle := curr.idleTime() - prev.idleTime()

	util := float64(deltaTotal-deltaIdle) / float64(deltaTotal) * 100
	switch {
	case util < 0:
		return 0, nil
	case util > 100:
		return 100, nil
	default:
		return util, nil
	}
}

func (p *ProcStatProbe) SustainedIdle(core int, threshold float64, window, interval time.Duration) bool {
	samples := int((window + interval - 1) / interval) // ceil(window / interval)
	if samples < 1 {
		samples = 1
	}

	for i := 0; i < samples; i++ {
		util, err := p.Utilization(core)
		if err != nil || util >= threshold {
			return false
		}
		if i < samples-1 {
			time.Sleep(interval)
		}
	}
	return true
}

// MockCPUProbe returns canned per-core utilization, for tests. A core absent
// from Utilization is reported as erroring (not idle), matching the real
// probe's treatment of a missing /proc/stat entry.
type MockCPUProbe struct {
	Util map[int]float64
}

func (m *MockCPUProbe) Utilization(core int) (float64, error) {
	u, ok := m.Util[core]
	if !ok {
		return 0, fmt.Errorf("resource: no mock utilization for core %d", core)
	}
	return u, nil
}

func (m *MockCPUProbe) SustainedIdle(core int, threshold float64, window, interval time.Duration) bool {
	util, err := m.Utilization(core)
	if err != nil {
		return false
	}
	return util < threshold
}
