// Package resource implements the GPU/CPU availability oracle and the
// resource ledger that the scheduler uses to place tasks.
package resource

import (
	"os/exec"
	"strconv"
	"strings"
)

// GPUInfo is one line of a GPU snapshot.
type GPUInfo struct {
	DeviceID    int
	MemoryUsed  uint64
	MemoryTotal uint64
}

// GPUProbe answers GPU memory-usage questions. It has no state beyond its
// threshold; implementations never panic or return an error to the caller —
// any underlying failure is absorbed and surfaces as "everything is busy"
// (see Snapshot's doc).
type GPUProbe interface {
	// Snapshot returns one GPUInfo per device the platform reports. If the
	// query tool is missing or fails, Snapshot returns a synthetic entry per
	// configured device with memory_used > threshold, so that callers who
	// treat "missing device" as "busy" get the conservative answer for free.
	Snapshot() []GPUInfo
	// Over reports whether deviceID's last-known memory usage exceeds the
	// threshold. A device absent from the snapshot is reported as over
	// threshold (busy) — missing is never treated as available.
	Over(deviceID int) bool
	// Threshold returns the memory-used threshold, in MB, above which a
	// device counts as busy.
	Threshold() uint64
}

// NvidiaSMIProbe queries nvidia-smi for per-device memory usage.
type NvidiaSMIProbe struct {
	ThresholdMB uint64
	TotalGPUs   int

	// run executes the query command and returns its combined stdout. It is
	// a field (not a free function) so tests can substitute a fake without
	// needing an actual GPU or nvidia-smi binary.
	run func() (string, error)
}

// NewNvidiaSMIProbe builds a probe with the real nvidia-smi shell-out.
func NewNvidiaSMIProbe(thresholdMB uint64, totalGPUs int) *NvidiaSMIProbe {
	p := &NvidiaSMIProbe{ThresholdMB: thresholdMB, TotalGPUs: totalGPUs}
	p.run = p.execNvidiaSMI
	return p
}

func (p *NvidiaSMIProbe) execNvidiaSMI() (string, error) {
	cmd := exec.Command("nvidia-smi",
		"--query-gpu=index,memory.used,memory.total",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	return string(out), err
}

func (p *NvidiaSMIProbe) Snapshot() []GPUInfo {
	out, err := p.run()
	if err != nil || strings.TrimSpace(out) == "" {
		return p.allBusy()
	}

	gpus := parseNvidiaSMIOutput(out)
	if len(gpus) == 0 {
		return p.allBusy()
	}
	return gpus
}

// allBusy is the conservative default: nvidia-smi is absent or failing, so
// nothing gets scheduled on GPUs until it is restored.
func (p *NvidiaSMIProbe) allBusy() []GPUInfo {
	gpus := make([]GPUInfo, p.TotalGPUs)
	for i := range gpus {
		gpus[i] = GPUInfo{DeviceID: i, MemoryUsed: p.ThresholdMB + 1, MemoryTotal: 0}
	}
	return gpus
}

func parseNvidiaSMIOutput(out string) []GPUInfo {
	var gpus []GPUInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}

		id, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
		used, err2 := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
		total, err3 := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue // skip malformed lines
		}

		gpus = append(gpus, GPUInfo{DeviceID: id, MemoryUsed: used, MemoryTotal: total})
	}
	return gpus
}

func (p *NvidiaSMIProbe) Over(deviceID int) bool {
	for _, gpu := range p.Snapshot() {
		if gpu.DeviceID == deviceID {
			return gpu.MemoryUsed > p.ThresholdMB
		}
	}
	return true // missing device is treated as busy
}

func (p *NvidiaSMIProbe) Threshold() uint64 { return p.ThresholdMB }

// MockGPUProbe returns canned data, for tests. Set Data directly; Snapshot
// returns it unmodified.
type MockGPUProbe struct {
	ThresholdMB uint64
	Data        []GPUInfo
}

func (m *MockGPUProbe) Snapshot() []GPUInfo { return m.Data }

func (m *MockGPUProbe) Over(deviceID int) bool {
	for _, gpu := range m.Data {
		if gpu.DeviceID == deviceID {
			return gpu.MemoryUsed > m.ThresholdMB
		}
	}
	return true
}

func (m *MockGPUProbe) Threshold() uint64 { return m.ThresholdMB }
