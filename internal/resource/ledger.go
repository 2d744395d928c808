package resource

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Allocation is the exact CPU and GPU set a successful Reserve call
// produced.
type Allocation struct {
	CPUs []int
	GPUs []int
}

// Ledger bookkeeps which CPUs and GPUs are currently reserved by live tasks
// and combines that bookkeeping with GPUProbe/CPUProbe measurements to
// answer availability. Every method holds a single mutex for the duration
// of the call — for Reserve including the
// sustained-idle probing inside Reserve's CPU phase, so that two concurrent
// Reserve calls never converge on the same candidate core.
type Ledger struct {
	mu sync.Mutex

	topology Topology
	gpu      GPUProbe
	cpu      CPUProbe

	cpuThreshold   float64
	cpuWindow      cpuWindow
	reservedCPUs   map[int]bool
	reservedGPUs   map[int]bool
	excludedCPUs   map[int]bool
	excludedGPUs   map[int]bool
	totalCPUs      int
	totalGPUs      int

	// rng is overridable so tests can make the "random" CPU shuffle
	// deterministic without weakening the production randomization.
	rng *rand.Rand
}

type cpuWindow struct {
	windowMS   int
	intervalMS int
}

// NewLedger builds a ledger over totalCPUs/totalGPUs cores and devices,
// probing availability with gpu/cpu and partitioning according to topology.
// cpuThreshold is the percent utilization at or above which a core is
// considered busy; windowMS/intervalMS parameterize SustainedIdle.
func NewLedger(topology Topology, gpu GPUProbe, cpu CPUProbe, totalCPUs, totalGPUs int, cpuThreshold float64, windowMS, intervalMS int) *Ledger {
	return &Ledger{
		topology:     topology,
		gpu:          gpu,
		cpu:          cpu,
		cpuThreshold: cpuThreshold,
		cpuWindow:    cpuWindow{windowMS: windowMS, intervalMS: intervalMS},
		reservedCPUs: make(map[int]bool),
		reservedGPUs: make(map[int]bool),
		excludedCPUs: make(map[int]bool),
		excludedGPUs: make(map[int]bool),
		totalCPUs:    totalCPUs,
		totalGPUs:    totalGPUs,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetExcluded replaces the administrator-configured excluded CPU/GPU sets.
func (l *Ledger) SetExcluded(cpus, gpus []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.excludedCPUs = toSet(cpus)
	l.excludedGPUs = toSet(gpus)
}

// MarkReserved forcibly marks cpus/gpus as reserved without running the
// allocation algorithm, used during startup recovery to re-adopt the
// resources of tasks already Running when the store was loaded.
func (l *Ledger) MarkReserved(cpus, gpus []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range cpus {
		l.reservedCPUs[c] = true
	}
	for _, g := range gpus {
		l.reservedGPUs[g] = true
	}
}

// AvailableGPUs returns device ids, ascending, that are neither reserved nor
// over the GPU probe's memory threshold.
func (l *Ledger) AvailableGPUs() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableGPUsLocked()
}

func (l *Ledger) availableGPUsLocked() []int {
	var out []int
	for _, g := range l.gpu.Snapshot() {
		if l.reservedGPUs[g.DeviceID] || l.excludedGPUs[g.DeviceID] {
			continue
		}
		if g.MemoryUsed > l.gpu.Threshold() {
			continue
		}
		out = append(out, g.DeviceID)
	}
	sort.Ints(out)
	return out
}

// AvailableCPUs returns core ids, unordered, within group's range that are
// neither reserved nor excluded. It performs no utilization check; callers
// run SustainedIdle per candidate themselves.
func (l *Ledger) AvailableCPUs(group Group) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableCPUsLocked(group)
}

func (l *Ledger) availableCPUsLocked(group Group) []int {
	low, high := l.topology.CPURange(group)
	if group == GroupEither && high == 0 {
		low, high = 0, l.totalCPUs
	}

	var out []int
	for c := low; c < high; c++ {
		if l.reservedCPUs[c] || l.excludedCPUs[c] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Reserve runs the allocation algorithm: GPU phase, affinity determination,
// then CPU phase. It is all-or-nothing: any failure leaves the reserved
// sets bitwise identical to their pre-call values.
func (l *Ledger) Reserve(ncpu, ngpu int, specificCPUs, specificGPUs []int) (Allocation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gpus, ok := l.reserveGPUsLocked(ngpu, specificGPUs)
	if !ok {
		return Allocation{}, false
	}

	group := l.topology.groupOfGPUs(gpus)

	cpus, ok := l.reserveCPUsLocked(ncpu, specificCPUs, group)
	if !ok {
		l.releaseLocked(nil, gpus) // rollback step 1
		return Allocation{}, false
	}

	return Allocation{CPUs: cpus, GPUs: gpus}, true
}

func (l *Ledger) reserveGPUsLocked(ngpu int, specific []int) ([]int, bool) {
	if len(specific) > 0 {
		for _, id := range specific {
			if l.excludedGPUs[id] || l.reservedGPUs[id] {
				return nil, false
			}
			if !l.gpuAvailableLocked(id) {
				return nil, false
			}
		}
		for _, id := range specific {
			l.reservedGPUs[id] = true
		}
		return append([]int(nil), specific...), true
	}

	if ngpu == 0 {
		return nil, true
	}

	candidates := l.availableGPUsLocked()
	if len(candidates) < ngpu {
		return nil, false
	}

	chosen := candidates[:ngpu]
	for _, id := range chosen {
		l.reservedGPUs[id] = true
	}
	return append([]int(nil), chosen...), true
}

func (l *Ledger) gpuAvailableLocked(id int) bool {
	for _, g := range l.gpu.Snapshot() {
		if g.DeviceID == id {
			return g.MemoryUsed <= l.gpu.Threshold()
		}
	}
	return false // missing device is never available
}

func (l *Ledger) reserveCPUsLocked(ncpu int, specific []int, group Group) ([]int, bool) {
	if len(specific) > 0 {
		for _, id := range specific {
			if l.excludedCPUs[id] || l.reservedCPUs[id] {
				return nil, false
			}
			if !l.cpu.SustainedIdle(id, l.cpuThreshold, l.window(), l.interval()) {
				return nil, false
			}
		}
		for _, id := range specific {
			l.reservedCPUs[id] = true
		}
		return append([]int(nil), specific...), true
	}

	if ncpu == 0 {
		return nil, true
	}

	candidates := l.availableCPUsLocked(group)
	l.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	var reserved []int
	for _, c := range candidates {
		if len(reserved) == ncpu {
			break
		}
		if !l.cpu.SustainedIdle(c, l.cpuThreshold, l.window(), l.interval()) {
			continue
		}
		l.reservedCPUs[c] = true
		reserved = append(reserved, c)
	}

	if len(reserved) < ncpu {
		for _, c := range reserved {
			delete(l.reservedCPUs, c)
		}
		return nil, false
	}
	return reserved, true
}

// Release marks cpus and gpus free. Releasing an id that was not reserved
// is a no-op.
func (l *Ledger) Release(cpus, gpus []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked(cpus, gpus)
}

func (l *Ledger) releaseLocked(cpus, gpus []int) {
	for _, c := range cpus {
		delete(l.reservedCPUs, c)
	}
	for _, g := range gpus {
		delete(l.reservedGPUs, g)
	}
}

func (l *Ledger) window() time.Duration   { return time.Duration(l.cpuWindow.windowMS) * time.Millisecond }
func (l *Ledger) interval() time.Duration { return time.Duration(l.cpuWindow.intervalMS) * time.Millisecond }

func toSet(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
