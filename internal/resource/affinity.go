package resource

// Group identifies a CPU↔GPU affinity partition. Group 0 is the wildcard:
// "either group is acceptable" for a CPU range query, or "the GPU set
// imposes no single-group constraint" as a Reserve intermediate result.
type Group int

const (
	GroupEither Group = 0
	GroupOne    Group = 1
	GroupTwo    Group = 2
)

// groupRange is a half-open CPU or GPU id range [Low, High) belonging to one
// affinity group.
type groupRange struct {
	Group    Group
	CPULow   int
	CPUHigh  int
	GPULow   int
	GPUHigh  int
}

// Topology maps CPU and GPU device IDs to affinity groups. The zero value is
// invalid; use NewTopology or DefaultTopology.
type Topology struct {
	groups []groupRange
}

// DefaultTopology is the dual-socket layout assumed unless configured
// otherwise: CPUs [0,32) with GPUs [0,4) form group 1; CPUs [32,64) with
// GPUs [4,8) form group 2.
func DefaultTopology() Topology {
	return NewTopology(64, 8, 2)
}

// NewTopology builds an even split of totalCPUs and totalGPUs into
// numGroups contiguous groups numbered 1..numGroups. A numGroups of 1 yields
// a single group covering every CPU and GPU.
func NewTopology(totalCPUs, totalGPUs, numGroups int) Topology {
	if numGroups < 1 {
		numGroups = 1
	}
	cpusPerGroup := totalCPUs / numGroups
	gpusPerGroup := totalGPUs / numGroups

	t := Topology{}
	for g := 0; g < numGroups; g++ {
		cpuLow, cpuHigh := g*cpusPerGroup, (g+1)*cpusPerGroup
		gpuLow, gpuHigh := g*gpusPerGroup, (g+1)*gpusPerGroup
		if g == numGroups-1 {
			// Last group absorbs any remainder from integer division.
			cpuHigh = totalCPUs
			gpuHigh = totalGPUs
		}
		t.groups = append(t.groups, groupRange{
			Group: Group(g + 1), CPULow: cpuLow, CPUHigh: cpuHigh, GPULow: gpuLow, GPUHigh: gpuHigh,
		})
	}
	return t
}

// GPUGroup returns the affinity group owning gpuID, or GroupEither if no
// configured group covers it.
func (t Topology) GPUGroup(gpuID int) Group {
	for _, r := range t.groups {
		if gpuID >= r.GPULow && gpuID < r.GPUHigh {
			return r.Group
		}
	}
	return GroupEither
}

// CPUGroup returns the affinity group owning cpuID, or GroupEither if no
// configured group covers it.
func (t Topology) CPUGroup(cpuID int) Group {
	for _, r := range t.groups {
		if cpuID >= r.CPULow && cpuID < r.CPUHigh {
			return r.Group
		}
	}
	return GroupEither
}

// CPURange returns the inclusive-exclusive CPU id range for group. Passing
// GroupEither returns the full range across every configured group.
func (t Topology) CPURange(group Group) (low, high int) {
	if group == GroupEither {
		low, high = 0, 0
		for i, r := range t.groups {
			if i == 0 {
				low = r.CPULow
			}
			high = r.CPUHigh
		}
		return low, high
	}
	for _, r := range t.groups {
		if r.Group == group {
			return r.CPULow, r.CPUHigh
		}
	}
	return 0, 0
}

// groupOfGPUs computes the affinity group of a set of GPU ids per §4.3 step 2:
// empty set -> GroupEither; all in one group -> that group; spans groups ->
// GroupEither (the CPU phase may then pick from any range).
func (t Topology) groupOfGPUs(gpus []int) Group {
	if len(gpus) == 0 {
		return GroupEither
	}
	first := t.GPUGroup(gpus[0])
	for _, g := range gpus[1:] {
		if t.GPUGroup(g) != first {
			return GroupEither
		}
	}
	return first
}
