package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idleCPU(ids ...int) *MockCPUProbe {
	util := make(map[int]float64, len(ids))
	for _, id := range ids {
		util[id] = 5
	}
	return &MockCPUProbe{Util: util}
}

func allIdleCPU(n int) *MockCPUProbe {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return idleCPU(ids...)
}

func newTestLedger(gpu *MockGPUProbe, cpu *MockCPUProbe) *Ledger {
	return NewLedger(DefaultTopology(), gpu, cpu, 64, 8, 40, 10, 1)
}

func gpuSnapshot(thresholdMB uint64, used map[int]uint64, total int) *MockGPUProbe {
	data := make([]GPUInfo, total)
	for i := 0; i < total; i++ {
		data[i] = GPUInfo{DeviceID: i, MemoryUsed: used[i], MemoryTotal: 24576}
	}
	return &MockGPUProbe{ThresholdMB: thresholdMB, Data: data}
}

func TestLedgerHappyPathStaysWithinAffinityGroup(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8) // all near-zero usage
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	alloc, ok := l.Reserve(2, 1, nil, nil)
	require.True(t, ok)
	require.Len(t, alloc.GPUs, 1)
	assert.Equal(t, 0, alloc.GPUs[0])
	require.Len(t, alloc.CPUs, 2)
	for _, c := range alloc.CPUs {
		assert.Less(t, c, 32)
	}
}

func TestLedgerAffinitySwitchWhenGroupOneGPUsBusy(t *testing.T) {
	used := map[int]uint64{0: 3000, 1: 3000, 2: 3000, 3: 3000}
	gpu := gpuSnapshot(2000, used, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	alloc, ok := l.Reserve(4, 1, nil, nil)
	require.True(t, ok)
	require.Len(t, alloc.GPUs, 1)
	assert.GreaterOrEqual(t, alloc.GPUs[0], 4)
	for _, c := range alloc.CPUs {
		assert.GreaterOrEqual(t, c, 32)
	}
}

func TestLedgerReserveFailsOnInsufficientGPUsLeavesNoSideEffects(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{0: 3000, 1: 3000, 2: 3000, 3: 3000, 4: 3000, 5: 3000, 6: 3000, 7: 3000}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	before := l.AvailableCPUs(GroupEither)

	_, ok := l.Reserve(2, 1, nil, nil)
	assert.False(t, ok)

	after := l.AvailableCPUs(GroupEither)
	assert.ElementsMatch(t, before, after)
}

func TestLedgerCPURollbackOnInsufficientCPUsFreesGPUsToo(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	// All 64 cores at 80% (busy), well above the 40% threshold.
	util := make(map[int]float64, 64)
	for i := 0; i < 64; i++ {
		util[i] = 80
	}
	cpu := &MockCPUProbe{Util: util}
	l := newTestLedger(gpu, cpu)

	_, ok := l.Reserve(4, 2, nil, nil)
	assert.False(t, ok)

	gpus := l.AvailableGPUs()
	assert.Len(t, gpus, 8) // all GPUs free again
}

func TestLedgerReleaseIsIdempotentAndFreesReservedResources(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	alloc, ok := l.Reserve(2, 1, nil, nil)
	require.True(t, ok)

	l.Release(alloc.CPUs, alloc.GPUs)
	assert.Len(t, l.AvailableGPUs(), 8)

	l.Release(alloc.CPUs, alloc.GPUs) // idempotent: releasing twice is a no-op
	assert.Len(t, l.AvailableGPUs(), 8)
}

func TestLedgerExcludedResourcesNeverAllocated(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)
	l.SetExcluded([]int{0, 1}, []int{0})

	alloc, ok := l.Reserve(2, 1, nil, nil)
	require.True(t, ok)
	assert.NotEqual(t, 0, alloc.GPUs[0])
	for _, c := range alloc.CPUs {
		assert.NotEqual(t, 0, c)
		assert.NotEqual(t, 1, c)
	}
}

func TestLedgerExplicitSpecificGPUsOverrideCounts(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	alloc, ok := l.Reserve(1, 0, nil, []int{5})
	require.True(t, ok)
	assert.Equal(t, []int{5}, alloc.GPUs)
	for _, c := range alloc.CPUs {
		assert.GreaterOrEqual(t, c, 32) // group 2 owns GPU 5
	}
}

func TestLedgerExplicitSpecificGPUBusyFailsWithoutSideEffects(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{5: 9000}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	_, ok := l.Reserve(0, 0, nil, []int{5})
	assert.False(t, ok)
	assert.False(t, l.reservedGPUs[5]) // busy GPU 5 was not left reserved
}

func TestLedgerMarkReservedAdoptsRecoveredResources(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	l.MarkReserved([]int{0, 1}, []int{0})
	assert.NotContains(t, l.AvailableGPUs(), 0)
	assert.NotContains(t, l.AvailableCPUs(GroupOne), 0)
}

func TestLedgerConcurrentReservesDoNotDoubleAllocateCores(t *testing.T) {
	gpu := gpuSnapshot(2000, map[int]uint64{}, 8)
	cpu := allIdleCPU(64)
	l := newTestLedger(gpu, cpu)

	results := make(chan Allocation, 4)
	for i := 0; i < 4; i++ {
		go func() {
			alloc, ok := l.Reserve(8, 1, nil, nil)
			require.True(t, ok)
			results <- alloc
		}()
	}

	seen := make(map[int]bool)
	for i := 0; i < 4; i++ {
		select {
		case alloc := <-results:
			for _, c := range alloc.CPUs {
				assert.False(t, seen[c], "cpu %d double-allocated", c)
				seen[c] = true
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for concurrent Reserve calls")
		}
	}
}
