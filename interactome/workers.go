// ===========================================================================
//
// File Name:  workers.go
//
// ===========================================================================

package interactome

import (
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
	"golang.org/x/sync/errgroup"
)

// NumWorkers returns the configured worker count, or one per physical core
func NumWorkers(cfg Config) int {

	if cfg.Workers > 0 {
		return cfg.Workers
	}

	// hyperthreads do not help the float-heavy layout loops
	ncpu := cpuid.CPU.PhysicalCores
	if ncpu < 1 {
		ncpu = runtime.NumCPU()
	}
	if ncpu < 1 {
		ncpu = 1
	}

	return ncpu
}

// defaultWorkers sizes loops that have no configuration at hand
func defaultWorkers() int {

	return NumWorkers(Config{})
}

// dense O(n²) layouts keep about this many float64 matrices alive at once
const denseMatrices = 3

// DenseLayoutFits reports whether an n×n working set fits in half of physical memory
func DenseLayoutFits(n int) bool {

	total := memory.TotalMemory()
	if total == 0 {
		// unknown platform, let the allocator decide
		return true
	}

	need := uint64(n) * uint64(n) * 8 * denseMatrices
	return need <= total/2
}

// partition splits [0,n) into at most parts contiguous ranges
func partition(n, parts int) [][2]int {

	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	if n == 0 {
		return nil
	}

	ranges := make([][2]int, 0, parts)
	size := n / parts
	rem := n % parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}

	return ranges
}

// parallelRows runs fn over contiguous index ranges and waits for all of them
func parallelRows(n, workers int, fn func(lo, hi int)) {

	var grp errgroup.Group
	for _, rng := range partition(n, workers) {
		rng := rng
		grp.Go(func() error {
			fn(rng[0], rng[1])
			return nil
		})
	}
	grp.Wait()
}
