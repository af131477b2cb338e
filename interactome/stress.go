// ===========================================================================
//
// File Name:  stress.go
//
// ===========================================================================

package interactome

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"
)

const (
	// classical scaling factorizes an n×n matrix, above this size a fixed seed starts SMACOF instead
	maxScalingNodes = 1500

	stressIterations = 300
	stressTolerance  = 1e-6
)

// StressLayout places nodes so Euclidean distances approximate hop distances
func StressLayout(ctx context.Context, g *Graph, workers int, log *zap.Logger) (Layout, error) {

	n := g.Order()
	if n < 2 {
		return make(Layout, n), nil
	}

	if !DenseLayoutFits(n) {
		log.Warn("stress layout working set exceeds half of physical memory", zap.Int("nodes", n))
	}

	hops, err := g.HopDistances(ctx, allNodes(n), workers)
	if err != nil {
		return nil, err
	}

	// disconnected pairs sit one hop beyond the graph diameter
	var diam int32
	for _, row := range hops {
		for _, d := range row {
			diam = max(diam, d)
		}
	}
	far := float64(diam + 1)

	dis := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := far
			if hops[i][j] != Unreachable {
				d = float64(hops[i][j])
			}
			dis.SetSym(i, j, d)
		}
	}
	hops = nil

	pos := initialStressPositions(dis, n, log)

	pos, err = smacof(ctx, dis, pos, workers)
	if err != nil {
		return nil, err
	}

	return pos, nil
}

// initialStressPositions uses classical scaling when affordable, else a fixed random start
func initialStressPositions(dis *mat.SymDense, n int, log *zap.Logger) Layout {

	if n <= maxScalingNodes {
		var coords mat.Dense
		k, _ := mds.TorgersonScaling(&coords, nil, dis)
		if k > 0 {
			pos := make(Layout, n)
			for i := 0; i < n; i++ {
				for ax := 0; ax < min(k, 3); ax++ {
					pos[i][ax] = coords.At(i, ax)
				}
			}
			if k < 3 {
				// flat embeddings get a small deterministic lift off the plane
				rng := rand.New(rand.NewSource(int64(n)))
				for i := range pos {
					for ax := k; ax < 3; ax++ {
						pos[i][ax] = 1e-3 * rng.Float64()
					}
				}
			}
			return pos
		}
		log.Debug("classical scaling found no positive eigenvalue")
	}

	return randomPositions(n, rand.New(rand.NewSource(int64(n))))
}

// smacof iterates the Guttman transform with unit weights until stress stops improving
func smacof(ctx context.Context, dis *mat.SymDense, pos Layout, workers int) (Layout, error) {

	n := len(pos)
	next := make(Layout, n)
	rowStress := make([]float64, n)
	prev := math.Inf(1)

	for it := 0; it < stressIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parallelRows(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				var acc [3]float64
				st := 0.0
				for j := 0; j < n; j++ {
					if i == j {
						continue
					}
					dx := pos[i][0] - pos[j][0]
					dy := pos[i][1] - pos[j][1]
					dz := pos[i][2] - pos[j][2]
					euc := math.Sqrt(dx*dx + dy*dy + dz*dz)
					target := dis.At(i, j)
					st += (euc - target) * (euc - target)
					ratio := 0.0
					if euc > 1e-12 {
						ratio = target / euc
					}
					acc[0] += ratio * dx
					acc[1] += ratio * dy
					acc[2] += ratio * dz
				}
				for ax := 0; ax < 3; ax++ {
					next[i][ax] = acc[ax] / float64(n)
				}
				rowStress[i] = st
			}
		})

		stress := 0.0
		for _, st := range rowStress {
			stress += st
		}
		stress /= 2

		pos, next = next, pos

		if prev-stress < stressTolerance*prev {
			break
		}
		prev = stress
	}

	return pos, nil
}
