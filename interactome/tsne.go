// ===========================================================================
//
// File Name:  tsne.go
//
// ===========================================================================

package interactome

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	perplexityTolerance = 1e-5
	perplexitySteps     = 50
	minGain             = 0.01
)

// TSNE embeds points into three dimensions with exact t-distributed stochastic neighbor embedding
func TSNE(ctx context.Context, data Dissimilarity, params TSNEParams, rng *rand.Rand) ([][3]float64, error) {

	n := data.Len()
	switch n {
	case 0:
		return nil, nil
	case 1:
		return make([][3]float64, 1), nil
	}

	if !DenseLayoutFits(n) {
		return nil, fmt.Errorf("t-SNE affinities of %d points do not fit in memory", n)
	}

	steps := params.Steps
	if steps < 1 {
		return nil, errors.New("t-SNE needs at least one step")
	}
	lrate := params.LearningRate
	if lrate <= 0 {
		lrate = 200
	}
	exag := params.Density
	if exag <= 0 {
		exag = 1
	}

	workers := defaultWorkers()

	prob := affinities(data, params.Perplexity, workers)

	y := make([][3]float64, n)
	for i := range y {
		for ax := 0; ax < 3; ax++ {
			y[i][ax] = 1e-4 * rng.NormFloat64()
		}
	}

	update := make([][3]float64, n)
	gains := make([][3]float64, n)
	for i := range gains {
		gains[i] = [3]float64{1, 1, 1}
	}
	grad := make([][3]float64, n)
	rowZ := make([]float64, n)

	exagSteps := min(100, steps/4)

	for it := 0; it < steps; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ex := 1.0
		momentum := 0.8
		if it < exagSteps {
			ex = exag
			momentum = 0.5
		}

		// normalization of the Student-t kernel
		parallelRows(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				z := 0.0
				for j := 0; j < n; j++ {
					if i != j {
						z += 1 / (1 + sqDist3(y[i], y[j]))
					}
				}
				rowZ[i] = z
			}
		})
		sumZ := 0.0
		for _, z := range rowZ {
			sumZ += z
		}
		if sumZ == 0 {
			sumZ = math.SmallestNonzeroFloat64
		}

		parallelRows(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				var gr [3]float64
				for j := 0; j < n; j++ {
					if i == j {
						continue
					}
					num := 1 / (1 + sqDist3(y[i], y[j]))
					mult := (ex*prob[i][j] - num/sumZ) * num
					for ax := 0; ax < 3; ax++ {
						gr[ax] += 4 * mult * (y[i][ax] - y[j][ax])
					}
				}
				grad[i] = gr
			}
		})

		for i := range y {
			for ax := 0; ax < 3; ax++ {
				if (grad[i][ax] > 0) != (update[i][ax] > 0) {
					gains[i][ax] += 0.2
				} else {
					gains[i][ax] *= 0.8
				}
				gains[i][ax] = math.Max(gains[i][ax], minGain)
				update[i][ax] = momentum*update[i][ax] - lrate*gains[i][ax]*grad[i][ax]
				y[i][ax] += update[i][ax]
			}
		}
	}

	return y, nil
}

func sqDist3(a, b [3]float64) float64 {

	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

// affinities returns the symmetric joint probabilities matching the requested perplexity
func affinities(data Dissimilarity, perplexity float64, workers int) [][]float64 {

	n := data.Len()

	// perplexity cannot exceed what n-1 neighbors can support
	perp := math.Min(perplexity, float64(n-1)/3)
	if perp < 1 {
		perp = 1
	}
	target := math.Log(perp)

	cond := make([][]float64, n)
	parallelRows(n, workers, func(lo, hi int) {
		sq := make([]float64, n)
		for i := lo; i < hi; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					d := data.Dist(i, j)
					sq[j] = d * d
				}
			}
			cond[i] = conditionalRow(sq, i, target)
		}
	})

	// symmetrize in place, P_ij = (P_j|i + P_i|j) / 2n
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			p := math.Max((cond[i][j]+cond[j][i])/(2*float64(n)), 1e-12)
			cond[i][j], cond[j][i] = p, p
		}
		cond[i][i] = 0
	}

	return cond
}

// conditionalRow binary searches the kernel precision whose entropy matches target
func conditionalRow(sq []float64, self int, target float64) []float64 {

	n := len(sq)
	row := make([]float64, n)

	beta := 1.0
	lo, hi := math.Inf(-1), math.Inf(1)

	for step := 0; step < perplexitySteps; step++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if j == self {
				row[j] = 0
				continue
			}
			row[j] = math.Exp(-sq[j] * beta)
			sum += row[j]
		}
		if sum == 0 {
			sum = 1e-12
		}

		entropy := 0.0
		for j := 0; j < n; j++ {
			if j == self {
				continue
			}
			row[j] /= sum
			if row[j] > 1e-300 {
				entropy -= row[j] * math.Log(row[j])
			}
		}

		diff := entropy - target
		if math.Abs(diff) < perplexityTolerance {
			break
		}
		if diff > 0 {
			lo = beta
			if math.IsInf(hi, 1) {
				beta *= 2
			} else {
				beta = (beta + hi) / 2
			}
		} else {
			hi = beta
			if math.IsInf(lo, -1) {
				beta /= 2
			} else {
				beta = (beta + lo) / 2
			}
		}
	}

	return row
}
