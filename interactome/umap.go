// ===========================================================================
//
// File Name:  umap.go
//
// ===========================================================================

package interactome

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
)

const (
	negativeSamples = 5
	gradientClip    = 4.0
)

type neighbor struct {
	idx  int
	dist float64
}

type fuzzyEdge struct {
	a, b   int
	weight float64
}

// UMAP embeds points into three dimensions through a fuzzy k-nearest-neighbor graph
func UMAP(ctx context.Context, data Dissimilarity, params UMAPParams, rng *rand.Rand) ([][3]float64, error) {

	n := data.Len()
	switch n {
	case 0:
		return nil, nil
	case 1:
		return make([][3]float64, 1), nil
	}

	k := params.Neighbors
	if k < 2 {
		return nil, errors.New("UMAP needs at least two neighbors")
	}
	k = min(k, n-1)

	spread := params.Spread
	if spread <= 0 {
		spread = 1
	}
	epochs := params.Epochs
	if epochs < 1 {
		epochs = 200
	}

	knn := nearestNeighbors(data, k, defaultWorkers())
	edges := fuzzyGraph(knn, k)
	if len(edges) == 0 {
		return nil, errors.New("UMAP neighbor graph has no edges")
	}

	a, b := fitCurve(spread, params.MinDist)

	y := make([][3]float64, n)
	for i := range y {
		for ax := 0; ax < 3; ax++ {
			y[i][ax] = 20*rng.Float64() - 10
		}
	}

	maxW := 0.0
	for _, e := range edges {
		maxW = math.Max(maxW, e.weight)
	}
	perSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	for i, e := range edges {
		perSample[i] = maxW / e.weight
		nextSample[i] = perSample[i]
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		alpha := 1 - float64(epoch-1)/float64(epochs)

		for ei, e := range edges {
			if nextSample[ei] > float64(epoch) {
				continue
			}
			nextSample[ei] += perSample[ei]

			// attraction along the edge
			d2 := sqDist3(y[e.a], y[e.b])
			coeff := 0.0
			if d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (1 + a*math.Pow(d2, b))
			}
			for ax := 0; ax < 3; ax++ {
				g := clip(coeff*(y[e.a][ax]-y[e.b][ax])) * alpha
				y[e.a][ax] += g
				y[e.b][ax] -= g
			}

			// repulsion from random points
			for s := 0; s < negativeSamples; s++ {
				o := rng.Intn(n)
				if o == e.a {
					continue
				}
				d2 := sqDist3(y[e.a], y[o])
				coeff := 0.0
				if d2 > 0 {
					coeff = 2 * b / ((0.001 + d2) * (1 + a*math.Pow(d2, b)))
				}
				for ax := 0; ax < 3; ax++ {
					g := gradientClip
					if coeff > 0 {
						g = clip(coeff * (y[e.a][ax] - y[o][ax]))
					}
					y[e.a][ax] += g * alpha
				}
			}
		}
	}

	return y, nil
}

func clip(v float64) float64 {

	return math.Max(-gradientClip, math.Min(gradientClip, v))
}

// nearestNeighbors finds the k closest points of every point, ties broken by index
func nearestNeighbors(data Dissimilarity, k, workers int) [][]neighbor {

	n := data.Len()
	knn := make([][]neighbor, n)

	parallelRows(n, workers, func(lo, hi int) {
		cand := make([]neighbor, 0, n-1)
		for i := lo; i < hi; i++ {
			cand = cand[:0]
			for j := 0; j < n; j++ {
				if i != j {
					cand = append(cand, neighbor{idx: j, dist: data.Dist(i, j)})
				}
			}
			sort.Slice(cand, func(p, q int) bool {
				if cand[p].dist != cand[q].dist {
					return cand[p].dist < cand[q].dist
				}
				return cand[p].idx < cand[q].idx
			})
			knn[i] = append([]neighbor(nil), cand[:k]...)
		}
	})

	return knn
}

// fuzzyGraph turns neighbor lists into symmetric membership strengths by fuzzy union
func fuzzyGraph(knn [][]neighbor, k int) []fuzzyEdge {

	target := math.Log2(float64(k))

	type key struct{ a, b int }
	weights := make(map[key]float64)

	for i, nbrs := range knn {
		rho := 0.0
		for _, nb := range nbrs {
			if nb.dist > 0 {
				rho = nb.dist
				break
			}
		}
		sigma := smoothSigma(nbrs, rho, target)

		for _, nb := range nbrs {
			w := math.Exp(-math.Max(0, nb.dist-rho) / sigma)
			a, b := i, nb.idx
			if a > b {
				a, b = b, a
			}
			prev := weights[key{a, b}]
			weights[key{a, b}] = prev + w - prev*w
		}
	}

	edges := make([]fuzzyEdge, 0, len(weights))
	for kk, w := range weights {
		if w > 0 {
			edges = append(edges, fuzzyEdge{a: kk.a, b: kk.b, weight: w})
		}
	}
	// map order is random, sort for reproducible epochs
	sort.Slice(edges, func(p, q int) bool {
		if edges[p].a != edges[q].a {
			return edges[p].a < edges[q].a
		}
		return edges[p].b < edges[q].b
	})

	return edges
}

// smoothSigma finds the bandwidth whose membership sum equals log2(k)
func smoothSigma(nbrs []neighbor, rho, target float64) float64 {

	lo, hi, sigma := 0.0, math.Inf(1), 1.0

	for step := 0; step < 64; step++ {
		sum := 0.0
		for _, nb := range nbrs {
			sum += math.Exp(-math.Max(0, nb.dist-rho) / sigma)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = sigma
			sigma = (lo + hi) / 2
		} else {
			lo = sigma
			if math.IsInf(hi, 1) {
				sigma *= 2
			} else {
				sigma = (lo + hi) / 2
			}
		}
	}

	return math.Max(sigma, 1e-3)
}

// fitCurve finds a, b so that 1/(1+a*d^2b) follows the spread and min_dist membership curve
func fitCurve(spread, minDist float64) (float64, float64) {

	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i+1) / samples
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	loss := func(a, b float64) float64 {
		sum := 0.0
		for i, x := range xs {
			d := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			sum += d * d
		}
		return sum
	}

	// coarse grid, then a finer grid around the best cell
	bestA, bestB, best := 1.0, 1.0, math.Inf(1)
	for bi := 1; bi <= 60; bi++ {
		b := 0.05 * float64(bi)
		for ai := -40; ai <= 40; ai++ {
			a := math.Pow(10, float64(ai)/20)
			if l := loss(a, b); l < best {
				bestA, bestB, best = a, b, l
			}
		}
	}
	centerA, centerB := bestA, bestB
	for bi := -25; bi <= 25; bi++ {
		b := centerB + 0.002*float64(bi)
		if b <= 0 {
			continue
		}
		for ai := -25; ai <= 25; ai++ {
			a := centerA * math.Pow(10, float64(ai)/500)
			if l := loss(a, b); l < best {
				bestA, bestB, best = a, b, l
			}
		}
	}

	return bestA, bestB
}
