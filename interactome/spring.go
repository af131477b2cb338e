// ===========================================================================
//
// File Name:  spring.go
//
// ===========================================================================

package interactome

import (
	"math"
	"math/rand"
)

// SpringLayout is a 3D Fruchterman-Reingold layout with linear cooling
func SpringLayout(g *Graph, params SpringParams, seed int64, workers int) Layout {

	n := g.Order()
	pos := randomPositions(n, rand.New(rand.NewSource(seed)))
	if n < 2 {
		return pos
	}

	iters := params.Iterations
	if iters < 1 {
		iters = 50
	}

	k := params.OptDist
	if k <= 0 {
		k = math.Sqrt(1 / float64(n))
	}

	// initial temperature is a tenth of the wider of the first two extents
	temp := 0.1 * math.Max(extent(pos, 0), extent(pos, 1))
	dt := temp / float64(iters+1)

	move := make([][3]float64, n)

	for it := 0; it < iters; it++ {

		// rows read the previous positions only, so partitioning cannot change the result
		parallelRows(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				var disp [3]float64
				nbrs := g.Neighbors(i)
				p := 0
				for j := 0; j < n; j++ {
					if i == j {
						continue
					}
					// neighbor lists are sorted, walk them alongside j
					for p < len(nbrs) && nbrs[p] < j {
						p++
					}
					var delta [3]float64
					dist := 0.0
					for ax := 0; ax < 3; ax++ {
						delta[ax] = pos[i][ax] - pos[j][ax]
						dist += delta[ax] * delta[ax]
					}
					dist = math.Max(math.Sqrt(dist), 0.01)
					force := k * k / (dist * dist)
					if p < len(nbrs) && nbrs[p] == j {
						force -= dist / k
					}
					for ax := 0; ax < 3; ax++ {
						disp[ax] += delta[ax] * force
					}
				}
				length := math.Sqrt(disp[0]*disp[0] + disp[1]*disp[1] + disp[2]*disp[2])
				if length < 0.01 {
					length = 0.1
				}
				for ax := 0; ax < 3; ax++ {
					move[i][ax] = disp[ax] * temp / length
				}
			}
		})

		total := 0.0
		for i := range pos {
			sq := 0.0
			for ax := 0; ax < 3; ax++ {
				pos[i][ax] += move[i][ax]
				sq += move[i][ax] * move[i][ax]
			}
			total += sq
		}
		temp -= dt

		if math.Sqrt(total)/float64(n) < params.Threshold {
			break
		}
	}

	return pos
}

func extent(pos Layout, ax int) float64 {

	if len(pos) == 0 {
		return 0
	}
	lo, hi := pos[0][ax], pos[0][ax]
	for _, p := range pos {
		lo = math.Min(lo, p[ax])
		hi = math.Max(hi, p[ax])
	}
	return hi - lo
}
