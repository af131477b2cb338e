// ===========================================================================
//
// File Name:  embed.go
//
// ===========================================================================

package interactome

import (
	"context"
	"fmt"
	"math"
)

// Dissimilarity gives pairwise distances between the points of a projection input
type Dissimilarity interface {
	Len() int
	Dist(i, j int) float64
}

// VectorSet is a dense point cloud under the Euclidean metric
type VectorSet [][]float64

func (vs VectorSet) Len() int { return len(vs) }

func (vs VectorSet) Dist(i, j int) float64 {

	sum := 0.0
	for k, v := range vs[i] {
		d := v - vs[j][k]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// neighborhoods compares closed neighborhoods, the distance between two adjacency rows
type neighborhoods [][]int

func (nb neighborhoods) Len() int { return len(nb) }

func (nb neighborhoods) Dist(i, j int) float64 {

	a, b := nb[i], nb[j]
	p, q, diff := 0, 0, 0
	for p < len(a) && q < len(b) {
		switch {
		case a[p] == b[q]:
			p++
			q++
		case a[p] < b[q]:
			diff++
			p++
		default:
			diff++
			q++
		}
	}
	diff += len(a) - p + len(b) - q
	return math.Sqrt(float64(diff))
}

// hopMatrix uses shortest-path lengths directly, unreachable pairs at diameter plus one
type hopMatrix struct {
	hops [][]int32
	far  float64
}

func (hm hopMatrix) Len() int { return len(hm.hops) }

func (hm hopMatrix) Dist(i, j int) float64 {

	d := hm.hops[i][j]
	if d == Unreachable {
		return hm.far
	}
	return float64(d)
}

// featureVectors builds the projection input of the selected nodes
func featureVectors(ctx context.Context, g *Graph, src FeatureSource, fm *FeatureMatrix, sel []int, workers int) (Dissimilarity, error) {

	switch src {
	case LocalSource:
		return localNeighborhoods(g, sel), nil
	case GlobalSource:
		if !DenseLayoutFits(len(sel)) {
			return nil, fmt.Errorf("distance matrix of %d nodes does not fit in memory", len(sel))
		}
		hops, err := g.HopDistances(ctx, sel, workers)
		if err != nil {
			return nil, err
		}
		var diam int32
		for _, row := range hops {
			for _, d := range row {
				diam = max(diam, d)
			}
		}
		return hopMatrix{hops: hops, far: float64(diam + 1)}, nil
	case ImportanceSource:
		return importanceVectors(g, sel), nil
	case FunctionalSource:
		if fm == nil {
			return nil, ErrNoFeatures
		}
		return VectorSet(fm.Vectors(sel)), nil
	}

	return nil, fmt.Errorf("%w: feature source %d", ErrUnknownAlgorithm, int(src))
}

// localNeighborhoods returns each selected node with its neighbors, in selection coordinates
func localNeighborhoods(g *Graph, sel []int) neighborhoods {

	pos := make(map[int]int, len(sel))
	for k, i := range sel {
		pos[i] = k
	}

	nb := make(neighborhoods, len(sel))
	for k, i := range sel {
		row := []int{k}
		for _, j := range g.Neighbors(i) {
			if p, ok := pos[j]; ok {
				row = append(row, p)
			}
		}
		// selection order follows node ids, so row is already ascending apart from k
		insertionSort(row)
		nb[k] = row
	}
	return nb
}

func insertionSort(a []int) {

	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

// importanceVectors standardizes degree, PageRank, clustering coefficient, and mean neighbor degree
func importanceVectors(g *Graph, sel []int) VectorSet {

	ranks := g.PageRank()

	vs := make(VectorSet, len(sel))
	for k, i := range sel {
		vs[k] = []float64{
			float64(g.Degree(i)),
			ranks[i],
			g.ClusteringCoefficient(i),
			g.MeanNeighborDegree(i),
		}
	}

	standardize(vs)
	return vs
}

// standardize rescales every column to zero mean and unit variance, constant columns become 0
func standardize(vs VectorSet) {

	if len(vs) == 0 {
		return
	}

	for c := range vs[0] {
		mean := 0.0
		for _, v := range vs {
			mean += v[c]
		}
		mean /= float64(len(vs))

		vari := 0.0
		for _, v := range vs {
			vari += (v[c] - mean) * (v[c] - mean)
		}
		sd := math.Sqrt(vari / float64(len(vs)))

		for _, v := range vs {
			if sd == 0 {
				v[c] = 0
				continue
			}
			v[c] = (v[c] - mean) / sd
		}
	}
}
