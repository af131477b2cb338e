// ===========================================================================
//
// File Name:  graph.go
//
// ===========================================================================

package interactome

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Graph is the thresholded interaction graph over every node id
type Graph struct {
	*simple.UndirectedGraph

	// sorted neighbor lists, iteration order of the gonum maps is not stable
	adj [][]int
}

// BuildGraph adds every node and an edge for each link whose combined score exceeds threshold
func BuildGraph(n int, links []LinkRecord, threshold float64) *Graph {

	g := &Graph{
		UndirectedGraph: simple.NewUndirectedGraph(),
		adj:             make([][]int, n),
	}
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}

	for _, rec := range links {
		if rec.Score(Any) <= threshold {
			continue
		}
		s, e := rec.StartID, rec.EndID
		if s == e || s < 0 || e < 0 || s >= n || e >= n {
			continue
		}
		if g.HasEdgeBetween(int64(s), int64(e)) {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(s), simple.Node(e)))
		g.adj[s] = append(g.adj[s], e)
		g.adj[e] = append(g.adj[e], s)
	}

	for _, nbrs := range g.adj {
		sort.Ints(nbrs)
	}

	return g
}

// Order returns the number of nodes
func (g *Graph) Order() int {

	return len(g.adj)
}

// Degree returns the number of distinct neighbors of node i
func (g *Graph) Degree(i int) int {

	return len(g.adj[i])
}

// Neighbors returns the sorted neighbor ids of node i
func (g *Graph) Neighbors(i int) []int {

	return g.adj[i]
}

// Connected lists nodes with positive degree in id order
func (g *Graph) Connected() []int {

	var out []int
	for i, nbrs := range g.adj {
		if len(nbrs) > 0 {
			out = append(out, i)
		}
	}
	return out
}

// EdgeList returns each edge once with the smaller id first
func (g *Graph) EdgeList() [][2]int {

	var out [][2]int
	for i, nbrs := range g.adj {
		for _, j := range nbrs {
			if i < j {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

// Unreachable marks node pairs in different components
const Unreachable = -1

// HopDistances runs one breadth-first walk per source node, rows indexed like sel
func (g *Graph) HopDistances(ctx context.Context, sel []int, workers int) ([][]int32, error) {

	pos := make(map[int64]int, len(sel))
	for k, i := range sel {
		pos[int64(i)] = k
	}

	dist := make([][]int32, len(sel))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(workers, 1))

	for _, rng := range partition(len(sel), max(workers, 1)) {
		lo, hi := rng[0], rng[1]
		grp.Go(func() error {
			var bf traverse.BreadthFirst
			for k := lo; k < hi; k++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				row := make([]int32, len(sel))
				for j := range row {
					row[j] = Unreachable
				}
				bf.Walk(g, simple.Node(sel[k]), func(n graph.Node, d int) bool {
					if j, ok := pos[n.ID()]; ok {
						row[j] = int32(d)
					}
					return false
				})
				bf.Reset()
				dist[k] = row
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return dist, nil
}

// PageRank ranks nodes on the graph with every edge taken in both directions
func (g *Graph) PageRank() []float64 {

	dg := simple.NewDirectedGraph()
	for i := range g.adj {
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.EdgeList() {
		dg.SetEdge(dg.NewEdge(simple.Node(e[0]), simple.Node(e[1])))
		dg.SetEdge(dg.NewEdge(simple.Node(e[1]), simple.Node(e[0])))
	}

	ranks := network.PageRank(dg, 0.85, 1e-8)

	out := make([]float64, len(g.adj))
	for id, r := range ranks {
		// map summation order leaves noise in the last bits
		out[id] = math.Round(r*1e9) / 1e9
	}
	return out
}

// ClusteringCoefficient returns the local clustering coefficient of node i
func (g *Graph) ClusteringCoefficient(i int) float64 {

	nbrs := g.adj[i]
	k := len(nbrs)
	if k < 2 {
		return 0
	}

	tri := 0
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			if g.HasEdgeBetween(int64(nbrs[a]), int64(nbrs[b])) {
				tri++
			}
		}
	}

	return 2 * float64(tri) / float64(k*(k-1))
}

// MeanNeighborDegree returns the average degree of the neighbors of node i
func (g *Graph) MeanNeighborDegree(i int) float64 {

	nbrs := g.adj[i]
	if len(nbrs) == 0 {
		return 0
	}
	sum := 0
	for _, j := range nbrs {
		sum += len(g.adj[j])
	}
	return float64(sum) / float64(len(nbrs))
}
