// ===========================================================================
//
// File Name:  hdbscan.go
//
// ===========================================================================

package interactome

import (
	"math"
	"sort"
)

// Noise is the label of points outside every cluster
const Noise = -1

type mstEdge struct {
	a, b int
	dist float64
}

type linkageNode struct {
	left, right int
	dist        float64
	size        int
}

type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// HDBSCAN labels density clusters with leaf selection and an epsilon merge, Noise for the rest
func HDBSCAN(data Dissimilarity, params ClusterParams) []int {

	params = params.Normalize()

	n := data.Len()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n < 2 || n < params.MinClusterSize {
		return labels
	}

	core := coreDistances(data, min(params.MinSamples, n))
	mst := reachabilityTree(data, core)
	tree := singleLinkage(mst, n)
	condensed := condenseTree(tree, n, params.MinClusterSize)
	selected := selectLeaves(condensed, n, params)

	if len(selected) == 0 {
		return labels
	}

	// clusters are numbered in condensed tree order
	ids := make([]int, 0, len(selected))
	for c := range selected {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	number := make(map[int]int, len(ids))
	for k, c := range ids {
		number[c] = k
	}

	parentOf := make(map[int]int, len(condensed))
	for _, e := range condensed {
		parentOf[e.child] = e.parent
	}

	for i := 0; i < n; i++ {
		for c, ok := parentOf[i]; ok; c, ok = parentOf[c] {
			if k, hit := number[c]; hit {
				labels[i] = k
				break
			}
		}
	}

	return labels
}

// coreDistances returns the distance of every point to its k-th nearest point, itself included
func coreDistances(data Dissimilarity, k int) []float64 {

	n := data.Len()
	core := make([]float64, n)

	parallelRows(n, defaultWorkers(), func(lo, hi int) {
		row := make([]float64, n)
		for i := lo; i < hi; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					row[j] = 0
				} else {
					row[j] = data.Dist(i, j)
				}
			}
			sort.Float64s(row)
			core[i] = row[max(k-1, 0)]
		}
	})

	return core
}

// reachabilityTree builds the minimum spanning tree of mutual reachability distances with Prim
func reachabilityTree(data Dissimilarity, core []float64) []mstEdge {

	n := len(core)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	cur := 0
	inTree[cur] = true

	for len(edges) < n-1 {
		next, nextDist := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := math.Max(data.Dist(cur, j), math.Max(core[cur], core[j]))
			if d < best[j] {
				best[j] = d
				from[j] = cur
			}
			if best[j] < nextDist {
				next, nextDist = j, best[j]
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, dist: nextDist})
		cur = next
	}

	return edges
}

// singleLinkage merges MST edges in increasing distance, node 2n-2 is the root
func singleLinkage(mst []mstEdge, n int) []linkageNode {

	sort.SliceStable(mst, func(i, j int) bool { return mst[i].dist < mst[j].dist })

	total := 2*n - 1
	uf := make([]int, total)
	size := make([]int, total)
	for i := range uf {
		uf[i] = i
		if i < n {
			size[i] = 1
		}
	}
	find := func(x int) int {
		for uf[x] != x {
			uf[x] = uf[uf[x]]
			x = uf[x]
		}
		return x
	}

	tree := make([]linkageNode, total)
	next := n
	for _, e := range mst {
		ra, rb := find(e.a), find(e.b)
		tree[next] = linkageNode{left: ra, right: rb, dist: e.dist, size: size[ra] + size[rb]}
		size[next] = tree[next].size
		uf[ra], uf[rb] = next, next
		next++
	}
	for i := 0; i < n; i++ {
		tree[i] = linkageNode{left: -1, right: -1, size: 1}
	}

	return tree
}

func leavesUnder(tree []linkageNode, node, n int) []int {

	var out []int
	stack := []int{node}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur < n {
			out = append(out, cur)
			continue
		}
		stack = append(stack, tree[cur].right, tree[cur].left)
	}
	return out
}

// condenseTree keeps only splits where both sides hold at least minSize points
func condenseTree(tree []linkageNode, n, minSize int) []condensedEdge {

	root := 2*n - 2
	relabel := map[int]int{root: n}
	nextLabel := n + 1

	var out []condensedEdge
	queue := []int{root}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node < n {
			continue
		}

		left, right := tree[node].left, tree[node].right
		lambda := math.Inf(1)
		if tree[node].dist > 0 {
			lambda = 1 / tree[node].dist
		}
		parent := relabel[node]
		lsize, rsize := tree[left].size, tree[right].size

		switch {
		case lsize >= minSize && rsize >= minSize:
			for _, child := range []int{left, right} {
				relabel[child] = nextLabel
				out = append(out, condensedEdge{parent: parent, child: nextLabel, lambda: lambda, size: tree[child].size})
				nextLabel++
				queue = append(queue, child)
			}
		case lsize < minSize && rsize < minSize:
			for _, child := range []int{left, right} {
				for _, leaf := range leavesUnder(tree, child, n) {
					out = append(out, condensedEdge{parent: parent, child: leaf, lambda: lambda, size: 1})
				}
			}
		case lsize < minSize:
			relabel[right] = parent
			queue = append(queue, right)
			for _, leaf := range leavesUnder(tree, left, n) {
				out = append(out, condensedEdge{parent: parent, child: leaf, lambda: lambda, size: 1})
			}
		default:
			relabel[left] = parent
			queue = append(queue, left)
			for _, leaf := range leavesUnder(tree, right, n) {
				out = append(out, condensedEdge{parent: parent, child: leaf, lambda: lambda, size: 1})
			}
		}
	}

	return out
}

// selectLeaves picks leaf clusters, replacing leaves born below epsilon with their ancestor
func selectLeaves(condensed []condensedEdge, n int, params ClusterParams) map[int]bool {

	root := n
	children := make(map[int][]int)
	birth := make(map[int]float64)
	parentOf := make(map[int]int)
	size := make(map[int]int)

	for _, e := range condensed {
		if e.child < n {
			continue
		}
		children[e.parent] = append(children[e.parent], e.child)
		birth[e.child] = e.lambda
		parentOf[e.child] = e.parent
		size[e.child] = e.size
	}

	// leaves in ascending label order
	var leaves []int
	for _, e := range condensed {
		if e.child >= n && len(children[e.child]) == 0 {
			leaves = append(leaves, e.child)
		}
	}
	sort.Ints(leaves)

	selected := make(map[int]bool)
	if len(leaves) == 0 {
		// a lone root cluster is reported as noise
		return selected
	}

	// distance scale at which a cluster splits off its parent
	birthEps := func(c int) float64 {
		l := birth[c]
		switch {
		case math.IsInf(l, 1):
			return 0
		case l == 0:
			return math.Inf(1)
		}
		return 1 / l
	}

	covered := make(map[int]bool)
	for _, leaf := range leaves {
		if covered[leaf] {
			continue
		}
		if params.Epsilon <= 0 || birthEps(leaf) >= params.Epsilon {
			selected[leaf] = true
			continue
		}

		// climb while the parent is still born below epsilon and stays under the size cap
		cur := leaf
		for {
			par := parentOf[cur]
			if par == root {
				break
			}
			if params.MaxClusterSize > 0 && size[par] > params.MaxClusterSize {
				break
			}
			cur = par
			if birthEps(cur) > params.Epsilon {
				break
			}
		}
		selected[cur] = true

		stack := []int{cur}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			covered[c] = true
			stack = append(stack, children[c]...)
		}
	}

	// a cluster absorbed by an ancestor picked later is dropped
	for c := range selected {
		for p, ok := parentOf[c]; ok; p, ok = parentOf[p] {
			if selected[p] {
				delete(selected, c)
				break
			}
		}
	}

	return selected
}
