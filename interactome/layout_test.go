package interactome

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func link(s, e, score int) LinkRecord {

	rec := LinkRecord{StartID: s, EndID: e}
	rec.Raw[Any] = score
	return rec
}

// ringGraph links 0..n-1 in a cycle and leaves extra nodes isolated
func ringGraph(n, isolated int) *Graph {

	var links []LinkRecord
	for i := 0; i < n; i++ {
		links = append(links, link(i, (i+1)%n, 900))
	}
	return BuildGraph(n+isolated, links, 0.4)
}

func testEngine(log *zap.Logger) *LayoutEngine {

	cfg := DefaultConfig()
	cfg.TSNE = TSNEParams{Perplexity: 5, Density: 4, LearningRate: 100, Steps: 60}
	cfg.UMAP = UMAPParams{Neighbors: 4, Spread: 1, MinDist: 0.1, Epochs: 40}
	cfg.Workers = 2
	return NewLayoutEngine(cfg, log)
}

func assertUnitCube(t *testing.T, pos Layout) {

	t.Helper()
	for i, p := range pos {
		for ax := 0; ax < 3; ax++ {
			require.False(t, math.IsNaN(p[ax]), "node %d axis %d is NaN", i, ax)
			assert.GreaterOrEqual(t, p[ax], 0.0)
			assert.LessOrEqual(t, p[ax], 1.0)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {

	for _, algo := range Algorithms() {
		got, err := ParseAlgorithm(algo.String())
		require.NoError(t, err)
		assert.Equal(t, algo, got)
	}

	got, err := ParseAlgorithm(" Stress ")
	require.NoError(t, err)
	assert.Equal(t, Stress, got)

	for _, key := range []string{"cg_fancy_tsne", "local_tsne", ""} {
		_, err := ParseAlgorithm(key)
		assert.ErrorIs(t, err, ErrUnknownAlgorithm, key)
	}

	assert.True(t, FunctionalUMAP.IsFunctional())
	assert.True(t, GlobalTSNE.IsProjection())
	assert.False(t, Spring.IsProjection())
	assert.Equal(t, ImportanceSource, ImportanceUMAP.Source())
	assert.Equal(t, TSNEProjection, LocalTSNE.Projection())
}

func TestNormalize(t *testing.T) {

	pos := Layout{{-2, 5, 3}, {2, 5, 4}, {0, 5, 3.5}}
	Normalize(pos)

	assert.Equal(t, Layout{{0, 0, 0}, {1, 0, 1}, {0.5, 0, 0.5}}, pos)

	empty := Layout{}
	Normalize(empty)
	assert.Empty(t, empty)
}

func TestBuildGraphThreshold(t *testing.T) {

	g := BuildGraph(5, []LinkRecord{
		link(0, 1, 900),
		link(1, 0, 950),
		link(1, 2, 400),
		link(2, 2, 999),
		link(3, 4, 401),
	}, 0.4)

	assert.Equal(t, 5, g.Order())
	assert.Equal(t, [][2]int{{0, 1}, {3, 4}}, g.EdgeList())
	assert.Equal(t, []int{0, 1, 3, 4}, g.Connected())
	assert.Equal(t, 1, g.Degree(0))
	assert.Equal(t, 0, g.Degree(2))
}

func TestHopDistances(t *testing.T) {

	g := BuildGraph(4, []LinkRecord{link(0, 1, 900), link(1, 2, 900)}, 0.4)

	hops, err := g.HopDistances(context.Background(), []int{0, 2, 3}, 3)
	require.NoError(t, err)

	assert.Equal(t, [][]int32{
		{0, 2, Unreachable},
		{2, 0, Unreachable},
		{Unreachable, Unreachable, 0},
	}, hops)
}

func TestGraphMeasures(t *testing.T) {

	// triangle 0-1-2 with a tail 2-3
	g := BuildGraph(4, []LinkRecord{link(0, 1, 900), link(1, 2, 900), link(0, 2, 900), link(2, 3, 900)}, 0.4)

	assert.InDelta(t, 1.0, g.ClusteringCoefficient(0), 1e-12)
	assert.InDelta(t, 1.0/3, g.ClusteringCoefficient(2), 1e-12)
	assert.Zero(t, g.ClusteringCoefficient(3))
	assert.InDelta(t, 2.5, g.MeanNeighborDegree(0), 1e-12)

	pr := g.PageRank()
	require.Len(t, pr, 4)
	sum := 0.0
	for _, r := range pr {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, pr[2], pr[0])
	assert.Greater(t, pr[0], pr[3])
}

func TestApplyEveryAlgorithm(t *testing.T) {

	g := ringGraph(16, 3)
	engine := testEngine(zap.NewNop())

	fm := &FeatureMatrix{Category: "KEGG", Terms: []string{"T1", "T2"}}
	for i := 0; i < g.Order(); i++ {
		fm.Rows = append(fm.Rows, []bool{i%2 == 0, i%3 == 0})
	}

	for _, algo := range Algorithms() {
		t.Run(algo.String(), func(t *testing.T) {
			var mat *FeatureMatrix
			if algo.IsFunctional() {
				mat = fm
			}
			pos, err := engine.Apply(context.Background(), g, algo, mat)
			require.NoError(t, err)
			require.Len(t, pos, g.Order())
			assertUnitCube(t, pos)

			again, err := engine.Apply(context.Background(), g, algo, mat)
			require.NoError(t, err)
			assert.Equal(t, pos, again, "same seed gives same layout")
		})
	}
}

func TestApplyFallsBackToSpring(t *testing.T) {

	g := ringGraph(10, 0)

	tests := []struct {
		name   string
		algo   Algorithm
		adjust func(e *LayoutEngine)
	}{
		{"umap without neighbors", LocalUMAP, func(e *LayoutEngine) { e.UMAP.Neighbors = 1 }},
		{"tsne without steps", ImportanceTSNE, func(e *LayoutEngine) { e.TSNE.Steps = 0 }},
		{"functional without matrix", FunctionalTSNE, func(e *LayoutEngine) {}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			engine := testEngine(zap.New(core))
			test.adjust(engine)

			pos, err := engine.Apply(context.Background(), g, test.algo, nil)
			require.NoError(t, err)

			spring, err := engine.Apply(context.Background(), g, Spring, nil)
			require.NoError(t, err)

			assert.Equal(t, spring, pos)
			assert.Equal(t, 1, logs.FilterMessage("projection failed, falling back to spring layout").Len())
		})
	}
}

func TestApplyCanceled(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testEngine(nil).Apply(ctx, ringGraph(8, 0), GlobalUMAP, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectionPlacesIsolatedNodesOutside(t *testing.T) {

	g := ringGraph(12, 4)
	engine := testEngine(nil)

	pos, err := engine.project(context.Background(), g, LocalUMAP, nil)
	require.NoError(t, err)

	var center [3]float64
	for i := 0; i < 12; i++ {
		for ax := 0; ax < 3; ax++ {
			center[ax] += pos[i][ax] / 12
		}
	}
	inner := 0.0
	for i := 0; i < 12; i++ {
		inner = math.Max(inner, math.Sqrt(sqDist3(pos[i], center)))
	}
	for i := 12; i < 16; i++ {
		assert.InDelta(t, 1.1*inner, math.Sqrt(sqDist3(pos[i], center)), 1e-6)
	}
}

func TestFibonacciSphere(t *testing.T) {

	for _, n := range []int{1, 2, 9, 50} {
		pts := FibonacciSphere(n)
		require.Len(t, pts, n)
		for _, p := range pts {
			assert.InDelta(t, 1.0, math.Sqrt(sqDist3(p, [3]float64{})), 1e-9)
		}
	}
}

func TestStressLayoutKeepsPathOrder(t *testing.T) {

	g := BuildGraph(5, []LinkRecord{link(0, 1, 900), link(1, 2, 900), link(2, 3, 900), link(3, 4, 900)}, 0.4)

	pos, err := StressLayout(context.Background(), g, 2, zap.NewNop())
	require.NoError(t, err)

	dist := func(i, j int) float64 { return math.Sqrt(sqDist3(pos[i], pos[j])) }
	assert.Greater(t, dist(0, 4), dist(0, 2))
	assert.Greater(t, dist(0, 2), dist(0, 1))
	assert.InDelta(t, 4.0, dist(0, 4), 0.5)
}

func TestDissimilarities(t *testing.T) {

	nb := neighborhoods{{0, 1}, {0, 1, 2}, {1, 2}}
	assert.Equal(t, 1.0, nb.Dist(0, 1))
	assert.Equal(t, math.Sqrt2, nb.Dist(0, 2))

	vs := VectorSet{{0, 0}, {3, 4}}
	assert.Equal(t, 5.0, vs.Dist(0, 1))

	hm := hopMatrix{hops: [][]int32{{0, Unreachable}, {Unreachable, 0}}, far: 7}
	assert.Equal(t, 7.0, hm.Dist(0, 1))
}

func TestStandardize(t *testing.T) {

	vs := VectorSet{{2, 1}, {2, 3}}
	standardize(vs)

	assert.Equal(t, VectorSet{{0, -1}, {0, 1}}, vs)

	g := ringGraph(6, 2)
	imp := importanceVectors(g, g.Connected())
	require.Len(t, imp, 6)
	for _, v := range imp {
		require.Len(t, v, 4)
		for _, x := range v {
			assert.False(t, math.IsNaN(x))
		}
	}
}
