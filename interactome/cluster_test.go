package interactome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestClusterParamsNormalize(t *testing.T) {

	tests := []struct {
		in      ClusterParams
		size    int
		samples int
		epsilon float64
		maxSize int
	}{
		{ClusterParams{MinClusterSize: 0, MinSamples: 0}, 50, 20, 0, 0},
		{ClusterParams{MinClusterSize: 1, MinSamples: 1}, 50, 20, 0, 0},
		{ClusterParams{MinClusterSize: 2, MinSamples: 2}, 2, 2, 0, 0},
		{ClusterParams{MinClusterSize: 30, MinSamples: 101}, 30, 20, 0, 0},
		{ClusterParams{MinClusterSize: 100, MinSamples: 100}, 100, 100, 0, 0},
		{ClusterParams{MinClusterSize: 101, MinSamples: -4, Epsilon: -1, MaxClusterSize: -3}, 50, 20, 0, 0},
		{ClusterParams{MinClusterSize: 10, MinSamples: 5, Epsilon: 0.5, MaxClusterSize: 40}, 10, 5, 0.5, 40},
	}

	for _, test := range tests {
		got := test.in.Normalize()
		assert.Equal(t, test.size, got.MinClusterSize, "%+v", test.in)
		assert.Equal(t, test.samples, got.MinSamples, "%+v", test.in)
		assert.Equal(t, test.epsilon, got.Epsilon, "%+v", test.in)
		assert.Equal(t, test.maxSize, got.MaxClusterSize, "%+v", test.in)
	}
}

// lattice returns side^3 points spaced step apart starting at origin
func lattice(side int, step float64, origin [3]float64) [][3]float64 {

	var pts [][3]float64
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				pts = append(pts, [3]float64{
					origin[0] + float64(x)*step,
					origin[1] + float64(y)*step,
					origin[2] + float64(z)*step,
				})
			}
		}
	}
	return pts
}

// twoBlobs places two 64 point lattices far apart
func twoBlobs() Layout {

	pos := Layout(lattice(4, 0.01, [3]float64{0, 0, 0}))
	return append(pos, lattice(4, 0.01, [3]float64{0.9, 0.9, 0.9})...)
}

var blobParams = ClusterParams{Epsilon: 0.007, MinClusterSize: 40, MinSamples: 5}

func TestHDBSCANSeparatesBlobs(t *testing.T) {

	pos := twoBlobs()

	points := make(VectorSet, len(pos))
	for i, p := range pos {
		points[i] = []float64{p[0], p[1], p[2]}
	}

	labels := HDBSCAN(points, blobParams)
	require.Len(t, labels, 128)

	first, second := labels[0], labels[64]
	assert.NotEqual(t, Noise, first)
	assert.NotEqual(t, Noise, second)
	assert.NotEqual(t, first, second)
	for i := 0; i < 64; i++ {
		assert.Equal(t, first, labels[i], "point %d", i)
		assert.Equal(t, second, labels[64+i], "point %d", 64+i)
	}
	assert.ElementsMatch(t, []int{0, 1}, []int{first, second})
}

func TestHDBSCANTooFewPoints(t *testing.T) {

	points := VectorSet{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}

	for _, lbl := range HDBSCAN(points, DefaultClusterParams()) {
		assert.Equal(t, Noise, lbl)
	}
}

func TestColorLayoutClusters(t *testing.T) {

	pos := twoBlobs()
	// one node outside the selection
	pos = append(pos, [3]float64{0.5, 0.5, 0.5})

	sel := allNodes(128)

	core, logs := observer.New(zap.InfoLevel)
	cl := ColorLayout(pos, sel, blobParams, zap.New(core))

	assert.Equal(t, 2, cl.Clusters)
	assert.Equal(t, sel, cl.Considered)
	require.Len(t, cl.Colors, 129)
	require.Len(t, cl.Labels, 129)

	assert.Equal(t, Noise, cl.Labels[128])
	assert.Equal(t, 63, cl.Colors[128][3])
	assert.Equal(t, 127, cl.Colors[0][3])
	assert.Equal(t, cl.Colors[0], cl.Colors[63])
	assert.NotEqual(t, cl.Colors[0], cl.Colors[64])

	for _, c := range cl.Colors {
		for ch := 0; ch < 3; ch++ {
			assert.GreaterOrEqual(t, c[ch], 25)
			assert.LessOrEqual(t, c[ch], 255)
		}
	}

	members := cl.Members()
	assert.Len(t, members[Noise], 1)
	assert.Equal(t, 1, logs.FilterMessage("layout clustered").Len())
}

func TestColorLayoutDegenerate(t *testing.T) {

	white := RGBA{255, 255, 255, 255}

	tests := []struct {
		name string
		pos  Layout
		sel  []int
	}{
		{"no selection", Layout{{0, 0, 0}, {1, 1, 1}}, nil},
		{"identical points", Layout{{0.3, 0.3, 0.3}, {0.3, 0.3, 0.3}, {1, 0, 0}}, []int{0, 1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cl := ColorLayout(test.pos, test.sel, DefaultClusterParams(), nil)
			require.Len(t, cl.Colors, len(test.pos))
			for i := range test.pos {
				assert.Equal(t, white, cl.Colors[i])
				assert.Equal(t, Noise, cl.Labels[i])
			}
			assert.Zero(t, cl.Clusters)
		})
	}
}

func TestClusterSelection(t *testing.T) {

	g := BuildGraph(4, []LinkRecord{link(0, 1, 900)}, 0.4)
	fm := &FeatureMatrix{Terms: []string{"T"}, Rows: [][]bool{{false}, {false}, {true}, {true}}}

	assert.Equal(t, []int{2, 3}, ClusterSelection(FunctionalUMAP, fm, g))
	assert.Equal(t, []int{0, 1}, ClusterSelection(LocalUMAP, nil, g))
	assert.Equal(t, []int{0, 1}, ClusterSelection(FunctionalTSNE, nil, g))
	assert.Nil(t, ClusterSelection(Spring, nil, nil))
}

func TestVisibleColors(t *testing.T) {

	out := VisibleColors([][4]float64{{0, 0, 0, 0.25}, {1, 1, 1, 0.5}, {0.5, 0.25, 1, 0.75}})
	require.Len(t, out, 3)

	want := [][4]float64{{1, 1, 1, 0.25}, {0.1, 0.1, 0.1, 0.5}, {0.55, 0.775, 0.1, 0.75}}
	for i := range want {
		for ch := 0; ch < 4; ch++ {
			assert.InDelta(t, want[i][ch], out[i][ch], 1e-12, "color %d channel %d", i, ch)
		}
	}

	same := VisibleColors([][4]float64{{0.2, 0.2, 0.2, 0.1}, {0.2, 0.2, 0.2, 0.9}})
	assert.Equal(t, [][4]float64{uniformWhite, uniformWhite}, same)

	assert.Empty(t, VisibleColors(nil))
}

func TestClusterColor(t *testing.T) {

	assert.Equal(t, noiseColor, ClusterColor(Noise))
	assert.Equal(t, ClusterColor(0), ClusterColor(len(brightPalette)))
	assert.InDelta(t, 2.0/255, ClusterColor(0)[0], 1e-12)
	assert.Equal(t, clusterAlpha, ClusterColor(3)[3])

	assert.Equal(t, []RGBA{{255, 127, 0, 63}}, ToRGBA([][4]float64{{1, 0.5, 0, 0.25}}))
}
