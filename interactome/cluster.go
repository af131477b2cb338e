// ===========================================================================
//
// File Name:  cluster.go
//
// ===========================================================================

package interactome

import (
	"go.uber.org/zap"
)

const (
	defaultMinClusterSize = 50
	defaultMinSamples     = 20
)

// ClusterParams controls density clustering, MaxClusterSize 0 means unbounded
type ClusterParams struct {
	Epsilon        float64 `yaml:"epsilon" json:"epsilon"`
	MinClusterSize int     `yaml:"min_cluster_size" json:"min_cluster_size"`
	MinSamples     int     `yaml:"min_samples" json:"min_samples"`
	MaxClusterSize int     `yaml:"max_cluster_size" json:"max_cluster_size"`
}

func DefaultClusterParams() ClusterParams {

	return ClusterParams{
		Epsilon:        0.007,
		MinClusterSize: defaultMinClusterSize,
		MinSamples:     defaultMinSamples,
	}
}

// Normalize resets sizes at or below 1 or above 100 to their defaults, values in between pass unchanged
func (p ClusterParams) Normalize() ClusterParams {

	if p.MinClusterSize <= 1 || p.MinClusterSize > 100 {
		p.MinClusterSize = defaultMinClusterSize
	}
	if p.MinSamples <= 1 || p.MinSamples > 100 {
		p.MinSamples = defaultMinSamples
	}
	if p.Epsilon < 0 {
		p.Epsilon = 0
	}
	if p.MaxClusterSize < 0 {
		p.MaxClusterSize = 0
	}
	return p
}

// Clustering holds the label and color of every node of one layout
type Clustering struct {
	Labels     []int  `json:"labels"`
	Colors     []RGBA `json:"colors"`
	Considered []int  `json:"considered"`
	Clusters   int    `json:"clusters"`
}

// Members groups node ids by cluster label, Noise included
func (c *Clustering) Members() map[int][]int {

	out := make(map[int][]int)
	for i, lbl := range c.Labels {
		out[lbl] = append(out[lbl], i)
	}
	return out
}

// ClusterSelection picks featured nodes for functional layouts and linked nodes for the rest
func ClusterSelection(algo Algorithm, fm *FeatureMatrix, g *Graph) []int {

	if algo.IsFunctional() && fm != nil {
		return fm.Featured()
	}
	if g == nil {
		return nil
	}
	return g.Connected()
}

func identicalPoints(pos Layout, sel []int) bool {

	for _, i := range sel[1:] {
		if pos[i] != pos[sel[0]] {
			return false
		}
	}
	return true
}

// ColorLayout clusters the selected nodes of a layout and derives one color per node
func ColorLayout(pos Layout, sel []int, params ClusterParams, log *zap.Logger) *Clustering {

	if log == nil {
		log = zap.NewNop()
	}

	n := len(pos)
	params = params.Normalize()

	res := &Clustering{
		Labels: make([]int, n),
	}
	for i := range res.Labels {
		res.Labels[i] = Noise
	}

	res.Considered = sel

	if len(sel) == 0 || identicalPoints(pos, sel) {
		log.Info("degenerate clustering input, using uniform colors",
			zap.String("considered", countOf(len(sel), "node")))
		raw := make([][4]float64, n)
		for i := range raw {
			raw[i] = uniformWhite
		}
		res.Colors = ToRGBA(raw)
		return res
	}

	points := make(VectorSet, len(sel))
	for k, i := range sel {
		points[k] = []float64{pos[i][0], pos[i][1], pos[i][2]}
	}

	labels := HDBSCAN(points, params)

	raw := make([][4]float64, n)
	for i := range raw {
		raw[i] = excludedColor
	}
	for k, i := range sel {
		res.Labels[i] = labels[k]
		raw[i] = ClusterColor(labels[k])
		if labels[k] >= res.Clusters {
			res.Clusters = labels[k] + 1
		}
	}

	res.Colors = ToRGBA(VisibleColors(raw))

	log.Info("layout clustered",
		zap.String("considered", countOf(len(sel), "node")),
		zap.String("clusters", countOf(res.Clusters, "cluster")),
		zap.Int("min_cluster_size", params.MinClusterSize),
		zap.Int("min_samples", params.MinSamples),
		zap.Float64("epsilon", params.Epsilon))

	return res
}
