// ===========================================================================
//
// File Name:  layout.go
//
// ===========================================================================

package interactome

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"go.uber.org/zap"
)

// Layout holds one 3D position per node id
type Layout [][3]float64

// Algorithm is the closed set of supported layout algorithms
type Algorithm int

const (
	Spring Algorithm = iota
	Stress
	RandomLayout
	LocalTSNE
	GlobalTSNE
	ImportanceTSNE
	FunctionalTSNE
	LocalUMAP
	GlobalUMAP
	ImportanceUMAP
	FunctionalUMAP
)

// FeatureSource selects the per-node vectors fed to a projection
type FeatureSource int

const (
	NoSource FeatureSource = iota
	LocalSource
	GlobalSource
	ImportanceSource
	FunctionalSource
)

// Projection selects the dimensionality reduction of a projection layout
type Projection int

const (
	NoProjection Projection = iota
	TSNEProjection
	UMAPProjection
)

type algorithmInfo struct {
	key    string
	source FeatureSource
	proj   Projection
}

var algorithmTable = []algorithmInfo{
	Spring:         {"spring", NoSource, NoProjection},
	Stress:         {"kamada_kawai", NoSource, NoProjection},
	RandomLayout:   {"random", NoSource, NoProjection},
	LocalTSNE:      {"cg_local_tsne", LocalSource, TSNEProjection},
	GlobalTSNE:     {"cg_global_tsne", GlobalSource, TSNEProjection},
	ImportanceTSNE: {"cg_importance_tsne", ImportanceSource, TSNEProjection},
	FunctionalTSNE: {"cg_functional_tsne", FunctionalSource, TSNEProjection},
	LocalUMAP:      {"cg_local_umap", LocalSource, UMAPProjection},
	GlobalUMAP:     {"cg_global_umap", GlobalSource, UMAPProjection},
	ImportanceUMAP: {"cg_importance_umap", ImportanceSource, UMAPProjection},
	FunctionalUMAP: {"cg_functional_umap", FunctionalSource, UMAPProjection},
}

// ParseAlgorithm maps a layout key to an Algorithm, rejecting anything unknown
func ParseAlgorithm(key string) (Algorithm, error) {

	key = strings.ToLower(strings.TrimSpace(key))
	if key == "stress" {
		return Stress, nil
	}
	for i, info := range algorithmTable {
		if info.key == key {
			return Algorithm(i), nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, key)
}

// Algorithms lists every supported algorithm
func Algorithms() []Algorithm {

	out := make([]Algorithm, len(algorithmTable))
	for i := range out {
		out[i] = Algorithm(i)
	}
	return out
}

func (a Algorithm) String() string {

	if a < 0 || int(a) >= len(algorithmTable) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmTable[a].key
}

// Source returns the feature source of a projection algorithm
func (a Algorithm) Source() FeatureSource {

	return algorithmTable[a].source
}

// Projection returns the reduction method of a projection algorithm
func (a Algorithm) Projection() Projection {

	return algorithmTable[a].proj
}

// IsProjection reports whether the algorithm embeds feature vectors
func (a Algorithm) IsProjection() bool {

	return algorithmTable[a].proj != NoProjection
}

// IsFunctional reports whether the algorithm needs a feature matrix
func (a Algorithm) IsFunctional() bool {

	return algorithmTable[a].source == FunctionalSource
}

// SpringParams controls the force-directed layout
type SpringParams struct {
	OptDist    float64 `yaml:"opt_dist" json:"opt_dist"`
	Iterations int     `yaml:"iterations" json:"iterations"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
}

// DefaultSpringParams matches the networkx defaults, OptDist 0 means 1/sqrt(n)
func DefaultSpringParams() SpringParams {

	return SpringParams{OptDist: 0, Iterations: 50, Threshold: 1e-4}
}

// TSNEParams controls the t-SNE projection, Density is the early exaggeration
type TSNEParams struct {
	Perplexity   float64 `yaml:"perplexity" json:"perplexity"`
	Density      float64 `yaml:"density" json:"density"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Steps        int     `yaml:"steps" json:"steps"`
}

func DefaultTSNEParams() TSNEParams {

	return TSNEParams{Perplexity: 50, Density: 12, LearningRate: 200, Steps: 250}
}

// UMAPParams controls the UMAP projection
type UMAPParams struct {
	Neighbors int     `yaml:"neighbors" json:"neighbors"`
	Spread    float64 `yaml:"spread" json:"spread"`
	MinDist   float64 `yaml:"min_dist" json:"min_dist"`
	Epochs    int     `yaml:"epochs" json:"epochs"`
}

func DefaultUMAPParams() UMAPParams {

	return UMAPParams{Neighbors: 10, Spread: 1.0, MinDist: 0.1, Epochs: 200}
}

// LayoutEngine computes normalized layouts of a thresholded graph
type LayoutEngine struct {
	Spring  SpringParams
	TSNE    TSNEParams
	UMAP    UMAPParams
	Seed    int64
	Workers int
	Log     *zap.Logger
}

// NewLayoutEngine copies the layout settings out of the configuration
func NewLayoutEngine(cfg Config, log *zap.Logger) *LayoutEngine {

	if log == nil {
		log = zap.NewNop()
	}
	return &LayoutEngine{
		Spring:  cfg.Spring,
		TSNE:    cfg.TSNE,
		UMAP:    cfg.UMAP,
		Seed:    cfg.Seed,
		Workers: NumWorkers(cfg),
		Log:     log,
	}
}

// Apply runs one algorithm and returns positions normalized into the unit cube
func (e *LayoutEngine) Apply(ctx context.Context, g *Graph, algo Algorithm, fm *FeatureMatrix) (Layout, error) {

	if algo < 0 || int(algo) >= len(algorithmTable) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(algo))
	}

	log := e.Log.With(zap.String("algorithm", algo.String()))
	if fm != nil {
		log = log.With(zap.String("category", fm.Category))
	}

	var (
		pos Layout
		err error
	)

	switch {
	case algo == Spring:
		pos = SpringLayout(g, e.Spring, e.Seed, e.Workers)
	case algo == Stress:
		pos, err = StressLayout(ctx, g, e.Workers, log)
	case algo == RandomLayout:
		pos = randomPositions(g.Order(), rand.New(rand.NewSource(e.Seed)))
	default:
		pos, err = e.safeProject(ctx, g, algo, fm)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("projection failed, falling back to spring layout", zap.Error(err))
			pos, err = SpringLayout(g, e.Spring, e.Seed, e.Workers), nil
		}
	}
	if err != nil {
		return nil, err
	}

	Normalize(pos)

	log.Debug("layout computed", zap.String("nodes", countOf(len(pos), "node")))

	return pos, nil
}

// safeProject converts panics and non-finite output of a projection into errors
func (e *LayoutEngine) safeProject(ctx context.Context, g *Graph, algo Algorithm, fm *FeatureMatrix) (pos Layout, err error) {

	defer func() {
		if r := recover(); r != nil {
			pos, err = nil, fmt.Errorf("%s panicked: %v", algo, r)
		}
	}()

	pos, err = e.project(ctx, g, algo, fm)
	if err != nil {
		return nil, err
	}
	if !finite(pos) {
		return nil, fmt.Errorf("%s produced non-finite coordinates", algo)
	}

	return pos, nil
}

// project embeds the selected nodes and puts every other node on a surrounding sphere
func (e *LayoutEngine) project(ctx context.Context, g *Graph, algo Algorithm, fm *FeatureMatrix) (Layout, error) {

	n := g.Order()
	rng := rand.New(rand.NewSource(e.Seed))

	var sel []int
	if algo.IsFunctional() {
		if fm == nil {
			return nil, ErrNoFeatures
		}
		if fm.NumNodes() != n {
			return nil, fmt.Errorf("%w: matrix has %d rows for %d nodes", ErrNoFeatures, fm.NumNodes(), n)
		}
		sel = fm.Featured()
	} else {
		sel = g.Connected()
	}

	pos := make(Layout, n)
	if len(sel) == 0 {
		placeOnSphere(pos, nil, allNodes(n))
		return pos, nil
	}

	vectors, err := featureVectors(ctx, g, algo.Source(), fm, sel, e.Workers)
	if err != nil {
		return nil, err
	}

	var coords [][3]float64
	switch algo.Projection() {
	case TSNEProjection:
		coords, err = TSNE(ctx, vectors, e.TSNE, rng)
	case UMAPProjection:
		coords, err = UMAP(ctx, vectors, e.UMAP, rng)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algo)
	}
	if err != nil {
		return nil, err
	}

	inside := make([]bool, n)
	for k, i := range sel {
		pos[i] = coords[k]
		inside[i] = true
	}

	var rest []int
	for i := 0; i < n; i++ {
		if !inside[i] {
			rest = append(rest, i)
		}
	}
	placeOnSphere(pos, coords, rest)

	return pos, nil
}

func allNodes(n int) []int {

	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func randomPositions(n int, rng *rand.Rand) Layout {

	pos := make(Layout, n)
	for i := range pos {
		pos[i] = [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}
	return pos
}

func finite(pos Layout) bool {

	for _, p := range pos {
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Normalize shifts each axis to start at 0 and scales it to end at 1, constant axes become 0
func Normalize(pos Layout) {

	if len(pos) == 0 {
		return
	}

	for ax := 0; ax < 3; ax++ {
		lo, hi := pos[0][ax], pos[0][ax]
		for _, p := range pos {
			lo = math.Min(lo, p[ax])
			hi = math.Max(hi, p[ax])
		}
		rng := hi - lo
		for i := range pos {
			if rng == 0 {
				pos[i][ax] = 0
				continue
			}
			v := (pos[i][ax] - lo) / rng
			// guard against rounding just outside the unit interval
			pos[i][ax] = math.Min(1, math.Max(0, v))
		}
	}
}
