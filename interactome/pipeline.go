// ===========================================================================
//
// File Name:  pipeline.go
//
// ===========================================================================

package interactome

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Network is the constructed state of one organism, ready for layout
type Network struct {
	Organism   Organism
	Nodes      []NodeRecord
	Links      *LinkTable
	Categories []Category
	Features   []*FeatureMatrix
}

// LayoutRequest asks for one algorithm, functional requests expand to one layout per category
type LayoutRequest struct {
	Name      string
	Algorithm Algorithm
}

// ParseLayoutRequest accepts "algorithm" or "name=algorithm"
func ParseLayoutRequest(str string) (LayoutRequest, error) {

	name, key, found := strings.Cut(str, "=")
	if !found {
		key = name
		name = ""
	}

	algo, err := ParseAlgorithm(key)
	if err != nil {
		return LayoutRequest{}, err
	}
	if name == "" {
		name = algo.String()
	}

	return LayoutRequest{Name: strings.TrimSpace(name), Algorithm: algo}, nil
}

// Pipeline wires loader, resolver, extractor, layout, clustering, and store for any organism
type Pipeline struct {
	cfg      Config
	log      *zap.Logger
	store    *Store
	resolver *Resolver
	engine   *LayoutEngine
	namer    ClusterNamer
	runID    string
}

// NewPipeline validates the configuration, mapper and namer may be nil
func NewPipeline(cfg Config, log *zap.Logger, mapper IdentifierMapper, namer ClusterNamer) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	return &Pipeline{
		cfg:      cfg,
		log:      log,
		store:    NewStore(cfg, log),
		resolver: NewResolver(cfg, mapper, log),
		engine:   NewLayoutEngine(cfg, log),
		namer:    namer,
		runID:    runID,
	}, nil
}

// RunID identifies this pipeline in every log entry
func (p *Pipeline) RunID() string {

	return p.runID
}

// Store exposes the artifact store
func (p *Pipeline) Store() *Store {

	return p.store
}

// sourceDir prefers a per-organism subdirectory of the source tree
func (p *Pipeline) sourceDir(org Organism) string {

	dir := filepath.Join(p.cfg.SourceDir, org.Directory)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return p.cfg.SourceDir
}

// Construct builds or reloads nodes, links, annotations, and feature matrices of one organism
func (p *Pipeline) Construct(ctx context.Context, org Organism) (*Network, error) {

	log := stageLogger(p.log, org, "construct")

	net := &Network{Organism: org}

	cached := !p.cfg.Overwrite && p.store.Exists(org, nodesArtifact) && p.store.Exists(org, linksArtifact)

	var raw *RawTables
	if cached {
		nodes, err := p.store.LoadNodes(org)
		if err != nil {
			return nil, err
		}
		links, err := p.store.LoadLinks(org)
		if err != nil {
			return nil, err
		}
		links.TruncateLinks(p.cfg.LastLink)
		net.Nodes, net.Links = nodes, links
		log.Info("reusing cached network",
			zap.String("nodes", countOf(len(nodes), "node")),
			zap.String("links", countOf(len(links.Rows), "link")))
	} else {
		var err error
		raw, err = LoadRawTables(p.sourceDir(org), org, p.cfg, p.log)
		if err != nil {
			return nil, err
		}
		nodes, err := p.resolver.Resolve(ctx, raw.Links, raw.Aliases, raw.Descriptions, org)
		if err != nil {
			return nil, err
		}
		if err := RemapLinks(raw.Links, nodes); err != nil {
			return nil, err
		}
		net.Nodes, net.Links = nodes, raw.Links
	}

	cats, err := p.annotations(org, raw, log)
	if err != nil {
		return nil, err
	}
	net.Categories = cats

	AnnotateNodes(net.Nodes, cats, p.cfg.AnnotationThreshold, p.cfg.MaxNumAnnotations, log)

	net.Features = BuildFeatureMatrices(cats, net.Nodes, p.cfg.Categories, p.cfg.FunctionalThreshold, p.cfg.MaxNumFeatures, log)

	if err := p.store.SaveNodes(org, net.Nodes); err != nil {
		return nil, err
	}
	if err := p.store.SaveLinks(org, net.Links); err != nil {
		return nil, err
	}
	if err := p.store.SaveFeatureMatrices(org, net.Features); err != nil {
		return nil, err
	}
	if err := p.store.WriteLinkLayouts(org, net.Links); err != nil {
		return nil, err
	}

	log.Info("network constructed",
		zap.String("categories", countOf(len(cats), "category")),
		zap.String("features", countOf(len(net.Features), "feature matrix")))

	return net, nil
}

// annotations reuses cached categories unless a rebuild is requested
func (p *Pipeline) annotations(org Organism, raw *RawTables, log *zap.Logger) ([]Category, error) {

	if !p.cfg.RebuildAnnotations {
		cats, err := p.store.LoadCategories(org)
		if err == nil {
			log.Debug("reusing cached annotations", zap.String("categories", countOf(len(cats), "category")))
			return cats, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var terms []EnrichmentTerm
	if raw != nil {
		terms = raw.Terms
	} else {
		var err error
		terms, err = readSource(p.sourceDir(org), org.TaxID, "enrichment.terms", p.cfg.Version, ReadEnrichmentTerms)
		if err != nil {
			return nil, err
		}
	}

	cats := ExtractAnnotations(terms)

	// rebuilt annotations replace the cached ones
	st := *p.store
	st.Overwrite = st.Overwrite || p.cfg.RebuildAnnotations
	if err := st.SaveCategories(org, cats); err != nil {
		return nil, err
	}

	return cats, nil
}

type layoutJob struct {
	name string
	algo Algorithm
	fm   *FeatureMatrix
}

// expandRequests turns functional requests into one job per feature matrix
func expandRequests(reqs []LayoutRequest, fms []*FeatureMatrix) []layoutJob {

	var jobs []layoutJob
	for _, req := range reqs {
		if !req.Algorithm.IsFunctional() {
			jobs = append(jobs, layoutJob{name: req.Name, algo: req.Algorithm})
			continue
		}
		for _, fm := range fms {
			jobs = append(jobs, layoutJob{
				name: req.Name + "_" + Slug(fm.Category),
				algo: req.Algorithm,
				fm:   fm,
			})
		}
	}
	return jobs
}

// BuildLayouts computes, colors, and writes every requested layout
func (p *Pipeline) BuildLayouts(ctx context.Context, net *Network, reqs []LayoutRequest) error {

	org := net.Organism
	log := stageLogger(p.log, org, "layout")

	n := len(net.Nodes)
	g := BuildGraph(n, net.Links.Rows, p.cfg.LayoutThreshold)

	if !DenseLayoutFits(n) {
		log.Warn("pairwise layout loops may exceed physical memory", zap.Int("nodes", n))
	}

	jobs := expandRequests(reqs, net.Features)
	for _, req := range reqs {
		if req.Algorithm.IsFunctional() && len(net.Features) == 0 {
			log.Warn("functional layout requested without feature matrices",
				zap.String("layout", req.Name), zap.Error(ErrNoFeatures))
		}
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		jlog := log.With(zap.String("layout", job.name))

		if p.store.skip(p.store.path(org, nodeLayoutDir, job.name+layoutExtension)) {
			continue
		}

		engine := *p.engine
		engine.Log = jlog

		pos, err := engine.Apply(ctx, g, job.algo, job.fm)
		if err != nil {
			return fmt.Errorf("%s layout %s: %w", org, job.name, err)
		}

		sel := ClusterSelection(job.algo, job.fm, g)
		cl := ColorLayout(pos, sel, p.cfg.Cluster, jlog)

		if _, err := p.store.WriteNodeLayout(org, job.name, pos, cl.Colors, net.Nodes); err != nil {
			return err
		}

		if job.fm != nil {
			if err := p.writeClusters(ctx, org, job.name, job.fm.Category, cl, net.Nodes, p.store, jlog); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Pipeline) writeClusters(ctx context.Context, org Organism, layout, category string, cl *Clustering, nodes []NodeRecord, st *Store, log *zap.Logger) error {

	rows := LabelClusters(ctx, p.namer, org, category, cl, nodes, log)
	_, err := st.WriteClusterLabels(org, layout, rows)
	return err
}

// Recolor clusters existing functional layouts again and rewrites their colors and labels
func (p *Pipeline) Recolor(ctx context.Context, org Organism) error {

	log := stageLogger(p.log, org, "recolor")

	nodes, err := p.store.LoadNodes(org)
	if err != nil {
		return err
	}

	fms, err := p.store.LoadFeatureMatrices(org)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(fms) == 0 {
		cats, err := p.store.LoadCategories(org)
		if err != nil {
			return err
		}
		fms = BuildFeatureMatrices(cats, nodes, p.cfg.Categories, p.cfg.FunctionalThreshold, p.cfg.MaxNumFeatures, log)
	}

	names, err := p.store.NodeLayouts(org)
	if err != nil {
		return err
	}

	// recoloring always replaces the files it read
	st := *p.store
	st.Overwrite = true

	for _, name := range names {
		fm := matrixForLayout(name, fms)
		if fm == nil {
			log.Debug("layout has no feature matrix, skipping", zap.String("layout", name))
			continue
		}

		lf, err := p.store.ReadNodeLayout(org, name)
		if err != nil {
			return err
		}
		if len(lf.Positions) != len(nodes) || fm.NumNodes() != len(nodes) {
			return fmt.Errorf("%w: layout %s has %d rows for %d nodes", ErrCorruptArtifact, name, len(lf.Positions), len(nodes))
		}

		jlog := log.With(zap.String("layout", name))
		cl := ColorLayout(lf.Positions, fm.Featured(), p.cfg.Cluster, jlog)

		if _, err := st.WriteNodeLayout(org, name, lf.Positions, cl.Colors, nodes); err != nil {
			return err
		}
		if err := p.writeClusters(ctx, org, name, fm.Category, cl, nodes, &st, jlog); err != nil {
			return err
		}
	}

	return nil
}

// matrixForLayout finds the feature matrix whose category slug ends the layout name
func matrixForLayout(name string, fms []*FeatureMatrix) *FeatureMatrix {

	var best *FeatureMatrix
	for _, fm := range fms {
		slug := Slug(fm.Category)
		if strings.HasSuffix(name, "_"+slug) {
			// the longest slug wins when one category name extends another
			if best == nil || len(slug) > len(Slug(best.Category)) {
				best = fm
			}
		}
	}
	return best
}

// Run processes organisms concurrently, a failing organism does not stop the others
func (p *Pipeline) Run(ctx context.Context, orgs []Organism, reqs []LayoutRequest) error {

	errs := make([]error, len(orgs))

	var grp errgroup.Group
	grp.SetLimit(max(p.cfg.Processes, 1))

	for i, org := range orgs {
		i, org := i, org
		grp.Go(func() error {
			net, err := p.Construct(ctx, org)
			if err == nil && len(reqs) > 0 {
				err = p.BuildLayouts(ctx, net, reqs)
			}
			if err != nil {
				p.log.Error("organism failed", zap.String("organism", org.Name), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", org.Name, err)
			}
			return nil
		})
	}
	grp.Wait()

	return errors.Join(errs...)
}
