// ===========================================================================
//
// File Name:  nodes.go
//
// ===========================================================================

package interactome

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ResolvedFields records which optional node attributes were found during ingestion
type ResolvedFields uint8

const (
	HasUniProt ResolvedFields = 1 << iota
	HasGeneName
	HasDescription
	HasSpecies
)

// Has reports whether every bit of f is set
func (r ResolvedFields) Has(f ResolvedFields) bool {

	return r&f == f
}

// String lists the set bits, used in debug logs
func (r ResolvedFields) String() string {

	var parts []string
	for _, it := range []struct {
		bit  ResolvedFields
		name string
	}{
		{HasUniProt, "uniprot"},
		{HasGeneName, "gene"},
		{HasDescription, "description"},
		{HasSpecies, "species"},
	} {
		if r.Has(it.bit) {
			parts = append(parts, it.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// annotationMissing is the STRING placeholder for proteins without a description
const annotationMissing = "annotation not available"

// NodeRecord is one protein of the interactome, ID is its dense index
type NodeRecord struct {
	ID          int             `json:"id"`
	Identifier  string          `json:"identifier"`
	Name        string          `json:"name"`
	UniProt     []string        `json:"uniprot,omitempty"`
	GeneNames   []string        `json:"gene_names,omitempty"`
	Description string          `json:"description,omitempty"`
	Species     string          `json:"species,omitempty"`
	Flags       map[string]bool `json:"flags,omitempty"`
	Resolved    ResolvedFields  `json:"resolved"`
}

// PrimaryUniProt returns the first accession in source file order
func (n *NodeRecord) PrimaryUniProt() string {

	if len(n.UniProt) == 0 {
		return ""
	}
	return n.UniProt[0]
}

// PrimaryGeneName returns the first gene symbol in source file order
func (n *NodeRecord) PrimaryGeneName() string {

	if len(n.GeneNames) == 0 {
		return ""
	}
	return n.GeneNames[0]
}

// Attr builds the name;uniprot;description;identifier field of node layout files
func (n *NodeRecord) Attr() string {

	return strings.Join([]string{
		n.Name,
		strings.Join(n.UniProt, ","),
		n.Description,
		n.Identifier,
	}, ";")
}

// DisplayName strips the taxonomy prefix from a qualified STRING identifier
func DisplayName(identifier string, tax int) string {

	if name, ok := strings.CutPrefix(identifier, strconv.Itoa(tax)+"."); ok {
		return name
	}
	if _, name, ok := strings.Cut(identifier, "."); ok {
		return name
	}
	return identifier
}

// cleanDescription drops the placeholder and semicolons that would split the attr field
func cleanDescription(annotation string) string {

	annotation = strings.TrimSpace(annotation)
	if annotation == "" || strings.EqualFold(annotation, annotationMissing) {
		return ""
	}
	return strings.ReplaceAll(annotation, ";", " ")
}

// CollectNodes assigns dense ids to link endpoints, starts in row order first, then ends
func CollectNodes(lt *LinkTable, org Organism) []NodeRecord {

	seen := make(map[string]bool, len(lt.Rows))
	var nodes []NodeRecord

	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		nodes = append(nodes, NodeRecord{
			ID:         len(nodes),
			Identifier: id,
			Name:       DisplayName(id, org.TaxID),
		})
	}

	for _, rec := range lt.Rows {
		add(rec.Start)
	}
	for _, rec := range lt.Rows {
		add(rec.End)
	}

	return nodes
}

// Resolver fills identity fields of nodes from aliases, descriptions, and a remote mapper
type Resolver struct {
	Mapper    IdentifierMapper
	BatchSize int
	Workers   int
	Log       *zap.Logger
}

// NewResolver configures a resolver, mapper may be nil to skip remote mapping
func NewResolver(cfg Config, mapper IdentifierMapper, log *zap.Logger) *Resolver {

	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Mapper:    mapper,
		BatchSize: cfg.MappingBatchSize,
		Workers:   NumWorkers(cfg),
		Log:       log,
	}
}

// Resolve produces one node per unique link endpoint with identity attributes filled in
func (r *Resolver) Resolve(ctx context.Context, lt *LinkTable, aliases AliasTable, descs DescriptionTable, org Organism) ([]NodeRecord, error) {

	nodes := CollectNodes(lt, org)

	if err := r.Enrich(ctx, nodes, aliases, descs, org); err != nil {
		return nil, err
	}

	return nodes, nil
}

// Enrich fills only fields not yet resolved, so repeating it with the same tables changes nothing
func (r *Resolver) Enrich(ctx context.Context, nodes []NodeRecord, aliases AliasTable, descs DescriptionTable, org Organism) error {

	log := stageLogger(r.Log, org, "resolve")

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	// each worker owns a contiguous index range, so output matches a sequential pass
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for _, rng := range partition(len(nodes), workers) {
		lo, hi := rng[0], rng[1]
		grp.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				resolveAliases(&nodes[i], aliases)
				resolveDescription(&nodes[i], descs, org)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	r.mapGeneNames(ctx, nodes, org, log)

	// gene symbols override the database identifier as display name
	for i := range nodes {
		if gene := nodes[i].PrimaryGeneName(); gene != "" {
			nodes[i].Name = gene
		}
	}

	var nUniProt, nGene int
	for i := range nodes {
		if nodes[i].Resolved.Has(HasUniProt) {
			nUniProt++
		}
		if nodes[i].Resolved.Has(HasGeneName) {
			nGene++
		}
	}
	log.Info("nodes resolved",
		zap.String("nodes", countOf(len(nodes), "node")),
		zap.Int("uniprot", nUniProt),
		zap.Int("gene_name", nGene))

	return nil
}

// resolveAliases consults sources in priority order, first source with values wins
func resolveAliases(node *NodeRecord, aliases AliasTable) {

	if !node.Resolved.Has(HasUniProt) {
		for _, src := range UniProtSources {
			if vals := aliases.Lookup(node.Identifier, src); len(vals) > 0 {
				node.UniProt = vals
				node.Resolved |= HasUniProt
				break
			}
		}
	}

	if !node.Resolved.Has(HasGeneName) {
		for _, src := range GeneNameSources {
			if vals := aliases.Lookup(node.Identifier, src); len(vals) > 0 {
				node.GeneNames = vals
				node.Resolved |= HasGeneName
				break
			}
		}
	}
}

func resolveDescription(node *NodeRecord, descs DescriptionTable, org Organism) {

	if !node.Resolved.Has(HasDescription) {
		if info, ok := descs[node.Identifier]; ok {
			if desc := cleanDescription(info.Annotation); desc != "" {
				node.Description = desc
				node.Resolved |= HasDescription
			}
		}
	}

	if !node.Resolved.Has(HasSpecies) && org.Scientific != "" {
		node.Species = org.Scientific
		node.Resolved |= HasSpecies
	}
}

// mapGeneNames sends gene-only nodes to the remote mapper one batch at a time
func (r *Resolver) mapGeneNames(ctx context.Context, nodes []NodeRecord, org Organism, log *zap.Logger) {

	if r.Mapper == nil {
		return
	}

	var pending []int
	for i := range nodes {
		if nodes[i].Resolved.Has(HasGeneName) && !nodes[i].Resolved.Has(HasUniProt) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	size := r.BatchSize
	if size < 1 {
		size = 500
	}

	mapped := 0
	for start := 0; start < len(pending); start += size {
		batch := pending[start:min(start+size, len(pending))]

		genes := make([]string, 0, len(batch))
		for _, idx := range batch {
			genes = append(genes, nodes[idx].PrimaryGeneName())
		}

		res, err := r.Mapper.MapGeneNames(ctx, org.TaxID, genes)
		if err != nil {
			// unresolved nodes keep empty UniProt fields
			log.Warn("identifier mapping failed",
				zap.Int("batch", start/size),
				zap.String("genes", countOf(len(genes), "gene name")),
				zap.Error(err))
			continue
		}

		for _, idx := range batch {
			acc, ok := res[nodes[idx].PrimaryGeneName()]
			if !ok || acc == "" {
				continue
			}
			nodes[idx].UniProt = []string{acc}
			nodes[idx].Resolved |= HasUniProt
			mapped++
		}
	}

	log.Info("identifier mapping finished",
		zap.Int("requested", len(pending)), zap.Int("mapped", mapped))
}
