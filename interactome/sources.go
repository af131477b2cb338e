// ===========================================================================
//
// File Name:  sources.go
//
// ===========================================================================

package interactome

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// alias sources consulted by the resolver, in priority order
const (
	EnsemblUniProtAC   = "Ensembl_UniProt_AC"
	BlastUniProtAC     = "BLAST_UniProt_AC"
	EnsemblUniProtGene = "Ensembl_UniProt_GN_Name"
	BlastUniProtGene   = "BLAST_UniProt_GN_Name"
)

// UniProtSources and GeneNameSources are searched in order, first hit wins
var (
	UniProtSources  = []string{EnsemblUniProtAC, BlastUniProtAC}
	GeneNameSources = []string{EnsemblUniProtGene, BlastUniProtGene}
)

// IsResolverSource reports whether an alias source is kept by the loader
func IsResolverSource(source string) bool {

	switch source {
	case EnsemblUniProtAC, BlastUniProtAC, EnsemblUniProtGene, BlastUniProtGene:
		return true
	}
	return false
}

// AliasEntry is one alias row after source filtering
type AliasEntry struct {
	Alias  string `json:"alias"`
	Source string `json:"source"`
}

// AliasTable maps qualified identifiers to their alias rows in file order
type AliasTable map[string][]AliasEntry

// Lookup returns every alias one source provides for an identifier
func (at AliasTable) Lookup(identifier, source string) []string {

	var out []string
	for _, ent := range at[identifier] {
		if ent.Source == source {
			out = append(out, ent.Alias)
		}
	}
	return out
}

// ProteinInfo holds the preferred name and free-text annotation of one protein
type ProteinInfo struct {
	PreferredName string `json:"preferred_name"`
	Annotation    string `json:"annotation"`
}

// DescriptionTable maps qualified identifiers to protein info rows
type DescriptionTable map[string]ProteinInfo

// EnrichmentTerm is one protein membership row of the enrichment terms file
type EnrichmentTerm struct {
	Identifier  string
	Category    string
	Term        string
	Description string
}

// RawTables bundles the four STRING source tables of one organism
type RawTables struct {
	Links        *LinkTable
	Aliases      AliasTable
	Descriptions DescriptionTable
	Terms        []EnrichmentTerm
}

// requireColumns returns the positions of named columns or ErrMalformedTable
func requireColumns(header []string, names ...string) ([]int, error) {

	idx := ColumnIndex(header)
	pos := make([]int, len(names))
	for i, name := range names {
		col, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column '%s' in header '%s'", ErrMalformedTable, name, strings.Join(header, " "))
		}
		pos[i] = col
	}
	return pos, nil
}

// cell returns a column value or an empty string for short rows
func cell(cols []string, pos int) string {

	if pos < len(cols) {
		return cols[pos]
	}
	return ""
}

// ReadAliases reads a tab-delimited aliases table, keeping only resolver sources
func ReadAliases(inp io.Reader) (AliasTable, error) {

	ts, err := StreamTable(inp, "\t")
	if err != nil {
		return nil, err
	}
	defer ts.Stop()

	pos, err := requireColumns(ts.Header, "string_protein_id", "alias", "source")
	if err != nil {
		return nil, err
	}

	at := make(AliasTable)
	for row := range ts.Rows {
		// STRING joins several sources with spaces in one cell
		for _, src := range strings.Fields(cell(row.Cols, pos[2])) {
			if !IsResolverSource(src) {
				continue
			}
			id := cell(row.Cols, pos[0])
			alias := strings.TrimSpace(cell(row.Cols, pos[1]))
			if id == "" || alias == "" {
				continue
			}
			at[id] = append(at[id], AliasEntry{Alias: alias, Source: src})
		}
	}

	return at, ts.Err()
}

// ReadDescriptions reads the tab-delimited protein info table
func ReadDescriptions(inp io.Reader) (DescriptionTable, error) {

	ts, err := StreamTable(inp, "\t")
	if err != nil {
		return nil, err
	}
	defer ts.Stop()

	pos, err := requireColumns(ts.Header, "string_protein_id", "preferred_name", "annotation")
	if err != nil {
		return nil, err
	}

	dt := make(DescriptionTable)
	for row := range ts.Rows {
		id := cell(row.Cols, pos[0])
		if id == "" {
			continue
		}
		if _, ok := dt[id]; ok {
			// first row wins
			continue
		}
		dt[id] = ProteinInfo{
			PreferredName: cell(row.Cols, pos[1]),
			Annotation:    cell(row.Cols, pos[2]),
		}
	}

	return dt, ts.Err()
}

// ReadEnrichmentTerms reads the tab-delimited enrichment terms table
func ReadEnrichmentTerms(inp io.Reader) ([]EnrichmentTerm, error) {

	ts, err := StreamTable(inp, "\t")
	if err != nil {
		return nil, err
	}
	defer ts.Stop()

	pos, err := requireColumns(ts.Header, "string_protein_id", "category", "term", "description")
	if err != nil {
		return nil, err
	}

	var terms []EnrichmentTerm
	for row := range ts.Rows {
		et := EnrichmentTerm{
			Identifier:  cell(row.Cols, pos[0]),
			Category:    cell(row.Cols, pos[1]),
			Term:        cell(row.Cols, pos[2]),
			Description: cell(row.Cols, pos[3]),
		}
		if et.Identifier == "" || et.Category == "" || et.Term == "" {
			continue
		}
		terms = append(terms, et)
	}

	return terms, ts.Err()
}

// readSource opens a STRING source file by kind and hands it to a parser
func readSource[T any](dir string, tax int, kind, version string, parse func(io.Reader) (T, error)) (T, error) {

	var zero T

	fpath, err := FindSource(dir, tax, kind, version)
	if err != nil {
		return zero, err
	}

	inp, err := OpenSource(fpath)
	if err != nil {
		return zero, err
	}
	defer inp.Close()

	res, err := parse(inp)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", filepath.Base(fpath), err)
	}

	return res, nil
}

// loadLinks reuses a filtered link artifact, or reads and caps the full table
func loadLinks(dir string, org Organism, cfg Config, log *zap.Logger) (*LinkTable, error) {

	filtered := FilteredLinksPath(dir, org.TaxID, cfg.MaxLinks, cfg.Version)

	if fileExists(filtered) && !cfg.OverwriteLinks {
		inp, err := OpenSource(filtered)
		if err != nil {
			return nil, err
		}
		defer inp.Close()

		lt, err := ReadLinks(inp, cfg.MaxLinks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(filtered), err)
		}
		lt.Filtered = true
		log.Info("reusing filtered links", zap.String("path", filtered), zap.Int("links", len(lt.Rows)))
		return lt, nil
	}

	lt, err := readSource(dir, org.TaxID, "links.detailed", cfg.Version, func(inp io.Reader) (*LinkTable, error) {
		return ReadLinks(inp, cfg.MaxLinks)
	})
	if err != nil {
		return nil, err
	}

	if lt.Filtered {
		log.Info("link cap applied",
			zap.Int("total", lt.Total), zap.Int("kept", len(lt.Rows)), zap.Int("cap", cfg.MaxLinks))
		if err := writeFilteredLinks(filtered, lt); err != nil {
			return nil, err
		}
	}

	return lt, nil
}

// LoadRawTables reads links, aliases, descriptions, and enrichment terms of one organism
func LoadRawTables(dir string, org Organism, cfg Config, log *zap.Logger) (*RawTables, error) {

	log = stageLogger(log, org, "load")

	raw := &RawTables{}

	var grp errgroup.Group

	grp.Go(func() error {
		lt, err := loadLinks(dir, org, cfg, log)
		raw.Links = lt
		return err
	})
	grp.Go(func() error {
		at, err := readSource(dir, org.TaxID, "aliases", cfg.Version, ReadAliases)
		raw.Aliases = at
		return err
	})
	grp.Go(func() error {
		dt, err := readSource(dir, org.TaxID, "info", cfg.Version, ReadDescriptions)
		raw.Descriptions = dt
		return err
	})
	grp.Go(func() error {
		terms, err := readSource(dir, org.TaxID, "enrichment.terms", cfg.Version, ReadEnrichmentTerms)
		raw.Terms = terms
		return err
	})

	if err := grp.Wait(); err != nil {
		log.Error("loading source tables failed", zap.Error(err))
		return nil, err
	}

	raw.Links.TruncateLinks(cfg.LastLink)

	log.Info("source tables loaded",
		zap.String("links", countOf(len(raw.Links.Rows), "link")),
		zap.String("aliases", countOf(len(raw.Aliases), "aliased protein")),
		zap.String("descriptions", countOf(len(raw.Descriptions), "description")),
		zap.String("terms", countOf(len(raw.Terms), "enrichment row")))

	return raw, nil
}
