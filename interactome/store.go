// ===========================================================================
//
// File Name:  store.go
//
// ===========================================================================

package interactome

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	nodesArtifact   = "nodes.json.gz"
	linksArtifact   = "links.json.gz"
	annotationsDir  = "functional_annotations"
	featureDir      = "fm"
	nodeLayoutDir   = "nodes"
	linkLayoutDir   = "links"
	clusterDir      = "clusters"
	clusterSuffix   = "_cluster.tsv"
	artifactSuffix  = ".json.gz"
	layoutExtension = ".csv"
)

// Store reads and writes the per-organism artifacts under Root
type Store struct {
	Root      string
	Overwrite bool
	Log       *zap.Logger
}

// NewStore roots a store at the configured output directory
func NewStore(cfg Config, log *zap.Logger) *Store {

	if log == nil {
		log = zap.NewNop()
	}
	return &Store{Root: cfg.OutputDir, Overwrite: cfg.Overwrite, Log: log}
}

// Dir returns the organism directory
func (s *Store) Dir(org Organism) string {

	return filepath.Join(s.Root, org.Directory)
}

func (s *Store) path(org Organism, parts ...string) string {

	return filepath.Join(append([]string{s.Dir(org)}, parts...)...)
}

// skip reports whether an existing file must be kept
func (s *Store) skip(fpath string) bool {

	if s.Overwrite || !fileExists(fpath) {
		return false
	}
	s.Log.Info("output exists, skipping", zap.String("path", fpath))
	return true
}

// writeJSONGz encodes v into a gzipped JSON file
func writeJSONGz(fpath string, v any) error {

	zpr, done, err := createGzFile(fpath)
	if err != nil {
		return err
	}

	werr := json.NewEncoder(zpr).Encode(v)
	if cerr := done(); werr == nil {
		werr = cerr
	}
	return werr
}

// readJSONGz decodes a gzipped JSON file, undecodable content is ErrCorruptArtifact
func readJSONGz(fpath string, v any) error {

	inp, err := OpenSource(fpath)
	if err != nil {
		if errors.Is(err, ErrMalformedTable) {
			return fmt.Errorf("%w: %s", ErrCorruptArtifact, fpath)
		}
		return err
	}
	defer inp.Close()

	if err := json.NewDecoder(inp).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, fpath, err)
	}
	return nil
}

// Exists reports whether an artifact file is present
func (s *Store) Exists(org Organism, parts ...string) bool {

	return fileExists(s.path(org, parts...))
}

// SaveNodes caches the node table
func (s *Store) SaveNodes(org Organism, nodes []NodeRecord) error {

	fpath := s.path(org, nodesArtifact)
	if s.skip(fpath) {
		return nil
	}
	return writeJSONGz(fpath, nodes)
}

// LoadNodes reads the cached node table and checks the dense id invariant
func (s *Store) LoadNodes(org Organism) ([]NodeRecord, error) {

	fpath := s.path(org, nodesArtifact)

	var nodes []NodeRecord
	if err := readJSONGz(fpath, &nodes); err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].ID != i {
			return nil, fmt.Errorf("%w: %s: node %d has id %d", ErrCorruptArtifact, fpath, i, nodes[i].ID)
		}
	}
	return nodes, nil
}

// SaveLinks caches the remapped link table
func (s *Store) SaveLinks(org Organism, lt *LinkTable) error {

	fpath := s.path(org, linksArtifact)
	if s.skip(fpath) {
		return nil
	}
	return writeJSONGz(fpath, lt)
}

// LoadLinks reads the cached link table
func (s *Store) LoadLinks(org Organism) (*LinkTable, error) {

	fpath := s.path(org, linksArtifact)

	var lt LinkTable
	if err := readJSONGz(fpath, &lt); err != nil {
		return nil, err
	}
	if len(lt.Header) == 0 {
		return nil, fmt.Errorf("%w: %s: link header missing", ErrCorruptArtifact, fpath)
	}
	return &lt, nil
}

// SaveCategories writes one artifact per category
func (s *Store) SaveCategories(org Organism, cats []Category) error {

	for _, cat := range cats {
		fpath := s.path(org, annotationsDir, Slug(cat.Name)+artifactSuffix)
		if s.skip(fpath) {
			continue
		}
		if err := writeJSONGz(fpath, cat); err != nil {
			return err
		}
	}
	return nil
}

// globArtifacts lists artifact files of one directory in name order
func globArtifacts(dir string) ([]string, error) {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, ent := range entries {
		if ent.Type().IsRegular() && strings.HasSuffix(ent.Name(), artifactSuffix) {
			out = append(out, filepath.Join(dir, ent.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadCategories reads every cached category, fs.ErrNotExist when none were saved
func (s *Store) LoadCategories(org Organism) ([]Category, error) {

	files, err := globArtifacts(s.path(org, annotationsDir))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no cached categories: %w", fs.ErrNotExist)
	}

	cats := make([]Category, 0, len(files))
	for _, fpath := range files {
		var cat Category
		if err := readJSONGz(fpath, &cat); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

// SaveFeatureMatrices writes one artifact per feature matrix
func (s *Store) SaveFeatureMatrices(org Organism, fms []*FeatureMatrix) error {

	for _, fm := range fms {
		fpath := s.path(org, annotationsDir, featureDir, Slug(fm.Category)+artifactSuffix)
		if s.skip(fpath) {
			continue
		}
		if err := writeJSONGz(fpath, fm); err != nil {
			return err
		}
	}
	return nil
}

// LoadFeatureMatrices reads every cached feature matrix
func (s *Store) LoadFeatureMatrices(org Organism) ([]*FeatureMatrix, error) {

	files, err := globArtifacts(s.path(org, annotationsDir, featureDir))
	if err != nil {
		return nil, err
	}

	fms := make([]*FeatureMatrix, 0, len(files))
	for _, fpath := range files {
		fm := &FeatureMatrix{}
		if err := readJSONGz(fpath, fm); err != nil {
			return nil, err
		}
		for _, row := range fm.Rows {
			if len(row) != len(fm.Terms) {
				return nil, fmt.Errorf("%w: %s: ragged feature matrix", ErrCorruptArtifact, fpath)
			}
		}
		fms = append(fms, fm)
	}
	return fms, nil
}

// createText creates a file and its parent directories
func createText(fpath string) (*os.File, error) {

	if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
		return nil, err
	}
	return os.Create(fpath)
}

func formatCoord(v float64) string {

	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteNodeLayout writes x,y,z,r,g,b,a,attr rows without header
func (s *Store) WriteNodeLayout(org Organism, name string, pos Layout, colors []RGBA, nodes []NodeRecord) (bool, error) {

	if len(pos) != len(nodes) || len(colors) != len(nodes) {
		return false, fmt.Errorf("layout %s: %d positions, %d colors, %d nodes", name, len(pos), len(colors), len(nodes))
	}

	fpath := s.path(org, nodeLayoutDir, name+layoutExtension)
	if s.skip(fpath) {
		return false, nil
	}

	fl, err := createText(fpath)
	if err != nil {
		return false, err
	}

	err = writeNodeRows(fl, pos, colors, nodes)
	if cerr := fl.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, err
	}

	s.Log.Info("node layout written", zap.String("layout", name), zap.String("path", fpath))
	return true, nil
}

func writeNodeRows(w io.Writer, pos Layout, colors []RGBA, nodes []NodeRecord) error {

	wrtr := bufio.NewWriter(w)
	cw := csv.NewWriter(wrtr)

	rec := make([]string, 8)
	for i := range nodes {
		for ax := 0; ax < 3; ax++ {
			rec[ax] = formatCoord(pos[i][ax])
		}
		for ch := 0; ch < 4; ch++ {
			rec[3+ch] = strconv.Itoa(colors[i][ch])
		}
		rec[7] = nodes[i].Attr()
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return wrtr.Flush()
}

// NodeLayoutFile is a node layout read back from disk
type NodeLayoutFile struct {
	Positions Layout
	Colors    []RGBA
	Attrs     []string
}

// ReadNodeLayout parses a node layout file, malformed rows are ErrCorruptArtifact
func (s *Store) ReadNodeLayout(org Organism, name string) (*NodeLayoutFile, error) {

	fpath := s.path(org, nodeLayoutDir, name+layoutExtension)

	fl, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer fl.Close()

	cr := csv.NewReader(bufio.NewReader(fl))
	cr.FieldsPerRecord = 8

	out := &NodeLayoutFile{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, fpath, err)
		}

		var p [3]float64
		for ax := 0; ax < 3; ax++ {
			if p[ax], err = strconv.ParseFloat(rec[ax], 64); err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptArtifact, fpath, line, err)
			}
		}
		var c RGBA
		for ch := 0; ch < 4; ch++ {
			if c[ch], err = strconv.Atoi(rec[3+ch]); err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptArtifact, fpath, line, err)
			}
		}

		out.Positions = append(out.Positions, p)
		out.Colors = append(out.Colors, c)
		out.Attrs = append(out.Attrs, rec[7])
	}

	return out, nil
}

// NodeLayouts lists the names of written node layouts
func (s *Store) NodeLayouts(org Organism) ([]string, error) {

	entries, err := os.ReadDir(s.path(org, nodeLayoutDir))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, ent := range entries {
		if name, ok := strings.CutSuffix(ent.Name(), layoutExtension); ok && ent.Type().IsRegular() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LinkLayoutRows returns start,end,r,g,b,a rows of one channel, zero alpha rows omitted
func LinkLayoutRows(lt *LinkTable, ev Evidence) [][6]int {

	base := ev.Color()

	var rows [][6]int
	for _, rec := range lt.Rows {
		alpha := int(float64(base[3]) * rec.Score(ev))
		if alpha <= 0 {
			continue
		}
		rows = append(rows, [6]int{rec.StartID, rec.EndID, base[0], base[1], base[2], alpha})
	}
	return rows
}

// WriteLinkLayouts writes one start,end,r,g,b,a file per channel present in the table
func (s *Store) WriteLinkLayouts(org Organism, lt *LinkTable) error {

	for _, ev := range lt.Present {
		fpath := s.path(org, linkLayoutDir, ev.String()+layoutExtension)
		if s.skip(fpath) {
			continue
		}

		fl, err := createText(fpath)
		if err != nil {
			return err
		}

		wrtr := bufio.NewWriter(fl)
		rows := LinkLayoutRows(lt, ev)
		for _, row := range rows {
			for k, v := range row {
				if k > 0 {
					wrtr.WriteByte(',')
				}
				wrtr.WriteString(strconv.Itoa(v))
			}
			wrtr.WriteByte('\n')
		}

		err = wrtr.Flush()
		if cerr := fl.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		s.Log.Debug("link layout written", zap.String("evidence", ev.String()), zap.String("links", countOf(len(rows), "link")))
	}

	return nil
}

// WriteClusterLabels writes the cluster, label, member table of one layout
func (s *Store) WriteClusterLabels(org Organism, layout string, rows []ClusterLabel) (bool, error) {

	fpath := s.path(org, clusterDir, layout+clusterSuffix)
	if s.skip(fpath) {
		return false, nil
	}

	fl, err := createText(fpath)
	if err != nil {
		return false, err
	}

	cw := csv.NewWriter(fl)
	cw.Comma = '\t'
	cw.Write([]string{"cluster", "label", "member"})
	for _, row := range rows {
		members := make([]string, len(row.Members))
		for i, m := range row.Members {
			members[i] = strconv.Itoa(m)
		}
		cw.Write([]string{strconv.Itoa(row.Cluster), row.Label, strings.Join(members, ",")})
	}
	cw.Flush()

	err = cw.Error()
	if cerr := fl.Close(); err == nil {
		err = cerr
	}
	return err == nil, err
}

// ReadClusterLabels parses a cluster label file
func (s *Store) ReadClusterLabels(org Organism, layout string) ([]ClusterLabel, error) {

	fpath := s.path(org, clusterDir, layout+clusterSuffix)

	fl, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer fl.Close()

	cr := csv.NewReader(fl)
	cr.Comma = '\t'
	cr.FieldsPerRecord = 3

	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, fpath, err)
	}
	if len(recs) == 0 || recs[0][0] != "cluster" {
		return nil, fmt.Errorf("%w: %s: missing header", ErrCorruptArtifact, fpath)
	}

	var out []ClusterLabel
	for _, rec := range recs[1:] {
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, fpath, err)
		}
		row := ClusterLabel{Cluster: id, Label: rec[1]}
		if rec[2] != "" {
			for _, m := range strings.Split(rec[2], ",") {
				v, err := strconv.Atoi(m)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, fpath, err)
				}
				row.Members = append(row.Members, v)
			}
		}
		out = append(out, row)
	}

	return out, nil
}
