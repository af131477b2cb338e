package interactome

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testStore(t *testing.T) *Store {

	return &Store{Root: t.TempDir(), Log: zap.NewNop()}
}

func TestStoreNodesRoundTrip(t *testing.T) {

	st := testStore(t)

	nodes := []NodeRecord{
		{ID: 0, Identifier: "9606.A", Name: "TP53", UniProt: []string{"P04637"}, GeneNames: []string{"TP53"},
			Description: "Cellular tumor antigen p53", Species: "Homo sapiens",
			Flags: map[string]bool{"hsa04115": true}, Resolved: HasUniProt | HasGeneName | HasDescription | HasSpecies},
		{ID: 1, Identifier: "9606.B", Name: "B"},
	}

	require.NoError(t, st.SaveNodes(human, nodes))
	assert.True(t, st.Exists(human, nodesArtifact))

	got, err := st.LoadNodes(human)
	require.NoError(t, err)
	assert.Equal(t, nodes, got)
}

func TestStoreNodesDenseIDs(t *testing.T) {

	st := testStore(t)

	require.NoError(t, st.SaveNodes(human, []NodeRecord{{ID: 0}, {ID: 2}}))

	_, err := st.LoadNodes(human)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestStoreCorruptArtifact(t *testing.T) {

	st := testStore(t)

	fpath := st.path(human, nodesArtifact)
	require.NoError(t, os.MkdirAll(filepath.Dir(fpath), 0o755))

	// plain text where a gzip stream is expected
	require.NoError(t, os.WriteFile(fpath, []byte("not a gzip stream"), 0o644))
	_, err := st.LoadNodes(human)
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	zpr, done, err := createGzFile(fpath)
	require.NoError(t, err)
	_, err = zpr.Write([]byte(`[{"id":0,`))
	require.NoError(t, err)
	require.NoError(t, done())

	_, err = st.LoadNodes(human)
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	_, err = st.LoadLinks(human)
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestStoreLinksRoundTrip(t *testing.T) {

	st := testStore(t)

	lt, err := ReadLinks(strings.NewReader(linkTable(
		linkLine("9606.A", "9606.B", 900, 950),
		linkLine("9606.B", "9606.C", 0, 300),
	)), 10)
	require.NoError(t, err)
	require.NoError(t, RemapLinks(lt, CollectNodes(lt, human)))

	require.NoError(t, st.SaveLinks(human, lt))

	got, err := st.LoadLinks(human)
	require.NoError(t, err)

	assert.Equal(t, lt.Header, got.Header)
	assert.Equal(t, lt.Present, got.Present)
	require.Len(t, got.Rows, 2)
	for i := range got.Rows {
		assert.Equal(t, lt.Rows[i].Raw, got.Rows[i].Raw)
		assert.Equal(t, lt.Rows[i].StartID, got.Rows[i].StartID)
		assert.Equal(t, lt.Rows[i].EndID, got.Rows[i].EndID)
	}
}

func TestStoreCategoriesAndFeatures(t *testing.T) {

	st := testStore(t)

	_, err := st.LoadCategories(human)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	cats := []Category{
		{Name: "Reactome Pathways", Terms: []Term{{ID: "R1", Members: []string{"a", "b"}, MemberCount: 2}}},
		{Name: "KEGG", Terms: []Term{{ID: "K1", Description: "k", Members: []string{"a", "c"}, MemberCount: 2}}},
	}
	require.NoError(t, st.SaveCategories(human, cats))

	got, err := st.LoadCategories(human)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, cats[1], got[0])
	assert.Equal(t, cats[0], got[1])

	fms := []*FeatureMatrix{{
		Category:     "KEGG",
		Terms:        []string{"K1"},
		Descriptions: []string{"k"},
		Counts:       []int{2},
		Rows:         [][]bool{{true}, {false}, {true}},
	}}
	require.NoError(t, st.SaveFeatureMatrices(human, fms))

	loaded, err := st.LoadFeatureMatrices(human)
	require.NoError(t, err)
	assert.Equal(t, fms, loaded)

	assert.FileExists(t, filepath.Join(st.Dir(human), "functional_annotations", "kegg.json.gz"))
	assert.FileExists(t, filepath.Join(st.Dir(human), "functional_annotations", "fm", "kegg.json.gz"))
}

func TestStoreNodeLayoutRoundTrip(t *testing.T) {

	st := testStore(t)

	nodes := []NodeRecord{
		{ID: 0, Identifier: "9606.A", Name: "TP53", UniProt: []string{"P04637", "K7PPA8"}, Description: "p53, tumor suppressor"},
		{ID: 1, Identifier: "9606.B", Name: "B"},
	}
	pos := Layout{{0, 0.25, 1}, {1, 0.5, 0}}
	colors := []RGBA{{255, 0, 10, 127}, {25, 25, 25, 63}}

	written, err := st.WriteNodeLayout(human, "spring", pos, colors, nodes)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(filepath.Join(st.Dir(human), "nodes", "spring.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1,0.5,0,25,25,25,63,B;;;9606.B", lines[1])

	lf, err := st.ReadNodeLayout(human, "spring")
	require.NoError(t, err)
	assert.Equal(t, pos, lf.Positions)
	assert.Equal(t, colors, lf.Colors)
	assert.Equal(t, nodes[0].Attr(), lf.Attrs[0])

	names, err := st.NodeLayouts(human)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring"}, names)

	_, err = st.WriteNodeLayout(human, "bad", pos[:1], colors, nodes)
	assert.Error(t, err)
}

func TestStoreSkipsExistingOutput(t *testing.T) {

	core, logs := observer.New(zap.InfoLevel)
	st := &Store{Root: t.TempDir(), Log: zap.New(core)}

	nodes := []NodeRecord{{ID: 0, Identifier: "9606.A", Name: "A"}}
	pos := Layout{{0, 0, 0}}

	written, err := st.WriteNodeLayout(human, "random", pos, []RGBA{{1, 2, 3, 4}}, nodes)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = st.WriteNodeLayout(human, "random", pos, []RGBA{{9, 9, 9, 9}}, nodes)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, 1, logs.FilterMessage("output exists, skipping").Len())

	lf, err := st.ReadNodeLayout(human, "random")
	require.NoError(t, err)
	assert.Equal(t, RGBA{1, 2, 3, 4}, lf.Colors[0])

	st.Overwrite = true
	written, err = st.WriteNodeLayout(human, "random", pos, []RGBA{{9, 9, 9, 9}}, nodes)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestLinkLayoutRowsOmitZeroAlpha(t *testing.T) {

	lt := &LinkTable{Present: []Evidence{Experiments, Any}, Rows: []LinkRecord{
		{StartID: 0, EndID: 1},
		{StartID: 1, EndID: 2},
	}}
	lt.Rows[0].Raw[Experiments] = 500
	lt.Rows[0].Raw[Any] = 400
	lt.Rows[1].Raw[Any] = 1000

	exp := LinkLayoutRows(lt, Experiments)
	assert.Equal(t, [][6]int{{0, 1, 254, 0, 255, 127}}, exp)

	all := LinkLayoutRows(lt, Any)
	assert.Equal(t, [][6]int{{0, 1, 200, 200, 200, 102}, {1, 2, 200, 200, 200, 255}}, all)

	st := testStore(t)
	require.NoError(t, st.WriteLinkLayouts(human, lt))

	data, err := os.ReadFile(filepath.Join(st.Dir(human), "links", "experiments.csv"))
	require.NoError(t, err)
	assert.Equal(t, "0,1,254,0,255,127\n", string(data))
	assert.NoFileExists(t, filepath.Join(st.Dir(human), "links", "textmining.csv"))
}

func TestClusterLabelsRoundTrip(t *testing.T) {

	st := testStore(t)

	rows := []ClusterLabel{
		{Cluster: Noise, Label: "-1", Members: []int{4}},
		{Cluster: 0, Label: "DNA repair", Members: []int{0, 2, 3}},
	}

	written, err := st.WriteClusterLabels(human, "cg_functional_umap_kegg", rows)
	require.NoError(t, err)
	assert.True(t, written)
	assert.FileExists(t, filepath.Join(st.Dir(human), "clusters", "cg_functional_umap_kegg_cluster.tsv"))

	got, err := st.ReadClusterLabels(human, "cg_functional_umap_kegg")
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
