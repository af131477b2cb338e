package interactome

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const linkHeader = "protein1 protein2 neighborhood fusion cooccurence coexpression experimental database textmining homology combined_score"

// linkLine writes one detailed links row with only experiments and combined score set
func linkLine(a, b string, exp, comb int) string {

	return strings.Join([]string{a, b, "0", "0", "0", "0", strconv.Itoa(exp), "0", "0", "0", strconv.Itoa(comb)}, " ")
}

func linkTable(lines ...string) string {

	return linkHeader + "\n" + strings.Join(lines, "\n") + "\n"
}

func TestReadLinksCapKeepsExperimentsFirst(t *testing.T) {

	src := linkTable(
		linkLine("9606.A", "9606.B", 900, 950),
		linkLine("9606.A", "9606.C", 0, 990),
		linkLine("9606.B", "9606.C", 500, 500),
	)

	lt, err := ReadLinks(strings.NewReader(src), 2)
	require.NoError(t, err)

	assert.True(t, lt.Filtered)
	assert.Equal(t, 3, lt.Total)
	require.Len(t, lt.Rows, 2)
	assert.Equal(t, 0, lt.Rows[0].Row)
	assert.Equal(t, 2, lt.Rows[1].Row)
	assert.InDelta(t, 0.9, lt.Rows[0].Score(Experiments), 1e-9)
	assert.InDelta(t, 0.5, lt.Rows[1].Score(Any), 1e-9)
}

func TestReadLinksUnderCapKeepsSourceOrder(t *testing.T) {

	src := linkTable(
		linkLine("9606.A", "9606.B", 100, 200),
		linkLine("9606.A", "9606.C", 900, 990),
		linkLine("NA", "9606.C", 900, 990),
	)

	lt, err := ReadLinks(strings.NewReader(src), 10)
	require.NoError(t, err)

	assert.False(t, lt.Filtered)
	assert.Equal(t, 3, lt.Total)
	require.Len(t, lt.Rows, 2)
	assert.Equal(t, "9606.B", lt.Rows[0].End)
	assert.Equal(t, "9606.C", lt.Rows[1].End)
	assert.Len(t, lt.Present, NumEvidences)
}

func TestReadLinksNeverExceedsCap(t *testing.T) {

	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, linkLine("9606.P"+strconv.Itoa(i), "9606.Q"+strconv.Itoa(i), (i*37)%1000, (i*91)%1000))
	}

	for _, limit := range []int{1, 7, 49, 50, 51} {
		lt, err := ReadLinks(strings.NewReader(linkTable(lines...)), limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(lt.Rows), limit)
		assert.Equal(t, limit < 50, lt.Filtered, "cap %d", limit)
		for i := 1; i < len(lt.Rows) && lt.Filtered; i++ {
			assert.False(t, outranks(&lt.Rows[i], &lt.Rows[i-1]), "rows out of rank order at %d", i)
		}
	}
}

func TestReadLinksMalformed(t *testing.T) {

	tests := []struct {
		name string
		src  string
	}{
		{"short row", linkHeader + "\n9606.A 9606.B 0 0\n"},
		{"bad score", linkTable("9606.A 9606.B 0 0 0 0 1 0 0 0 x")},
		{"no protein2", "protein1 combined_score\n9606.A 10\n"},
		{"empty", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadLinks(strings.NewReader(test.src), 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedTable)
		})
	}
}

func TestWriteLinkSourceRoundTrip(t *testing.T) {

	src := linkTable(
		linkLine("9606.A", "9606.B", 900, 950),
		linkLine("9606.B", "9606.C", 500, 500),
	)

	lt, err := ReadLinks(strings.NewReader(src), 10)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLinkSource(&buf, lt))
	assert.Equal(t, src, buf.String())

	// rows that lost their source cells are rebuilt from scores
	for i := range lt.Rows {
		lt.Rows[i].fields = nil
	}
	buf.Reset()
	require.NoError(t, WriteLinkSource(&buf, lt))
	assert.Equal(t, src, buf.String())
}

func TestRemapLinks(t *testing.T) {

	lt, err := ReadLinks(strings.NewReader(linkTable(
		linkLine("9606.A", "9606.B", 1, 1),
		linkLine("9606.C", "9606.A", 1, 1),
	)), 10)
	require.NoError(t, err)

	org := Organism{Name: "H.sapiens", TaxID: 9606}
	nodes := CollectNodes(lt, org)

	require.Len(t, nodes, 3)
	for i, node := range nodes {
		assert.Equal(t, i, node.ID)
	}
	assert.Equal(t, []string{"9606.A", "9606.C", "9606.B"},
		[]string{nodes[0].Identifier, nodes[1].Identifier, nodes[2].Identifier})

	require.NoError(t, RemapLinks(lt, nodes))
	assert.Equal(t, [2]int{0, 2}, [2]int{lt.Rows[0].StartID, lt.Rows[0].EndID})
	assert.Equal(t, [2]int{1, 0}, [2]int{lt.Rows[1].StartID, lt.Rows[1].EndID})

	assert.Error(t, RemapLinks(lt, nodes[:1]))
}

func TestLoadLinksReusesFilteredArtifact(t *testing.T) {

	dir := t.TempDir()
	org := Organism{Name: "H.sapiens", TaxID: 9606}

	cfg := DefaultConfig()
	cfg.MaxLinks = 1

	src := linkTable(
		linkLine("9606.A", "9606.B", 100, 100),
		linkLine("9606.A", "9606.C", 900, 900),
	)
	fpath := filepath.Join(dir, "9606.protein.links.detailed.v11.5.txt")
	require.NoError(t, os.WriteFile(fpath, []byte(src), 0o644))

	lt, err := loadLinks(dir, org, cfg, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, lt.Rows, 1)
	assert.Equal(t, "9606.C", lt.Rows[0].End)

	filtered := FilteredLinksPath(dir, 9606, 1, "v11.5")
	assert.FileExists(t, filtered)

	// the source is no longer consulted once the artifact exists
	require.NoError(t, os.Remove(fpath))

	again, err := loadLinks(dir, org, cfg, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, again.Rows, 1)
	assert.Equal(t, "9606.C", again.Rows[0].End)
	assert.True(t, again.Filtered)

	cfg.OverwriteLinks = true
	_, err = loadLinks(dir, org, cfg, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestTruncateLinks(t *testing.T) {

	lt := &LinkTable{Rows: make([]LinkRecord, 5)}

	lt.TruncateLinks(0)
	assert.Len(t, lt.Rows, 5)
	lt.TruncateLinks(9)
	assert.Len(t, lt.Rows, 5)
	lt.TruncateLinks(3)
	assert.Len(t, lt.Rows, 3)
}
