package interactome

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var human = Organism{Name: "H.sapiens", TaxID: 9606, Scientific: "Homo sapiens", Directory: "string_human_ppi"}

type stringTable struct {
	input    string
	expected string
}

func stringTestMatch(t *testing.T, name string, proc func(str string) string, data []stringTable) {

	for _, test := range data {
		actual := proc(test.input)
		if actual != test.expected {
			t.Errorf("%s(%s) = %s, expected %s", name, test.input, actual, test.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {

	stringTestMatch(t, "DisplayName,",
		func(str string) string { return DisplayName(str, 9606) },
		[]stringTable{
			{"9606.ENSP00000269305", "ENSP00000269305"},
			{"10090.ENSMUSP0001", "ENSMUSP0001"},
			{"TP53", "TP53"},
		})
}

func TestCleanDescription(t *testing.T) {

	stringTestMatch(t, "cleanDescription,",
		cleanDescription,
		[]stringTable{
			{"  Cellular tumor antigen p53 ", "Cellular tumor antigen p53"},
			{"annotation not available", ""},
			{"binds DNA; regulates", "binds DNA  regulates"},
		})
}

// mappingServer answers the UniProt run, status, and results endpoints
func mappingServer(t *testing.T, accessions map[string]string) (*httptest.Server, *int32) {

	var runs int32

	mux := http.NewServeMux()
	mux.HandleFunc("/idmapping/run", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Gene_Name", r.PostForm.Get("from"))
		assert.Equal(t, "9606", r.PostForm.Get("taxId"))
		atomic.AddInt32(&runs, 1)
		fmt.Fprint(w, `{"jobId":"J1"}`)
	})
	mux.HandleFunc("/idmapping/status/J1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jobStatus":"FINISHED"}`)
	})
	mux.HandleFunc("/idmapping/uniprotkb/results/J1", func(w http.ResponseWriter, r *http.Request) {
		var parts []string
		for gene, acc := range accessions {
			parts = append(parts, fmt.Sprintf(`{"from":%q,"to":{"primaryAccession":%q}}`, gene, acc))
		}
		fmt.Fprintf(w, `{"results":[%s]}`, strings.Join(parts, ","))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, &runs
}

func geneOnlyTables() (*LinkTable, AliasTable, DescriptionTable) {

	lt := &LinkTable{Rows: []LinkRecord{
		{Start: "9606.ENSP1", End: "9606.ENSP2"},
	}}
	aliases := AliasTable{
		"9606.ENSP1": {
			{Alias: "TP53", Source: BlastUniProtGene},
		},
		"9606.ENSP2": {
			{Alias: "P38398", Source: BlastUniProtAC},
			{Alias: "Q3LRJ0", Source: BlastUniProtAC},
			{Alias: "P38399", Source: EnsemblUniProtAC},
			{Alias: "BRCA1", Source: EnsemblUniProtGene},
		},
	}
	descs := DescriptionTable{
		"9606.ENSP1": {PreferredName: "TP53", Annotation: "Cellular tumor antigen p53"},
		"9606.ENSP2": {PreferredName: "BRCA1", Annotation: "annotation not available"},
	}
	return lt, aliases, descs
}

func TestResolveGeneOnlyNode(t *testing.T) {

	srv, runs := mappingServer(t, map[string]string{"TP53": "P04637"})

	mapper := &UniProtMapper{BaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 3}
	res := NewResolver(DefaultConfig(), mapper, zap.NewNop())

	lt, aliases, descs := geneOnlyTables()
	nodes, err := res.Resolve(context.Background(), lt, aliases, descs, human)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	tp53 := nodes[0]
	assert.Equal(t, "TP53", tp53.Name)
	assert.Equal(t, []string{"P04637"}, tp53.UniProt)
	assert.True(t, tp53.Resolved.Has(HasUniProt|HasGeneName|HasDescription|HasSpecies))
	assert.Equal(t, "Cellular tumor antigen p53", tp53.Description)
	assert.Equal(t, "Homo sapiens", tp53.Species)

	brca := nodes[1]
	assert.Equal(t, "BRCA1", brca.Name)
	assert.Equal(t, []string{"P38399"}, brca.UniProt, "ensembl accessions outrank blast accessions")
	assert.Equal(t, "P38399", brca.PrimaryUniProt())
	assert.False(t, brca.Resolved.Has(HasDescription))
	assert.Equal(t, "BRCA1;P38399;;9606.ENSP2", brca.Attr())

	assert.EqualValues(t, 1, atomic.LoadInt32(runs))
}

func TestResolveMappingFailureKeepsNullUniProt(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)

	mapper := &UniProtMapper{BaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 1}
	res := NewResolver(DefaultConfig(), mapper, zap.New(core))

	lt, aliases, descs := geneOnlyTables()
	nodes, err := res.Resolve(context.Background(), lt, aliases, descs, human)
	require.NoError(t, err)

	assert.Equal(t, "TP53", nodes[0].Name)
	assert.Empty(t, nodes[0].UniProt)
	assert.False(t, nodes[0].Resolved.Has(HasUniProt))
	assert.Equal(t, 1, logs.FilterMessage("identifier mapping failed").Len())
}

func TestEnrichIsIdempotent(t *testing.T) {

	srv, runs := mappingServer(t, map[string]string{"TP53": "P04637"})
	mapper := &UniProtMapper{BaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 3}

	cfg := DefaultConfig()
	cfg.Workers = 4
	res := NewResolver(cfg, mapper, nil)

	lt, aliases, descs := geneOnlyTables()
	nodes, err := res.Resolve(context.Background(), lt, aliases, descs, human)
	require.NoError(t, err)

	first := make([]NodeRecord, len(nodes))
	copy(first, nodes)

	require.NoError(t, res.Enrich(context.Background(), nodes, aliases, descs, human))
	assert.Equal(t, first, nodes)

	// resolved nodes are not sent again
	assert.EqualValues(t, 1, atomic.LoadInt32(runs))
}

func TestResolvedFieldsString(t *testing.T) {

	assert.Equal(t, "none", ResolvedFields(0).String())
	assert.Equal(t, "uniprot|species", (HasUniProt | HasSpecies).String())
}

func TestParseMappingResults(t *testing.T) {

	data := []byte(`{"results":[
		{"from":"TP53","to":{"primaryAccession":"P04637","uniProtKBCrossReferences":[
			{"database":"PDB","id":"1A1U"},{"database":"AlphaFoldDB","id":"AF-P04637"}]}},
		{"from":"TP53","to":{"primaryAccession":"K7PPA8"}},
		{"from":"BRCA1","to":{"primaryAccession":"P38398"}},
		{"from":"EGFR","to":"P00533"},
		{"from":"","to":"X"}
	]}`)

	got := ParseMappingResults(data)
	assert.Equal(t, map[string]string{
		"TP53":  "AF-P04637",
		"BRCA1": "P38398",
		"EGFR":  "P00533",
	}, got)

	assert.Empty(t, ParseMappingResults([]byte("not json")))
}

func TestMapGeneNamesInlineResults(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/idmapping/run":
			fmt.Fprint(w, `{"jobId":"J2"}`)
		case "/idmapping/status/J2":
			fmt.Fprint(w, `{"results":[{"from":"ACT1","to":"P60010"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	mapper := &UniProtMapper{BaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 2}
	got, err := mapper.MapGeneNames(context.Background(), 4932, []string{"ACT1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ACT1": "P60010"}, got)

	empty, err := mapper.MapGeneNames(context.Background(), 4932, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMapGeneNamesFailedJob(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/idmapping/run" {
			fmt.Fprint(w, `{"jobId":"J3"}`)
			return
		}
		fmt.Fprint(w, `{"jobStatus":"ERROR"}`)
	}))
	defer srv.Close()

	mapper := &UniProtMapper{BaseURL: srv.URL, PollInterval: time.Millisecond, MaxPolls: 2}
	_, err := mapper.MapGeneNames(context.Background(), 9606, []string{"TP53"})
	assert.ErrorContains(t, err, "ERROR")
}
