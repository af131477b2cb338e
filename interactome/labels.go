// ===========================================================================
//
// File Name:  labels.go
//
// ===========================================================================

package interactome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	json "github.com/goccy/go-json"
	"github.com/surgebase/porter2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ClusterNamer turns the members of one cluster into a short human-readable label
type ClusterNamer interface {
	NameCluster(ctx context.Context, org Organism, category string, members []NodeRecord) (string, error)
}

// ErrNoLabel reports that a namer had nothing to offer for a cluster
var ErrNoLabel = errors.New("no cluster label")

// StringEnrichmentNamer labels a cluster with its most significant STRING enrichment term
type StringEnrichmentNamer struct {
	BaseURL        string
	CallerIdentity string

	http *http.Client
}

// NewStringEnrichmentNamer points the namer at the configured STRING API
func NewStringEnrichmentNamer(cfg Config) *StringEnrichmentNamer {

	timeout := time.Duration(cfg.RemoteTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &StringEnrichmentNamer{
		BaseURL:        strings.TrimRight(cfg.EnrichmentURL, "/"),
		CallerIdentity: "StringEx",
		http:           &http.Client{Timeout: timeout},
	}
}

type enrichmentHit struct {
	Category    string  `json:"category"`
	Term        string  `json:"term"`
	Description string  `json:"description"`
	PValue      float64 `json:"p_value"`
}

// NameCluster posts member identifiers to the enrichment endpoint
func (s *StringEnrichmentNamer) NameCluster(ctx context.Context, org Organism, category string, members []NodeRecord) (string, error) {

	if len(members) == 0 {
		return "", ErrNoLabel
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Identifier
	}

	form := url.Values{}
	form.Set("identifiers", strings.Join(ids, "\r"))
	form.Set("species", strconv.Itoa(org.TaxID))
	form.Set("caller_identity", s.CallerIdentity)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/json/enrichment", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("enrichment request: %s", resp.Status)
	}

	var hits []enrichmentHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return "", fmt.Errorf("enrichment response: %w", err)
	}

	return bestEnrichment(hits, category)
}

// bestEnrichment keeps hits whose category occurs in the layout category and takes the lowest p-value
func bestEnrichment(hits []enrichmentHit, category string) (string, error) {

	var keep []enrichmentHit
	for _, h := range hits {
		if h.Category != "" && h.Description != "" && strings.Contains(category, h.Category) {
			keep = append(keep, h)
		}
	}
	if len(keep) == 0 {
		return "", ErrNoLabel
	}

	sort.SliceStable(keep, func(i, j int) bool { return keep[i].PValue < keep[j].PValue })

	return keep[0].Description, nil
}

// KeywordNamer labels a cluster with the most frequent stems of its member descriptions
type KeywordNamer struct {
	Words int
}

var stopWords = map[string]bool{
	"and": true, "the": true, "of": true, "in": true, "to": true, "for": true,
	"with": true, "by": true, "on": true, "or": true, "from": true, "that": true,
	"protein": true, "proteins": true, "family": true, "member": true, "belongs": true,
	"involved": true, "required": true, "probable": true, "putative": true,
	"subunit": true, "domain": true, "containing": true, "like": true,
	"may": true, "play": true, "plays": true, "role": true, "which": true, "is": true,
	"are": true, "be": true, "as": true, "an": true, "a": true, "at": true, "its": true,
}

// NameCluster counts stems over all descriptions, ties go to the alphabetically first stem
func (k KeywordNamer) NameCluster(ctx context.Context, org Organism, category string, members []NodeRecord) (string, error) {

	words := k.Words
	if words < 1 {
		words = 3
	}

	counts := make(map[string]int)
	surface := make(map[string]map[string]int)

	for _, m := range members {
		seen := make(map[string]bool)
		for _, tok := range strings.FieldsFunc(strings.ToLower(m.Description), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
		}) {
			tok = strings.Trim(tok, "-")
			if len(tok) < 3 || stopWords[tok] || isNumber(tok) {
				continue
			}
			stem := porter2.Stem(tok)
			if seen[stem] {
				continue
			}
			seen[stem] = true
			counts[stem]++
			if surface[stem] == nil {
				surface[stem] = make(map[string]int)
			}
			surface[stem][tok]++
		}
	}

	if len(counts) == 0 {
		return "", ErrNoLabel
	}

	stems := make([]string, 0, len(counts))
	for s := range counts {
		stems = append(stems, s)
	}
	sort.Slice(stems, func(i, j int) bool {
		if counts[stems[i]] != counts[stems[j]] {
			return counts[stems[i]] > counts[stems[j]]
		}
		return stems[i] < stems[j]
	})

	caser := cases.Title(language.English)

	var parts []string
	for _, s := range stems[:min(words, len(stems))] {
		parts = append(parts, caser.String(commonest(surface[s])))
	}

	return strings.Join(parts, " "), nil
}

func commonest(forms map[string]int) string {

	best, bestN := "", -1
	for f, n := range forms {
		if n > bestN || (n == bestN && f < best) {
			best, bestN = f, n
		}
	}
	return best
}

func isNumber(str string) bool {

	_, err := strconv.ParseFloat(str, 64)
	return err == nil
}

// ChainNamer asks each namer in turn until one returns a label
type ChainNamer []ClusterNamer

func (c ChainNamer) NameCluster(ctx context.Context, org Organism, category string, members []NodeRecord) (string, error) {

	var errs []error
	for _, namer := range c {
		label, err := namer.NameCluster(ctx, org, category, members)
		if err == nil && label != "" {
			return label, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return "", ErrNoLabel
	}
	return "", errors.Join(errs...)
}

// ClusterLabel is one row of a cluster label file
type ClusterLabel struct {
	Cluster int
	Label   string
	Members []int
}

// LabelClusters names every non-noise cluster, failures keep the numeric id as label
func LabelClusters(ctx context.Context, namer ClusterNamer, org Organism, category string, cl *Clustering, nodes []NodeRecord, log *zap.Logger) []ClusterLabel {

	if log == nil {
		log = zap.NewNop()
	}

	groups := cl.Members()
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]ClusterLabel, 0, len(ids))
	for _, id := range ids {
		row := ClusterLabel{Cluster: id, Label: strconv.Itoa(id), Members: groups[id]}

		if id != Noise && namer != nil {
			members := make([]NodeRecord, len(row.Members))
			for k, i := range row.Members {
				members[k] = nodes[i]
			}
			label, err := namer.NameCluster(ctx, org, category, members)
			switch {
			case err == nil && label != "":
				row.Label = label
			case errors.Is(err, ErrNoLabel):
				log.Debug("cluster left unnamed", zap.Int("cluster", id))
			default:
				log.Warn("cluster naming failed", zap.Int("cluster", id), zap.Error(err))
			}
		}

		out = append(out, row)
	}

	return out
}
