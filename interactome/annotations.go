// ===========================================================================
//
// File Name:  annotations.go
//
// ===========================================================================

package interactome

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Term is one controlled-vocabulary entry with its member proteins
type Term struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
	MemberCount int      `json:"member_count"`
}

// Category groups the terms of one annotation scheme, largest terms first
type Category struct {
	Name  string `json:"name"`
	Terms []Term `json:"terms"`
}

// Slug turns a category name into a file name stem
func Slug(name string) string {

	var sb strings.Builder
	under := false
	for _, ch := range strings.ToLower(name) {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			sb.WriteRune(ch)
			under = false
			continue
		}
		if !under && sb.Len() > 0 {
			sb.WriteByte('_')
			under = true
		}
	}
	return strings.TrimRight(sb.String(), "_")
}

func sortTerms(terms []Term) {

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].MemberCount != terms[j].MemberCount {
			return terms[i].MemberCount > terms[j].MemberCount
		}
		return terms[i].ID < terms[j].ID
	})
}

// ExtractAnnotations groups enrichment rows by category and term, dropping single-member terms
func ExtractAnnotations(rows []EnrichmentTerm) []Category {

	type termAcc struct {
		term Term
		seen map[string]bool
	}

	byCat := make(map[string]map[string]*termAcc)
	var catOrder []string

	for _, row := range rows {
		terms, ok := byCat[row.Category]
		if !ok {
			terms = make(map[string]*termAcc)
			byCat[row.Category] = terms
			catOrder = append(catOrder, row.Category)
		}
		acc, ok := terms[row.Term]
		if !ok {
			// description of the first row is kept
			acc = &termAcc{
				term: Term{ID: row.Term, Description: row.Description},
				seen: make(map[string]bool),
			}
			terms[row.Term] = acc
		}
		if acc.seen[row.Identifier] {
			continue
		}
		acc.seen[row.Identifier] = true
		acc.term.Members = append(acc.term.Members, row.Identifier)
	}

	sort.Strings(catOrder)

	var cats []Category
	for _, name := range catOrder {
		var terms []Term
		for _, acc := range byCat[name] {
			acc.term.MemberCount = len(acc.term.Members)
			if acc.term.MemberCount < 2 {
				continue
			}
			terms = append(terms, acc.term)
		}
		if len(terms) == 0 {
			continue
		}
		sortTerms(terms)
		cats = append(cats, Category{Name: name, Terms: terms})
	}

	return cats
}

// qualifyingTerms returns up to limit terms whose member share reaches threshold
func qualifyingTerms(cat Category, total int, threshold float64, limit int) []Term {

	if total == 0 {
		return nil
	}

	var kept []Term
	for _, term := range cat.Terms {
		if float64(term.MemberCount)/float64(total) < threshold {
			continue
		}
		kept = append(kept, term)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept
}

// AnnotateNodes sets a flag per qualifying term on every member node
func AnnotateNodes(nodes []NodeRecord, cats []Category, threshold float64, limit int, log *zap.Logger) {

	if log == nil {
		log = zap.NewNop()
	}

	index := make(map[string]int, len(nodes))
	for i := range nodes {
		index[nodes[i].Identifier] = i
	}

	flagged := 0
	for _, cat := range cats {
		terms := qualifyingTerms(cat, len(nodes), threshold, limit)
		for _, term := range terms {
			for _, member := range term.Members {
				idx, ok := index[member]
				if !ok {
					continue
				}
				if nodes[idx].Flags == nil {
					nodes[idx].Flags = make(map[string]bool)
				}
				nodes[idx].Flags[term.ID] = true
			}
		}
		flagged += len(terms)
	}

	log.Debug("node annotations added", zap.String("terms", countOf(flagged, "term")))
}
