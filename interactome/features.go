// ===========================================================================
//
// File Name:  features.go
//
// ===========================================================================

package interactome

import (
	"slices"

	"go.uber.org/zap"
)

// FeatureMatrix is a node-major membership table, Rows[node][term]
type FeatureMatrix struct {
	Category     string   `json:"category"`
	Terms        []string `json:"terms"`
	Descriptions []string `json:"descriptions"`
	Counts       []int    `json:"counts"`
	Rows         [][]bool `json:"rows"`
}

// NumNodes returns the row count
func (fm *FeatureMatrix) NumNodes() int {

	return len(fm.Rows)
}

// HasFeature reports whether node i belongs to at least one term
func (fm *FeatureMatrix) HasFeature(i int) bool {

	return slices.Contains(fm.Rows[i], true)
}

// Featured lists the nodes with at least one feature, in id order
func (fm *FeatureMatrix) Featured() []int {

	var out []int
	for i := range fm.Rows {
		if fm.HasFeature(i) {
			out = append(out, i)
		}
	}
	return out
}

// Vectors returns 0/1 float rows for the selected nodes
func (fm *FeatureMatrix) Vectors(sel []int) [][]float64 {

	out := make([][]float64, len(sel))
	for k, i := range sel {
		vec := make([]float64, len(fm.Terms))
		for j, on := range fm.Rows[i] {
			if on {
				vec[j] = 1
			}
		}
		out[k] = vec
	}
	return out
}

// BuildFeatureMatrix builds the matrix of one category, nil when no term qualifies
func BuildFeatureMatrix(cat Category, nodes []NodeRecord, threshold float64, maxFeatures int) *FeatureMatrix {

	terms := qualifyingTerms(cat, len(nodes), threshold, maxFeatures)
	if len(terms) == 0 {
		return nil
	}

	index := make(map[string]int, len(nodes))
	for i := range nodes {
		index[nodes[i].Identifier] = i
	}

	fm := &FeatureMatrix{
		Category:     cat.Name,
		Terms:        make([]string, len(terms)),
		Descriptions: make([]string, len(terms)),
		Counts:       make([]int, len(terms)),
		Rows:         make([][]bool, len(nodes)),
	}
	for i := range fm.Rows {
		fm.Rows[i] = make([]bool, len(terms))
	}

	for j, term := range terms {
		fm.Terms[j] = term.ID
		fm.Descriptions[j] = term.Description
		fm.Counts[j] = term.MemberCount
		for _, member := range term.Members {
			if i, ok := index[member]; ok {
				fm.Rows[i][j] = true
			}
		}
	}

	return fm
}

// BuildFeatureMatrices builds one matrix per allowed category, an empty allowlist allows all
func BuildFeatureMatrices(cats []Category, nodes []NodeRecord, allow []string, threshold float64, maxFeatures int, log *zap.Logger) []*FeatureMatrix {

	if log == nil {
		log = zap.NewNop()
	}

	var out []*FeatureMatrix
	for _, cat := range cats {
		if len(allow) > 0 && !slices.Contains(allow, cat.Name) && !slices.Contains(allow, Slug(cat.Name)) {
			log.Debug("category not in allowlist", zap.String("category", cat.Name))
			continue
		}
		fm := BuildFeatureMatrix(cat, nodes, threshold, maxFeatures)
		if fm == nil {
			log.Info("category skipped, no term reaches coverage threshold",
				zap.String("category", cat.Name), zap.Float64("threshold", threshold))
			continue
		}
		out = append(out, fm)
	}

	return out
}
