// ===========================================================================
//
// File Name:  organisms.go
//
// ===========================================================================

package interactome

import (
	"fmt"
	"strconv"
	"strings"
)

// Organism ties together the names STRING and the output tree use for one species
type Organism struct {
	Name       string
	TaxID      int
	Scientific string
	Directory  string
}

var organismTable = []Organism{
	{"A.thaliana", 3702, "Arabidopsis thaliana", "string_arabidopsis_ppi"},
	{"C.elegans", 6239, "Caenorhabditis elegans", "string_worm_ppi"},
	{"D.melanogaster", 7227, "Drosophila melanogaster", "string_fly_ppi"},
	{"D.rerio", 7955, "Danio rerio", "string_zebrafish_ppi"},
	{"E.coli", 362663, "Escherichia coli 536", "string_ecoli_ppi"},
	{"H.sapiens", 9606, "Homo sapiens", "string_human_ppi"},
	{"M.musculus", 10090, "Mus musculus", "string_mouse_ppi"},
	{"R.norvegicus", 10116, "Rattus norvegicus", "string_rat_ppi"},
	{"S.cerevisiae", 4932, "Saccharomyces cerevisiae", "string_yeast_ppi"},
}

// common names accepted on the command line
var organismAliases = map[string]string{
	"arabidopsis": "A.thaliana",
	"worm":        "C.elegans",
	"fly":         "D.melanogaster",
	"zebrafish":   "D.rerio",
	"ecoli":       "E.coli",
	"human":       "H.sapiens",
	"mouse":       "M.musculus",
	"rat":         "R.norvegicus",
	"yeast":       "S.cerevisiae",
}

// Organisms returns the built-in organism table sorted by name
func Organisms() []Organism {

	orgs := make([]Organism, len(organismTable))
	copy(orgs, organismTable)
	return orgs
}

// LookupOrganism resolves a short name, common name, scientific name, directory, or taxonomy id
func LookupOrganism(key string) (Organism, error) {

	key = strings.TrimSpace(key)
	if canon, ok := organismAliases[strings.ToLower(key)]; ok {
		key = canon
	}

	tax, numErr := strconv.Atoi(key)

	for _, org := range organismTable {
		if org.Name == key || org.Scientific == key || org.Directory == key {
			return org, nil
		}
		if numErr == nil && org.TaxID == tax {
			return org, nil
		}
	}

	return Organism{}, fmt.Errorf("unknown organism '%s'", key)
}

// String returns the short name
func (o Organism) String() string {

	return o.Name
}
