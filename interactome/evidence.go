// ===========================================================================
//
// File Name:  evidence.go
//
// ===========================================================================

package interactome

import (
	"fmt"
)

// Evidence is one of the STRING confidence channels
type Evidence int

const (
	Neighborhood Evidence = iota
	Fusion
	Cooccurrence
	Coexpression
	Experiments
	Databases
	Textmining
	Similarity
	Any
)

// NumEvidences is the number of channels including the combined score
const NumEvidences = 9

// RGBA holds 0-255 color components
type RGBA [4]int

type evidenceInfo struct {
	name   string
	source string
	color  RGBA
}

// order matches the Evidence constants
var evidenceTable = [NumEvidences]evidenceInfo{
	{"neighborhood", "neighborhood", RGBA{0, 255, 0, 255}},
	{"fusion", "fusion", RGBA{255, 0, 0, 255}},
	{"cooccurrence", "cooccurence", RGBA{0, 0, 255, 255}},
	{"coexpression", "coexpression", RGBA{50, 50, 50, 255}},
	{"experiments", "experimental", RGBA{254, 0, 255, 255}},
	{"databases", "database", RGBA{0, 255, 255, 255}},
	{"textmining", "textmining", RGBA{199, 234, 70, 255}},
	{"similarity", "homology", RGBA{157, 157, 248, 255}},
	{"any", "combined_score", RGBA{200, 200, 200, 255}},
}

// AllEvidences lists every channel, combined score last
func AllEvidences() []Evidence {

	evs := make([]Evidence, NumEvidences)
	for i := range evs {
		evs[i] = Evidence(i)
	}
	return evs
}

// String returns the canonical channel name
func (ev Evidence) String() string {

	if ev < 0 || int(ev) >= NumEvidences {
		return fmt.Sprintf("Evidence(%d)", int(ev))
	}
	return evidenceTable[ev].name
}

// SourceColumn returns the STRING links file column the channel is read from
func (ev Evidence) SourceColumn() string {

	return evidenceTable[ev].source
}

// Color returns the default link color of the channel
func (ev Evidence) Color() RGBA {

	return evidenceTable[ev].color
}

// ParseEvidence accepts canonical names, STRING column names, and stringdb_ prefixed names
func ParseEvidence(str string) (Evidence, bool) {

	for i, info := range evidenceTable {
		if str == info.name || str == info.source || str == "stringdb_"+info.name {
			return Evidence(i), true
		}
	}
	return 0, false
}
