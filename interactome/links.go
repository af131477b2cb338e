// ===========================================================================
//
// File Name:  links.go
//
// ===========================================================================

package interactome

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LinkRecord is one protein pair with its integer channel scores
type LinkRecord struct {
	Start   string            `json:"start"`
	End     string            `json:"end"`
	StartID int               `json:"start_id"`
	EndID   int               `json:"end_id"`
	Raw     [NumEvidences]int `json:"raw"`
	Row     int               `json:"row"`

	// source columns, kept only while the filtered artifact is written
	fields []string
}

// Score returns the channel score scaled into [0,1]
func (l LinkRecord) Score(ev Evidence) float64 {

	return float64(l.Raw[ev]) / 1000
}

// LinkTable holds the (possibly capped) links of one organism
type LinkTable struct {
	Header   []string     `json:"header"`
	Present  []Evidence   `json:"present"`
	Rows     []LinkRecord `json:"rows"`
	Total    int          `json:"total"`
	Filtered bool         `json:"filtered"`
}

// missingID recognizes empty identifier cells
func missingID(id string) bool {

	switch strings.ToLower(id) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// outranks orders links by experiments, then combined score, then earlier source row
func outranks(a, b *LinkRecord) bool {

	if a.Raw[Experiments] != b.Raw[Experiments] {
		return a.Raw[Experiments] > b.Raw[Experiments]
	}
	if a.Raw[Any] != b.Raw[Any] {
		return a.Raw[Any] > b.Raw[Any]
	}
	return a.Row < b.Row
}

// linkHeap keeps the lowest ranked link on top so it can be evicted
type linkHeap []LinkRecord

func (h linkHeap) Len() int           { return len(h) }
func (h linkHeap) Less(i, j int) bool { return outranks(&h[j], &h[i]) }
func (h linkHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *linkHeap) Push(x any)        { *h = append(*h, x.(LinkRecord)) }
func (h *linkHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}

// linkColumns locates the identifier and evidence columns of a links header
type linkColumns struct {
	start, end int
	evidence   [NumEvidences]int
}

func parseLinkHeader(header []string) (linkColumns, []Evidence, error) {

	idx := ColumnIndex(header)

	var lc linkColumns
	var ok bool
	if lc.start, ok = idx["protein1"]; !ok {
		return lc, nil, fmt.Errorf("%w: links header lacks protein1", ErrMalformedTable)
	}
	if lc.end, ok = idx["protein2"]; !ok {
		return lc, nil, fmt.Errorf("%w: links header lacks protein2", ErrMalformedTable)
	}

	var present []Evidence
	for _, ev := range AllEvidences() {
		col, found := idx[ev.SourceColumn()]
		if !found {
			// also accept files that already use canonical names
			col, found = idx[ev.String()]
		}
		if !found {
			// absent channels read as zero
			lc.evidence[ev] = -1
			continue
		}
		lc.evidence[ev] = col
		present = append(present, ev)
	}

	return lc, present, nil
}

func parseLinkRow(lc linkColumns, width int, row TableRow) (LinkRecord, error) {

	cols := row.Cols
	if len(cols) != width {
		return LinkRecord{}, fmt.Errorf("%w: line %d has %d columns, expected %d", ErrMalformedTable, row.Line, len(cols), width)
	}

	rec := LinkRecord{
		Start:   cols[lc.start],
		End:     cols[lc.end],
		StartID: -1,
		EndID:   -1,
		Row:     row.Index,
		fields:  cols,
	}

	for ev, col := range lc.evidence {
		if col < 0 {
			continue
		}
		val, err := strconv.Atoi(cols[col])
		if err != nil {
			return LinkRecord{}, fmt.Errorf("%w: line %d column %s: %v", ErrMalformedTable, row.Line, Evidence(ev).SourceColumn(), err)
		}
		rec.Raw[ev] = val
	}

	return rec, nil
}

// ReadLinks parses a STRING detailed links table and applies the link cap
func ReadLinks(inp io.Reader, maxLinks int) (*LinkTable, error) {

	ts, err := StreamTable(inp, "")
	if err != nil {
		return nil, err
	}
	defer ts.Stop()

	lc, present, err := parseLinkHeader(ts.Header)
	if err != nil {
		return nil, err
	}

	width := len(ts.Header)
	total := 0
	h := make(linkHeap, 0, min(maxLinks, 1<<16))

	for row := range ts.Rows {
		total++

		rec, err := parseLinkRow(lc, width, row)
		if err != nil {
			return nil, err
		}
		if missingID(rec.Start) || missingID(rec.End) {
			continue
		}

		// bounded heap holds the best maxLinks rows seen so far
		if h.Len() < maxLinks {
			heap.Push(&h, rec)
		} else if outranks(&rec, &h[0]) {
			h[0] = rec
			heap.Fix(&h, 0)
		}
	}
	if err := ts.Err(); err != nil {
		return nil, err
	}

	rows := []LinkRecord(h)
	filtered := total > maxLinks

	if filtered {
		sort.Slice(rows, func(i, j int) bool { return outranks(&rows[i], &rows[j]) })
	} else {
		// under the cap the source order is kept
		sort.Slice(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
	}

	return &LinkTable{
		Header:   ts.Header,
		Present:  present,
		Rows:     rows,
		Total:    total,
		Filtered: filtered,
	}, nil
}

// FilteredLinksPath names the capped links artifact for an organism and cap
func FilteredLinksPath(dir string, tax, maxLinks int, version string) string {

	return filepath.Join(dir, fmt.Sprintf("%d.protein.links.detailed.%s.filtered.%d.txt.gz", tax, version, maxLinks))
}

// WriteLinkSource re-serializes links in the source layout with the original header
func WriteLinkSource(w io.Writer, lt *LinkTable) error {

	lc, _, err := parseLinkHeader(lt.Header)
	if err != nil {
		return err
	}

	wrtr := bufio.NewWriter(w)

	wrtr.WriteString(strings.Join(lt.Header, " "))
	wrtr.WriteString("\n")

	cols := make([]string, len(lt.Header))
	for _, rec := range lt.Rows {
		if len(rec.fields) == len(cols) {
			copy(cols, rec.fields)
		} else {
			// rows read back from the store lost their source cells
			for i := range cols {
				cols[i] = "0"
			}
			cols[lc.start] = rec.Start
			cols[lc.end] = rec.End
			for ev, col := range lc.evidence {
				if col >= 0 {
					cols[col] = strconv.Itoa(rec.Raw[ev])
				}
			}
		}
		wrtr.WriteString(strings.Join(cols, " "))
		wrtr.WriteString("\n")
	}

	return wrtr.Flush()
}

// writeFilteredLinks stores the capped table so later runs skip re-ranking
func writeFilteredLinks(fpath string, lt *LinkTable) error {

	zpr, done, err := createGzFile(fpath)
	if err != nil {
		return err
	}

	werr := WriteLinkSource(zpr, lt)
	if cerr := done(); werr == nil {
		werr = cerr
	}

	return werr
}

// TruncateLinks keeps the first n rows, used for debugging partial builds
func (lt *LinkTable) TruncateLinks(n int) {

	if n > 0 && n < len(lt.Rows) {
		lt.Rows = lt.Rows[:n]
	}
}

// RemapLinks rewrites link endpoints to dense node ids
func RemapLinks(lt *LinkTable, nodes []NodeRecord) error {

	ids := make(map[string]int, len(nodes))
	for _, node := range nodes {
		ids[node.Identifier] = node.ID
	}

	for i := range lt.Rows {
		rec := &lt.Rows[i]
		sid, ok := ids[rec.Start]
		if !ok {
			return fmt.Errorf("link %d: start '%s' has no node", rec.Row, rec.Start)
		}
		eid, ok := ids[rec.End]
		if !ok {
			return fmt.Errorf("link %d: end '%s' has no node", rec.Row, rec.End)
		}
		rec.StartID, rec.EndID = sid, eid
	}

	return nil
}
