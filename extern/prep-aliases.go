// ===========================================================================
//
// File Name:  prep-aliases.go
//
// ===========================================================================

// prep-aliases reduces a STRING aliases table on stdin to the UniProt
// accession and gene name rows the node resolver reads, e.g.
//
//   zcat 9606.protein.aliases.v11.5.txt.gz | prep-aliases | gzip > 9606.protein.aliases.v11.5.txt.gz

package main

import (
	"bufio"
	"os"
	"strings"

	"stringex/interactome"
)

func reduceAliases() {

	var buffer strings.Builder
	count := 0

	wrtr := bufio.NewWriter(os.Stdout)

	scanr := bufio.NewScanner(os.Stdin)
	scanr.Buffer(make([]byte, 64*1024), 4*1024*1024)

	// keep column heading line
	for scanr.Scan() {

		line := scanr.Text()
		cols := strings.Split(line, "\t")
		if len(cols) != 3 || !strings.HasSuffix(cols[0], "string_protein_id") {
			interactome.DisplayError("Unrecognized aliases heading '%s'", line)
			os.Exit(1)
		}
		buffer.WriteString(line + "\n")
		break
	}

	for scanr.Scan() {

		line := scanr.Text()

		cols := strings.Split(line, "\t")
		if len(cols) != 3 || cols[1] == "" {
			continue
		}

		// one row may list several sources separated by spaces
		var keep []string
		for _, src := range strings.Fields(cols[2]) {
			if interactome.IsResolverSource(src) {
				keep = append(keep, src)
			}
		}
		if len(keep) == 0 {
			continue
		}

		buffer.WriteString(cols[0] + "\t" + cols[1] + "\t" + strings.Join(keep, " ") + "\n")

		count++

		if count >= 1000 {
			count = 0
			wrtr.WriteString(buffer.String())
			buffer.Reset()
		}
	}

	if err := scanr.Err(); err != nil {
		interactome.DisplayError("Reading aliases failed: %s", err.Error())
		os.Exit(1)
	}

	wrtr.WriteString(buffer.String())
	buffer.Reset()

	wrtr.Flush()
}

func main() {

	reduceAliases()
}
