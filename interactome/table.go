// ===========================================================================
//
// File Name:  table.go
//
// ===========================================================================

package interactome

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
)

// TableRow is one data line of a delimited file, Index counts data rows from 0
type TableRow struct {
	Index int
	Line  int
	Cols  []string
}

// TableStream delivers the rows of a delimited file through a channel
type TableStream struct {
	Header []string
	Rows   <-chan TableRow

	err  error
	stop chan struct{}
	once sync.Once
}

// Err reports the first read error, valid once Rows is drained
func (ts *TableStream) Err() error {

	return ts.err
}

// Stop releases the reading goroutine when the caller abandons the stream early
func (ts *TableStream) Stop() {

	ts.once.Do(func() { close(ts.stop) })
}

const chanDepth = 256

// splitter returns a column splitter, an empty delimiter splits on runs of whitespace
func splitter(delim string) func(string) []string {

	if delim == "" {
		return strings.Fields
	}
	return func(line string) []string {
		return strings.Split(line, delim)
	}
}

// StreamTable reads the header line synchronously and streams the remaining rows
func StreamTable(inp io.Reader, delim string) (*TableStream, error) {

	if inp == nil {
		return nil, errors.New("nil table reader")
	}

	split := splitter(delim)

	scanr := bufio.NewScanner(inp)

	// STRING descriptions can run past the default token size
	const bufferSize = 1024 * 1024
	buf := make([]byte, bufferSize)
	scanr.Buffer(buf, 16*bufferSize)

	line := 0
	var header []string

	// uses fields from first non-empty row for column names
	for scanr.Scan() {
		line++
		txt := scanr.Text()
		if strings.TrimSpace(txt) == "" {
			continue
		}
		header = split(strings.TrimRight(txt, "\r"))
		break
	}
	if err := scanr.Err(); err != nil {
		return nil, err
	}
	if len(header) < 1 {
		return nil, fmt.Errorf("%w: line with column names not found", ErrMalformedTable)
	}

	out := make(chan TableRow, chanDepth)
	ts := &TableStream{Header: header, Rows: out, stop: make(chan struct{})}

	convertTable := func() {

		// close channel when all records have been sent
		defer close(out)

		row := 0
		for scanr.Scan() {
			line++
			txt := strings.TrimRight(scanr.Text(), "\r")
			if txt == "" {
				continue
			}
			select {
			case out <- TableRow{Index: row, Line: line, Cols: split(txt)}:
			case <-ts.stop:
				return
			}
			row++

			if row%65536 == 0 {
				runtime.Gosched()
			}
		}

		ts.err = scanr.Err()
	}

	go convertTable()

	return ts, nil
}

// ColumnIndex maps column names to positions, dropping a leading '#' from the first name
func ColumnIndex(header []string) map[string]int {

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "#")
		idx[name] = i
	}
	return idx
}

type gzReadCloser struct {
	*pgzip.Reader
	fl *os.File
}

func (g gzReadCloser) Close() error {

	err := g.Reader.Close()
	if ferr := g.fl.Close(); err == nil {
		err = ferr
	}
	return err
}

// OpenSource opens a plain or gzipped file, decompressing with pgzip
func OpenSource(fpath string) (io.ReadCloser, error) {

	fl, err := os.Open(fpath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, fpath)
		}
		return nil, err
	}

	if !strings.HasSuffix(fpath, ".gz") {
		return fl, nil
	}

	zpr, err := pgzip.NewReader(fl)
	if err != nil {
		fl.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedTable, fpath, err)
	}

	return gzReadCloser{Reader: zpr, fl: fl}, nil
}

// FindSource locates {tax}.protein.{kind}.{version}.txt.gz, falling back to the uncompressed name
func FindSource(dir string, tax int, kind, version string) (string, error) {

	base := filepath.Join(dir, fmt.Sprintf("%d.protein.%s.%s.txt", tax, kind, version))

	for _, fpath := range []string{base + ".gz", base} {
		if _, err := os.Stat(fpath); err == nil {
			return fpath, nil
		}
	}

	return "", fmt.Errorf("%w: %s[.gz]", ErrMissingSource, base)
}

// createGzFile creates parent directories and returns a pgzip writer chained to the file
func createGzFile(fpath string) (*pgzip.Writer, func() error, error) {

	err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm)
	if err != nil {
		return nil, nil, err
	}

	// overwrites and truncates existing file
	fl, err := os.Create(fpath)
	if err != nil {
		return nil, nil, err
	}

	zpr, err := pgzip.NewWriterLevel(fl, pgzip.BestSpeed)
	if err != nil {
		fl.Close()
		return nil, nil, err
	}

	done := func() error {
		err := zpr.Close()
		if ferr := fl.Close(); err == nil {
			err = ferr
		}
		return err
	}

	return zpr, done, nil
}

// fileExists reports whether a regular file is present
func fileExists(fpath string) bool {

	info, err := os.Stat(fpath)
	return err == nil && !info.IsDir()
}
