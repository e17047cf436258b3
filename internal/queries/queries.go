// Package queries reads the list of search queries, one per line.
package queries

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/FranksOps/jobsweep/internal/apperr"
)

// DefaultPath is the query file used when none is configured.
const DefaultPath = "urls_to_scan.txt"

// Load reads path. A missing file is a KindSourceNotFound error carrying the
// path.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.Error{Kind: apperr.KindSourceNotFound, Op: path, Err: err}
		}
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()

	qs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read query file %s: %w", path, err)
	}
	return qs, nil
}

// Parse returns every line of r with surrounding whitespace removed, in
// order. Blank lines are kept as empty strings; the driver skips them.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out = append(out, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Path extracts the query file path from a KindSourceNotFound error.
func Path(err error) (string, bool) {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindSourceNotFound {
		return e.Op, true
	}
	return "", false
}
