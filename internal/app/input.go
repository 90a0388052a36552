package app

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoInput = errors.New("no company given: use --company, --companies, or a companies/company file")

// Legacy input files looked up in the working directory, in order.
const (
	legacyListFile   = "companies"
	legacySingleFile = "company"
)

// LoadIdentifiers picks the first available source: an explicit company,
// an explicit list file, then the legacy files in dir. Blank lines are
// skipped; the single-company file contributes its first line only.
func LoadIdentifiers(company, companiesFile, dir string) ([]string, error) {
	if c := strings.TrimSpace(company); c != "" {
		return []string{c}, nil
	}
	if companiesFile != "" {
		ids, err := readLines(companiesFile, 0)
		if err != nil {
			return nil, fmt.Errorf("read companies file: %w", err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrNoInput, companiesFile)
		}
		return ids, nil
	}

	for _, f := range []struct {
		name  string
		limit int
	}{{legacyListFile, 0}, {legacySingleFile, 1}} {
		ids, err := readLines(filepath.Join(dir, f.name), f.limit)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", f.name, err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	return nil, ErrNoInput
}

// readLines returns trimmed non-blank lines; limit 0 means all of them.
func readLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, sc.Err()
}
