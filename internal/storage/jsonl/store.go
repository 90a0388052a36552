// Package jsonl keeps one append-only file of JSON lines per target.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"review_harvester/internal/domain"
)

type Store struct {
	dir string

	mu sync.Mutex
	// keys whose file ends in a torn, unterminated line
	torn map[string]bool
}

var (
	_ domain.ReviewStore  = (*Store)(nil)
	_ domain.ReviewReader = (*Store)(nil)
)

func New(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, torn: map[string]bool{}}
}

func (s *Store) Location(key string) string { return filepath.Join(s.dir, key) }

// Load reads the whole file once and decodes only the body of each line,
// so records written by other tools with looser field formats still count.
// Lines that are not JSON, or carry no body, are skipped with a warning.
func (s *Store) Load(ctx context.Context, key string) (*domain.IdentityIndex, int, error) {
	idx := domain.NewIdentityIndex()
	path := s.Location(key)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, 0, nil
	}
	if err != nil {
		return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: err}
	}
	defer f.Close()

	var (
		n, lineNo int
		torn      bool
	)
	err = scanLines(f, func(line []byte, terminated bool) error {
		lineNo++
		torn = !terminated
		if err := ctx.Err(); err != nil {
			return err
		}
		body, ok := bodyOf(line)
		if !ok {
			log.Warn().Str("file", path).Int("line", lineNo).Msg("skipping malformed stored record")
			return nil
		}
		idx.Add(domain.FingerprintOf(body))
		n++
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err
		}
		return nil, 0, &domain.StoreError{Key: key, Op: "load", Err: err}
	}

	s.mu.Lock()
	s.torn[key] = torn
	s.mu.Unlock()
	return idx, n, nil
}

// Append writes one complete line and fsyncs before returning.
func (s *Store) Append(_ context.Context, key string, r domain.Review) error {
	b, err := json.Marshal(r)
	if err != nil {
		return &domain.StoreError{Key: key, Op: "encode", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 0, len(b)+2)
	if s.torn[key] {
		// terminate the partial line left by an interrupted writer
		buf = append(buf, '\n')
	}
	buf = append(append(buf, b...), '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &domain.StoreError{Key: key, Op: "append", Err: err}
	}
	f, err := os.OpenFile(s.Location(key), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.StoreError{Key: key, Op: "append", Err: err}
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return &domain.StoreError{Key: key, Op: "append", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &domain.StoreError{Key: key, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &domain.StoreError{Key: key, Op: "append", Err: err}
	}
	s.torn[key] = false
	return nil
}

// List returns the newest limit records, newest first.
func (s *Store) List(ctx context.Context, key string, limit int) (domain.ReviewsPage, error) {
	f, err := os.Open(s.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ReviewsPage{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ReviewsPage{}, &domain.StoreError{Key: key, Op: "list", Err: err}
	}
	defer f.Close()

	var all []domain.Review
	err = scanLines(f, func(line []byte, _ bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r, ok := decodeLine(line); ok {
			all = append(all, r)
		}
		return nil
	})
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	out := domain.ReviewsPage{Total: len(all), Items: []domain.Review{}}
	for i := len(all) - 1; i >= 0 && len(out.Items) < limit; i-- {
		out.Items = append(out.Items, all[i])
	}
	return out, nil
}

func bodyOf(line []byte) (string, bool) {
	var rec struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(line, &rec); err != nil || strings.TrimSpace(rec.Body) == "" {
		return "", false
	}
	return rec.Body, true
}

func decodeLine(line []byte) (domain.Review, bool) {
	var r domain.Review
	if err := json.Unmarshal(line, &r); err != nil || r.Body == "" {
		return domain.Review{}, false
	}
	return r, true
}

// scanLines calls fn for every non-blank line. Lines have no length limit.
func scanLines(r io.Reader, fn func(line []byte, terminated bool) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			terminated := line[len(line)-1] == '\n'
			if t := bytes.TrimSpace(line); len(t) > 0 {
				if ferr := fn(t, terminated); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
