package jsonl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"review_harvester/internal/domain"
	"review_harvester/internal/storage/jsonl"
)

func review(body string) domain.Review {
	return domain.Review{
		Company:   "nike.com",
		Body:      body,
		ScrapedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceURL: "https://www.trustpilot.com/review/nike.com?page=1",
	}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := jsonl.New(t.TempDir())
	idx, n, err := s.Load(context.Background(), "none.jsonl")
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, idx.Len())
}

func TestStore_AppendThenReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := jsonl.New(dir)

	require.NoError(t, s.Append(ctx, "nike.com.jsonl", review("Great")))
	require.NoError(t, s.Append(ctx, "nike.com.jsonl", review("Slow shipping")))

	// a fresh store sees everything a previous one appended
	idx, n, err := jsonl.New(dir).Load(ctx, "nike.com.jsonl")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, idx.Has(domain.FingerprintOf("  great ")))
	require.True(t, idx.Has(domain.FingerprintOf("Slow shipping")))

	raw, err := os.ReadFile(filepath.Join(dir, "nike.com.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"body":"Great"`)
	require.Contains(t, lines[0], `"scraped_at":"2025-01-01T00:00:00Z"`)
}

func TestStore_LoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	content := `{"company":"a","body":"one"}
not json at all

{"company":"a","body":""}
{"company":"a","body":"two"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jsonl"), []byte(content), 0o644))

	idx, n, err := jsonl.New(dir).Load(context.Background(), "a.jsonl")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, idx.Len())
}

func TestStore_LoadAcceptsZonelessTimestamps(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	line := `{"company": "starbucks", "date": "2024-04-30", "author": "Ann", "body": "Great coffee", "rating": 5, "scraped_at": "2024-05-01T12:34:56.123456"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "starbucks.jsonl"), []byte(line), 0o644))

	s := jsonl.New(dir)
	idx, n, err := s.Load(ctx, "starbucks.jsonl")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, idx.Has(domain.FingerprintOf("great coffee")))
}

func TestStore_AppendAfterTornLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"body\":\"one\"}\n{\"body\":\"tw"), 0o644))

	s := jsonl.New(dir)
	_, n, err := s.Load(ctx, "a.jsonl")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, s.Append(ctx, "a.jsonl", review("three")))

	idx, n, err := jsonl.New(dir).Load(ctx, "a.jsonl")
	require.NoError(t, err)
	require.Equal(t, 2, n, "torn fragment stays isolated on its own line")
	require.True(t, idx.Has(domain.FingerprintOf("three")))
}

func TestStore_AppendFailureIsStoreError(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be makes the open fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.jsonl"), 0o755))

	err := jsonl.New(dir).Append(context.Background(), "a.jsonl", review("x"))
	var se *domain.StoreError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "a.jsonl", se.Key)
}

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := jsonl.New(t.TempDir())
	for _, b := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Append(ctx, "k.jsonl", review(b)))
	}

	page, err := s.List(ctx, "k.jsonl", 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	require.Equal(t, "r3", page.Items[0].Body)
	require.Equal(t, "r2", page.Items[1].Body)

	_, err = s.List(ctx, "missing.jsonl", 2)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
