package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"review_harvester/internal/app"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadIdentifiers_Priority(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "companies", "legacy-a\nlegacy-b\n")
	write(t, dir, "company", "single\n")
	list := write(t, dir, "mine.txt", "x.com\n\n  y.com  \n# comment\n")

	ids, err := app.LoadIdentifiers(" nike.com ", list, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"nike.com"}, ids)

	ids, err = app.LoadIdentifiers("", list, dir)
	require.NoError(t, err)
	require.Equal(t, []string{"x.com", "y.com"}, ids)

	ids, err = app.LoadIdentifiers("", "", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"legacy-a", "legacy-b"}, ids)
}

func TestLoadIdentifiers_LegacySingleFirstLine(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "company", "\nstarbucks\nignored\n")

	ids, err := app.LoadIdentifiers("", "", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"starbucks"}, ids)
}

func TestLoadIdentifiers_EmptyLegacyListFallsThrough(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "companies", "\n\n")
	write(t, dir, "company", "apple.com")

	ids, err := app.LoadIdentifiers("", "", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"apple.com"}, ids)
}

func TestLoadIdentifiers_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := app.LoadIdentifiers("", "", dir)
	require.ErrorIs(t, err, app.ErrNoInput)

	_, err = app.LoadIdentifiers("", filepath.Join(dir, "missing.txt"), dir)
	require.Error(t, err)
	require.NotErrorIs(t, err, app.ErrNoInput)

	empty := write(t, dir, "empty.txt", "  \n")
	_, err = app.LoadIdentifiers("", empty, dir)
	require.ErrorIs(t, err, app.ErrNoInput)
}
