package jsonl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"review_harvester/internal/domain"
)

// WriteSummary replaces path atomically: readers see either the previous
// summary or the complete new one.
func WriteSummary(path string, s *domain.RunSummary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

func ReadSummary(path string) (*domain.RunSummary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s domain.RunSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", path, err)
	}
	if s.Targets == nil {
		s.Targets = map[string]domain.TargetSummary{}
	}
	return &s, nil
}
