package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// FileCache persists the IOC -> GeoRecord mapping as one JSON document,
// loaded fully per batch and rewritten fully on save. The rewrite goes
// through a temp file and rename so a crash mid-save never truncates the
// cache.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load(ctx context.Context) (map[string]*domain.GeoRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*domain.GeoRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read geo cache: %w", err)
	}

	entries := map[string]*domain.GeoRecord{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse geo cache: %w", err)
	}
	return entries, nil
}

func (c *FileCache) Save(ctx context.Context, entries map[string]*domain.GeoRecord) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal geo cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".geo_cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace geo cache: %w", err)
	}
	return nil
}
