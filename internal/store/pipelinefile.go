// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// PipelineFile is the cached default pipeline config on disk.
type PipelineFile struct {
	path string
	mu   sync.Mutex
}

// NewPipelineFile returns a handle for the JSON file at path.
func NewPipelineFile(path string) *PipelineFile {
	return &PipelineFile{path: path}
}

// Path returns the file location.
func (p *PipelineFile) Path() string { return p.path }

// Load reads the cached config. A missing file reports false with no error.
func (p *PipelineFile) Load() (map[string]any, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read pipeline cache: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("decode pipeline cache %s: %w", p.path, err)
	}
	return out, true, nil
}

// Save replaces the cached config atomically; readers never see a partial file.
func (p *PipelineFile) Save(cfg map[string]any) error {
	if cfg == nil {
		return fmt.Errorf("pipeline cache: nil config")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pipeline cache: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p.path), 0o750); err != nil {
		return fmt.Errorf("create pipeline cache dir: %w", err)
	}
	if err := renameio.WriteFile(p.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write pipeline cache: %w", err)
	}
	return nil
}
