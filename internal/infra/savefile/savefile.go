// Package savefile stores the snapshot as a JSON document on disk:
//
//	{ "balance": 10, "totalProduced": 25, "savedAt": 1700000000000,
//	  "items": { "technique": { "level": 1 } } }
//
// Writes go to a temp file first and are renamed into place, so a crash
// mid-write leaves the previous snapshot intact.
package savefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuffle-empire/shuffle/internal/domain"
)

// Store is a file-backed domain.SnapshotStore.
type Store struct {
	slot string
	path string
}

// New returns a store writing dir/<slot>.json.
func New(dir, slot string) *Store {
	if slot == "" {
		slot = "default"
	}
	return &Store{slot: slot, path: filepath.Join(dir, slot+ext)}
}

const ext = ".json"

// Slot returns the bound slot name.
func (s *Store) Slot() string { return s.slot }

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot. A missing file yields (nil, nil); an unreadable
// document yields ErrCorruptSnapshot.
func (s *Store) Load(ctx context.Context) (*domain.SaveState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrCorruptSnapshot, s.path)
	}

	var state domain.SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	if state.Items == nil {
		state.Items = map[string]domain.SavedItem{}
	}
	return &state, nil
}

// Save writes the snapshot atomically.
func (s *Store) Save(ctx context.Context, state domain.SaveState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Delete removes the snapshot file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every slot saved under dir with its SavedAt (epoch ms).
// Slots whose file cannot be decoded are listed with 0.
func List(ctx context.Context, dir string) (map[string]int64, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ext {
			continue
		}
		slot := strings.TrimSuffix(name, ext)
		state, err := New(dir, slot).Load(ctx)
		switch {
		case errors.Is(err, domain.ErrCorruptSnapshot):
			out[slot] = 0
		case err != nil:
			return nil, err
		case state != nil:
			out[slot] = state.SavedAt
		}
	}
	return out, nil
}

var _ domain.SnapshotStore = (*Store)(nil)
