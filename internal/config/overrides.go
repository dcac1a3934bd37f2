package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// OverrideStore is the persisted user-settings surface: five independent
// string slots read with priority over the environment on every
// resolution. Empty string means "unset, fall through".
type OverrideStore interface {
	Get(slot Slot) string
	Set(slot Slot, value string) error
	Snapshot() map[Slot]string
}

// MemoryOverrides is an in-memory OverrideStore, used in tests and as the
// default when no overrides path is configured.
type MemoryOverrides struct {
	mu    sync.RWMutex
	slots map[Slot]string
}

// NewMemoryOverrides creates an empty in-memory store
func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{slots: make(map[Slot]string)}
}

// Get returns the value for a slot, or empty
func (m *MemoryOverrides) Get(slot Slot) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[slot]
}

// Set stores a value for a slot; empty clears it
func (m *MemoryOverrides) Set(slot Slot, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.slots, slot)
		return nil
	}
	m.slots[slot] = value
	return nil
}

// Snapshot returns a copy of all set slots
func (m *MemoryOverrides) Snapshot() map[Slot]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[Slot]string, len(m.slots))
	for k, v := range m.slots {
		out[k] = v
	}
	return out
}

// FileOverrides is a YAML-file-backed OverrideStore. Writes persist
// atomically via a temp file rename.
type FileOverrides struct {
	mu    sync.RWMutex
	path  string
	slots map[Slot]string
}

// NewFileOverrides loads (or creates) an override store at path
func NewFileOverrides(path string) (*FileOverrides, error) {
	f := &FileOverrides{
		path:  path,
		slots: make(map[Slot]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	if err := yaml.Unmarshal(data, &f.slots); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}

	return f, nil
}

// Get returns the value for a slot, or empty
func (f *FileOverrides) Get(slot Slot) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.slots[slot]
}

// Set stores a value for a slot and persists the file; empty clears it
func (f *FileOverrides) Set(slot Slot, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if value == "" {
		delete(f.slots, slot)
	} else {
		f.slots[slot] = value
	}

	return f.save()
}

// Snapshot returns a copy of all set slots
func (f *FileOverrides) Snapshot() map[Slot]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[Slot]string, len(f.slots))
	for k, v := range f.slots {
		out[k] = v
	}
	return out
}

func (f *FileOverrides) save() error {
	data, err := yaml.Marshal(f.slots)
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create overrides dir: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write overrides: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace overrides file: %w", err)
	}

	return nil
}
