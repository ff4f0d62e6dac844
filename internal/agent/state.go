package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/EternisAI/orca/internal/protocol"
)

const DefaultStateFile = "client.uuid"

// StateFile holds the id the registry last assigned to this machine.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	if path == "" {
		path = DefaultStateFile
	}
	return &StateFile{path: path}
}

func (s *StateFile) Path() string {
	return s.path
}

// Load returns the persisted id, or the unregistered placeholder when no id
// has been saved.
func (s *StateFile) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return protocol.PlaceholderUnregistered, nil
		}
		return "", fmt.Errorf("failed to read state file: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return protocol.PlaceholderUnregistered, nil
	}
	return id, nil
}

// Save replaces the persisted id atomically.
func (s *StateFile) Save(id string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(id); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *StateFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
