package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/EternisAI/orca/internal/protocol"
	"github.com/google/uuid"
)

const defaultWorkspaceDirName = "orca-workspace"

// DefaultWorkspaceRoot is <executable dir>/orca-workspace.
func DefaultWorkspaceRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultWorkspaceDirName)
	}
	return filepath.Join(filepath.Dir(exe), defaultWorkspaceDirName)
}

// Workspace is the directory one dispatch runs in. Every dispatch gets its
// own, named by a fresh uuid under the root.
type Workspace struct {
	Dir string
}

func NewWorkspace(root string) (*Workspace, error) {
	dir := filepath.Join(root, uuid.New().String())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}
	return &Workspace{Dir: dir}, nil
}

// Materialize writes each file into the workspace. A file that cannot be
// written, including one whose name points outside the workspace, is logged
// and skipped. It returns the number of files written.
func (w *Workspace) Materialize(files []protocol.File) int {
	written := 0
	for _, f := range files {
		if err := w.writeFile(f); err != nil {
			slog.Error("Failed to save file", "name", f.Name, "workspace", w.Dir, "error", err)
			continue
		}
		slog.Debug("Saved file", "name", f.Name, "size", len(f.Content))
		written++
	}
	return written
}

func (w *Workspace) writeFile(f protocol.File) error {
	name := filepath.FromSlash(f.Name)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("file name %q escapes the workspace", f.Name)
	}

	path := filepath.Join(w.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, f.Content, 0600)
}

func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.Dir); err != nil {
		slog.Error("Failed to remove workspace", "workspace", w.Dir, "error", err)
		return
	}
	slog.Debug("Cleaned up workspace", "workspace", w.Dir)
}
