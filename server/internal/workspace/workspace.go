package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workspace is an isolated directory owned by exactly one in-flight
// acquisition. It is never shared and never reused.
type Workspace struct {
	Id  string
	Dir string
}

// Manager allocates and destroys session workspaces under a base directory.
type Manager struct {
	base string
}

func NewManager(base string) *Manager {
	return &Manager{base: base}
}

// Create allocates a collision-free workspace directory. The id combines a
// high-resolution timestamp with a uuid so two concurrent requests can never
// collide even within the same nanosecond tick.
func (m *Manager) Create() (*Workspace, error) {
	id := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
	dir := filepath.Join(m.base, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{Id: id, Dir: dir}, nil
}

// Remove deletes the workspace directory and everything inside it.
func (m *Manager) Remove(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if !m.Owns(ws) {
		return errors.New("refusing to remove a directory outside the base path")
	}

	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", ws.Id, err)
	}

	slog.Debug("removed workspace", slog.String("id", ws.Id))
	return nil
}

// Owns reports whether the workspace directory lies under the base path.
func (m *Manager) Owns(ws *Workspace) bool {
	rel, err := filepath.Rel(m.base, ws.Dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Contains reports whether path lies inside the workspace directory.
func (ws *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(ws.Dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
