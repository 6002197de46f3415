// ABOUTME: Workspace confines tool file access to one root directory
// ABOUTME: Paths may be relative to the root or absolute inside it

package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Workspace is the directory the local tools operate in.
type Workspace struct {
	Root         string
	ShellTimeout time.Duration
}

// NewWorkspace creates a workspace rooted at root, defaulting to the current directory.
func NewWorkspace(root string, shellTimeout time.Duration) (*Workspace, error) {
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if shellTimeout <= 0 {
		shellTimeout = 10 * time.Minute
	}
	return &Workspace{Root: abs, ShellTimeout: shellTimeout}, nil
}

// Resolve returns the absolute form of p and rejects paths outside the root.
func (w *Workspace) Resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	abs := filepath.Clean(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.Root, abs)
	}
	if abs != w.Root && !strings.HasPrefix(abs, w.Root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace %s", p, w.Root)
	}
	return abs, nil
}

// rel returns p relative to the root for display.
func (w *Workspace) rel(p string) string {
	r, err := filepath.Rel(w.Root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
