// Package sandbox confines file writes to a designated root directory.
// Retrieved attachments arrive with filenames suggested by a remote peer,
// so every path is validated against the root before anything touches the
// filesystem, preventing path traversal out of the downloads directory.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard enforces a root-directory boundary on file paths.
type Guard struct {
	root string // absolute, symlink-resolved root
}

// NewGuard creates a guard for the given root directory. The path is made
// absolute and symlinks are resolved so comparisons are canonical; a root
// that does not exist yet resolves through its nearest existing parent.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	return &Guard{root: resolvePath(absPath)}, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string {
	return g.root
}

// ValidatePath checks that the given path stays within the root. Relative
// paths are resolved against the root.
func (g *Guard) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	resolved, err := g.ResolvePath(path)
	if err != nil {
		return err
	}

	if !g.isWithin(resolved) {
		return fmt.Errorf("path %q is outside the downloads directory", path)
	}
	return nil
}

// ResolvePath converts a path to its canonical absolute form, resolving
// relative paths against the root.
func (g *Guard) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	return resolvePath(filepath.Clean(path)), nil
}

func (g *Guard) isWithin(resolved string) bool {
	if resolved == g.root {
		return true
	}
	return strings.HasPrefix(resolved, g.root+string(filepath.Separator))
}

// resolvePath evaluates symlinks, walking up through non-existent leaf
// components so paths that will be created later still compare correctly.
func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var tail []string
	current := path
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
	}

	resolved, err := filepath.EvalSymlinks(current)
	if err != nil {
		return path
	}
	return filepath.Join(append([]string{resolved}, tail...)...)
}
