// Package files implements the workspace-confined filesystem tools: read,
// write, edit, glob, grep, and list.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves and validates workspace-relative paths.
//
// Containment is tested by path-component membership after resolving
// symlinks, never by string prefix: /workspace2/x must not be accepted when
// the root is /workspace.
type Resolver struct {
	Root string
}

// Resolve returns an absolute path guaranteed to live under the workspace
// root. Relative inputs are joined to the root; absolute inputs are
// accepted as-is and then validated. Symlinks and ".." segments are
// resolved before the containment check.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}

	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}

	resolved, err := resolveSymlinks(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("access denied: %q resolves outside the workspace", path)
	}
	return resolved, nil
}

// Rel returns the workspace-relative form of a resolved path, forward-slash
// separated for sandbox URLs.
func (r Resolver) Rel(resolved string) string {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return resolved
	}
	if evaluated, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = evaluated
	}
	rel, err := filepath.Rel(rootAbs, resolved)
	if err != nil {
		return resolved
	}
	return rel
}

// resolveSymlinks evaluates symlinks for the deepest existing ancestor of
// target, so paths that do not exist yet (write targets) still resolve.
func resolveSymlinks(target string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		return resolved, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(filepath.Clean(target))
	dir = filepath.Clean(dir)
	if dir == target {
		return target, nil
	}
	resolvedDir, err := resolveSymlinks(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
