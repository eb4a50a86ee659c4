package media

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// skipDirs are build and VCS directories excluded from media scans.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	".vscode":      true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Scanner tracks the media files known to exist under a workspace so tools
// can report files that appear after an execution.
//
// The scan extension set includes .svg in addition to the classified media
// kinds; SVGs produced by plotting code are surfaced as images even though
// the read tool treats them as text.
type Scanner struct {
	workspace string

	mu          sync.Mutex
	known       map[string]bool
	initialized bool
}

// NewScanner creates a scanner rooted at workspace.
func NewScanner(workspace string) *Scanner {
	return &Scanner{workspace: workspace, known: map[string]bool{}}
}

func scannable(ext string) bool {
	return IsMediaExtension(ext) || strings.EqualFold(ext, ".svg")
}

// Snapshot walks the workspace and returns the relative paths of all media
// files. Top-level subdirectories are walked concurrently; the workspace of
// a busy agent accumulates large generated-asset trees and the scan runs
// after every code execution.
func (s *Scanner) Snapshot() (map[string]bool, error) {
	entries, err := os.ReadDir(s.workspace)
	if err != nil {
		return nil, err
	}

	found := map[string]bool{}
	var foundMu sync.Mutex
	var g errgroup.Group

	collect := func(rel string) {
		foundMu.Lock()
		found[rel] = true
		foundMu.Unlock()
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if scannable(filepath.Ext(entry.Name())) {
				collect(entry.Name())
			}
			continue
		}
		if skipDirs[entry.Name()] {
			continue
		}
		dir := filepath.Join(s.workspace, entry.Name())
		g.Go(func() error {
			return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if skipDirs[d.Name()] {
						return filepath.SkipDir
					}
					return nil
				}
				if !scannable(filepath.Ext(d.Name())) {
					return nil
				}
				rel, relErr := filepath.Rel(s.workspace, path)
				if relErr != nil {
					return nil
				}
				collect(rel)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// DiffNew snapshots the workspace and returns the media paths that were not
// known before, sorted, updating the known set.
func (s *Scanner) DiffNew() ([]string, error) {
	after, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		// First call establishes the baseline without reporting.
		s.known = after
		s.initialized = true
		return nil, nil
	}

	var added []string
	for rel := range after {
		if !s.known[rel] {
			added = append(added, rel)
		}
	}
	s.known = after
	sort.Strings(added)
	return added, nil
}

// Prime establishes the baseline snapshot so the next DiffNew reports only
// files created afterwards.
func (s *Scanner) Prime() error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.known = snap
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// FormatNew renders markdown refs and structured entries for newly found
// media paths. Unclassified scan hits (SVG) are treated as images.
func FormatNew(relPaths []string) (string, []Ref) {
	if len(relPaths) == 0 {
		return "", nil
	}
	var lines []string
	var refs []Ref
	for _, rel := range relPaths {
		kind := ClassifyPath(rel)
		if kind == KindUnknown {
			kind = KindImage
		}
		lines = append(lines, FormatSandboxRef(rel, kind))
		refs = append(refs, Ref{
			Type: kind,
			Name: filepath.Base(rel),
			URL:  SandboxURL(rel),
		})
	}
	return "\n\n" + strings.Join(lines, "\n\n"), refs
}
