// Package sandbox confines caller-supplied relative paths to a project root.
//
// Resolution is purely textual plus boundary checks: candidates are joined to
// the root and cleaned, symlinks are evaluated for whatever part of the path
// already exists, and the protected zone is checked against the resolved
// result so that disguised traversal ("public/../.sitesmith/config.yaml")
// cannot reach it.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape is returned when a candidate resolves outside the root.
	ErrPathEscape = errors.New("path escapes project root")
	// ErrProtectedPath is returned when a candidate resolves into the protected zone.
	ErrProtectedPath = errors.New("path is protected")
)

// PathError records the candidate that failed resolution.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Sandbox holds a project root and its protected zone.
type Sandbox struct {
	root      string
	realRoot  string
	protected []string
}

// New creates a Sandbox rooted at root. Protected entries are root-relative
// paths (files or directories); empty entries are ignored.
func New(root string, protected ...string) (*Sandbox, error) {
	if root == "" {
		return nil, errors.New("sandbox root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	abs = filepath.Clean(abs)

	realRoot := abs
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		realRoot = r
	}

	s := &Sandbox{root: abs, realRoot: realRoot}
	for _, p := range protected {
		if n := normalizeRel(p); n != "" && n != "." {
			s.protected = append(s.protected, n)
		}
	}
	return s, nil
}

// Resolve is a convenience wrapper for one-off resolution.
func Resolve(root, candidate string, protected ...string) (string, error) {
	s, err := New(root, protected...)
	if err != nil {
		return "", err
	}
	return s.Resolve(candidate)
}

// Root returns the absolute project root.
func (s *Sandbox) Root() string { return s.root }

// Protected returns the normalized protected entries.
func (s *Sandbox) Protected() []string {
	return append([]string(nil), s.protected...)
}

// Resolve maps a root-relative candidate to an absolute path inside the root.
// The returned path carries no existence guarantee.
func (s *Sandbox) Resolve(candidate string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(candidate), `/\`)
	resolved := filepath.Clean(filepath.Join(s.root, rel))

	if !within(s.root, resolved) {
		return "", &PathError{Path: candidate, Err: ErrPathEscape}
	}

	real, err := evalExisting(resolved)
	if err != nil {
		return "", &PathError{Path: candidate, Err: err}
	}
	if !within(s.realRoot, real) {
		return "", &PathError{Path: candidate, Err: ErrPathEscape}
	}

	lexicalRel, _ := filepath.Rel(s.root, resolved)
	realRel, _ := filepath.Rel(s.realRoot, real)
	if s.IsProtected(lexicalRel) || s.IsProtected(realRel) {
		return "", &PathError{Path: candidate, Err: ErrProtectedPath}
	}

	return resolved, nil
}

// IsProtected reports whether a root-relative path equals, or is nested
// under, a protected entry.
func (s *Sandbox) IsProtected(rel string) bool {
	n := normalizeRel(rel)
	for _, p := range s.protected {
		if n == p || strings.HasPrefix(n, p+"/") {
			return true
		}
	}
	return false
}

// Rel returns the slash-separated path of abs relative to the root.
func (s *Sandbox) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", err
	}
	if !within(s.root, filepath.Join(s.root, rel)) {
		return "", &PathError{Path: abs, Err: ErrPathEscape}
	}
	return filepath.ToSlash(rel), nil
}

// within reports whether p equals root or is a descendant of it.
func within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// evalExisting evaluates symlinks on the deepest existing ancestor of p and
// re-appends the non-existent tail syntactically.
func evalExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func normalizeRel(p string) string {
	p = strings.TrimLeft(filepath.ToSlash(p), "/")
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}
