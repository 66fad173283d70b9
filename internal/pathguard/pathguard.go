// Package pathguard confines user-supplied paths to a configured root
// directory. Every file-touching operation in the server goes through a
// Guard; handlers never join paths themselves.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrForbidden is returned when a path resolves outside the root.
var ErrForbidden = errors.New("path outside root directory")

// ErrInvalidName is returned for empty or dot-only create/rename targets.
var ErrInvalidName = errors.New("invalid file name")

// FileRef is a root-confined absolute path with metadata captured at
// resolve time. It is derived fresh per operation and never cached; the
// file can change between requests.
type FileRef struct {
	// Path is the absolute, symlink-resolved filesystem path.
	Path string
	// Rel is the slash-separated path relative to the root ("" for the
	// root itself).
	Rel string
	// Size in bytes at resolve time.
	Size int64
	// ModTime at resolve time.
	ModTime time.Time
	// IsDir reports whether the path is a directory.
	IsDir bool
}

// Guard checks user paths against a single root directory.
type Guard struct {
	root string // absolute, symlink-resolved
}

// New creates a Guard for root. The root must exist; symlinks in the
// root path itself are resolved once here so later prefix checks compare
// canonical paths.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	st, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string {
	return g.root
}

// CleanRelPath normalizes a user path like "", ".", "/a/b", "a//b" into a
// slash-based relative path without a leading slash ("" means the root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p) // force absolute for stable cleaning
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Resolve maps a user-supplied path to an existing file or directory
// under the root. Symlinks are resolved and the result must stay inside
// the root; anything else fails with ErrForbidden. A missing file
// surfaces the underlying os error (errors.Is(err, os.ErrNotExist)).
func (g *Guard) Resolve(userPath string) (*FileRef, error) {
	abs, rel, err := g.confine(userPath)
	if err != nil {
		return nil, err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	// A symlink inside the root may still point outside it.
	if !g.contains(resolved) {
		return nil, ErrForbidden
	}

	st, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}

	return &FileRef{
		Path:    resolved,
		Rel:     rel,
		Size:    st.Size(),
		ModTime: st.ModTime(),
		IsDir:   st.IsDir(),
	}, nil
}

// ResolveForWrite maps a user path to an absolute target for creation
// (upload, rename destination). The file itself need not exist, but its
// parent directory must and must be inside the root. The final name
// component is validated.
func (g *Guard) ResolveForWrite(userPath string) (string, error) {
	abs, rel, err := g.confine(userPath)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", ErrInvalidName
	}
	if err := ValidateName(path.Base(rel)); err != nil {
		return "", err
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	if !g.contains(parent) {
		return "", ErrForbidden
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

// ValidateName rejects names unusable as a create/rename target.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidName
	}
	if len(name) > 255 {
		return ErrInvalidName
	}
	return nil
}

// confine joins the cleaned user path onto the root and performs the
// lexical containment check. Symlink resolution happens in the callers.
func (g *Guard) confine(userPath string) (abs string, rel string, err error) {
	rel = CleanRelPath(userPath)
	if strings.Contains(rel, "\x00") {
		return "", "", ErrInvalidName
	}
	abs = filepath.Join(g.root, filepath.FromSlash(rel))
	if !g.contains(abs) {
		return "", "", ErrForbidden
	}
	return abs, rel, nil
}

// contains reports whether p equals the root or lives under it. The
// comparison respects path-segment boundaries; "/data2" is not inside
// "/data".
func (g *Guard) contains(p string) bool {
	p = filepath.Clean(p)
	return p == g.root || strings.HasPrefix(p, g.root+string(filepath.Separator))
}

// Within reports whether the (possibly relative) path p stays inside
// the root after lexical cleaning. Relative paths are interpreted
// against the root. This is a lexical check only; use Resolve for the
// symlink-safe variant.
func (g *Guard) Within(p string) bool {
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.root, p)
	}
	return g.contains(p)
}

// RelFromRoot converts an absolute path back to a slash-separated
// root-relative path, for reporting to clients.
func (g *Guard) RelFromRoot(abs string) string {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
