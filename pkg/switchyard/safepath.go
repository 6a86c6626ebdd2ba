package switchyard

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SafePath is a root-confined path value: a pair of an absolute root and a
// relative component made up only of normal (non-dotdot) segments. It is the
// only path type the engine's mutating operations accept, so every syscall
// boundary carries the traversal-free guarantee by construction.
type SafePath struct {
	root string
	rel  string
}

// NewSafePath builds a SafePath from an absolute root and a candidate path.
// The candidate may be absolute (it must then lie under root) or relative.
// Any ".." component, any path prefix/volume component, or a candidate that
// lexically escapes root is rejected.
func NewSafePath(root, candidate string) (SafePath, error) {
	if !filepath.IsAbs(root) {
		return SafePath{}, errors.New("safepath: root must be absolute")
	}
	root = filepath.Clean(root)

	effective := candidate
	if filepath.IsAbs(candidate) {
		rel, err := filepath.Rel(root, filepath.Clean(candidate))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return SafePath{}, errors.New("safepath: path escapes root")
		}
		effective = rel
	}

	segs := strings.Split(filepath.ToSlash(effective), "/")
	var rel []string
	for _, seg := range segs {
		switch seg {
		case "", ".":
			// elided
		case "..":
			return SafePath{}, errors.New("safepath: dotdot component")
		default:
			rel = append(rel, seg)
		}
	}
	relPath := filepath.Join(rel...)

	norm := filepath.Join(root, relPath)
	if norm != root && !strings.HasPrefix(norm, root+string(filepath.Separator)) {
		return SafePath{}, errors.New("safepath: path escapes root")
	}
	return SafePath{root: root, rel: relPath}, nil
}

// Root returns the path's confinement root.
func (p SafePath) Root() string { return p.root }

// Rel returns the relative portion, used for deterministic id derivation.
func (p SafePath) Rel() string { return filepath.ToSlash(p.rel) }

// AsPath returns the joined absolute path, suitable for syscalls.
func (p SafePath) AsPath() string {
	if p.rel == "" {
		return p.root
	}
	return filepath.Join(p.root, p.rel)
}

// Dir returns the absolute directory containing AsPath().
func (p SafePath) Dir() string { return filepath.Dir(p.AsPath()) }

// Base returns the final path component.
func (p SafePath) Base() string { return filepath.Base(p.AsPath()) }

func (p SafePath) String() string { return p.AsPath() }

// Equal reports structural equality of two SafePath values.
func (p SafePath) Equal(o SafePath) bool { return p.root == o.root && p.rel == o.rel }
