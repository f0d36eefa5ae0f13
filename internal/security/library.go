package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathOutsideLibrary = errors.New("path outside photo library")

// Library confines photo URIs to a root directory. A URI is the slash-separated
// path of a photo relative to the root.
type Library struct {
	root string
}

func NewLibrary(root string) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs library root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	return &Library{root: resolved}, nil
}

func (l *Library) Root() string {
	return l.root
}

// Resolve maps a URI to an absolute path inside the library, following symlinks.
func (l *Library) Resolve(uri string) (string, error) {
	target := strings.TrimSpace(uri)
	if target == "" {
		return "", errors.New("photo uri is empty")
	}
	target = filepath.FromSlash(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(l.root, target)
	}

	clean := filepath.Clean(target)
	resolved, err := resolveWithParentSymlink(clean)
	if err != nil {
		return "", err
	}
	if _, err := l.rel(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// URI is the inverse of Resolve.
func (l *Library) URI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := resolveWithParentSymlink(filepath.Clean(abs))
	if err != nil {
		return "", err
	}
	rel, err := l.rel(resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (l *Library) rel(resolved string) (string, error) {
	rel, err := filepath.Rel(l.root, resolved)
	if err != nil {
		return "", fmt.Errorf("relative path check: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrPathOutsideLibrary
	}
	return rel, nil
}

func resolveWithParentSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)
	parentResolved, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		if errors.Is(perr, os.ErrNotExist) {
			parentResolved = parent
		} else {
			return "", fmt.Errorf("resolve parent symlink: %w", perr)
		}
	}
	return filepath.Join(parentResolved, base), nil
}
