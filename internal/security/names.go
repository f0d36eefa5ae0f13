package security

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// CleanAlbumName validates an album name taken from planner arguments. Albums are
// single directories under the library root, so separators and dot names are
// refused rather than rewritten.
func CleanAlbumName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("album name is empty")
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid album name %q", name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) {
			return "", fmt.Errorf("invalid album name %q", name)
		}
	}
	if len(name) > 128 {
		return "", fmt.Errorf("album name too long")
	}
	return name, nil
}
