package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLibraryResolve_BlocksParentEscape(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	_, err = lib.Resolve("../outside.jpg")
	if !errors.Is(err, ErrPathOutsideLibrary) {
		t.Fatalf("Resolve() error = %v, want ErrPathOutsideLibrary", err)
	}
}

func TestLibraryResolve_BlocksSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	lib, err := NewLibrary(root)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	_, err = lib.Resolve("escape/photo.jpg")
	if !errors.Is(err, ErrPathOutsideLibrary) {
		t.Fatalf("Resolve() error = %v, want ErrPathOutsideLibrary", err)
	}
}

func TestLibraryResolve_RootItselfIsNotAPhoto(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	if _, err := lib.Resolve("."); !errors.Is(err, ErrPathOutsideLibrary) {
		t.Fatalf("Resolve(.) error = %v, want ErrPathOutsideLibrary", err)
	}
}

func TestLibraryURIRoundTrip(t *testing.T) {
	lib, err := NewLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	abs, err := lib.Resolve("2024/beach/a.jpg")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	uri, err := lib.URI(abs)
	if err != nil {
		t.Fatalf("URI() error = %v", err)
	}
	if uri != "2024/beach/a.jpg" {
		t.Fatalf("URI() = %q, want 2024/beach/a.jpg", uri)
	}
}

func TestCleanAlbumName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "plain", in: "Summer 2024"},
		{name: "trimmed", in: "  Trips "},
		{name: "empty", in: " ", wantErr: true},
		{name: "parent", in: "..", wantErr: true},
		{name: "hidden", in: ".cache", wantErr: true},
		{name: "separator", in: "a/b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CleanAlbumName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanAlbumName(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
	if !IsImage("x/Y.JPG") || IsImage("notes.txt") {
		t.Fatalf("IsImage extension check failed")
	}
}
