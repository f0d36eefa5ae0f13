// Package media implements the file-level photo mutations: collages, filters,
// album moves and thumbnails. Every path goes through the library confinement.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"photoagent/internal/library"
	"photoagent/internal/security"
)

// Reindexer registers newly written files with the embedding store.
type Reindexer interface {
	IndexPath(ctx context.Context, path string) error
}

type Options struct {
	// OutputDir is the library-relative directory for collages and filtered copies.
	OutputDir string
	CellSize  int
	Quality   int
}

// FS performs media mutations against the library directory.
type FS struct {
	lib     *security.Library
	store   library.Store
	index   Reindexer
	opts    Options
	nowFunc func() time.Time
}

func NewFS(lib *security.Library, store library.Store, index Reindexer, opts Options) *FS {
	if strings.TrimSpace(opts.OutputDir) == "" {
		opts.OutputDir = "Edited"
	}
	if opts.CellSize <= 0 {
		opts.CellSize = 512
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	return &FS{lib: lib, store: store, index: index, opts: opts, nowFunc: time.Now}
}

// CreateCollage tiles the photos into a square-ish grid and returns the new URI.
func (f *FS) CreateCollage(ctx context.Context, uris []string) (string, error) {
	if len(uris) == 0 {
		return "", errors.New("no photos to combine")
	}
	imgs := make([]image.Image, 0, len(uris))
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := f.open(uri)
		if err != nil {
			return "", err
		}
		imgs = append(imgs, img)
	}

	cols := 1
	for cols*cols < len(imgs) {
		cols++
	}
	rows := (len(imgs) + cols - 1) / cols
	cell := f.opts.CellSize
	canvas := imaging.New(cols*cell, rows*cell, image.White)
	for i, img := range imgs {
		tile := imaging.Fill(img, cell, cell, imaging.Center, imaging.Lanczos)
		canvas = imaging.Paste(canvas, tile, image.Pt((i%cols)*cell, (i/cols)*cell))
	}

	name := fmt.Sprintf("collage_%s.jpg", f.nowFunc().Format("20060102_150405"))
	return f.save(ctx, canvas, name)
}

// ApplyFilter writes a filtered copy of each photo and returns the new URIs in input order.
// On failure the copies written so far are returned alongside the error.
func (f *FS) ApplyFilter(ctx context.Context, uris []string, filter string) ([]string, error) {
	fn, ok := lookupFilter(filter)
	if !ok {
		return nil, fmt.Errorf("unknown filter: %s (available: %s)", filter, strings.Join(FilterNames(), ", "))
	}
	if len(uris) == 0 {
		return nil, errors.New("no photos to filter")
	}
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		img, err := f.open(uri)
		if err != nil {
			return out, err
		}
		base := strings.TrimSuffix(filepath.Base(uri), filepath.Ext(uri))
		newURI, err := f.save(ctx, fn(img), fmt.Sprintf("%s_%s.jpg", base, normalizeFilter(filter)))
		if err != nil {
			return out, err
		}
		out = append(out, newURI)
	}
	return out, nil
}

// MoveResult lists what a move did. Relocated holds the old URIs of photos that
// changed place; photos already in the album count as neither relocated nor failed.
type MoveResult struct {
	Relocated []string
	Failed    []string
}

func (r MoveResult) OK() bool {
	return len(r.Failed) == 0
}

// Move relocates photos into album, a directory directly under the library root.
// Photos that moved stay moved when others fail.
func (f *FS) Move(ctx context.Context, uris []string, album string) (MoveResult, error) {
	var res MoveResult
	album, err := security.CleanAlbumName(album)
	if err != nil {
		return res, err
	}
	if len(uris) == 0 {
		return res, errors.New("no photos to move")
	}
	dir, err := f.lib.Resolve(album)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create album: %w", err)
	}

	for _, uri := range uris {
		relocated, err := f.moveOne(ctx, uri, dir)
		if relocated {
			res.Relocated = append(res.Relocated, uri)
		}
		if err != nil {
			log.Warn().Err(err).Str("uri", uri).Str("album", album).Msg("move photo failed")
			res.Failed = append(res.Failed, uri)
		}
	}
	return res, nil
}

// moveOne reports relocated once the file is renamed, even if the index update fails.
func (f *FS) moveOne(ctx context.Context, uri, dir string) (bool, error) {
	src, err := f.lib.Resolve(uri)
	if err != nil {
		return false, err
	}
	if filepath.Dir(src) == dir {
		return false, nil
	}
	dst, err := uniquePath(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return false, err
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("rename: %w", err)
	}
	newURI, err := f.lib.URI(dst)
	if err != nil {
		return true, err
	}
	rec, err := f.store.ByURI(ctx, uri)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return true, f.reindex(ctx, dst)
		}
		return true, err
	}
	rec.URI = newURI
	if err := f.store.Put(ctx, rec); err != nil {
		return true, err
	}
	return true, f.store.DeleteByURI(ctx, uri)
}

func (f *FS) open(uri string) (image.Image, error) {
	path, err := f.lib.Resolve(uri)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return img, nil
}

func (f *FS) save(ctx context.Context, img image.Image, name string) (string, error) {
	dir, err := f.lib.Resolve(f.opts.OutputDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path, err := uniquePath(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(f.opts.Quality)); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	if err := f.reindex(ctx, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("index new photo failed")
	}
	return f.lib.URI(path)
}

func (f *FS) reindex(ctx context.Context, path string) error {
	if f.index == nil {
		return nil
	}
	return f.index.IndexPath(ctx, path)
}

// uniquePath appends _1, _2, ... until the name is free.
func uniquePath(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, nil
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s", filepath.Base(path))
}
