package embedding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"photoagent/internal/library"
	"photoagent/internal/security"
)

const defaultWorkers = 4

// IndexStats summarizes one indexing pass.
type IndexStats struct {
	Total   int
	Indexed int
	Skipped int
	Failed  int
}

// Indexer walks the library root, encodes images and writes records to the store.
type Indexer struct {
	lib     *security.Library
	encoder ImageEncoder
	store   library.Store
	workers int
	// Force re-encodes photos already present in the store.
	Force bool
}

func NewIndexer(lib *security.Library, encoder ImageEncoder, store library.Store, workers int) *Indexer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Indexer{lib: lib, encoder: encoder, store: store, workers: workers}
}

// Index encodes every image under the library root with bounded parallelism.
// Per-file failures are counted and logged, not returned.
func (i *Indexer) Index(ctx context.Context) (IndexStats, error) {
	var paths []string
	err := filepath.WalkDir(i.lib.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != i.lib.Root() && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if security.IsImage(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return IndexStats{}, fmt.Errorf("walk library: %w", err)
	}

	stats := IndexStats{Total: len(paths)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			indexed, err := i.indexFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if errors.Is(err, context.Canceled) {
					return err
				}
				stats.Failed++
				log.Warn().Err(err).Str("path", path).Msg("index photo failed")
			case indexed:
				stats.Indexed++
			default:
				stats.Skipped++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	log.Info().Int("total", stats.Total).Int("indexed", stats.Indexed).Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).Msg("library indexed")
	return stats, nil
}

// IndexPath encodes a single file. A path that no longer exists is removed from the store.
func (i *Indexer) IndexPath(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		uri, uerr := i.lib.URI(path)
		if uerr != nil {
			return uerr
		}
		return i.store.DeleteByURI(ctx, uri)
	}
	_, err := i.indexFile(ctx, path)
	return err
}

func (i *Indexer) indexFile(ctx context.Context, path string) (bool, error) {
	uri, err := i.lib.URI(path)
	if err != nil {
		return false, err
	}
	existing, err := i.store.ByURI(ctx, uri)
	if err == nil && !i.Force && len(existing.Embedding) > 0 {
		return false, nil
	}
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return false, err
	}

	enc, err := i.encoder.EncodeImage(ctx, path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	rec := library.Record{
		URI:       uri,
		Embedding: enc.Vector,
		Width:     enc.Width,
		Height:    enc.Height,
		TakenAt:   info.ModTime().Truncate(time.Second),
		Location:  albumOf(uri),
		People:    existing.People,
		Deleted:   existing.Deleted,
	}
	if existing.Location != "" {
		rec.Location = existing.Location
	}
	if !existing.TakenAt.IsZero() {
		rec.TakenAt = existing.TakenAt
	}
	if err := i.store.Put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// albumOf uses the top-level directory as a location hint when nothing better is known.
func albumOf(uri string) string {
	if idx := strings.Index(uri, "/"); idx > 0 {
		return uri[:idx]
	}
	return ""
}
