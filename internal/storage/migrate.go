package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"photoagent/internal/library"
)

// jsonPhoto is one entry of an exported library manifest.
type jsonPhoto struct {
	URI       string    `json:"uri"`
	Embedding []float32 `json:"embedding"`
	Location  string    `json:"location"`
	TakenAt   string    `json:"taken_at"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	People    []string  `json:"people"`
}

// ImportJSON 将 JSON 清单中的照片导入存储，已存在的 URI 会被覆盖
// ImportJSON loads a JSON manifest of photos into store. Existing URIs are overwritten.
// Entries without a URI or an embedding are skipped.
func ImportJSON(ctx context.Context, path string, store library.Store) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read manifest: %w", err)
	}
	var entries []jsonPhoto
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse manifest: %w", err)
	}

	imported := 0
	for _, e := range entries {
		if strings.TrimSpace(e.URI) == "" || len(e.Embedding) == 0 {
			continue
		}
		rec := library.Record{
			URI:       e.URI,
			Embedding: e.Embedding,
			Location:  e.Location,
			Width:     e.Width,
			Height:    e.Height,
			People:    e.People,
		}
		if e.TakenAt != "" {
			ts, err := parseTakenAt(e.TakenAt)
			if err != nil {
				log.Warn().Err(err).Str("uri", e.URI).Msg("skip manifest entry")
				continue
			}
			rec.TakenAt = ts
		}
		if err := store.Put(ctx, rec); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func parseTakenAt(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized taken_at %q", s)
}
