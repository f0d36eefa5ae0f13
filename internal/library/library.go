// Package library defines the embedding store contract the engine reads photos from.
package library

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("photo not found")

// Record 照片的嵌入向量与元数据（核心只读）
// Record is one indexed photo: identifier, embedding and metadata.
type Record struct {
	URI       string    `json:"uri"`
	Embedding []float32 `json:"-"`
	Location  string    `json:"location,omitempty"`
	TakenAt   time.Time `json:"taken_at"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	People    []string  `json:"people,omitempty"`
	Deleted   bool      `json:"deleted"`
}

// HasPerson reports whether any of ids is tagged on the record.
func (r Record) HasPerson(ids []string) bool {
	for _, want := range ids {
		for _, got := range r.People {
			if got == want {
				return true
			}
		}
	}
	return false
}

// Store 嵌入存储接口（按 URI 读写）
// Store is the keyed embedding store. All returns every record, soft-deleted ones included,
// in a stable order.
type Store interface {
	All(ctx context.Context) ([]Record, error)
	ByURI(ctx context.Context, uri string) (Record, error)
	Put(ctx context.Context, rec Record) error
	DeleteByURI(ctx context.Context, uri string) error
	SoftDelete(ctx context.Context, uris []string) error
	Restore(ctx context.Context, uris []string) error
}

// Live filters out soft-deleted records, keeping order.
func Live(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Deleted {
			continue
		}
		out = append(out, r)
	}
	return out
}
