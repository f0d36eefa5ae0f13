package library

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps records in insertion order. Used by tests and the offline CLI commands.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{records: make(map[string]Record, len(records))}
	for _, r := range records {
		_ = s.Put(context.Background(), r)
	}
	return s
}

func (s *MemoryStore) All(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, uri := range s.order {
		out = append(out, cloneRecord(s.records[uri]))
	}
	return out, nil
}

func (s *MemoryStore) ByURI(_ context.Context, uri string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[strings.TrimSpace(uri)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.URI]; !ok {
		s.order = append(s.order, rec.URI)
	}
	s.records[rec.URI] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) DeleteByURI(_ context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[uri]; !ok {
		return nil
	}
	delete(s.records, uri)
	for i, u := range s.order {
		if u == uri {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, uris []string) error {
	return s.setDeleted(uris, true)
}

func (s *MemoryStore) Restore(_ context.Context, uris []string) error {
	return s.setDeleted(uris, false)
}

func (s *MemoryStore) setDeleted(uris []string, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uri := range uris {
		rec, ok := s.records[uri]
		if !ok {
			continue
		}
		rec.Deleted = deleted
		s.records[uri] = rec
	}
	return nil
}

func cloneRecord(r Record) Record {
	r.Embedding = append([]float32(nil), r.Embedding...)
	r.People = append([]string(nil), r.People...)
	return r
}
