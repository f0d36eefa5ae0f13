// Package conversation holds the observable conversation state: the transcript,
// the session status, the live UI selection and the two selection caches.
// Presentation layers read it through Snapshot or Subscribe.
package conversation

import (
	"sync"

	"photoagent/internal/chat"
)

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Messages       []chat.Message `json:"messages"`
	Status         Status         `json:"status"`
	Selection      []string       `json:"selection"`
	LastSearch     []string       `json:"last_search"`
	LastManual     []string       `json:"last_manual"`
	GalleryVersion uint64         `json:"gallery_version"`
}

type Store struct {
	mu             sync.RWMutex
	messages       []chat.Message
	status         Status
	selection      []string
	lastSearch     []string
	lastManual     []string
	galleryVersion uint64

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]chan Snapshot)}
}

// Append adds messages to the transcript. Appended messages are never modified.
func (s *Store) Append(msgs ...chat.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	for _, m := range msgs {
		s.messages = append(s.messages, m.Clone())
	}
	s.mu.Unlock()
	s.publish()
}

// Restore replaces the transcript, used when resuming a saved conversation.
func (s *Store) Restore(msgs []chat.Message) {
	s.mu.Lock()
	s.messages = make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		s.messages = append(s.messages, m.Clone())
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) SetStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed {
		s.publish()
	}
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetSelection replaces the live UI selection.
func (s *Store) SetSelection(uris []string) {
	s.mu.Lock()
	s.selection = dedupe(uris)
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.selection)
}

// TakeSelection returns and clears the live UI selection.
func (s *Store) TakeSelection() []string {
	s.mu.Lock()
	sel := s.selection
	s.selection = nil
	s.mu.Unlock()
	if len(sel) > 0 {
		s.publish()
	}
	return sel
}

// SetLastSearch records search results; an empty result leaves the cache alone.
func (s *Store) SetLastSearch(uris []string) {
	if len(uris) == 0 {
		return
	}
	s.mu.Lock()
	s.lastSearch = dedupe(uris)
	s.mu.Unlock()
	s.publish()
}

// SetLastManual records a captured manual selection; an empty one leaves the cache alone.
func (s *Store) SetLastManual(uris []string) {
	if len(uris) == 0 {
		return
	}
	s.mu.Lock()
	s.lastManual = dedupe(uris)
	s.mu.Unlock()
	s.publish()
}

func (s *Store) LastSearch() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.lastSearch)
}

func (s *Store) LastManual() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.lastManual)
}

// Forget removes uris from both selection caches and the live selection.
func (s *Store) Forget(uris []string) {
	if len(uris) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(uris))
	for _, u := range uris {
		drop[u] = struct{}{}
	}
	s.mu.Lock()
	s.lastSearch = without(s.lastSearch, drop)
	s.lastManual = without(s.lastManual, drop)
	s.selection = without(s.selection, drop)
	s.mu.Unlock()
	s.publish()
}

// NotifyGalleryChanged bumps the gallery version so views can refresh.
func (s *Store) NotifyGalleryChanged() {
	s.mu.Lock()
	s.galleryVersion++
	s.mu.Unlock()
	s.publish()
}

func (s *Store) GalleryVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.galleryVersion
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Messages:       cloneMessages(s.messages),
		Status:         s.status,
		Selection:      clone(s.selection),
		LastSearch:     clone(s.lastSearch),
		LastManual:     clone(s.lastManual),
		GalleryVersion: s.galleryVersion,
	}
}

// Subscribe returns a channel that always holds the latest snapshot. Slow readers
// skip intermediate states. cancel closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publish() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneMessages(in []chat.Message) []chat.Message {
	out := make([]chat.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func without(in []string, drop map[string]struct{}) []string {
	out := in[:0:0]
	for _, u := range in {
		if _, ok := drop[u]; !ok {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
