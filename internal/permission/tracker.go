package permission

import (
	"errors"
	"sync"
	"time"
)

// Kind is the capability a mutation asks consent for.
type Kind string

const (
	KindDelete Kind = "delete"
	KindWrite  Kind = "write"
)

var ErrMutationPending = errors.New("another mutation is already awaiting consent")

// PendingMutation 等待同意的变更操作（同一时刻最多一个）
// PendingMutation is the saved state of a tool call suspended on consent.
type PendingMutation struct {
	ToolCallID string
	Tool       string
	Kind       Kind
	HandleID   string
	Targets    []string
	Args       map[string]any
	CreatedAt  time.Time
}

// Tracker holds at most one PendingMutation.
type Tracker struct {
	mu      sync.Mutex
	pending *PendingMutation
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin records p. It fails with ErrMutationPending when one is already tracked.
func (t *Tracker) Begin(p PendingMutation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return ErrMutationPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.Targets = append([]string(nil), p.Targets...)
	p.Args = cloneArgs(p.Args)
	t.pending = &p
	return nil
}

// Take removes and returns the pending mutation if its handle matches.
// A mismatched or absent mutation leaves the tracker untouched.
func (t *Tracker) Take(handleID string) (PendingMutation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil || t.pending.HandleID != handleID {
		return PendingMutation{}, false
	}
	p := *t.pending
	t.pending = nil
	return p, true
}

// Abort drops the pending mutation with handleID, used when the broker refuses
// to issue a handle.
func (t *Tracker) Abort(handleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil && t.pending.HandleID == handleID {
		t.pending = nil
	}
}

func (t *Tracker) Pending() (PendingMutation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return PendingMutation{}, false
	}
	return *t.pending, true
}

func cloneArgs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		out[k] = v
	}
	return out
}
