package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoOutstanding = errors.New("no outstanding consent request")
	ErrBrokerBusy    = errors.New("consent broker already has an outstanding request")
)

// ConsentRequest asks the user to authorize one mutation. ID is chosen by the
// caller and comes back with the result.
type ConsentRequest struct {
	ID      string    `json:"id"`
	Tool    string    `json:"tool"`
	Kind    Kind      `json:"kind"`
	URIs    []string  `json:"uris"`
	Summary string    `json:"summary"`
	Created time.Time `json:"created_at"`
}

// Handle is the broker's receipt for an accepted request.
type Handle struct {
	ID string
}

// ResultFunc receives the user's decision for the request with handleID.
type ResultFunc func(handleID string, granted bool)

// Broker 异步授权破坏性操作；结果稍后通过 OnResult 回调送达
// Broker authorizes mutating operations asynchronously. Results arrive later
// through the function installed with OnResult, possibly never.
type Broker interface {
	RequestConsent(ctx context.Context, req ConsentRequest) (*Handle, error)
	OnResult(fn ResultFunc)
}

// QueueBroker holds the outstanding request until a presentation layer decides it.
// Presentation layers poll Outstanding.
type QueueBroker struct {
	mu          sync.Mutex
	outstanding *ConsentRequest
	onResult    ResultFunc
}

func NewQueueBroker() *QueueBroker {
	return &QueueBroker{}
}

func (b *QueueBroker) RequestConsent(_ context.Context, req ConsentRequest) (*Handle, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, fmt.Errorf("consent request id is empty")
	}
	if len(req.URIs) == 0 {
		return nil, fmt.Errorf("consent request has no photos")
	}
	b.mu.Lock()
	if b.outstanding != nil {
		b.mu.Unlock()
		return nil, ErrBrokerBusy
	}
	if req.Created.IsZero() {
		req.Created = time.Now()
	}
	req.URIs = append([]string(nil), req.URIs...)
	b.outstanding = &req
	b.mu.Unlock()
	return &Handle{ID: req.ID}, nil
}

func (b *QueueBroker) OnResult(fn ResultFunc) {
	b.mu.Lock()
	b.onResult = fn
	b.mu.Unlock()
}

func (b *QueueBroker) Outstanding() (ConsentRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outstanding == nil {
		return ConsentRequest{}, false
	}
	return *b.outstanding, true
}

// Decide resolves the outstanding request and invokes the result handler on the
// caller's goroutine.
func (b *QueueBroker) Decide(id string, granted bool) error {
	b.mu.Lock()
	if b.outstanding == nil || b.outstanding.ID != id {
		b.mu.Unlock()
		return ErrNoOutstanding
	}
	b.outstanding = nil
	fn := b.onResult
	b.mu.Unlock()
	if fn != nil {
		fn(id, granted)
	}
	return nil
}
