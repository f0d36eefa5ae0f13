package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"photoagent/internal/chat"
	"photoagent/internal/config"
	"photoagent/internal/conversation"
	"photoagent/internal/i18n"
	"photoagent/internal/library"
	"photoagent/internal/media"
	"photoagent/internal/permission"
	"photoagent/internal/planner"
	"photoagent/internal/similarity"
	"photoagent/internal/storage"
	"photoagent/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type reply struct {
	resp planner.Response
	err  error
}

// scriptedPlanner answers requests with canned replies in order.
type scriptedPlanner struct {
	mu       sync.Mutex
	replies  []reply
	requests []planner.Request
	gate     chan struct{}
	started  chan struct{}
}

func (p *scriptedPlanner) Send(ctx context.Context, req planner.Request) (planner.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	gate, started := p.gate, p.started
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return planner.Response{}, errors.New("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.resp, r.err
}

func (p *scriptedPlanner) sent() []planner.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]planner.Request(nil), p.requests...)
}

func complete(session, text string) reply {
	return reply{resp: planner.Response{SessionID: session, Status: planner.StatusComplete, AgentMessage: &text}}
}

func action(session, id, name string, args map[string]any) reply {
	return reply{resp: planner.Response{
		SessionID:   session,
		Status:      planner.StatusRequiresAction,
		NextActions: []planner.NextAction{{ID: id, Name: name, Args: args}},
	}}
}

type spyMedia struct {
	mu        sync.Mutex
	moveCalls int
}

func (m *spyMedia) CreateCollage(context.Context, []string) (string, error) { return "", nil }

func (m *spyMedia) ApplyFilter(context.Context, []string, string) ([]string, error) { return nil, nil }

func (m *spyMedia) Move(_ context.Context, uris []string, _ string) (media.MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveCalls++
	return media.MoveResult{Relocated: uris}, nil
}

func (m *spyMedia) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moveCalls
}

type textEncoder map[string][]float32

func (e textEncoder) EncodeText(_ context.Context, text string) ([]float32, error) {
	v, ok := e[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

type memTranscript struct {
	mu       sync.Mutex
	metas    map[string]storage.ConversationMeta
	messages map[string][]chat.Message
	starts   []int
}

func newMemTranscript() *memTranscript {
	return &memTranscript{metas: map[string]storage.ConversationMeta{}, messages: map[string][]chat.Message{}}
}

func (t *memTranscript) CreateConversation(meta storage.ConversationMeta) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.metas[meta.ID]; ok {
		return fmt.Errorf("conversation %s exists", meta.ID)
	}
	t.metas[meta.ID] = meta
	return nil
}

func (t *memTranscript) SaveConversation(meta storage.ConversationMeta) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metas[meta.ID] = meta
	return nil
}

func (t *memTranscript) AppendMessages(id string, start int, msgs []chat.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if start != len(t.messages[id]) {
		return fmt.Errorf("gap: start=%d have=%d", start, len(t.messages[id]))
	}
	t.starts = append(t.starts, start)
	t.messages[id] = append(t.messages[id], msgs...)
	return nil
}

type harness struct {
	ctrl    *Controller
	planner *scriptedPlanner
	state   *conversation.Store
	store   *library.MemoryStore
	broker  *permission.QueueBroker
	media   *spyMedia
	trans   *memTranscript
}

func newHarness(t *testing.T, replies ...reply) *harness {
	t.Helper()
	var seq atomic.Int64
	newID := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }

	h := &harness{
		planner: &scriptedPlanner{replies: replies},
		state:   conversation.NewStore(),
		store: library.NewMemoryStore(
			photo("A", 1, 0, 0), photo("B", 1, 0, 0), photo("C", 1, 0, 0), photo("D", 0, 1, 0),
		),
		broker: permission.NewQueueBroker(),
		media:  &spyMedia{},
		trans:  newMemTranscript(),
	}
	env := tools.Env{
		State:  h.state,
		Store:  h.store,
		Search: similarity.NewEngine(h.store, textEncoder{"beach": {1, 0, 0}}, similarity.Options{Location: time.UTC}),
		Media:  h.media,
		NewID:  newID,
	}
	var ctrl *Controller
	dispatcher := tools.NewDispatcher(tools.NewRegistry(tools.Builtin(env)...), tools.DispatcherOptions{
		Policy:         permission.New(config.PermissionConfig{}),
		Broker:         h.broker,
		State:          h.state,
		NewID:          newID,
		ConversationID: func() string { return ctrl.ConversationID() },
	})
	ctrl = New(Options{
		Planner:    h.planner,
		Dispatcher: dispatcher,
		State:      h.state,
		Transcript: h.trans,
		NewID:      newID,
	})
	h.ctrl = ctrl
	return h
}

func photo(uri string, v ...float32) library.Record {
	return library.Record{URI: uri, Embedding: v, TakenAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (h *harness) lastMessage() chat.Message {
	msgs := h.state.Messages()
	return msgs[len(msgs)-1]
}

func TestSubmit_CompleteReturnsToIdle(t *testing.T) {
	h := newHarness(t, reply{resp: planner.Response{
		SessionID:        "s-1",
		Status:           planner.StatusComplete,
		AgentMessage:     strPtr("Hello!"),
		SuggestedActions: []chat.SuggestedAction{{Label: "Find beach photos", Prompt: "show me the beach"}},
	}})

	if !h.ctrl.SubmitUserInput(context.Background(), "  hi  ") {
		t.Fatalf("input rejected")
	}
	msgs := h.state.Messages()
	if len(msgs) != 2 || msgs[0].Sender != chat.SenderUser || msgs[0].Text != "hi" {
		t.Fatalf("transcript=%+v", msgs)
	}
	if msgs[1].Sender != chat.SenderAgent || msgs[1].Text != "Hello!" || len(msgs[1].Suggested) != 1 {
		t.Fatalf("agent message=%+v", msgs[1])
	}
	if h.state.Status() != conversation.StatusIdle {
		t.Fatalf("status=%s", h.state.Status())
	}
	if h.ctrl.SessionID() != "s-1" {
		t.Fatalf("session id=%q", h.ctrl.SessionID())
	}
	if s, ok := h.ctrl.Suggestion(1); !ok || s.Prompt != "show me the beach" {
		t.Fatalf("suggestion=%+v ok=%v", s, ok)
	}
	if _, ok := h.ctrl.Suggestion(2); ok {
		t.Fatalf("out-of-range suggestion accepted")
	}
	if h.ctrl.SubmitUserInput(context.Background(), "   ") {
		t.Fatalf("blank input accepted")
	}
}

func TestBusyGuard_DropsInputWhileLoading(t *testing.T) {
	h := newHarness(t, complete("s-1", "done"))
	h.planner.gate = make(chan struct{})
	h.planner.started = make(chan struct{}, 1)

	if !h.ctrl.SubmitUserInputAsync(context.Background(), "first") {
		t.Fatalf("first input rejected")
	}
	<-h.planner.started
	if h.state.Status() != conversation.StatusLoading {
		t.Fatalf("status=%s", h.state.Status())
	}
	if h.ctrl.SubmitUserInput(context.Background(), "second") {
		t.Fatalf("input accepted while loading")
	}
	if n := h.state.Len(); n != 1 {
		t.Fatalf("transcript changed while busy: %d messages", n)
	}

	close(h.planner.gate)
	h.ctrl.Wait()
	if h.state.Status() != conversation.StatusIdle || len(h.planner.sent()) != 1 {
		t.Fatalf("status=%s requests=%d", h.state.Status(), len(h.planner.sent()))
	}
}

func TestDeleteConsent_ExactlyOneResultAndCachesCleared(t *testing.T) {
	h := newHarness(t,
		action("s-1", "call-del", "delete_photos", nil),
		complete("s-1", "Deleted."),
	)
	ctx := context.Background()
	h.state.SetSelection([]string{"A", "B", "C"})
	h.state.SetLastSearch([]string{"A", "B", "C", "D"})

	h.ctrl.SubmitUserInput(ctx, "delete these")
	if h.state.Status() != conversation.StatusRequiresPermission {
		t.Fatalf("status=%s", h.state.Status())
	}
	if h.ctrl.SubmitUserInput(ctx, "hello?") {
		t.Fatalf("input accepted while awaiting consent")
	}
	req, ok := h.broker.Outstanding()
	if !ok {
		t.Fatalf("no consent request")
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, req.URIs); diff != "" {
		t.Fatalf("consent uris (-want +got):\n%s", diff)
	}

	if !h.ctrl.ResolveConsent(ctx, req.ID, true) {
		t.Fatalf("consent rejected")
	}
	if h.ctrl.ResolveConsent(ctx, req.ID, true) {
		t.Fatalf("second resolution accepted")
	}

	var results []planner.ToolResult
	for _, r := range h.planner.sent() {
		if r.ToolResult != nil {
			results = append(results, *r.ToolResult)
		}
	}
	want := []planner.ToolResult{{ToolCallID: "call-del", Content: "true"}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("tool results (-want +got):\n%s", diff)
	}
	if got := h.state.LastManual(); len(got) != 0 {
		t.Fatalf("manual cache=%v", got)
	}
	if got := h.state.LastSearch(); !cmp.Equal(got, []string{"D"}) {
		t.Fatalf("search cache=%v", got)
	}
	if h.state.Status() != conversation.StatusIdle || h.lastMessage().Text != "Deleted." {
		t.Fatalf("status=%s last=%+v", h.state.Status(), h.lastMessage())
	}
}

func TestMoveDenied_ThroughBrokerNeverMoves(t *testing.T) {
	h := newHarness(t,
		action("s-1", "call-mv", "move_photos_to_album", map[string]any{"album": "Trips", "photo_uris": []any{"A"}}),
		complete("s-1", "Okay, I left them where they are."),
	)
	ctx := context.Background()
	h.ctrl.Attach(ctx, h.broker)

	h.ctrl.SubmitUserInput(ctx, "move A to Trips")
	req, ok := h.broker.Outstanding()
	if !ok {
		t.Fatalf("no consent request")
	}
	if err := h.broker.Decide(req.ID, false); err != nil {
		t.Fatalf("decide: %v", err)
	}
	h.ctrl.Wait()

	if n := h.media.calls(); n != 0 {
		t.Fatalf("move called %d times after denial", n)
	}
	sent := h.planner.sent()
	last := sent[len(sent)-1]
	if last.ToolResult == nil || last.ToolResult.ToolCallID != "call-mv" || last.ToolResult.Content != "false" {
		t.Fatalf("tool result=%+v", last.ToolResult)
	}
	if h.state.Status() != conversation.StatusIdle {
		t.Fatalf("status=%s", h.state.Status())
	}
}

func TestSessionIDPropagation(t *testing.T) {
	h := newHarness(t, complete("s-1", "one"), complete("s-2", "two"), complete("s-2", "three"))
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if !h.ctrl.SubmitUserInput(ctx, text) {
			t.Fatalf("input %q rejected", text)
		}
	}
	var got []string
	for _, r := range h.planner.sent() {
		got = append(got, r.Session())
	}
	if diff := cmp.Diff([]string{"", "s-1", "s-2"}, got); diff != "" {
		t.Fatalf("session ids (-want +got):\n%s", diff)
	}
}

func TestSelectionIsCapturedAndCleared(t *testing.T) {
	h := newHarness(t,
		complete("s-1", "ok"),
		action("s-1", "call-del", "delete_photos", map[string]any{"photo_uris": []any{"A", "B"}}),
	)
	ctx := context.Background()
	h.state.SetSelection([]string{"C", "D"})

	h.ctrl.SubmitUserInput(ctx, "look at these")
	first := h.planner.sent()[0]
	if !cmp.Equal(first.SelectedURIs, []string{"C", "D"}) {
		t.Fatalf("selected uris=%v", first.SelectedURIs)
	}
	if len(h.state.Selection()) != 0 {
		t.Fatalf("UI selection not cleared")
	}

	// empty selection at submission keeps the previous manual cache
	h.ctrl.SubmitUserInput(ctx, "delete A and B")
	if got := h.planner.sent()[1].SelectedURIs; got != nil {
		t.Fatalf("selected uris=%v", got)
	}
	req, ok := h.broker.Outstanding()
	if !ok || !cmp.Equal(req.URIs, []string{"C", "D"}) {
		t.Fatalf("consent uris=%v ok=%v", req.URIs, ok)
	}
}

func TestStaleConsentIsIgnored(t *testing.T) {
	h := newHarness(t)
	if h.ctrl.ResolveConsent(context.Background(), "nobody", true) {
		t.Fatalf("stale consent accepted")
	}
	if h.state.Status() != conversation.StatusIdle || len(h.planner.sent()) != 0 || h.state.Len() != 0 {
		t.Fatalf("stale consent changed state")
	}
}

func TestEmptyNextActionsIsError(t *testing.T) {
	h := newHarness(t, reply{resp: planner.Response{SessionID: "s-1", Status: planner.StatusRequiresAction}})
	h.ctrl.SubmitUserInput(context.Background(), "do it")
	last := h.lastMessage()
	if last.Sender != chat.SenderError || last.Text != i18n.T("error.no_actions") {
		t.Fatalf("last=%+v", last)
	}
	if h.state.Status() != conversation.StatusIdle {
		t.Fatalf("status=%s", h.state.Status())
	}
}

func TestTransportErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, reply{err: errors.New("connection refused")}, complete("s-1", "back"))
	ctx := context.Background()

	h.ctrl.SubmitUserInput(ctx, "hi")
	last := h.lastMessage()
	if last.Sender != chat.SenderError || last.Text != i18n.T("error.planner", "connection refused") {
		t.Fatalf("last=%+v", last)
	}
	if h.state.Status() != conversation.StatusIdle {
		t.Fatalf("status=%s", h.state.Status())
	}
	if !h.ctrl.SubmitUserInput(ctx, "again") {
		t.Fatalf("session stuck after error")
	}
}

func TestUnknownStatusIsError(t *testing.T) {
	h := newHarness(t, reply{resp: planner.Response{Status: "thinking"}})
	h.ctrl.SubmitUserInput(context.Background(), "hi")
	if last := h.lastMessage(); last.Sender != chat.SenderError || last.Text != i18n.T("error.status", "thinking") {
		t.Fatalf("last=%+v", last)
	}
}

func TestSearchChainsIntoNextRequest(t *testing.T) {
	h := newHarness(t,
		reply{resp: planner.Response{
			SessionID:    "s-1",
			Status:       planner.StatusRequiresAction,
			AgentMessage: strPtr("Searching."),
			NextActions: []planner.NextAction{
				{ID: "call-s", Name: "search_photos", Args: map[string]any{"query": "beach"}},
				{ID: "call-x", Name: "scan_for_cleanup"},
			},
		}},
		action("s-1", "call-u", "rotate_photos", nil),
		complete("s-1", "Here they are."),
	)
	h.ctrl.SubmitUserInput(context.Background(), "beach photos")

	sent := h.planner.sent()
	if len(sent) != 3 {
		t.Fatalf("requests=%d", len(sent))
	}
	if r := sent[1].ToolResult; r == nil || r.ToolCallID != "call-s" || r.Content != `{"photos_found":3}` {
		t.Fatalf("search result=%+v", r)
	}
	if r := sent[2].ToolResult; r == nil || r.Content != `{"error":"unknown tool: rotate_photos"}` {
		t.Fatalf("unknown tool result=%+v", r)
	}
	if got := h.state.LastSearch(); !cmp.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("last search=%v", got)
	}
	var senders []chat.Sender
	for _, m := range h.state.Messages() {
		senders = append(senders, m.Sender)
	}
	want := []chat.Sender{chat.SenderUser, chat.SenderAgent, chat.SenderAgent, chat.SenderAgent}
	if diff := cmp.Diff(want, senders); diff != "" {
		t.Fatalf("senders (-want +got):\n%s", diff)
	}
}

func TestTranscriptIsPersistedIncrementally(t *testing.T) {
	h := newHarness(t, complete("s-1", "one"), complete("s-1", "two"))
	ctx := context.Background()
	h.ctrl.SubmitUserInput(ctx, "first request")
	h.ctrl.SubmitUserInput(ctx, "second")

	id := h.ctrl.ConversationID()
	h.trans.mu.Lock()
	defer h.trans.mu.Unlock()
	if n := len(h.trans.messages[id]); n != 4 {
		t.Fatalf("persisted %d messages", n)
	}
	if !cmp.Equal(h.trans.starts, []int{0, 2}) {
		t.Fatalf("starts=%v", h.trans.starts)
	}
	meta := h.trans.metas[id]
	if meta.PlannerSessionID != "s-1" || meta.Title != "first request" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestResumeEchoesStoredSession(t *testing.T) {
	h := newHarness(t, complete("s-9", "welcome back"))
	history := []chat.Message{
		{ID: "m1", Text: "hi", Sender: chat.SenderUser},
		{ID: "m2", Text: "hello", Sender: chat.SenderAgent},
	}
	meta := storage.ConversationMeta{ID: "conv-old", PlannerSessionID: "s-9", Title: "hi"}
	h.trans.metas[meta.ID] = meta
	h.trans.messages[meta.ID] = history
	h.ctrl.Resume(meta, history)

	h.ctrl.SubmitUserInput(context.Background(), "more")
	if got := h.planner.sent()[0].Session(); got != "s-9" {
		t.Fatalf("session=%q", got)
	}
	if h.state.Len() != 4 {
		t.Fatalf("transcript length=%d", h.state.Len())
	}
	h.trans.mu.Lock()
	defer h.trans.mu.Unlock()
	if n := len(h.trans.messages["conv-old"]); n != 4 {
		t.Fatalf("persisted=%d", n)
	}
}

func strPtr(s string) *string { return &s }
