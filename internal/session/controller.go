// Package session drives the conversation with the planner: it enforces the
// busy guard, turns planner replies into tool calls and resumes turns that were
// suspended on user consent.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"photoagent/internal/chat"
	"photoagent/internal/conversation"
	"photoagent/internal/i18n"
	"photoagent/internal/metrics"
	"photoagent/internal/permission"
	"photoagent/internal/planner"
	"photoagent/internal/storage"
)

// Transcript persists the conversation. storage.SQLiteStore satisfies it.
type Transcript interface {
	CreateConversation(meta storage.ConversationMeta) error
	SaveConversation(meta storage.ConversationMeta) error
	AppendMessages(conversationID string, startSeq int, messages []chat.Message) error
}

// Dispatcher runs planner-issued tool calls. tools.Dispatcher satisfies it.
type Dispatcher interface {
	Execute(ctx context.Context, call chat.ToolCall) (*chat.ToolResult, bool)
	Resolve(ctx context.Context, handleID string, granted bool) (chat.ToolResult, bool)
}

// Thumbnailer renders a base64 preview of a library photo.
type Thumbnailer interface {
	Thumbnail(uri string, size int) (string, error)
}

type Options struct {
	Planner    planner.Planner
	Dispatcher Dispatcher
	State      *conversation.Store

	// 可选 / optional
	Transcript    Transcript
	Thumbnails    Thumbnailer
	ThumbnailSize int
	Metrics       *metrics.Metrics
	PlannerMode   string
	// NewID replaces both message and conversation IDs, for deterministic tests.
	NewID func() string
}

// Controller 会话状态机：Idle → Loading → {Idle | RequiresPermission → Loading} → Idle
// Controller is the session state machine. At most one turn is in flight; new
// input is dropped while the status is not Idle.
type Controller struct {
	planner    planner.Planner
	dispatcher Dispatcher
	state      *conversation.Store
	transcript Transcript
	thumbs     Thumbnailer
	thumbSize  int
	metrics    *metrics.Metrics
	newID      func() string

	// mu guards the status check-and-set and the session fields below.
	mu        sync.Mutex
	sessionID string
	meta      storage.ConversationMeta
	created   bool
	persisted int

	// turnMu serializes turn execution, so tool calls never run concurrently.
	turnMu sync.Mutex
	wg     sync.WaitGroup
}

func New(opts Options) *Controller {
	newID, convID := opts.NewID, opts.NewID
	if newID == nil {
		newID, convID = uuid.NewString, storage.NewConversationID
	}
	state := opts.State
	if state == nil {
		state = conversation.NewStore()
	}
	return &Controller{
		planner:    opts.Planner,
		dispatcher: opts.Dispatcher,
		state:      state,
		transcript: opts.Transcript,
		thumbs:     opts.Thumbnails,
		thumbSize:  opts.ThumbnailSize,
		metrics:    opts.Metrics,
		newID:      newID,
		meta: storage.ConversationMeta{
			ID:          convID(),
			PlannerMode: opts.PlannerMode,
		},
	}
}

// Resume continues a stored conversation: its transcript is restored and its
// planner session id is echoed on the next request.
func (c *Controller) Resume(meta storage.ConversationMeta, messages []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta = meta
	c.created = true
	c.sessionID = meta.PlannerSessionID
	c.persisted = len(messages)
	c.state.Restore(messages)
}

// State returns the store the controller publishes to.
func (c *Controller) State() *conversation.Store {
	return c.state
}

func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.ID
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SubmitUserInput runs a full turn and returns when it completes or suspends on
// consent. It returns false when the busy guard drops the input.
func (c *Controller) SubmitUserInput(ctx context.Context, text string) bool {
	selected, ok := c.begin(text)
	if !ok {
		return false
	}
	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	c.run(ctx, c.userRequest(text, selected))
	return true
}

// SubmitUserInputAsync applies the busy guard and records the user message
// synchronously, then runs the rest of the turn in the background.
func (c *Controller) SubmitUserInputAsync(ctx context.Context, text string) bool {
	selected, ok := c.begin(text)
	if !ok {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.turnMu.Lock()
		defer c.turnMu.Unlock()
		c.run(ctx, c.userRequest(text, selected))
	}()
	return true
}

// ResolveConsent feeds the broker's decision back into the suspended turn. A
// result that does not match the pending mutation is ignored and returns false.
func (c *Controller) ResolveConsent(ctx context.Context, handleID string, granted bool) bool {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	result, ok := c.dispatcher.Resolve(ctx, handleID, granted)
	if !ok {
		log.Warn().Str("handle_id", handleID).Str("status", c.state.Status().String()).Msg("ignoring stale consent result")
		return false
	}
	c.state.SetStatus(conversation.StatusLoading)
	c.run(ctx, planner.NewToolResultRequest(c.SessionID(), result))
	return true
}

// Attach installs the controller as the broker's result handler. Each result
// is resolved on its own goroutine so the broker's caller is never blocked by
// the rest of the turn.
func (c *Controller) Attach(ctx context.Context, broker permission.Broker) {
	broker.OnResult(func(handleID string, granted bool) {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.ResolveConsent(ctx, handleID, granted)
		}()
	})
}

// Wait blocks until every background turn has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Suggestion returns the n-th (1-based) follow-up offered by the latest agent
// message that carries suggestions.
func (c *Controller) Suggestion(n int) (chat.SuggestedAction, bool) {
	msgs := c.state.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if len(msgs[i].Suggested) == 0 {
			continue
		}
		if n < 1 || n > len(msgs[i].Suggested) {
			return chat.SuggestedAction{}, false
		}
		return msgs[i].Suggested[n-1], true
	}
	return chat.SuggestedAction{}, false
}

func (c *Controller) begin(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if status := c.state.Status(); status != conversation.StatusIdle {
		log.Debug().Str("status", status.String()).Msg("input dropped while busy")
		return nil, false
	}
	c.state.SetStatus(conversation.StatusLoading)
	c.state.Append(c.message(chat.SenderUser, text, nil))
	selected := c.state.TakeSelection()
	if len(selected) > 0 {
		c.state.SetLastManual(selected)
	}
	if c.meta.Title == "" {
		c.meta.Title = shortTitle(text)
	}
	return selected, true
}

func (c *Controller) userRequest(text string, selected []string) planner.Request {
	return planner.NewUserRequest(c.SessionID(), strings.TrimSpace(text), selected, c.thumbnails(selected))
}

// run loops planner round trips until the turn completes, fails or suspends.
// The caller holds turnMu.
func (c *Controller) run(ctx context.Context, req planner.Request) {
	for {
		started := time.Now()
		resp, err := c.planner.Send(ctx, req)
		if err != nil {
			c.metrics.ObservePlanner("error", time.Since(started))
			log.Error().Err(err).Str("session_id", c.SessionID()).Msg("planner request failed")
			c.fail(i18n.T("error.planner", err.Error()))
			return
		}
		c.metrics.ObservePlanner("ok", time.Since(started))
		c.adoptSession(resp.SessionID)

		switch resp.Status {
		case planner.StatusComplete:
			if text := strings.TrimSpace(resp.Message()); text != "" || len(resp.SuggestedActions) > 0 {
				msg := c.message(chat.SenderAgent, text, nil)
				msg.Suggested = resp.SuggestedActions
				c.state.Append(msg)
			}
			c.settle(conversation.StatusIdle)
			return

		case planner.StatusRequiresAction:
			if len(resp.NextActions) == 0 {
				log.Warn().Str("session_id", resp.SessionID).Msg("requires_action without actions")
				c.fail(i18n.T("error.no_actions"))
				return
			}
			if len(resp.NextActions) > 1 {
				log.Warn().Int("count", len(resp.NextActions)).Msg("planner sent several actions, running the first")
			}
			if text := strings.TrimSpace(resp.Message()); text != "" {
				c.state.Append(c.message(chat.SenderAgent, text, nil))
			}

			action := resp.NextActions[0]
			log.Info().Str("tool", action.Name).Str("tool_call_id", action.ID).Msg("dispatching tool call")
			result, suspended := c.dispatcher.Execute(ctx, chat.ToolCall{ID: action.ID, Name: action.Name, Args: action.Args})
			if suspended {
				c.settle(conversation.StatusRequiresPermission)
				return
			}
			req = planner.NewToolResultRequest(c.SessionID(), *result)

		default:
			c.fail(i18n.T("error.status", resp.Status))
			return
		}
	}
}

func (c *Controller) adoptSession(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != id {
		log.Debug().Str("session_id", id).Msg("planner session assigned")
	}
	c.sessionID = id
}

func (c *Controller) fail(text string) {
	c.state.Append(c.message(chat.SenderError, text, nil))
	c.settle(conversation.StatusIdle)
}

// settle persists the turn and then publishes the new status.
func (c *Controller) settle(status conversation.Status) {
	c.persist()
	c.state.SetStatus(status)
}

func (c *Controller) persist() {
	if c.transcript == nil {
		return
	}
	msgs := c.state.Messages()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.created {
		if err := c.transcript.CreateConversation(c.meta); err != nil {
			log.Error().Err(err).Str("conversation_id", c.meta.ID).Msg("create conversation")
			return
		}
		c.created = true
	}
	if len(msgs) > c.persisted {
		if err := c.transcript.AppendMessages(c.meta.ID, c.persisted, msgs[c.persisted:]); err != nil {
			log.Error().Err(err).Str("conversation_id", c.meta.ID).Msg("append messages")
			return
		}
		c.persisted = len(msgs)
	}
	if c.meta.PlannerSessionID != c.sessionID {
		c.meta.PlannerSessionID = c.sessionID
		if err := c.transcript.SaveConversation(c.meta); err != nil {
			log.Error().Err(err).Str("conversation_id", c.meta.ID).Msg("save conversation")
		}
	}
}

func (c *Controller) thumbnails(uris []string) []string {
	if c.thumbs == nil || len(uris) == 0 {
		return nil
	}
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		data, err := c.thumbs.Thumbnail(uri, c.thumbSize)
		if err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("skip thumbnail")
			continue
		}
		out = append(out, data)
	}
	return out
}

func (c *Controller) message(sender chat.Sender, text string, images []string) chat.Message {
	return chat.Message{
		ID:        c.newID(),
		Text:      text,
		Sender:    sender,
		Images:    images,
		CreatedAt: time.Now(),
	}
}

func shortTitle(text string) string {
	r := []rune(text)
	if len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return text
}
