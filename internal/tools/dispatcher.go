package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"photoagent/internal/chat"
	"photoagent/internal/metrics"
	"photoagent/internal/permission"
	"photoagent/internal/storage"
)

// ConsentRecorder persists consent decisions.
type ConsentRecorder interface {
	LogConsent(entry storage.ConsentEntry) error
}

type DispatcherOptions struct {
	Policy  *permission.Policy
	Tracker *permission.Tracker
	Broker  permission.Broker
	State   State
	Consent ConsentRecorder
	Metrics *metrics.Metrics
	NewID   func() string
	// ConversationID labels consent log entries.
	ConversationID func() string
}

// Dispatcher 把规划器的工具调用映射到本地操作；变更类操作挂起等待授权
// Dispatcher runs planner tool calls. A call either completes with a result or
// suspends on consent; a suspended call is finished later by Resolve with the
// same tool call id. Calls are expected to be serialized by the caller.
type Dispatcher struct {
	registry       *Registry
	policy         *permission.Policy
	tracker        *permission.Tracker
	broker         permission.Broker
	state          State
	consent        ConsentRecorder
	metrics        *metrics.Metrics
	newID          func() string
	conversationID func() string
}

func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	if opts.Tracker == nil {
		opts.Tracker = permission.NewTracker()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Dispatcher{
		registry:       registry,
		policy:         opts.Policy,
		tracker:        opts.Tracker,
		broker:         opts.Broker,
		state:          opts.State,
		consent:        opts.Consent,
		metrics:        opts.Metrics,
		newID:          opts.NewID,
		conversationID: opts.ConversationID,
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Pending reports the mutation currently waiting for consent.
func (d *Dispatcher) Pending() (permission.PendingMutation, bool) {
	return d.tracker.Pending()
}

// Execute runs call. It returns (result, false) when the call completed and
// (nil, true) when it is suspended waiting for consent. Failures never escape:
// they become {"error": ...} results.
func (d *Dispatcher) Execute(ctx context.Context, call chat.ToolCall) (*chat.ToolResult, bool) {
	logger := log.With().Str("tool", call.Name).Str("tool_call_id", call.ID).Logger()

	tool, ok := d.registry.Get(call.Name)
	if !ok {
		logger.Warn().Msg("unknown tool")
		d.metrics.IncToolCall(call.Name, "unknown")
		return d.result(call.ID, errorPayload("unknown tool: "+call.Name)), false
	}
	if d.policy != nil {
		if decision := d.policy.Decide(call.Name); decision.Decision == permission.DecisionDeny {
			reason := strings.TrimSpace(decision.Reason)
			if reason == "" {
				reason = "blocked by policy"
			}
			logger.Info().Str("reason", reason).Msg("tool blocked")
			d.metrics.IncToolCall(call.Name, "blocked")
			return d.result(call.ID, errorPayload(reason)), false
		}
	}

	raw := json.RawMessage("{}")
	if len(call.Args) > 0 {
		data, err := json.Marshal(call.Args)
		if err != nil {
			d.metrics.IncToolCall(call.Name, "error")
			return d.result(call.ID, errorPayload(fmt.Sprintf("invalid args: %v", err))), false
		}
		raw = data
	}
	c := Call{ID: call.ID, Args: raw, Targets: resolveTargets(d.state, raw)}

	if m, ok := tool.(Mutating); ok {
		return d.suspend(ctx, m, call, c)
	}

	content, err := tool.Execute(ctx, c)
	if err != nil {
		logger.Warn().Err(err).Msg("tool failed")
		d.metrics.IncToolCall(call.Name, "error")
		return d.result(call.ID, failurePayload(err)), false
	}
	logger.Debug().Int("targets", len(c.Targets)).Msg("tool completed")
	d.metrics.IncToolCall(call.Name, "ok")
	return d.result(call.ID, content), false
}

func (d *Dispatcher) suspend(ctx context.Context, m Mutating, call chat.ToolCall, c Call) (*chat.ToolResult, bool) {
	logger := log.With().Str("tool", call.Name).Str("tool_call_id", call.ID).Logger()
	fail := func(reason string) (*chat.ToolResult, bool) {
		logger.Warn().Str("reason", reason).Msg("mutation rejected")
		d.metrics.IncToolCall(call.Name, "error")
		return d.result(call.ID, errorPayload(reason)), false
	}

	summary, err := m.Prepare(c)
	if err != nil {
		return fail(err.Error())
	}
	if d.broker == nil {
		return fail("consent unavailable")
	}

	handleID := d.newID()
	pending := permission.PendingMutation{
		ToolCallID: call.ID,
		Tool:       m.Name(),
		Kind:       m.MutationKind(),
		HandleID:   handleID,
		Targets:    c.Targets,
		Args:       call.Args,
	}
	// 先登记再请求，避免结果先于登记到达 / track before asking so an early result finds it
	if err := d.tracker.Begin(pending); err != nil {
		return fail(err.Error())
	}
	handle, err := d.broker.RequestConsent(ctx, permission.ConsentRequest{
		ID:      handleID,
		Tool:    m.Name(),
		Kind:    m.MutationKind(),
		URIs:    c.Targets,
		Summary: summary,
	})
	if err != nil {
		d.tracker.Abort(handleID)
		return fail(fmt.Sprintf("consent unavailable: %v", err))
	}
	if handle == nil || handle.ID != handleID {
		d.tracker.Abort(handleID)
		return fail("consent unavailable: broker returned no matching handle")
	}

	logger.Info().
		Str("kind", string(m.MutationKind())).
		Str("handle", handleID).
		Int("count", len(c.Targets)).
		Msg("awaiting consent")
	d.metrics.IncToolCall(call.Name, "suspended")
	return nil, true
}

// Resolve consumes the consent result for handleID and finalizes the suspended
// call with its original tool call id. ok is false when nothing matching is
// pending; such results are ignored.
func (d *Dispatcher) Resolve(ctx context.Context, handleID string, granted bool) (chat.ToolResult, bool) {
	p, ok := d.tracker.Take(handleID)
	if !ok {
		log.Warn().Str("handle", handleID).Bool("granted", granted).Msg("ignoring stale consent result")
		d.metrics.IncStaleConsent()
		return chat.ToolResult{}, false
	}
	logger := log.With().
		Str("tool", p.Tool).
		Str("tool_call_id", p.ToolCallID).
		Str("kind", string(p.Kind)).
		Int("count", len(p.Targets)).
		Logger()

	d.metrics.IncConsent(string(p.Kind), granted)
	d.recordConsent(p, granted)

	tool, _ := d.registry.Get(p.Tool)
	m, isMutating := tool.(Mutating)
	if !isMutating {
		logger.Error().Msg("pending mutation names a non-mutating tool")
		return chat.ToolResult{ToolCallID: p.ToolCallID, Content: errorPayload("unknown tool: " + p.Tool)}, true
	}

	if !granted {
		logger.Info().Msg("consent denied")
		if d.state != nil {
			d.state.Append(agentMessage(Env{NewID: d.newID}, m.DeniedMessage(), nil))
		}
		return chat.ToolResult{ToolCallID: p.ToolCallID, Content: boolPayload(false)}, true
	}

	content, err := m.Complete(ctx, p)
	if err != nil {
		logger.Warn().Err(err).Msg("mutation failed after consent")
		d.metrics.IncToolCall(p.Tool, "error")
		return chat.ToolResult{ToolCallID: p.ToolCallID, Content: failurePayload(err)}, true
	}
	logger.Info().Str("result", content).Msg("mutation completed")
	d.metrics.IncToolCall(p.Tool, "ok")
	return chat.ToolResult{ToolCallID: p.ToolCallID, Content: content}, true
}

func (d *Dispatcher) recordConsent(p permission.PendingMutation, granted bool) {
	if d.consent == nil {
		return
	}
	decision := "denied"
	if granted {
		decision = "granted"
	}
	convID := ""
	if d.conversationID != nil {
		convID = d.conversationID()
	}
	if err := d.consent.LogConsent(storage.ConsentEntry{
		ConversationID: convID,
		Tool:           p.Tool,
		Kind:           string(p.Kind),
		Decision:       decision,
		Count:          len(p.Targets),
	}); err != nil {
		log.Warn().Err(err).Str("tool", p.Tool).Msg("record consent decision")
	}
}

func (d *Dispatcher) result(callID, content string) *chat.ToolResult {
	return &chat.ToolResult{ToolCallID: callID, Content: content}
}
