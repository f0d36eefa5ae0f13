// Package planner talks to the remote planner that turns user requests into
// tool calls, and provides a local stand-in backed by an OpenAI-compatible model.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photoagent/internal/chat"
)

// ErrMalformedResponse marks a planner reply that violates the wire contract.
var ErrMalformedResponse = errors.New("malformed planner response")

const (
	StatusComplete       = "complete"
	StatusRequiresAction = "requires_action"
)

// ToolResult is the wire form of a finished tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// Request 发往规划器的请求；UserInput 与 ToolResult 二选一
// Request is one client turn. Exactly one of UserInput and ToolResult is set.
type Request struct {
	SessionID    *string     `json:"sessionId"`
	UserInput    *string     `json:"userInput"`
	ToolResult   *ToolResult `json:"toolResult"`
	SelectedURIs []string    `json:"selectedUris"`
	Base64Images []string    `json:"base64Images"`
}

// NextAction is a planner-issued tool call.
type NextAction struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type Response struct {
	SessionID        string                 `json:"sessionId"`
	Status           string                 `json:"status"`
	AgentMessage     *string                `json:"agentMessage"`
	NextActions      []NextAction           `json:"nextActions"`
	SuggestedActions []chat.SuggestedAction `json:"suggestedActions"`
}

// Planner sends one request and waits for the reply.
type Planner interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// NewUserRequest builds a request carrying user input and the captured selection.
func NewUserRequest(sessionID, text string, selected, images []string) Request {
	return Request{
		SessionID:    optional(sessionID),
		UserInput:    &text,
		SelectedURIs: nilIfEmpty(selected),
		Base64Images: nilIfEmpty(images),
	}
}

// NewToolResultRequest builds a request carrying a finished tool call.
func NewToolResultRequest(sessionID string, result chat.ToolResult) Request {
	return Request{
		SessionID:  optional(sessionID),
		ToolResult: &ToolResult{ToolCallID: result.ToolCallID, Content: result.Content},
	}
}

// Validate checks the request invariants before it goes on the wire.
func (r Request) Validate() error {
	if (r.UserInput == nil) == (r.ToolResult == nil) {
		return errors.New("exactly one of userInput and toolResult must be set")
	}
	if r.ToolResult != nil && strings.TrimSpace(r.ToolResult.ToolCallID) == "" {
		return errors.New("tool result has no tool_call_id")
	}
	return nil
}

// Session returns the session id or "".
func (r Request) Session() string {
	if r.SessionID == nil {
		return ""
	}
	return *r.SessionID
}

// Validate checks the parts of the reply the session controller depends on.
// An empty nextActions list is left to the caller, which reports it to the user.
// Only the first action runs, so later entries are not checked.
func (r Response) Validate() error {
	switch r.Status {
	case StatusComplete, StatusRequiresAction:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, r.Status)
	}
	if len(r.NextActions) > 0 {
		a := r.NextActions[0]
		if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: next action has no id or name", ErrMalformedResponse)
		}
	}
	return nil
}

// Message returns the agent message or "".
func (r Response) Message() string {
	if r.AgentMessage == nil {
		return ""
	}
	return *r.AgentMessage
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func nilIfEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
