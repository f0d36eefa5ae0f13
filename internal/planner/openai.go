package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"photoagent/internal/chat"
	"photoagent/internal/config"
	"photoagent/internal/contextmgr"
	"photoagent/internal/defaults"
)

const maxSessions = 64

// OpenAIPlanner 用 OpenAI 兼容模型在本地扮演规划器
// OpenAIPlanner plays the planner locally with an OpenAI-compatible model. It
// keeps one chat history per session and reports at most one tool call per reply.
type OpenAIPlanner struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  int
	tokenLimit  int
	tokenizer   *contextmgr.Tokenizer
	tools       []chat.ToolDef
	prompt      string
	newID       func() string

	mu       sync.Mutex
	sessions *lru.Cache[string, []chat.ModelMessage]
}

// NewOpenAIPlanner creates a local planner that exposes the given tools to the model.
func NewOpenAIPlanner(cfg config.PlannerConfig, tools []chat.ToolDef) *OpenAIPlanner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	clientCfg.HTTPClient = httpClient

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	sessions, _ := lru.New[string, []chat.ModelMessage](maxSessions)
	return &OpenAIPlanner{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxRetries:  retries,
		tokenLimit:  cfg.ContextTokenLimit,
		tokenizer:   contextmgr.NewTokenizer(cfg.Model),
		tools:       tools,
		prompt:      strings.TrimSpace(defaults.DefaultSystemPrompt),
		newID:       uuid.NewString,
		sessions:    sessions,
	}
}

func (p *OpenAIPlanner) Send(ctx context.Context, in Request) (Response, error) {
	if err := in.Validate(); err != nil {
		return Response{}, fmt.Errorf("build planner request: %w", err)
	}

	sessionID, history, err := p.history(in)
	if err != nil {
		return Response{}, err
	}

	next := make([]chat.ModelMessage, len(history), len(history)+1)
	copy(next, history)
	if in.UserInput != nil {
		next = append(next, chat.ModelMessage{Role: openai.ChatMessageRoleUser, Content: userContent(*in.UserInput, in.SelectedURIs)})
	} else {
		next = append(next, chat.ModelMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: in.ToolResult.ToolCallID,
			Content:    in.ToolResult.Content,
		})
	}
	if trimmed, _, ok := contextmgr.Trim(next, p.tokenizer, p.tokenLimit); ok {
		log.Debug().Str("session_id", sessionID).Int("before", len(next)).Int("after", len(trimmed)).Msg("planner history trimmed")
		next = trimmed
	}

	req := p.buildRequest(next, in.Base64Images)
	msg, err := p.complete(ctx, req)
	if err != nil {
		return Response{}, err
	}

	out := Response{SessionID: sessionID, Status: StatusComplete}
	assistant := chat.ModelMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
	if content := strings.TrimSpace(msg.Content); content != "" {
		out.AgentMessage = &content
	}
	if len(msg.ToolCalls) > 0 {
		if len(msg.ToolCalls) > 1 {
			log.Warn().Int("count", len(msg.ToolCalls)).Msg("model returned several tool calls, keeping the first")
		}
		tc := msg.ToolCalls[0]
		if tc.ID == "" {
			tc.ID = "call_" + p.newID()
		}
		out.Status = StatusRequiresAction
		out.NextActions = []NextAction{{ID: tc.ID, Name: tc.Function.Name, Args: parseArgs(tc.Function.Arguments)}}
		assistant.ToolCalls = []chat.ModelToolCall{{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}}
	}
	next = append(next, assistant)

	p.mu.Lock()
	p.sessions.Add(sessionID, next)
	p.mu.Unlock()
	return out, nil
}

func (p *OpenAIPlanner) history(in Request) (string, []chat.ModelMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := in.Session()
	if id != "" {
		if h, ok := p.sessions.Get(id); ok {
			return id, h, nil
		}
	}
	if in.ToolResult != nil {
		return "", nil, fmt.Errorf("unknown planner session %q", id)
	}
	if id == "" {
		id = p.newID()
	}
	return id, []chat.ModelMessage{{Role: openai.ChatMessageRoleSystem, Content: p.prompt}}, nil
}

func (p *OpenAIPlanner) buildRequest(history []chat.ModelMessage, images []string) openai.ChatCompletionRequest {
	messages := convertMessages(history)
	if len(images) > 0 {
		attachImages(messages, images)
	}
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
	}
	if len(p.tools) > 0 {
		req.Tools = convertTools(p.tools)
		req.ToolChoice = "auto"
		req.ParallelToolCalls = false
	}
	return req
}

func (p *OpenAIPlanner) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return openai.ChatCompletionMessage{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		started := time.Now()
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return openai.ChatCompletionMessage{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
			}
			log.Debug().
				Str("model", req.Model).
				Int("prompt_tokens", resp.Usage.PromptTokens).
				Int("completion_tokens", resp.Usage.CompletionTokens).
				Dur("elapsed", time.Since(started)).
				Msg("model reply")
			return resp.Choices[0].Message, nil
		}
		lastErr = err

		// 不可重试的错误 / Non-retryable errors
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return openai.ChatCompletionMessage{}, err
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return openai.ChatCompletionMessage{}, fmt.Errorf("model request rejected: %w", err)
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("model request failed")
	}
	return openai.ChatCompletionMessage{}, fmt.Errorf("model request failed after %d retries: %w", p.maxRetries, lastErr)
}

func userContent(text string, selected []string) string {
	if len(selected) == 0 {
		return text
	}
	return text + "\n\n[SELECTED_PHOTOS] " + strings.Join(selected, ", ")
}

// attachImages turns the last user message into a multi-part message carrying
// the selected photos. Images are never stored in the session history.
func attachImages(messages []openai.ChatCompletionMessage, images []string) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != openai.ChatMessageRoleUser {
			continue
		}
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: messages[i].Content}}
		for _, img := range images {
			url := img
			if !strings.HasPrefix(url, "data:") {
				url = "data:image/jpeg;base64," + img
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailLow},
			})
		}
		messages[i].Content = ""
		messages[i].MultiContent = parts
		return
	}
}

func parseArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warn().Err(err).Str("arguments", raw).Msg("tool call arguments are not a JSON object")
		return map[string]any{}
	}
	return args
}

func convertMessages(messages []chat.ModelMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = make([]openai.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		}
		out = append(out, msg)
	}
	return out
}

func convertTools(tools []chat.ToolDef) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}
