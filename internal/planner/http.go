package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"photoagent/internal/config"
)

const maxResponseBytes = 4 << 20

// HTTPPlanner posts requests to the remote planner endpoint. Failures are
// returned to the caller and not retried.
type HTTPPlanner struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPPlanner(cfg config.PlannerConfig) *HTTPPlanner {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	return &HTTPPlanner{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPPlanner) Send(ctx context.Context, in Request) (Response, error) {
	if p.endpoint == "" {
		return Response{}, fmt.Errorf("planner base_url is empty")
	}
	if err := in.Validate(); err != nil {
		return Response{}, fmt.Errorf("build planner request: %w", err)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Response{}, fmt.Errorf("marshal planner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	started := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("send planner request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read planner response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("planner request failed: status=%d body=%s", resp.StatusCode, snippet(data))
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := out.Validate(); err != nil {
		return Response{}, err
	}
	log.Debug().
		Str("session_id", out.SessionID).
		Str("status", out.Status).
		Int("actions", len(out.NextActions)).
		Dur("elapsed", time.Since(started)).
		Msg("planner response")
	return out, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	r := []rune(s)
	if len(r) > 300 {
		return string(r[:300]) + "..."
	}
	return s
}
