package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/similarity"
)

type SearchPhotosTool struct {
	env Env
}

func NewSearchPhotosTool(env Env) *SearchPhotosTool {
	return &SearchPhotosTool{env: env}
}

func (t *SearchPhotosTool) Name() string {
	return "search_photos"
}

func (t *SearchPhotosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Search the photo library by description, optionally filtered by date range, location and people. An empty query lists photos matching the filters.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What the photos show, in natural language.",
					},
					"start_date": map[string]any{
						"type":        "string",
						"description": "Earliest capture date, YYYY-MM-DD.",
					},
					"end_date": map[string]any{
						"type":        "string",
						"description": "Latest capture date, YYYY-MM-DD (inclusive).",
					},
					"location": map[string]any{
						"type":        "string",
						"description": "Substring of the photo location, case-insensitive.",
					},
					"people": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func (t *SearchPhotosTool) Execute(ctx context.Context, call Call) (string, error) {
	var in struct {
		Query     string   `json:"query"`
		StartDate string   `json:"start_date"`
		EndDate   string   `json:"end_date"`
		Location  string   `json:"location"`
		People    []string `json:"people"`
	}
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &in); err != nil {
			return "", fmt.Errorf("search_photos args: %w", err)
		}
	}
	res, err := t.env.Search.Search(ctx, in.Query, similarity.Filters{
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Location:  in.Location,
		People:    in.People,
	})
	if err != nil {
		return "", err
	}
	t.env.Metrics.ObserveSearchHits(len(res.Hits))

	uris := res.URIs()
	var text string
	switch res.Outcome {
	case similarity.NoCandidates:
		text = i18n.T("tool.search.no_candidates")
	case similarity.NoMatch:
		text = i18n.T("tool.search.no_match", strings.TrimSpace(in.Query))
	default:
		t.env.State.SetLastSearch(uris)
		if strings.TrimSpace(in.Query) == "" {
			text = i18n.T("tool.search.unranked", len(uris))
		} else {
			text = i18n.T("tool.search.found", len(uris))
		}
	}
	t.env.State.Append(agentMessage(t.env, text, uris))
	return mustJSON(map[string]any{"photos_found": len(uris)}), nil
}

func agentMessage(env Env, text string, images []string) chat.Message {
	newID := env.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return chat.Message{
		ID:        newID(),
		Text:      text,
		Sender:    chat.SenderAgent,
		Images:    append([]string(nil), images...),
		CreatedAt: time.Now(),
	}
}
