package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/media"
)

type ApplyFilterTool struct {
	env Env
}

func NewApplyFilterTool(env Env) *ApplyFilterTool {
	return &ApplyFilterTool{env: env}
}

func (t *ApplyFilterTool) Name() string {
	return "apply_filter"
}

func (t *ApplyFilterTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Apply a visual filter to photos. Originals are kept; filtered copies are saved next to the collages. Returns the new photo identifiers.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filter": map[string]any{
						"type": "string",
						"enum": media.FilterNames(),
					},
					"photo_uris": photoURIsSchema(),
					"source":     sourceSchema(),
				},
				"required": []string{"filter"},
			},
		},
	}
}

func (t *ApplyFilterTool) Execute(ctx context.Context, call Call) (string, error) {
	var in struct {
		Filter string `json:"filter"`
	}
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &in); err != nil {
			return "", fmt.Errorf("apply_filter args: %w", err)
		}
	}
	filter := strings.TrimSpace(in.Filter)
	if filter == "" {
		return "", errors.New("filter is required")
	}
	if len(call.Targets) == 0 {
		return mustJSON([]string{}), nil
	}
	out, err := t.env.Media.ApplyFilter(ctx, call.Targets, filter)
	if len(out) > 0 {
		t.env.State.Append(agentMessage(t.env, i18n.T("tool.filter.done", filter, len(out)), out))
		t.env.State.NotifyGalleryChanged()
	}
	if err != nil {
		if len(out) > 0 {
			return "", &PartialError{Err: err, Written: out}
		}
		return "", err
	}
	if out == nil {
		out = []string{}
	}
	return mustJSON(out), nil
}
