package tools

import (
	"context"

	"photoagent/internal/chat"
	"photoagent/internal/dedupe"
	"photoagent/internal/i18n"
)

type ScanForCleanupTool struct {
	env Env
}

func NewScanForCleanupTool(env Env) *ScanForCleanupTool {
	return &ScanForCleanupTool{env: env}
}

func (t *ScanForCleanupTool) Name() string {
	return "scan_for_cleanup"
}

func (t *ScanForCleanupTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Find sets of near-identical photos. The extra copies become the last search results, so a follow-up delete can use source \"search\".",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (t *ScanForCleanupTool) Execute(ctx context.Context, _ Call) (string, error) {
	groups, err := dedupe.Scan(ctx, t.env.Store, t.env.DuplicateThreshold)
	if err != nil {
		return "", err
	}
	dups := dedupe.DuplicateURIs(groups)
	if len(groups) == 0 {
		t.env.State.Append(agentMessage(t.env, i18n.T("tool.cleanup.none"), nil))
	} else {
		t.env.State.SetLastSearch(dups)
		t.env.State.Append(agentMessage(t.env, i18n.T("tool.cleanup.found", len(groups), len(dups)), dups))
	}
	return mustJSON(map[string]any{"found_sets": len(groups)}), nil
}
