package tools

import (
	"context"
	"fmt"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
)

// RestorePhotosTool undoes a soft delete. Restoring is not destructive, so it
// does not ask for consent.
type RestorePhotosTool struct {
	env Env
}

func NewRestorePhotosTool(env Env) *RestorePhotosTool {
	return &RestorePhotosTool{env: env}
}

func (t *RestorePhotosTool) Name() string {
	return "restore_photos"
}

func (t *RestorePhotosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Bring photos back from the trash.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"photo_uris": photoURIsSchema(),
					"source":     sourceSchema(),
				},
			},
		},
	}
}

func (t *RestorePhotosTool) Execute(ctx context.Context, call Call) (string, error) {
	if len(call.Targets) == 0 {
		return "", errNoTargets
	}
	if err := t.env.Store.Restore(ctx, call.Targets); err != nil {
		return "", fmt.Errorf("restore: %w", err)
	}
	t.env.State.Append(agentMessage(t.env, i18n.T("tool.restore.done", len(call.Targets)), call.Targets))
	t.env.State.NotifyGalleryChanged()
	return mustJSON(map[string]any{"restored": len(call.Targets)}), nil
}
