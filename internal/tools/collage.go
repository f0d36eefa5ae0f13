package tools

import (
	"context"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
)

type CreateCollageTool struct {
	env Env
}

func NewCreateCollageTool(env Env) *CreateCollageTool {
	return &CreateCollageTool{env: env}
}

func (t *CreateCollageTool) Name() string {
	return "create_collage"
}

func (t *CreateCollageTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Combine photos into a single grid collage saved in the library. Returns the new photo identifier.",
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

func (t *CreateCollageTool) Execute(ctx context.Context, call Call) (string, error) {
	if len(call.Targets) == 0 {
		return "null", nil
	}
	uri, err := t.env.Media.CreateCollage(ctx, call.Targets)
	if err != nil {
		return "", err
	}
	t.env.State.Append(agentMessage(t.env, i18n.T("tool.collage.done", len(call.Targets)), []string{uri}))
	t.env.State.NotifyGalleryChanged()
	return mustJSON(uri), nil
}
