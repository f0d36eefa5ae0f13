package tools

import (
	"context"
	"errors"
	"fmt"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
)

// ErrConsentRequired is returned when a mutating tool is executed without going
// through the consent protocol.
var ErrConsentRequired = errors.New("tool requires consent")

var errNoTargets = errors.New("no photos selected")

type DeletePhotosTool struct {
	env Env
}

func NewDeletePhotosTool(env Env) *DeletePhotosTool {
	return &DeletePhotosTool{env: env}
}

func (t *DeletePhotosTool) Name() string {
	return "delete_photos"
}

func (t *DeletePhotosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Move photos to the trash. The user is asked for permission first.",
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

func (t *DeletePhotosTool) Execute(context.Context, Call) (string, error) {
	return "", ErrConsentRequired
}

func (t *DeletePhotosTool) MutationKind() permission.Kind {
	return permission.KindDelete
}

func (t *DeletePhotosTool) Prepare(call Call) (string, error) {
	if len(call.Targets) == 0 {
		return "", errNoTargets
	}
	return i18n.T("consent.delete", len(call.Targets)), nil
}

// Complete soft-deletes the targets before the result is reported, then drops
// them from both selection caches.
func (t *DeletePhotosTool) Complete(ctx context.Context, p permission.PendingMutation) (string, error) {
	if err := t.env.Store.SoftDelete(ctx, p.Targets); err != nil {
		return "", fmt.Errorf("soft delete: %w", err)
	}
	t.env.State.Forget(p.Targets)
	t.env.State.Append(agentMessage(t.env, i18n.T("tool.delete.done", len(p.Targets)), nil))
	t.env.State.NotifyGalleryChanged()
	return boolPayload(true), nil
}

func (t *DeletePhotosTool) DeniedMessage() string {
	return i18n.T("tool.delete.denied")
}
