package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"photoagent/internal/chat"
	"photoagent/internal/i18n"
	"photoagent/internal/permission"
	"photoagent/internal/security"
)

type MovePhotosTool struct {
	env Env
}

func NewMovePhotosTool(env Env) *MovePhotosTool {
	return &MovePhotosTool{env: env}
}

func (t *MovePhotosTool) Name() string {
	return "move_photos_to_album"
}

func (t *MovePhotosTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Move photos into an album folder, creating it if needed. The user is asked for permission first.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"album": map[string]any{
						"type":        "string",
						"description": "Album name. A single folder name, no path separators.",
					},
					"photo_uris": photoURIsSchema(),
					"source":     sourceSchema(),
				},
				"required": []string{"album"},
			},
		},
	}
}

func (t *MovePhotosTool) Execute(context.Context, Call) (string, error) {
	return "", ErrConsentRequired
}

func (t *MovePhotosTool) MutationKind() permission.Kind {
	return permission.KindWrite
}

func (t *MovePhotosTool) Prepare(call Call) (string, error) {
	album, err := albumArg(call.Args)
	if err != nil {
		return "", err
	}
	if len(call.Targets) == 0 {
		return "", errNoTargets
	}
	return i18n.T("consent.write", len(call.Targets), album), nil
}

// Complete performs the move the consent authorized, using the saved arguments.
func (t *MovePhotosTool) Complete(ctx context.Context, p permission.PendingMutation) (string, error) {
	album, _ := p.Args["album"].(string)
	album, err := security.CleanAlbumName(album)
	if err != nil {
		return "", err
	}
	res, err := t.env.Media.Move(ctx, p.Targets, album)
	if err != nil {
		return "", err
	}
	if len(res.Relocated) > 0 {
		t.env.State.Forget(res.Relocated)
	}
	ok := res.OK()
	if ok {
		t.env.State.Append(agentMessage(t.env, i18n.T("tool.move.done", len(p.Targets), album), nil))
	} else {
		t.env.State.Append(agentMessage(t.env, i18n.T("tool.move.partial", album), nil))
	}
	t.env.State.NotifyGalleryChanged()
	return boolPayload(ok), nil
}

func (t *MovePhotosTool) DeniedMessage() string {
	return i18n.T("tool.move.denied")
}

func albumArg(raw json.RawMessage) (string, error) {
	var in struct {
		Album string `json:"album"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", fmt.Errorf("move_photos_to_album args: %w", err)
		}
	}
	return security.CleanAlbumName(in.Album)
}
