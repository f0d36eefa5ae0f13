package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photoagent/internal/chat"
	"photoagent/internal/library"
)

type PhotoMetadataTool struct {
	env Env
}

func NewPhotoMetadataTool(env Env) *PhotoMetadataTool {
	return &PhotoMetadataTool{env: env}
}

func (t *PhotoMetadataTool) Name() string {
	return "get_photo_metadata"
}

func (t *PhotoMetadataTool) Definition() chat.ToolDef {
	return chat.ToolDef{
		Type: "function",
		Function: chat.ToolFunction{
			Name:        t.Name(),
			Description: "Describe photos: capture time, location, dimensions and tagged people.",
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

// Execute returns a plain-text summary, one line per photo.
func (t *PhotoMetadataTool) Execute(ctx context.Context, call Call) (string, error) {
	if len(call.Targets) == 0 {
		return mustJSON("no photos selected"), nil
	}
	lines := make([]string, 0, len(call.Targets))
	for _, uri := range call.Targets {
		rec, err := t.env.Store.ByURI(ctx, uri)
		if errors.Is(err, library.ErrNotFound) {
			lines = append(lines, uri+": not found")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("load %s: %w", uri, err)
		}
		lines = append(lines, describe(rec))
	}
	return mustJSON(strings.Join(lines, "\n")), nil
}

func describe(rec library.Record) string {
	parts := []string{rec.URI + ":"}
	if rec.Width > 0 && rec.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", rec.Width, rec.Height))
	}
	if !rec.TakenAt.IsZero() {
		parts = append(parts, "taken "+rec.TakenAt.Format("2006-01-02 15:04"))
	}
	if rec.Location != "" {
		parts = append(parts, "at "+rec.Location)
	}
	if len(rec.People) > 0 {
		parts = append(parts, "people: "+strings.Join(rec.People, ", "))
	}
	if rec.Deleted {
		parts = append(parts, "(in trash)")
	}
	return strings.Join(parts, " ")
}
