package tools

import (
	"encoding/json"
	"strings"
)

// Target sources accepted in the optional "source" argument.
const (
	SourceSelection = "selection"
	SourceSearch    = "search"
	SourceArgs      = "args"
)

// Selections exposes the two selection caches.
type Selections interface {
	LastManual() []string
	LastSearch() []string
}

type targetArgs struct {
	PhotoURIs []string `json:"photo_uris"`
	Source    string   `json:"source"`
}

// resolveTargets picks the photos a call operates on. The last manual selection
// wins over the call's own photo_uris; an explicit source overrides that order.
func resolveTargets(sel Selections, raw json.RawMessage) []string {
	var in targetArgs
	if len(raw) > 0 {
		// 参数格式错误时按无显式目标处理 / malformed args mean no explicit targets
		_ = json.Unmarshal(raw, &in)
	}
	fromArgs := cleanURIs(in.PhotoURIs)
	if sel == nil {
		return fromArgs
	}

	switch strings.ToLower(strings.TrimSpace(in.Source)) {
	case SourceSelection:
		return sel.LastManual()
	case SourceSearch:
		return sel.LastSearch()
	case SourceArgs:
		return fromArgs
	}
	if manual := sel.LastManual(); len(manual) > 0 {
		return manual
	}
	return fromArgs
}

func cleanURIs(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// photoURIsSchema is the shared JSON schema fragment for target lists.
func photoURIsSchema() map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Photo identifiers. Ignored when the user has a manual selection unless source is \"args\".",
	}
}

func sourceSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        []string{SourceSelection, SourceSearch, SourceArgs},
		"description": "Where to take the target photos from: the user's manual selection, the last search results, or photo_uris.",
	}
}
