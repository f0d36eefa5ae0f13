package tools

import (
	"context"

	"photoagent/internal/chat"
	"photoagent/internal/dedupe"
	"photoagent/internal/library"
	"photoagent/internal/media"
	"photoagent/internal/metrics"
	"photoagent/internal/similarity"
)

// Searcher runs a similarity search.
type Searcher interface {
	Search(ctx context.Context, query string, f similarity.Filters) (similarity.Result, error)
}

// Media is the set of file mutations the tools delegate to.
type Media interface {
	CreateCollage(ctx context.Context, uris []string) (string, error)
	ApplyFilter(ctx context.Context, uris []string, filter string) ([]string, error)
	Move(ctx context.Context, uris []string, album string) (media.MoveResult, error)
}

// State is the part of the conversation store tools write to.
type State interface {
	Selections
	Append(msgs ...chat.Message)
	SetLastSearch(uris []string)
	Forget(uris []string)
	NotifyGalleryChanged()
}

// Env carries the collaborators shared by the built-in tools.
type Env struct {
	State              State
	Store              library.Store
	Search             Searcher
	Media              Media
	Metrics            *metrics.Metrics
	DuplicateThreshold float64
	NewID              func() string
}

// Builtin returns every photo tool wired to env.
func Builtin(env Env) []Tool {
	if env.DuplicateThreshold <= 0 {
		env.DuplicateThreshold = dedupe.DefaultThreshold
	}
	return []Tool{
		NewSearchPhotosTool(env),
		NewDeletePhotosTool(env),
		NewMovePhotosTool(env),
		NewCreateCollageTool(env),
		NewApplyFilterTool(env),
		NewPhotoMetadataTool(env),
		NewScanForCleanupTool(env),
		NewRestorePhotosTool(env),
	}
}
