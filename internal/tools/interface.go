package tools

import (
	"context"
	"encoding/json"

	"photoagent/internal/chat"
	"photoagent/internal/permission"
)

// Call is a tool invocation after target resolution.
type Call struct {
	ID      string
	Args    json.RawMessage
	Targets []string
}

type Tool interface {
	Name() string
	Definition() chat.ToolDef
	Execute(ctx context.Context, call Call) (string, error)
}

// Mutating 需要用户授权的工具：第一步申请授权，授权后执行 Complete
// Mutating tools run in two steps: Prepare validates and describes the change
// for the consent prompt, Complete performs it once consent is granted.
type Mutating interface {
	Tool
	MutationKind() permission.Kind
	Prepare(call Call) (summary string, err error)
	Complete(ctx context.Context, p permission.PendingMutation) (string, error)
	DeniedMessage() string
}
