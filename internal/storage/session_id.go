package storage

import "github.com/google/uuid"

// NewConversationID 返回按时间排序的会话 ID
// NewConversationID returns a time-ordered conversation ID (UUIDv7), so IDs
// sort by creation time like the conversations table does.
func NewConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "conv_" + id.String()
}
