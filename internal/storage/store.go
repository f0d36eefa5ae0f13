package storage

import (
	"photoagent/internal/chat"
	"photoagent/internal/library"
)

// Store 持久化接口：会话记录、同意日志与照片嵌入
// Store is the persistence interface: conversations, consent log and photo embeddings.
type Store interface {
	library.Store

	// Conversation 操作 / Conversation operations
	CreateConversation(meta ConversationMeta) error
	SaveConversation(meta ConversationMeta) error
	LoadConversation(id string) (ConversationMeta, error)
	LatestConversation() (ConversationMeta, error)

	// Message 操作 / Message operations
	AppendMessages(conversationID string, startSeq int, messages []chat.Message) error
	LoadMessages(conversationID string) ([]chat.Message, error)

	// 同意日志 / Consent log
	LogConsent(entry ConsentEntry) error

	// 生命周期 / Lifecycle
	Close() error
}

// ConsentEntry records a single consent decision.
type ConsentEntry struct {
	ConversationID string
	Tool           string
	Kind           string
	Decision       string
	Count          int
}

var _ Store = (*SQLiteStore)(nil)
