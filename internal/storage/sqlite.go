package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photoagent/internal/chat"

	_ "modernc.org/sqlite"
)

// ErrNoConversation is returned when a requested conversation does not exist.
var ErrNoConversation = errors.New("conversation not found")

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id                 TEXT PRIMARY KEY,
		title              TEXT NOT NULL DEFAULT '',
		planner_session_id TEXT NOT NULL DEFAULT '',
		planner_mode       TEXT NOT NULL DEFAULT '',
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq             INTEGER NOT NULL,
		message_id      TEXT NOT NULL,
		sender          TEXT NOT NULL,
		text            TEXT NOT NULL DEFAULT '',
		images          TEXT NOT NULL DEFAULT '[]',
		suggested       TEXT NOT NULL DEFAULT '[]',
		created_at      TEXT NOT NULL,
		UNIQUE(conversation_id, seq)
	);

	CREATE TABLE IF NOT EXISTS consent_log (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		tool            TEXT NOT NULL,
		kind            TEXT NOT NULL,
		decision        TEXT NOT NULL,
		count           INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS photos (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		uri       TEXT NOT NULL UNIQUE,
		embedding BLOB,
		location  TEXT NOT NULL DEFAULT '',
		taken_at  TEXT NOT NULL DEFAULT '',
		width     INTEGER NOT NULL DEFAULT 0,
		height    INTEGER NOT NULL DEFAULT 0,
		people    TEXT NOT NULL DEFAULT '[]',
		deleted   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_consent_log_conversation ON consent_log(conversation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Conversation Operations ---

func (s *SQLiteStore) CreateConversation(meta ConversationMeta) error {
	now := nowUTC()
	if strings.TrimSpace(meta.CreatedAt) == "" {
		meta.CreatedAt = now
	}
	if strings.TrimSpace(meta.UpdatedAt) == "" {
		meta.UpdatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, title, planner_session_id, planner_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Title, meta.PlannerSessionID, meta.PlannerMode, meta.CreatedAt, meta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveConversation(meta ConversationMeta) error {
	meta.UpdatedAt = nowUTC()
	_, err := s.db.Exec(`
		UPDATE conversations SET title=?, planner_session_id=?, planner_mode=?, updated_at=?
		WHERE id=?`,
		meta.Title, meta.PlannerSessionID, meta.PlannerMode, meta.UpdatedAt, meta.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadConversation(id string) (ConversationMeta, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ConversationMeta{}, fmt.Errorf("conversation id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, title, planner_session_id, planner_mode, created_at, updated_at
		FROM conversations WHERE id=?`, id)
	meta, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConversationMeta{}, fmt.Errorf("%w: %s", ErrNoConversation, id)
		}
		return ConversationMeta{}, fmt.Errorf("load conversation: %w", err)
	}
	return meta, nil
}

// LatestConversation 返回最近更新的会话
// LatestConversation returns the most recently updated conversation.
func (s *SQLiteStore) LatestConversation() (ConversationMeta, error) {
	row := s.db.QueryRow(`
		SELECT id, title, planner_session_id, planner_mode, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
	meta, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConversationMeta{}, ErrNoConversation
		}
		return ConversationMeta{}, fmt.Errorf("load latest conversation: %w", err)
	}
	return meta, nil
}

func scanConversation(row *sql.Row) (ConversationMeta, error) {
	var meta ConversationMeta
	err := row.Scan(&meta.ID, &meta.Title, &meta.PlannerSessionID, &meta.PlannerMode, &meta.CreatedAt, &meta.UpdatedAt)
	return meta, err
}

// --- Message Operations ---

// AppendMessages 从 startSeq 开始追加消息（记录只追加）
// AppendMessages appends messages starting at startSeq; the transcript is append-only.
func (s *SQLiteStore) AppendMessages(conversationID string, startSeq int, messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO messages (conversation_id, seq, message_id, sender, text, images, suggested, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		images := marshalList(msg.Images)
		suggested := marshalList(msg.Suggested)
		created := msg.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.Exec(conversationID, startSeq+i, msg.ID, string(msg.Sender), msg.Text,
			images, suggested, created.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert message %d: %w", startSeq+i, err)
		}
	}

	// 更新会话时间戳 / Update conversation timestamp
	if _, err := tx.Exec("UPDATE conversations SET updated_at=? WHERE id=?", nowUTC(), conversationID); err != nil {
		return fmt.Errorf("update conversation timestamp: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadMessages(conversationID string) ([]chat.Message, error) {
	rows, err := s.db.Query(`
		SELECT message_id, sender, text, images, suggested, created_at
		FROM messages WHERE conversation_id=? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		var sender, images, suggested, created string
		if err := rows.Scan(&msg.ID, &sender, &msg.Text, &images, &suggested, &created); err != nil {
			continue
		}
		msg.Sender = chat.Sender(sender)
		if images != "" && images != "[]" {
			_ = json.Unmarshal([]byte(images), &msg.Images)
		}
		if suggested != "" && suggested != "[]" {
			_ = json.Unmarshal([]byte(suggested), &msg.Suggested)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			msg.CreatedAt = ts
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// --- Consent Log ---

func (s *SQLiteStore) LogConsent(entry ConsentEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO consent_log (conversation_id, tool, kind, decision, count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ConversationID, entry.Tool, entry.Kind, entry.Decision, entry.Count, nowUTC())
	if err != nil {
		return fmt.Errorf("log consent: %w", err)
	}
	return nil
}

// --- Helpers ---

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func marshalList(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}
