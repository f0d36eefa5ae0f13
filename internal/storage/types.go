package storage

// ConversationMeta 会话元数据
// ConversationMeta holds conversation metadata. PlannerSessionID is the server-assigned
// planner session token; it is empty until the first planner response arrives.
type ConversationMeta struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	PlannerSessionID string `json:"planner_session_id"`
	PlannerMode      string `json:"planner_mode"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}
