package graph

import "time"

// Memory represents a stored memory node
type Memory struct {
	ID             string    `json:"id"`
	Content        string    `json:"memory"`
	Type           string    `json:"type"` // conversation, fact, preference, personal_info, life_event
	Role           string    `json:"role,omitempty"`
	Source         string    `json:"source,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserAnalytics aggregates a user's memory usage
type UserAnalytics struct {
	UserID               string           `json:"user_id"`
	TotalMemories        int64            `json:"total_memories"`
	ConversationMemories int64            `json:"conversation_memories"`
	MemoryDistribution   map[string]int64 `json:"memory_distribution"`
	LastActivity         *time.Time       `json:"last_activity"`
}
