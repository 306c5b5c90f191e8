package memory

import "time"

// Message is a single chat message being committed to memory
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is a memory that was stored in both backends
type Record struct {
	ID        string    `json:"id"`
	Memory    string    `json:"memory"`
	Type      string    `json:"type"`
	Topics    []string  `json:"topics,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is a semantic search hit
type SearchResult struct {
	ID       string                 `json:"id"`
	Memory   string                 `json:"memory"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Item is a listed memory without scoring
type Item struct {
	ID        string                 `json:"id"`
	Memory    string                 `json:"memory"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Analytics aggregates a user's memory usage across both stores
type Analytics struct {
	UserID               string           `json:"user_id"`
	TotalMemories        int64            `json:"total_memories"`
	ConversationMemories int64            `json:"conversation_memories"`
	MemoryDistribution   map[string]int64 `json:"memory_distribution"`
	IndexedVectors       uint64           `json:"indexed_vectors"`
	LastActivity         *time.Time       `json:"last_activity"`
}
