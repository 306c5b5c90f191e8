package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	apperrors "memoria/backend/pkg/errors"
)

// ============================================================================
// Memory Operations
// ============================================================================

// CreateMemory mirrors a memory into the graph and links it to its user
// and topics. The memory ID is shared with the vector store point.
func (r *Repository) CreateMemory(ctx context.Context, mem Memory, userID string, topics []string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := mem.CreatedAt.UTC().Format(time.RFC3339)

	query := `
		MERGE (u:User {id: $userID})
		ON CREATE SET u.first_seen = datetime()
		SET u.last_seen = datetime()
		CREATE (m:Memory {
			id: $memoryID,
			content: $content,
			type: $type,
			role: $role,
			source: $source,
			conversation_id: $conversationID,
			created_at: datetime($now)
		})
		CREATE (u)-[:REMEMBERS]->(m)
		RETURN m.id as id
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"userID":         userID,
		"memoryID":       mem.ID,
		"content":        mem.Content,
		"type":           mem.Type,
		"role":           mem.Role,
		"source":         mem.Source,
		"conversationID": mem.ConversationID,
		"now":            now,
	})
	if err != nil {
		return apperrors.NewGraphQueryFailed("create_memory", err)
	}

	// Link to topics
	for _, topicName := range topics {
		if topicName == "" {
			continue
		}
		topicQuery := `
			MATCH (m:Memory {id: $memoryID})
			MERGE (t:Topic {name: $topicName})
			ON CREATE SET t.id = $topicID, t.created_at = datetime($now)
			MERGE (m)-[:ABOUT]->(t)
		`
		_, _ = session.Run(ctx, topicQuery, map[string]interface{}{
			"memoryID":  mem.ID,
			"topicName": topicName,
			"topicID":   uuid.New().String(),
			"now":       now,
		})
	}

	r.logger.Debug("Memory mirrored to graph",
		zap.String("memory_id", mem.ID),
		zap.String("user_id", userID),
		zap.String("type", mem.Type),
	)

	return nil
}

// UpdateMemory rewrites a memory's content and type in place and links any
// new topics. The caller refreshes the vector side under the same ID.
func (r *Repository) UpdateMemory(ctx context.Context, memoryID, content, memType string, topics []string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MATCH (m:Memory {id: $memoryID})
		SET m.content = $content, m.type = $type, m.updated_at = datetime($now)
		RETURN m.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"memoryID": memoryID,
		"content":  content,
		"type":     memType,
		"now":      now,
	})
	if err != nil {
		return apperrors.NewGraphQueryFailed("update_memory", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return fmt.Errorf("failed to update memory: %w", err)
		}
		return fmt.Errorf("memory %s not found", memoryID)
	}

	for _, topicName := range topics {
		if topicName == "" {
			continue
		}
		topicQuery := `
			MATCH (m:Memory {id: $memoryID})
			MERGE (t:Topic {name: $topicName})
			ON CREATE SET t.id = $topicID, t.created_at = datetime($now)
			MERGE (m)-[:ABOUT]->(t)
		`
		_, _ = session.Run(ctx, topicQuery, map[string]interface{}{
			"memoryID":  memoryID,
			"topicName": topicName,
			"topicID":   uuid.New().String(),
			"now":       now,
		})
	}

	r.logger.Debug("Memory updated in graph",
		zap.String("memory_id", memoryID),
		zap.String("type", memType),
	)

	return nil
}

// DeleteMemory removes a single memory node. Used to roll back
// half-committed dual-store writes; deleting a missing node is a no-op.
func (r *Repository) DeleteMemory(ctx context.Context, memoryID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MATCH (m:Memory {id: $memoryID})
		DETACH DELETE m
	`, map[string]interface{}{
		"memoryID": memoryID,
	})
	if err != nil {
		return apperrors.NewGraphQueryFailed("delete_memory", err)
	}

	return nil
}

// GetUserMemories returns a user's memories, newest first
func (r *Repository) GetUserMemories(ctx context.Context, userID string, limit int) ([]Memory, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 10
	}

	query := `
		MATCH (u:User {id: $userID})-[:REMEMBERS]->(m:Memory)
		RETURN m.id as id, m.content as content, m.type as type,
		       m.role as role, m.source as source,
		       m.conversation_id as conversation_id, m.created_at as created_at
		ORDER BY m.created_at DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"limit":  limit,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get_user_memories", err)
	}

	var memories []Memory
	for result.Next(ctx) {
		record := result.Record()
		mem := Memory{
			ID:             getStringFromRecord(record, "id"),
			Content:        getStringFromRecord(record, "content"),
			Type:           getStringFromRecord(record, "type"),
			Role:           getStringFromRecord(record, "role"),
			Source:         getStringFromRecord(record, "source"),
			ConversationID: getStringFromRecord(record, "conversation_id"),
		}
		if t, ok := getTimeFromRecord(record, "created_at"); ok {
			mem.CreatedAt = t
		}
		memories = append(memories, mem)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}

	return memories, nil
}

// GetConversationMemories returns the memories belonging to one conversation,
// oldest first so the transcript reads in order.
func (r *Repository) GetConversationMemories(ctx context.Context, userID, conversationID string) ([]Memory, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:REMEMBERS]->(m:Memory {conversation_id: $conversationID})
		RETURN m.id as id, m.content as content, m.type as type,
		       m.role as role, m.created_at as created_at
		ORDER BY m.created_at ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":         userID,
		"conversationID": conversationID,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get_conversation_memories", err)
	}

	var memories []Memory
	for result.Next(ctx) {
		record := result.Record()
		mem := Memory{
			ID:             getStringFromRecord(record, "id"),
			Content:        getStringFromRecord(record, "content"),
			Type:           getStringFromRecord(record, "type"),
			Role:           getStringFromRecord(record, "role"),
			ConversationID: conversationID,
		}
		if t, ok := getTimeFromRecord(record, "created_at"); ok {
			mem.CreatedAt = t
		}
		memories = append(memories, mem)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation memories: %w", err)
	}

	return memories, nil
}

// GetMemoryTopics returns the topic names linked to each of the given memories
func (r *Repository) GetMemoryTopics(ctx context.Context, memoryIDs []string) (map[string][]string, error) {
	if len(memoryIDs) == 0 {
		return map[string][]string{}, nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (m:Memory)-[:ABOUT]->(t:Topic)
		WHERE m.id IN $memoryIDs
		RETURN m.id as id, collect(DISTINCT t.name) as topics
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"memoryIDs": memoryIDs,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get_memory_topics", err)
	}

	topics := make(map[string][]string, len(memoryIDs))
	for result.Next(ctx) {
		record := result.Record()
		id := getStringFromRecord(record, "id")
		if id != "" {
			topics[id] = getStringSliceFromRecord(record, "topics")
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memory topics: %w", err)
	}

	return topics, nil
}

// DeleteUserMemories removes all memories and interactions for a user.
// Returns the number of deleted memory nodes.
func (r *Repository) DeleteUserMemories(ctx context.Context, userID string) (int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})
		OPTIONAL MATCH (u)-[:REMEMBERS]->(m:Memory)
		OPTIONAL MATCH (u)-[:HAD_INTERACTION]->(i:Interaction)
		WITH u, collect(DISTINCT m) as memories, collect(DISTINCT i) as interactions
		FOREACH (x IN interactions | DETACH DELETE x)
		WITH u, memories, size(memories) as deleted
		FOREACH (x IN memories | DETACH DELETE x)
		RETURN deleted
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
	})
	if err != nil {
		return 0, apperrors.NewGraphQueryFailed("delete_user_memories", err)
	}

	var deleted int64
	if result.Next(ctx) {
		deleted = getInt64FromRecord(result.Record(), "deleted")
	}
	if err := result.Err(); err != nil {
		return 0, fmt.Errorf("failed to verify deletion: %w", err)
	}

	r.logger.Info("User memories deleted from graph",
		zap.String("user_id", userID),
		zap.Int64("deleted", deleted),
	)

	return deleted, nil
}
