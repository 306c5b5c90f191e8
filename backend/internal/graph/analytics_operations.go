package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	apperrors "memoria/backend/pkg/errors"
)

// ============================================================================
// Analytics Operations
// ============================================================================

// GetUserAnalytics aggregates a user's memory counts, per-type distribution,
// and the timestamp of the most recent memory.
func (r *Repository) GetUserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})
		OPTIONAL MATCH (u)-[:REMEMBERS]->(m:Memory)
		WITH u, m
		ORDER BY m.created_at DESC
		WITH u,
		     count(m) as total,
		     collect(m.type) as types,
		     collect(m.created_at)[0] as last_activity
		RETURN total, types, last_activity
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
	})
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("get_user_analytics", err)
	}

	analytics := &UserAnalytics{
		UserID:             userID,
		MemoryDistribution: map[string]int64{},
	}

	if result.Next(ctx) {
		record := result.Record()
		analytics.TotalMemories = getInt64FromRecord(record, "total")

		for _, memType := range getStringSliceFromRecord(record, "types") {
			if memType == "" {
				memType = "general"
			}
			analytics.MemoryDistribution[memType]++
		}
		analytics.ConversationMemories = analytics.MemoryDistribution["conversation"]

		if t, ok := getTimeFromRecord(record, "last_activity"); ok {
			analytics.LastActivity = &t
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analytics: %w", err)
	}

	return analytics, nil
}
