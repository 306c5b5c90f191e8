package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	apperrors "memoria/backend/pkg/errors"
	"memoria/backend/pkg/logger"
)

// Repository handles all Neo4j database operations
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// Health verifies Neo4j connectivity
func (r *Repository) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.driver.VerifyConnectivity(ctx); err != nil {
		return apperrors.NewGraphConnectionFailed(r.driver.Target().Host, err)
	}
	return nil
}

// LogInteraction records a single chat turn against a user
func (r *Repository) LogInteraction(ctx context.Context, userID, conversationID, role, message string, timestamp time.Time) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	// Convert to UTC and format as ISO 8601 string for Neo4j compatibility
	timestampStr := timestamp.UTC().Format(time.RFC3339)

	query := `
		MERGE (u:User {id: $userID})
		CREATE (i:Interaction {
			conversation_id: $conversationID,
			role: $role,
			message: $message,
			timestamp: datetime($timestamp)
		})
		CREATE (u)-[:HAD_INTERACTION]->(i)
		RETURN i
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"userID":         userID,
		"conversationID": conversationID,
		"role":           role,
		"message":        message,
		"timestamp":      timestampStr,
	})
	if err != nil {
		return apperrors.NewGraphQueryFailed("log_interaction", err)
	}

	return nil
}

// Helper functions

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	return 0
}

func getTimeFromRecord(record *neo4j.Record, key string) (time.Time, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}, false
	}
	// Neo4j datetime values come back as time.Time
	if t, ok := val.(time.Time); ok {
		return t, true
	}
	return time.Time{}, false
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok {
		return nil
	}
	slice, ok := val.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if str, ok := v.(string); ok && str != "" {
			result = append(result, str)
		}
	}
	return result
}
