package graph

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TestRepository requires a running Neo4j instance on localhost
func TestRepository_CreateAndListMemories(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	defer cleanupUser(ctx, driver, userID)

	mem := Memory{
		ID:        uuid.New().String(),
		Content:   "User loves pizza",
		Type:      "preference",
		Source:    "preference",
		CreatedAt: time.Now().UTC(),
	}

	err = repo.CreateMemory(ctx, mem, userID, []string{"Food", "Preferences"})
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	memories, err := repo.GetUserMemories(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetUserMemories failed: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("Expected 1 memory, got %d", len(memories))
	}
	if memories[0].Content != "User loves pizza" {
		t.Errorf("Expected content 'User loves pizza', got '%s'", memories[0].Content)
	}
	if memories[0].Type != "preference" {
		t.Errorf("Expected type 'preference', got '%s'", memories[0].Type)
	}

	topics, err := repo.GetMemoryTopics(ctx, []string{mem.ID})
	if err != nil {
		t.Fatalf("GetMemoryTopics failed: %v", err)
	}
	if len(topics[mem.ID]) != 2 {
		t.Errorf("Expected 2 topics, got %v", topics[mem.ID])
	}
}

func TestRepository_UpdateMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	defer cleanupUser(ctx, driver, userID)

	mem := Memory{
		ID:        uuid.New().String(),
		Content:   "User lives in Berlin",
		Type:      "personal_info",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateMemory(ctx, mem, userID, []string{"Personal"}); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	err = repo.UpdateMemory(ctx, mem.ID, "User lives in Madrid", "personal_info", []string{"Personal", "Travel"})
	if err != nil {
		t.Fatalf("UpdateMemory failed: %v", err)
	}

	memories, err := repo.GetUserMemories(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetUserMemories failed: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("Expected 1 memory after update, got %d", len(memories))
	}
	if memories[0].Content != "User lives in Madrid" {
		t.Errorf("Expected updated content, got '%s'", memories[0].Content)
	}

	topics, err := repo.GetMemoryTopics(ctx, []string{mem.ID})
	if err != nil {
		t.Fatalf("GetMemoryTopics failed: %v", err)
	}
	if len(topics[mem.ID]) != 2 {
		t.Errorf("Expected 2 topics after update, got %v", topics[mem.ID])
	}

	// Unknown IDs must not silently succeed
	if err := repo.UpdateMemory(ctx, uuid.New().String(), "nope", "fact", nil); err == nil {
		t.Error("Expected error updating a missing memory")
	}
}

func TestRepository_DeleteMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	defer cleanupUser(ctx, driver, userID)

	mem := Memory{
		ID:        uuid.New().String(),
		Content:   "memory content",
		Type:      "fact",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateMemory(ctx, mem, userID, nil); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}

	if err := repo.DeleteMemory(ctx, mem.ID); err != nil {
		t.Fatalf("DeleteMemory failed: %v", err)
	}

	memories, err := repo.GetUserMemories(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetUserMemories failed: %v", err)
	}
	if len(memories) != 0 {
		t.Errorf("Expected no memories after delete, got %d", len(memories))
	}

	// Deleting a missing memory is a no-op
	if err := repo.DeleteMemory(ctx, mem.ID); err != nil {
		t.Errorf("DeleteMemory of missing node failed: %v", err)
	}
}

func TestRepository_DeleteUserMemories(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	defer cleanupUser(ctx, driver, userID)

	for i := 0; i < 3; i++ {
		mem := Memory{
			ID:        uuid.New().String(),
			Content:   "memory content",
			Type:      "conversation",
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateMemory(ctx, mem, userID, nil); err != nil {
			t.Fatalf("CreateMemory failed: %v", err)
		}
	}

	deleted, err := repo.DeleteUserMemories(ctx, userID)
	if err != nil {
		t.Fatalf("DeleteUserMemories failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted memories, got %d", deleted)
	}

	memories, err := repo.GetUserMemories(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetUserMemories failed: %v", err)
	}
	if len(memories) != 0 {
		t.Errorf("Expected no memories after delete, got %d", len(memories))
	}
}

func TestRepository_GetUserAnalytics(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	defer cleanupUser(ctx, driver, userID)

	types := []string{"conversation", "conversation", "preference"}
	for _, memType := range types {
		mem := Memory{
			ID:        uuid.New().String(),
			Content:   "memory content",
			Type:      memType,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateMemory(ctx, mem, userID, nil); err != nil {
			t.Fatalf("CreateMemory failed: %v", err)
		}
	}

	analytics, err := repo.GetUserAnalytics(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserAnalytics failed: %v", err)
	}

	if analytics.TotalMemories != 3 {
		t.Errorf("Expected 3 total memories, got %d", analytics.TotalMemories)
	}
	if analytics.ConversationMemories != 2 {
		t.Errorf("Expected 2 conversation memories, got %d", analytics.ConversationMemories)
	}
	if analytics.MemoryDistribution["preference"] != 1 {
		t.Errorf("Expected 1 preference memory, got %d", analytics.MemoryDistribution["preference"])
	}
	if analytics.LastActivity == nil {
		t.Error("Expected last activity to be set")
	}
}

func TestRepository_GetConversationMemories_Order(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	repo := NewRepository(driver)
	userID := "test-user-" + time.Now().Format("20060102150405")
	conversationID := uuid.New().String()
	defer cleanupUser(ctx, driver, userID)

	base := time.Now().UTC()
	contents := []string{"user: hi there friend", "assistant: hello, nice to meet you"}
	for i, content := range contents {
		mem := Memory{
			ID:             uuid.New().String(),
			Content:        content,
			Type:           "conversation",
			ConversationID: conversationID,
			CreatedAt:      base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.CreateMemory(ctx, mem, userID, nil); err != nil {
			t.Fatalf("CreateMemory failed: %v", err)
		}
	}

	memories, err := repo.GetConversationMemories(ctx, userID, conversationID)
	if err != nil {
		t.Fatalf("GetConversationMemories failed: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("Expected 2 memories, got %d", len(memories))
	}
	if memories[0].Content != contents[0] || memories[1].Content != contents[1] {
		t.Errorf("Memories out of order: %v", memories)
	}
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := "bolt://localhost:7687"
	user := "neo4j"
	password := "password"

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

func cleanupUser(ctx context.Context, driver neo4j.DriverWithContext, userID string) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, _ = session.Run(ctx, `
		MATCH (u:User {id: $id})
		OPTIONAL MATCH (u)-[:REMEMBERS]->(m:Memory)
		OPTIONAL MATCH (u)-[:HAD_INTERACTION]->(i:Interaction)
		DETACH DELETE u, m, i
	`, map[string]interface{}{"id": userID})
}
