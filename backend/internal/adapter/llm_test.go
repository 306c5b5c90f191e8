package adapter

import (
	"context"
	"os"
	"testing"
)

// These are basic integration tests and require OPENAI_API_KEY to be set
func testAdapter(t *testing.T) *LLMAdapter {
	t.Helper()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	return NewLLMAdapter(apiKey, "gpt-4")
}

func TestLLMAdapter_Complete(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	adapter := testAdapter(t)

	ctx := context.Background()
	response, err := adapter.Complete(ctx, "You are a helpful assistant.", "Say hello in one sentence.")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if response == "" {
		t.Error("Expected non-empty response")
	}
}

func TestLLMAdapter_Embed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	adapter := testAdapter(t)

	ctx := context.Background()
	vec, err := adapter.Embed(ctx, "User loves pizza")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vec) != EmbeddingDimensions {
		t.Errorf("Expected %d dimensions, got %d", EmbeddingDimensions, len(vec))
	}
}

func TestLLMAdapter_EmbedBatch_PreservesOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	adapter := testAdapter(t)

	ctx := context.Background()
	vecs, err := adapter.EmbedBatch(ctx, []string{"first text", "second text", "third text"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if len(vecs) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != EmbeddingDimensions {
			t.Errorf("Vector %d has %d dimensions, expected %d", i, len(vec), EmbeddingDimensions)
		}
	}
}

func TestLLMAdapter_SetModel(t *testing.T) {
	adapter := NewLLMAdapter("dummy-key", "gpt-4")

	adapter.SetModel("gpt-4o")
	if got := adapter.GetModel(); got != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", got)
	}

	// Empty model is ignored
	adapter.SetModel("")
	if got := adapter.GetModel(); got != "gpt-4o" {
		t.Errorf("Expected model gpt-4o after empty SetModel, got %s", got)
	}
}

func TestLLMAdapter_EmbedBatch_Empty(t *testing.T) {
	adapter := NewLLMAdapter("dummy-key", "gpt-4")

	vecs, err := adapter.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vecs != nil {
		t.Errorf("Expected nil vectors for empty input, got %v", vecs)
	}
}
