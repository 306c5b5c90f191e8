package observe

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_DisabledWithoutKeys(t *testing.T) {
	assert.Nil(t, NewClient("https://cloud.langfuse.com", "", ""))
	assert.Nil(t, NewClient("https://cloud.langfuse.com", "pk-test", ""))

	// Nil client must be safe to use
	var c *Client
	c.RecordGeneration(Generation{Name: "chat"})
	c.Close()
}

func TestClient_IngestsBatch(t *testing.T) {
	var mu sync.Mutex
	var batches [][]event
	var authUser, authPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ingestionPath, r.URL.Path)

		mu.Lock()
		defer mu.Unlock()
		authUser, authPass, _ = r.BasicAuth()

		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Batch []event `json:"batch"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("failed to decode batch: %v", err)
		}
		batches = append(batches, payload.Batch)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "pk-test", "sk-test")
	if client == nil {
		t.Fatal("expected enabled client")
	}

	start := time.Now().Add(-time.Second)
	client.RecordGeneration(Generation{
		Name:      "chat",
		UserID:    "user-1",
		Model:     "gpt-4",
		Input:     "hello",
		Output:    "hi there",
		StartTime: start,
		EndTime:   time.Now(),
		Metadata:  map[string]interface{}{"conversation_id": "conv-1"},
	})

	// Close drains the queue synchronously
	client.Close()

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "pk-test", authUser)
	assert.Equal(t, "sk-test", authPass)

	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	events := batches[0]
	if len(events) != 2 {
		t.Fatalf("expected trace + generation events, got %d", len(events))
	}
	assert.Equal(t, "trace-create", events[0].Type)
	assert.Equal(t, "generation-create", events[1].Type)
	assert.Equal(t, "user-1", events[0].Body["userId"])
	assert.Equal(t, "gpt-4", events[1].Body["model"])
	assert.Equal(t, events[0].Body["id"], events[1].Body["traceId"])
}

func TestClient_SurvivesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "pk-test", "sk-test")
	client.RecordGeneration(Generation{Name: "chat", StartTime: time.Now(), EndTime: time.Now()})

	// Must not panic or block
	client.Close()
}
