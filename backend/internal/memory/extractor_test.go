package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"memoria/backend/internal/graph"
)

func TestIsNonMemoryMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"greeting", "hello there, how are you?", true},
		{"thanks", "thanks a lot!", true},
		{"too short", "ok cool", true},
		{"command", "/clear all the things", true},
		{"search command", "search for pizza places", true},
		{"plain question", "what is the capital of France?", true},
		{"personal statement", "I just moved to Berlin last month", false},
		{"preference", "My favorite food is sushi, by the way", false},
		{"question about self", "what is my favorite color?", false},
		{"life event starting like a command", "getting married to anna next month", false},
		{"hobby starting like a greeting", "hiking the alps is my favorite hobby", false},
		{"career starting like a command", "showing dogs professionally is my career", false},
		{"greeting carrying a fact", "hi, my name is sarah and i live in oslo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNonMemoryMessage(tt.message))
		})
	}
}

func TestExtractJSONObject_Plain(t *testing.T) {
	raw := `{"should_save": true, "importance": 7}`
	assert.Equal(t, raw, extractJSONObject(raw))
}

func TestExtractJSONObject_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"should_save\": true, \"importance\": 7}\n```"

	var decision Decision
	err := json.Unmarshal([]byte(extractJSONObject(raw)), &decision)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	assert.True(t, decision.ShouldSave)
	assert.Equal(t, 7, decision.Importance)
}

func TestExtractJSONObject_SurroundingProse(t *testing.T) {
	raw := `Here is my analysis: {"should_save": false, "memory_type": "none"} Hope that helps!`

	var decision Decision
	err := json.Unmarshal([]byte(extractJSONObject(raw)), &decision)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	assert.False(t, decision.ShouldSave)
	assert.Equal(t, "none", decision.MemoryType)
}

func TestDecision_UpdateFields(t *testing.T) {
	raw := `{"should_save": false, "updates_existing": true, "existing_id": "m1", "content": "User now lives in Madrid"}`

	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	assert.False(t, decision.ShouldSave)
	assert.True(t, decision.UpdatesExisting)
	assert.Equal(t, "m1", decision.ExistingID)
	assert.Equal(t, "User now lives in Madrid", decision.Content)
}

func TestFormatKnownFacts(t *testing.T) {
	assert.Equal(t, "None.", formatKnownFacts(nil))

	facts := formatKnownFacts([]graph.Memory{
		{ID: "m1", Content: "User loves pizza"},
		{ID: "m2", Content: "User lives in Berlin"},
	})
	assert.Equal(t, "- [m1] User loves pizza\n- [m2] User lives in Berlin", facts)
}

func TestDefaultTopics(t *testing.T) {
	assert.Equal(t, []string{"Preferences"}, defaultTopics("preference"))
	assert.Equal(t, []string{"Personal"}, defaultTopics("personal_info"))
	assert.Equal(t, []string{"Life Events"}, defaultTopics("life_event"))
	assert.Equal(t, []string{"General"}, defaultTopics("fact"))
}

func TestSourceForType(t *testing.T) {
	assert.Equal(t, "preference", sourceForType("preference"))
	assert.Equal(t, "conversation", sourceForType("conversation"))
	assert.Equal(t, "auto-extracted", sourceForType("fact"))
	assert.Equal(t, "auto-extracted", sourceForType(""))
}
