package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"memoria/backend/internal/adapter"
	"memoria/backend/internal/graph"
	"memoria/backend/pkg/logger"
)

// minImportance is the threshold below which nothing is saved
const minImportance = 3

// Extractor decides whether a message contains anything worth remembering
// and rewrites it into a standalone memory.
type Extractor struct {
	llm    *adapter.LLMAdapter
	logger *zap.Logger
}

// Decision represents the extractor's verdict about a message
type Decision struct {
	ShouldSave      bool     `json:"should_save"`
	MemoryType      string   `json:"memory_type"` // "fact", "preference", "personal_info", "life_event", "none"
	Content         string   `json:"content"`     // What to save (rewritten clearly)
	Topics          []string `json:"topics"`      // Related topics
	Importance      int      `json:"importance"`  // 1-10 scale
	Reasoning       string   `json:"reasoning"`   // Why this decision
	UpdatesExisting bool     `json:"updates_existing"` // Message corrects a known fact
	ExistingID      string   `json:"existing_id"`      // ID of the fact being updated
}

// NewExtractor creates a new memory extractor
func NewExtractor(llm *adapter.LLMAdapter) *Extractor {
	return &Extractor{
		llm:    llm,
		logger: logger.Get(),
	}
}

// Evaluate analyzes a message against the user's known facts and decides
// what, if anything, to remember. Restatements of known facts are skipped;
// contradictions come back as updates pointing at the existing memory.
func (e *Extractor) Evaluate(ctx context.Context, userID, message string, existing []graph.Memory) (*Decision, error) {
	// Skip very short messages or obvious non-memory messages
	if len(strings.TrimSpace(message)) < 10 {
		return &Decision{ShouldSave: false}, nil
	}

	if isNonMemoryMessage(message) {
		return &Decision{ShouldSave: false}, nil
	}

	prompt := fmt.Sprintf(`You are a memory evaluation system. Analyze this user message and decide if anything should be saved to memory.

User message: "%s"

Known facts about this user:
%s

Respond with ONLY valid JSON (no markdown, no explanation):
{
  "should_save": true or false,
  "memory_type": "fact" or "preference" or "personal_info" or "life_event" or "none",
  "content": "The specific information to save, rewritten clearly and concisely",
  "topics": ["topic1", "topic2"],
  "importance": 1-10,
  "reasoning": "Brief one-sentence explanation",
  "updates_existing": true or false,
  "existing_id": "id of the known fact being updated, or empty"
}

Guidelines:
- Save facts about the user: name, location, job, interests, opinions, relationships
- Save preferences: likes, dislikes, favorites, habits
- Save personal info: age, location, occupation, family
- Save life events: major changes, achievements, milestones
- DON'T save: greetings, questions to you, generic statements, temporary states
- If the message only restates a known fact, set should_save=false
- If the message updates or contradicts a known fact, set updates_existing=true and existing_id to that fact's id, with content holding the corrected fact
- Importance scale:
  * 8-10: Major life events, core identity, important relationships, critical preferences
  * 5-7: Preferences, interests, opinions, moderate importance facts
  * 1-4: Minor details, passing mentions, low importance
- Only set should_save=true if importance >= 3
- Extract topics automatically (e.g., "I love pizza" -> topics: ["Food", "Preferences"])
- Rewrite content to be clear and standalone (e.g., "I love pizza" -> "User loves pizza")`, message, formatKnownFacts(existing))

	response, err := e.llm.Complete(ctx, prompt, "Analyze and respond with JSON only. No markdown, no explanation, just the JSON object.")
	if err != nil {
		e.logger.Warn("Memory evaluation LLM call failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to evaluate memory: %w", err)
	}

	decision := &Decision{}
	jsonStr := extractJSONObject(response)
	if err := json.Unmarshal([]byte(jsonStr), decision); err != nil {
		e.logger.Warn("Failed to parse memory decision JSON",
			zap.String("user_id", userID),
			zap.String("response", response),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to parse memory decision: %w", err)
	}

	if decision.Importance < minImportance {
		decision.ShouldSave = false
	}
	if !decision.UpdatesExisting {
		decision.ExistingID = ""
	}
	if (decision.ShouldSave || decision.UpdatesExisting) && len(decision.Topics) == 0 {
		decision.Topics = defaultTopics(decision.MemoryType)
	}

	e.logger.Debug("Memory evaluation completed",
		zap.String("user_id", userID),
		zap.Bool("should_save", decision.ShouldSave),
		zap.Bool("updates_existing", decision.UpdatesExisting),
		zap.String("memory_type", decision.MemoryType),
		zap.Int("importance", decision.Importance),
	)

	return decision, nil
}

// formatKnownFacts renders the user's recent memories into the prompt so the
// model can detect restatements and contradictions
func formatKnownFacts(existing []graph.Memory) string {
	if len(existing) == 0 {
		return "None."
	}
	var b strings.Builder
	for _, mem := range existing {
		fmt.Fprintf(&b, "- [%s] %s\n", mem.ID, mem.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// defaultTopics assigns a topic based on memory type when the extractor
// returned none
func defaultTopics(memoryType string) []string {
	switch memoryType {
	case "preference":
		return []string{"Preferences"}
	case "personal_info":
		return []string{"Personal"}
	case "life_event":
		return []string{"Life Events"}
	default:
		return []string{"General"}
	}
}

var (
	greetingPatterns = []string{
		`^hi\b`, `^hello\b`, `^hey\b`, `^good morning\b`, `^good afternoon\b`, `^good evening\b`,
		`^thanks\b`, `^thank you\b`, `^ty\b`, `^thx\b`,
		`^bye\b`, `^goodbye\b`, `^see you\b`,
	}
	questionPatterns = []string{
		`^what\b`, `^how\b`, `^when\b`, `^where\b`, `^why\b`, `^who\b`,
		`^can you\b`, `^could you\b`, `^will you\b`, `^would you\b`,
		`^tell me\b`, `^show me\b`, `^help me\b`,
	}
	commandPatterns = []string{
		`^/`, `^!`, `^@`, `^search\b`, `^find\b`, `^get\b`, `^show\b`,
	}
)

// isNonMemoryMessage quickly filters out messages that are unlikely to
// contain memory-worthy content. Patterns are word-anchored so "hiking" or
// "getting married" never matches a "hi"/"get" prefix.
func isNonMemoryMessage(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))

	if len(lower) < 10 {
		return true
	}

	// Messages that talk about the user carry signal regardless of how they open
	// ("hi, my name is Sarah" must reach the evaluator)
	personal := strings.HasPrefix(lower, "i ") ||
		strings.Contains(lower, " i ") ||
		strings.Contains(lower, "my ")

	for _, pattern := range greetingPatterns {
		if matched, _ := regexp.MatchString(pattern, lower); matched && !personal {
			return true
		}
	}

	for _, pattern := range questionPatterns {
		if matched, _ := regexp.MatchString(pattern, lower); matched {
			if strings.Contains(lower, "?") && !personal {
				return true
			}
		}
	}

	for _, pattern := range commandPatterns {
		if matched, _ := regexp.MatchString(pattern, lower); matched && !personal {
			return true
		}
	}

	return false
}

// extractJSONObject pulls a JSON object out of an LLM response, tolerating
// markdown code fences and surrounding prose
func extractJSONObject(response string) string {
	jsonStr := strings.TrimSpace(response)

	// Remove markdown code blocks if present
	if strings.HasPrefix(jsonStr, "```") {
		lines := strings.Split(jsonStr, "\n")
		var jsonLines []string
		inCodeBlock := false
		for _, line := range lines {
			if strings.HasPrefix(line, "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		jsonStr = strings.Join(jsonLines, "\n")
	}

	// Find JSON object boundaries
	if start := strings.Index(jsonStr, "{"); start != -1 {
		if end := strings.LastIndex(jsonStr, "}"); end != -1 && end > start {
			jsonStr = jsonStr[start : end+1]
		}
	}

	return jsonStr
}
