package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"memoria/backend/internal/adapter"
	"memoria/backend/internal/memory"
	"memoria/backend/internal/observe"
	apperrors "memoria/backend/pkg/errors"
	"memoria/backend/pkg/logger"
)

const systemPromptTemplate = `You are an intelligent, memory-aware AI assistant. You have access to the user's previous conversations and important facts about them.

Use the following context from the user's memory to provide personalized, contextual responses:

%s

Instructions:
- Be conversational and helpful
- Reference relevant memories when appropriate
- Maintain consistency with previous interactions
- If you don't have relevant context, respond naturally
- Don't explicitly mention that you're using "memories" unless asked`

// TurnResult is the outcome of one chat turn
type TurnResult struct {
	Response         string `json:"response"`
	UserID           string `json:"user_id"`
	ConversationID   string `json:"conversation_id"`
	MemoryAdded      bool   `json:"memory_added"`
	RelevantMemories int    `json:"relevant_memories_count"`
	Error            string `json:"error,omitempty"`
}

// Service handles chat interactions with memory context
type Service struct {
	memories *memory.Service
	llm      *adapter.LLMAdapter
	observer *observe.Client
	logger   *zap.Logger
}

// NewService creates a new chat service. The observer may be nil.
func NewService(memories *memory.Service, llm *adapter.LLMAdapter, observer *observe.Client) *Service {
	return &Service{
		memories: memories,
		llm:      llm,
		observer: observer,
		logger:   logger.Get(),
	}
}

// ProcessMessage runs one memory-aware chat turn: retrieve relevant
// memories, generate a response, and commit the exchange back to memory.
// Any failure along the memory path degrades to a memoryless fallback
// response so the assistant always answers.
func (s *Service) ProcessMessage(ctx context.Context, message, userID, conversationID string) (*TurnResult, error) {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	start := time.Now()

	relevant, err := s.memories.Search(ctx, userID, message, 5)
	if err != nil {
		s.logger.Error("Memory search failed, falling back",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return s.fallback(ctx, message, userID, conversationID, err)
	}

	systemPrompt := renderSystemPrompt(buildMemoryContext(relevant))

	response, err := s.llm.Complete(ctx, systemPrompt, message)
	if err != nil {
		s.logger.Error("Response generation failed, falling back",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return s.fallback(ctx, message, userID, conversationID, err)
	}

	ids, err := s.memories.AddConversation(ctx, userID, conversationID, []memory.Message{
		{Role: "user", Content: message},
		{Role: "assistant", Content: response},
	})
	if err != nil {
		s.logger.Error("Failed to store conversation, falling back",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return s.fallback(ctx, message, userID, conversationID, err)
	}

	// Distill durable facts from the user message alongside the verbatim turn.
	// The turn is already stored, so a failure here only loses enrichment.
	if _, err := s.memories.Add(ctx, userID, message); err != nil && !errors.Is(err, apperrors.ErrMemoryNotStored) {
		s.logger.Warn("Fact extraction failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	s.recordTurn(userID, conversationID, message, response, s.llm.GetModel(), start, len(relevant))

	return &TurnResult{
		Response:         response,
		UserID:           userID,
		ConversationID:   conversationID,
		MemoryAdded:      len(ids) > 0,
		RelevantMemories: len(relevant),
	}, nil
}

// fallback generates a memoryless response with the cheaper model
func (s *Service) fallback(ctx context.Context, message, userID, conversationID string, cause error) (*TurnResult, error) {
	response, err := s.llm.CompleteFallback(ctx, message)
	if err != nil {
		response = fmt.Sprintf("I apologize, but I'm experiencing technical difficulties. Please try again later. (Error: %v)", err)
	}

	return &TurnResult{
		Response:       response,
		UserID:         userID,
		ConversationID: conversationID,
		MemoryAdded:    false,
		Error:          cause.Error(),
	}, nil
}

// ConversationSummary summarizes one conversation's stored exchanges
func (s *Service) ConversationSummary(ctx context.Context, userID, conversationID string) (string, error) {
	transcript, err := s.memories.ConversationTranscript(ctx, userID, conversationID)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}
	if len(transcript) == 0 {
		return "No conversation found.", nil
	}

	lines := make([]string, 0, len(transcript))
	for _, item := range transcript {
		lines = append(lines, item.Memory)
	}

	summary, err := s.llm.Summarize(ctx, strings.Join(lines, "\n"))
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}

	return summary, nil
}

func (s *Service) recordTurn(userID, conversationID, input, output, model string, start time.Time, relevantCount int) {
	if s.observer == nil {
		return
	}
	s.observer.RecordGeneration(observe.Generation{
		Name:      "chat",
		UserID:    userID,
		Model:     model,
		Input:     input,
		Output:    output,
		StartTime: start,
		EndTime:   time.Now(),
		Metadata: map[string]interface{}{
			"conversation_id":         conversationID,
			"relevant_memories_count": relevantCount,
		},
	})
}

// renderSystemPrompt fills the memory-aware system prompt with context
func renderSystemPrompt(memoryContext string) string {
	return fmt.Sprintf(systemPromptTemplate, memoryContext)
}

// buildMemoryContext renders retrieved memories into a prompt block
func buildMemoryContext(memories []memory.SearchResult) string {
	if len(memories) == 0 {
		return "No previous context available."
	}

	parts := make([]string, 0, len(memories))
	for _, mem := range memories {
		parts = append(parts, fmt.Sprintf("Memory: %s", mem.Memory))
	}

	return strings.Join(parts, "\n")
}
