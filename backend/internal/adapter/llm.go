package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	apperrors "memoria/backend/pkg/errors"
	"memoria/backend/pkg/logger"
)

const (
	// EmbeddingDimensions is the output size of text-embedding-3-small
	EmbeddingDimensions = 1536

	fallbackModel  = openai.GPT3Dot5Turbo
	embeddingModel = openai.SmallEmbedding3

	completionMaxTokens = 1000
	fallbackMaxTokens   = 500
	summaryMaxTokens    = 200
)

// LLMAdapter handles communication with the OpenAI API for chat
// completions, embeddings, and summaries.
type LLMAdapter struct {
	client *openai.Client
	model  string
	mu     sync.RWMutex // Protects model field for concurrent access
	logger *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(apiKey, model string) *LLMAdapter {
	if model == "" {
		model = openai.GPT4
	}

	return &LLMAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger.Get(),
	}
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Complete sends a chat completion request and returns the assistant message
func (a *LLMAdapter) Complete(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.GetModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0.7,
		MaxTokens:   completionMaxTokens,
	}

	resp, err := a.createWithRetry(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteFallback generates a response without memory context using a
// cheaper model. Used when the memory-aware path fails so the assistant
// still answers.
func (a *LLMAdapter) CompleteFallback(ctx context.Context, userMsg string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: fallbackModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a helpful AI assistant. Respond to the user's message naturally.",
			},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: 0.7,
		MaxTokens:   fallbackMaxTokens,
	}

	resp, err := a.createWithRetry(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Choices[0].Message.Content, nil
}

// Summarize condenses text into a 2-3 sentence summary
func (a *LLMAdapter) Summarize(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.GetModel(),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Summarize the following conversation in 2-3 sentences:",
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   summaryMaxTokens,
	}

	resp, err := a.createWithRetry(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed computes the embedding vector for a single text
func (a *LLMAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch computes embedding vectors for multiple texts in one request
func (a *LLMAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}

	a.logger.Debug("Embeddings created",
		zap.Int("texts", len(texts)),
		zap.Int("dimensions", len(vectors[0])),
	)

	return vectors, nil
}

// createWithRetry runs a chat completion with linear backoff
func (a *LLMAdapter) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	var err error

	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return resp, apperrors.NewContextCancelled("llm request", ctx.Err())
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", req.Model),
		)
	}

	if err != nil {
		return resp, apperrors.NewLLMRequestFailed(req.Model, maxRetries, err)
	}

	if len(resp.Choices) == 0 {
		return resp, apperrors.ErrLLMNoResponse
	}

	return resp, nil
}
