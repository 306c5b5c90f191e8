package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"memoria/backend/internal/adapter"
	"memoria/backend/internal/graph"
	"memoria/backend/internal/vector"
	apperrors "memoria/backend/pkg/errors"
	"memoria/backend/pkg/logger"
)

// Service fuses the vector and graph backends behind one memory API.
// Every stored memory lives in both backends under the same ID: the vector
// side answers similarity queries, the graph side holds user/topic structure.
type Service struct {
	llm       *adapter.LLMAdapter
	vectors   *vector.Store
	graph     *graph.Repository
	extractor *Extractor
	logger    *zap.Logger
}

// NewService creates a new memory service
func NewService(llm *adapter.LLMAdapter, vectors *vector.Store, graphRepo *graph.Repository) *Service {
	return &Service{
		llm:       llm,
		vectors:   vectors,
		graph:     graphRepo,
		extractor: NewExtractor(llm),
		logger:    logger.Get(),
	}
}

// recentMemoryWindow is how many recent memories the extractor sees for
// restatement and contradiction detection
const recentMemoryWindow = 20

// Add evaluates a message against the user's recent memories and, when
// memory-worthy, stores the rewritten memory in both backends. Restatements
// are skipped; contradictions update the existing memory in place under its
// original ID. Returns ErrMemoryNotStored when the extractor declines.
func (s *Service) Add(ctx context.Context, userID, content string) (*Record, error) {
	recent, err := s.graph.GetUserMemories(ctx, userID, recentMemoryWindow)
	if err != nil {
		// Dedup context is enrichment; evaluate without it rather than fail
		s.logger.Warn("Failed to load recent memories for evaluation",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		recent = nil
	}

	decision, err := s.extractor.Evaluate(ctx, userID, content, recent)
	if err != nil {
		return nil, err
	}
	if !decision.ShouldSave && !decision.UpdatesExisting {
		return nil, apperrors.ErrMemoryNotStored
	}

	vec, err := s.llm.Embed(ctx, decision.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed memory: %w", err)
	}

	if decision.UpdatesExisting {
		if prev := findMemory(recent, decision.ExistingID); prev != nil {
			return s.updateExisting(ctx, userID, *prev, decision, vec)
		}
		// The model pointed at an ID outside the window; store as new instead
		s.logger.Warn("Update decision referenced unknown memory, storing as new",
			zap.String("user_id", userID),
			zap.String("existing_id", decision.ExistingID),
		)
	}

	rec := Record{
		ID:        uuid.New().String(),
		Memory:    decision.Content,
		Type:      decision.MemoryType,
		Topics:    decision.Topics,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.storeDual(ctx, userID, rec, vec, "", ""); err != nil {
		return nil, apperrors.NewMemoryStoreFailed(userID, err)
	}

	s.logger.Info("Memory stored",
		zap.String("memory_id", rec.ID),
		zap.String("user_id", userID),
		zap.String("type", rec.Type),
		zap.Strings("topics", rec.Topics),
	)

	return &rec, nil
}

// updateExisting rewrites a memory in both backends under its original ID
func (s *Service) updateExisting(ctx context.Context, userID string, prev graph.Memory, decision *Decision, vec []float32) (*Record, error) {
	rec := Record{
		ID:        prev.ID,
		Memory:    decision.Content,
		Type:      decision.MemoryType,
		Topics:    decision.Topics,
		CreatedAt: prev.CreatedAt,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.vectors.Upsert(gctx, []vector.Point{{
			ID:     rec.ID,
			Vector: vec,
			Payload: vector.Payload{
				UserID:         userID,
				Memory:         rec.Memory,
				Type:           rec.Type,
				Role:           prev.Role,
				ConversationID: prev.ConversationID,
				CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
			},
		}})
	})
	g.Go(func() error {
		return s.graph.UpdateMemory(gctx, rec.ID, rec.Memory, rec.Type, rec.Topics)
	})

	if err := g.Wait(); err != nil {
		return nil, apperrors.NewMemoryStoreFailed(userID, err)
	}

	s.logger.Info("Memory updated",
		zap.String("memory_id", rec.ID),
		zap.String("user_id", userID),
		zap.String("type", rec.Type),
	)

	return &rec, nil
}

// findMemory returns the memory with the given ID, or nil when the ID is
// empty or not present
func findMemory(memories []graph.Memory, id string) *graph.Memory {
	if id == "" {
		return nil
	}
	for i := range memories {
		if memories[i].ID == id {
			return &memories[i]
		}
	}
	return nil
}

// AddConversation stores a chat turn verbatim, one memory per message, and
// logs the interactions. Returns the IDs of the stored memories.
func (s *Service) AddConversation(ctx context.Context, userID, conversationID string, messages []Message) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	contents := make([]string, len(messages))
	for i, msg := range messages {
		contents[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
	}

	vecs, err := s.llm.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to embed conversation: %w", err)
	}

	now := time.Now().UTC()
	ids := make([]string, len(messages))
	for i, msg := range messages {
		rec := Record{
			ID:        uuid.New().String(),
			Memory:    contents[i],
			Type:      "conversation",
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond), // preserve turn order
		}
		ids[i] = rec.ID

		if err := s.storeDual(ctx, userID, rec, vecs[i], msg.Role, conversationID); err != nil {
			return ids[:i], apperrors.NewMemoryStoreFailed(userID, err)
		}

		if err := s.graph.LogInteraction(ctx, userID, conversationID, msg.Role, msg.Content, rec.CreatedAt); err != nil {
			s.logger.Warn("Failed to log interaction",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("Conversation stored",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
		zap.Int("messages", len(messages)),
	)

	return ids, nil
}

// storeDual writes one memory to both backends in parallel. A partial
// failure rolls back whichever half committed so neither store serves an
// orphan under the shared ID.
func (s *Service) storeDual(ctx context.Context, userID string, rec Record, vec []float32, role, conversationID string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.vectors.Upsert(gctx, []vector.Point{{
			ID:     rec.ID,
			Vector: vec,
			Payload: vector.Payload{
				UserID:         userID,
				Memory:         rec.Memory,
				Type:           rec.Type,
				Role:           role,
				ConversationID: conversationID,
				CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
			},
		}})
	})

	g.Go(func() error {
		return s.graph.CreateMemory(gctx, graph.Memory{
			ID:             rec.ID,
			Content:        rec.Memory,
			Type:           rec.Type,
			Role:           role,
			Source:         sourceForType(rec.Type),
			ConversationID: conversationID,
			CreatedAt:      rec.CreatedAt,
		}, userID, rec.Topics)
	})

	if err := g.Wait(); err != nil {
		s.rollbackDual(rec.ID)
		return err
	}
	return nil
}

// rollbackDual best-effort removes a memory from both backends after a
// partial dual-store failure. Deletes are idempotent, so the half that never
// committed is a no-op. Uses a fresh context because the write context is
// already cancelled.
func (s *Service) rollbackDual(memoryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.vectors.DeletePoints(ctx, []string{memoryID}); err != nil {
		s.logger.Warn("Failed to remove orphaned vector",
			zap.String("memory_id", memoryID),
			zap.Error(err),
		)
	}
	if err := s.graph.DeleteMemory(ctx, memoryID); err != nil {
		s.logger.Warn("Failed to remove orphaned graph memory",
			zap.String("memory_id", memoryID),
			zap.Error(err),
		)
	}
}

// Search embeds the query and returns the user's most similar memories,
// hydrated with their graph topics.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit < 1 {
		limit = 5
	}

	vec, err := s.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, userID, vec, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}
	topics, err := s.graph.GetMemoryTopics(ctx, ids)
	if err != nil {
		// Topics are enrichment only; a graph hiccup should not sink search
		s.logger.Warn("Failed to hydrate memory topics", zap.Error(err))
		topics = map[string][]string{}
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{
			ID:       hit.ID,
			Memory:   hit.Payload.Memory,
			Score:    hit.Score,
			Metadata: metadataFromPayload(hit.Payload, topics[hit.ID]),
		})
	}

	return results, nil
}

// List returns the user's memories, newest first
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Item, error) {
	if limit < 1 {
		limit = 10
	}

	memories, err := s.graph.GetUserMemories(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(memories))
	for i, mem := range memories {
		ids[i] = mem.ID
	}
	topics, err := s.graph.GetMemoryTopics(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to hydrate memory topics", zap.Error(err))
		topics = map[string][]string{}
	}

	items := make([]Item, 0, len(memories))
	for _, mem := range memories {
		meta := map[string]interface{}{
			"type": mem.Type,
		}
		if mem.Role != "" {
			meta["role"] = mem.Role
		}
		if mem.ConversationID != "" {
			meta["conversation_id"] = mem.ConversationID
		}
		if t := topics[mem.ID]; len(t) > 0 {
			meta["topics"] = t
		}
		items = append(items, Item{
			ID:        mem.ID,
			Memory:    mem.Content,
			CreatedAt: mem.CreatedAt,
			Metadata:  meta,
		})
	}

	return items, nil
}

// ConversationTranscript returns one conversation's memories in order
func (s *Service) ConversationTranscript(ctx context.Context, userID, conversationID string) ([]Item, error) {
	memories, err := s.graph.GetConversationMemories(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(memories))
	for _, mem := range memories {
		items = append(items, Item{
			ID:        mem.ID,
			Memory:    mem.Content,
			CreatedAt: mem.CreatedAt,
			Metadata: map[string]interface{}{
				"type":            mem.Type,
				"role":            mem.Role,
				"conversation_id": conversationID,
			},
		})
	}

	return items, nil
}

// Clear removes all of a user's memories from both backends
func (s *Service) Clear(ctx context.Context, userID string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.vectors.DeleteByUser(gctx, userID)
	})
	g.Go(func() error {
		_, err := s.graph.DeleteUserMemories(gctx, userID)
		return err
	})

	if err := g.Wait(); err != nil {
		return apperrors.NewMemoryStoreFailed(userID, err)
	}

	s.logger.Info("User memories cleared", zap.String("user_id", userID))
	return nil
}

// Analytics aggregates a user's memory usage across both stores
func (s *Service) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	graphStats, err := s.graph.GetUserAnalytics(ctx, userID)
	if err != nil {
		return nil, err
	}

	indexed, err := s.vectors.CountByUser(ctx, userID)
	if err != nil {
		// The graph numbers still stand on their own
		s.logger.Warn("Failed to count indexed vectors", zap.Error(err))
	}

	return &Analytics{
		UserID:               userID,
		TotalMemories:        graphStats.TotalMemories,
		ConversationMemories: graphStats.ConversationMemories,
		MemoryDistribution:   graphStats.MemoryDistribution,
		IndexedVectors:       indexed,
		LastActivity:         graphStats.LastActivity,
	}, nil
}

// Health probes both backends in parallel. The returned map always has one
// entry per store; healthy is false when any probe failed.
func (s *Service) Health(ctx context.Context) (map[string]string, bool) {
	statuses := map[string]string{
		"vector_store": "healthy",
		"graph_store":  "healthy",
	}

	var g errgroup.Group
	var vectorErr, graphErr error

	g.Go(func() error {
		vectorErr = s.vectors.Health(ctx)
		return nil
	})
	g.Go(func() error {
		graphErr = s.graph.Health(ctx)
		return nil
	})
	_ = g.Wait()

	healthy := true
	if vectorErr != nil {
		statuses["vector_store"] = fmt.Sprintf("unhealthy: %v", vectorErr)
		healthy = false
	}
	if graphErr != nil {
		statuses["graph_store"] = fmt.Sprintf("unhealthy: %v", graphErr)
		healthy = false
	}

	return statuses, healthy
}

func sourceForType(memType string) string {
	switch memType {
	case "life_event":
		return "life event"
	case "preference":
		return "preference"
	case "personal_info":
		return "personal information"
	case "conversation":
		return "conversation"
	default:
		return "auto-extracted"
	}
}

func metadataFromPayload(p vector.Payload, topics []string) map[string]interface{} {
	meta := map[string]interface{}{
		"type": p.Type,
	}
	if p.Role != "" {
		meta["role"] = p.Role
	}
	if p.ConversationID != "" {
		meta["conversation_id"] = p.ConversationID
	}
	if p.CreatedAt != "" {
		meta["created_at"] = p.CreatedAt
	}
	if len(topics) > 0 {
		meta["topics"] = topics
	}
	return meta
}
