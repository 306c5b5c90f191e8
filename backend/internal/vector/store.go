package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	apperrors "memoria/backend/pkg/errors"
	"memoria/backend/pkg/logger"
)

// grpcPort is Qdrant's gRPC port; the REST port (6333) in QDRANT_URL is
// remapped to it since the Go client speaks gRPC only.
const grpcPort = 6334

// Payload is the metadata stored alongside each memory vector
type Payload struct {
	UserID         string `json:"user_id"`
	Memory         string `json:"memory"`
	Type           string `json:"type"`
	Role           string `json:"role,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Point is a single memory vector with its payload
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a search hit with its similarity score
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
}

// Store wraps a Qdrant collection holding per-user memory vectors
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// NewStore connects to Qdrant and returns a store bound to a collection
func NewStore(rawURL, collection string, dimensions uint64) (*Store, error) {
	host, port, useTLS, err := parseQdrantURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL %q: %w", rawURL, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, apperrors.NewVectorConnectionFailed(rawURL, err)
	}

	return &Store{
		client:     client,
		collection: collection,
		dimensions: dimensions,
		logger:     logger.Get(),
	}, nil
}

// Close releases the underlying gRPC connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Collection returns the collection name this store writes to
func (s *Store) Collection() string {
	return s.collection
}

// EnsureCollection creates the memory collection if it does not exist
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	s.logger.Info("Qdrant collection created",
		zap.String("collection", s.collection),
		zap.Uint64("dimensions", s.dimensions),
	)
	return nil
}

// Upsert writes memory points into the collection
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"user_id":         p.Payload.UserID,
				"memory":          p.Payload.Memory,
				"type":            p.Payload.Type,
				"role":            p.Payload.Role,
				"conversation_id": p.Payload.ConversationID,
				"created_at":      p.Payload.CreatedAt,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrantPoints,
	})
	if err != nil {
		return apperrors.NewVectorOperationFailed("upsert", s.collection, err)
	}

	s.logger.Debug("Vectors upserted",
		zap.String("collection", s.collection),
		zap.Int("count", len(points)),
	)
	return nil
}

// Search returns the user's memories most similar to the query vector
func (s *Store) Search(ctx context.Context, userID string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit < 1 {
		limit = 5
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         userFilter(userID),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.NewVectorOperationFailed("query", s.collection, err)
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, ScoredPoint{
			ID:      hit.GetId().GetUuid(),
			Score:   float64(hit.GetScore()),
			Payload: payloadFromValues(hit.GetPayload()),
		})
	}

	return results, nil
}

// List returns the user's memories without scoring, newest are not
// guaranteed first; callers sort by payload created_at if order matters.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]ScoredPoint, error) {
	if limit < 1 {
		limit = 10
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         userFilter(userID),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.NewVectorOperationFailed("scroll", s.collection, err)
	}

	results := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredPoint{
			ID:      p.GetId().GetUuid(),
			Payload: payloadFromValues(p.GetPayload()),
		})
	}

	return results, nil
}

// CountByUser returns the number of memories stored for a user
func (s *Store) CountByUser(ctx context.Context, userID string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         userFilter(userID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, apperrors.NewVectorOperationFailed("count", s.collection, err)
	}
	return count, nil
}

// DeletePoints removes specific points by ID. Used to roll back
// half-committed dual-store writes; deleting a missing point is a no-op.
func (s *Store) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return apperrors.NewVectorOperationFailed("delete", s.collection, err)
	}

	return nil
}

// DeleteByUser removes all memories belonging to a user
func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(userFilter(userID)),
	})
	if err != nil {
		return apperrors.NewVectorOperationFailed("delete", s.collection, err)
	}

	s.logger.Info("User vectors deleted",
		zap.String("collection", s.collection),
		zap.String("user_id", userID),
	)
	return nil
}

// Health verifies the Qdrant connection
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

func userFilter(userID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("user_id", userID),
		},
	}
}

func payloadFromValues(values map[string]*qdrant.Value) Payload {
	return Payload{
		UserID:         values["user_id"].GetStringValue(),
		Memory:         values["memory"].GetStringValue(),
		Type:           values["type"].GetStringValue(),
		Role:           values["role"].GetStringValue(),
		ConversationID: values["conversation_id"].GetStringValue(),
		CreatedAt:      values["created_at"].GetStringValue(),
	}
}

// parseQdrantURL extracts gRPC connection parameters from a Qdrant URL.
// Accepts forms like http://localhost:6333, https://qdrant.example.com,
// or a bare host:port.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", 0, false, fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, err
	}
	if u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("missing host")
	}

	port = grpcPort
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port %q", p)
		}
		// The REST port maps to the adjacent gRPC port
		if parsed != 6333 {
			port = parsed
		}
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}
