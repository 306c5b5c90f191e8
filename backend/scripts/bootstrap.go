package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"memoria/backend/internal/adapter"
	"memoria/backend/internal/vector"
	"memoria/backend/pkg/config"
	"memoria/backend/pkg/logger"
)

// Cypher statements are idempotent; rerunning the bootstrap is safe.
var schemaStatements = []string{
	"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE CONSTRAINT memory_id_unique IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
	"CREATE CONSTRAINT topic_name_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE",
	"CREATE INDEX memory_created_at IF NOT EXISTS FOR (m:Memory) ON (m.created_at)",
	"CREATE INDEX memory_conversation_id IF NOT EXISTS FOR (m:Memory) ON (m.conversation_id)",
	"CREATE INDEX interaction_conversation_id IF NOT EXISTS FOR (i:Interaction) ON (i.conversation_id)",
}

func main() {
	skipQdrant := flag.Bool("skip-qdrant", false, "Skip Qdrant collection creation")
	skipNeo4j := flag.Bool("skip-neo4j", false, "Skip Neo4j schema setup")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Debug); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Bootstrapping memory stores...")

	ctx := context.Background()

	if !*skipNeo4j {
		if err := bootstrapNeo4j(ctx, cfg, log); err != nil {
			log.Error("Neo4j bootstrap failed", zap.Error(err))
			os.Exit(1)
		}
	}

	if !*skipQdrant {
		if err := bootstrapQdrant(ctx, cfg, log); err != nil {
			log.Error("Qdrant bootstrap failed", zap.Error(err))
			os.Exit(1)
		}
	}

	log.Info("Bootstrap complete")
}

func bootstrapNeo4j(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURL,
		neo4j.BasicAuth(cfg.Neo4jUsername, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("schema statement failed (%s): %w", stmt, err)
		}
		log.Debug("Schema statement applied", zap.String("statement", stmt))
	}

	log.Info("Neo4j schema ready", zap.Int("statements", len(schemaStatements)))
	return nil
}

func bootstrapQdrant(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := vector.NewStore(cfg.QdrantURL, cfg.QdrantCollection, adapter.EmbeddingDimensions)
	if err != nil {
		return fmt.Errorf("failed to create Qdrant store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}

	log.Info("Qdrant collection ready", zap.String("collection", cfg.QdrantCollection))
	return nil
}
