package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	apperrors "memoria/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Host  string
	Port  string
	Debug bool

	// OpenAI
	OpenAIAPIKey string
	OpenAIModel  string

	// Qdrant
	QdrantURL        string
	QdrantCollection string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// Langfuse (optional observability)
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Host:              getEnv("APP_HOST", "0.0.0.0"),
		Port:              getEnv("APP_PORT", "8000"),
		Debug:             getEnvBool("DEBUG", false),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4"),
		QdrantURL:         getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:  getEnv("QDRANT_COLLECTION", "memory_vectors"),
		Neo4jURL:          getEnv("NEO4J_URL", "bolt://localhost:7687"),
		Neo4jUsername:     getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return apperrors.NewConfigMissingRequired("OPENAI_API_KEY")
	}
	if c.QdrantURL == "" {
		return apperrors.NewConfigMissingRequired("QDRANT_URL")
	}
	if c.Neo4jURL == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URL")
	}
	if c.Neo4jUsername == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USERNAME")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	// Langfuse keys are optional; observability stays disabled without them
	return nil
}

// LangfuseEnabled reports whether both Langfuse keys are configured
func (c *Config) LangfuseEnabled() bool {
	return c.LangfusePublicKey != "" && c.LangfuseSecretKey != ""
}

// Addr returns the host:port the HTTP server binds to
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
