package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"memoria/backend/internal/adapter"
	"memoria/backend/internal/chat"
	"memoria/backend/internal/graph"
	"memoria/backend/internal/memory"
	"memoria/backend/internal/observe"
	"memoria/backend/internal/vector"
	"memoria/backend/pkg/config"
	"memoria/backend/pkg/logger"
)

const (
	serviceName    = "Memory-Aware AI Assistant"
	serviceVersion = "1.0.0"
)

func main() {
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
	log.Info("Starting memory assistant API server...")

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURL,
		neo4j.BasicAuth(cfg.Neo4jUsername, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Initialize Qdrant store and make sure the collection exists
	vectorStore, err := vector.NewStore(cfg.QdrantURL, cfg.QdrantCollection, adapter.EmbeddingDimensions)
	if err != nil {
		log.Fatal("Failed to create Qdrant store", zap.Error(err))
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx); err != nil {
		log.Fatal("Failed to ensure Qdrant collection", zap.Error(err))
	}

	// Initialize dependencies
	graphRepo := graph.NewRepository(driver)
	llmAdapter := adapter.NewLLMAdapter(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	memoryService := memory.NewService(llmAdapter, vectorStore, graphRepo)

	var observer *observe.Client
	if cfg.LangfuseEnabled() {
		observer = observe.NewClient(cfg.LangfuseHost, cfg.LangfusePublicKey, cfg.LangfuseSecretKey)
		defer observer.Close()
		log.Info("Langfuse observability enabled", zap.String("host", cfg.LangfuseHost))
	}

	chatService := chat.NewService(memoryService, llmAdapter, observer)

	// Setup Gin router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Service banner
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "running",
			"service": serviceName,
			"version": serviceVersion,
		})
	})

	// Health check probes both memory backends
	router.GET("/health", func(c *gin.Context) {
		statuses, healthy := memoryService.Health(c.Request.Context())

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status": overall,
			"services": gin.H{
				"memory": statuses,
				"api":    "running",
			},
		})
	})

	// Chat with the assistant
	router.POST("/chat", func(c *gin.Context) {
		var req struct {
			Message        string `json:"message" binding:"required"`
			UserID         string `json:"user_id" binding:"required"`
			ConversationID string `json:"conversation_id"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := chatService.ProcessMessage(c.Request.Context(), req.Message, req.UserID, req.ConversationID)
		if err != nil {
			log.Error("Failed to process chat message", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat processing failed"})
			return
		}

		c.JSON(http.StatusOK, result)
	})

	// Memory routes
	memoryRoutes := router.Group("/memory")
	{
		// Retrieve a user's memories
		memoryRoutes.GET("/:user_id", func(c *gin.Context) {
			userID := c.Param("user_id")
			limit := parseLimit(c.Query("limit"), 10)

			memories, err := memoryService.List(c.Request.Context(), userID, limit)
			if err != nil {
				log.Error("Failed to retrieve memories", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Memory retrieval failed"})
				return
			}
			if memories == nil {
				memories = []memory.Item{}
			}

			c.JSON(http.StatusOK, gin.H{
				"memories":    memories,
				"user_id":     userID,
				"total_count": len(memories),
			})
		})

		// Clear all memories for a user
		memoryRoutes.DELETE("/:user_id", func(c *gin.Context) {
			userID := c.Param("user_id")

			if err := memoryService.Clear(c.Request.Context(), userID); err != nil {
				log.Error("Failed to clear memories", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Memory clearing failed"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"status":  "success",
				"message": fmt.Sprintf("Memories cleared for user %s", userID),
			})
		})

		// Semantic search over a user's memories
		memoryRoutes.GET("/:user_id/search", func(c *gin.Context) {
			userID := c.Param("user_id")
			query := c.Query("query")
			if query == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
				return
			}
			limit := parseLimit(c.Query("limit"), 5)

			results, err := memoryService.Search(c.Request.Context(), userID, query, limit)
			if err != nil {
				log.Error("Memory search failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Memory search failed"})
				return
			}
			if results == nil {
				results = []memory.SearchResult{}
			}

			c.JSON(http.StatusOK, gin.H{
				"query":   query,
				"user_id": userID,
				"results": results,
				"count":   len(results),
			})
		})

		// Summarize one stored conversation
		memoryRoutes.GET("/:user_id/summary", func(c *gin.Context) {
			userID := c.Param("user_id")
			conversationID := c.Query("conversation_id")
			if conversationID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id parameter is required"})
				return
			}

			summary, err := chatService.ConversationSummary(c.Request.Context(), userID, conversationID)
			if err != nil {
				log.Error("Conversation summary failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Summary generation failed"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"user_id":         userID,
				"conversation_id": conversationID,
				"summary":         summary,
			})
		})
	}

	// User interaction analytics
	router.GET("/analytics/:user_id", func(c *gin.Context) {
		userID := c.Param("user_id")

		analytics, err := memoryService.Analytics(c.Request.Context(), userID)
		if err != nil {
			log.Error("Failed to retrieve analytics", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analytics retrieval failed"})
			return
		}

		c.JSON(http.StatusOK, analytics)
	})

	// Start server
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", cfg.Addr()),
		zap.String("collection", vectorStore.Collection()),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// parseLimit parses a limit query parameter with a default
func parseLimit(raw string, defaultValue int) int {
	if raw == "" {
		return defaultValue
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return defaultValue
	}
	return limit
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
