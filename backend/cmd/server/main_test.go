package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRootEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "running",
			"service": serviceName,
			"version": serviceVersion,
		})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "running", response["status"])
	assert.Equal(t, serviceName, response["service"])
}

func TestChatEndpoint_InvalidRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Mock endpoint with the same binding rules as the real one
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
		c.JSON(http.StatusOK, gin.H{"response": "ok"})
	})

	// Missing fields
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/chat", bytes.NewBuffer([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing user_id only
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/chat", bytes.NewBuffer([]byte(`{"message": "hello"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// conversation_id is optional
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/chat", bytes.NewBuffer([]byte(`{"message": "hello", "user_id": "u1"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearchEndpoint_RequiresQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/memory/:user_id/search", func(c *gin.Context) {
		if c.Query("query") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query":   c.Query("query"),
			"user_id": c.Param("user_id"),
			"results": []string{},
			"count":   0,
		})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/memory/u1/search", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/memory/u1/search?query=pizza", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "pizza", response["query"])
	assert.Equal(t, "u1", response["user_id"])
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 10, parseLimit("", 10))
	assert.Equal(t, 25, parseLimit("25", 10))
	assert.Equal(t, 10, parseLimit("0", 10))
	assert.Equal(t, 10, parseLimit("-5", 10))
	assert.Equal(t, 10, parseLimit("abc", 10))
}
