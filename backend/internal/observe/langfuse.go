package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"memoria/backend/pkg/logger"
)

const (
	ingestionPath = "/api/public/ingestion"
	flushInterval = 5 * time.Second
	maxBatchSize  = 20
	queueSize     = 256
)

// Generation describes one LLM call for tracing
type Generation struct {
	TraceID   string
	Name      string
	UserID    string
	Model     string
	Input     string
	Output    string
	StartTime time.Time
	EndTime   time.Time
	Metadata  map[string]interface{}
}

// event is a single entry in a Langfuse ingestion batch
type event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Body      map[string]interface{} `json:"body"`
}

// Client ships traces and generations to the Langfuse ingestion API in
// batches. A nil or disabled client is safe to use; all methods no-op.
type Client struct {
	host       string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewClient creates a Langfuse client. Returns nil when keys are missing,
// which disables observability.
func NewClient(host, publicKey, secretKey string) *Client {
	if publicKey == "" || secretKey == "" {
		return nil
	}

	c := &Client{
		host:      host,
		publicKey: publicKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Get(),
		events: make(chan event, queueSize),
		done:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

// RecordGeneration queues a trace + generation pair for one chat turn.
// Drops the event when the queue is full rather than blocking the request.
func (c *Client) RecordGeneration(gen Generation) {
	if c == nil {
		return
	}

	if gen.TraceID == "" {
		gen.TraceID = uuid.New().String()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	traceEvent := event{
		ID:        uuid.New().String(),
		Type:      "trace-create",
		Timestamp: now,
		Body: map[string]interface{}{
			"id":     gen.TraceID,
			"name":   gen.Name,
			"userId": gen.UserID,
			"input":  gen.Input,
			"output": gen.Output,
		},
	}

	genBody := map[string]interface{}{
		"id":        uuid.New().String(),
		"traceId":   gen.TraceID,
		"name":      gen.Name,
		"model":     gen.Model,
		"input":     gen.Input,
		"output":    gen.Output,
		"startTime": gen.StartTime.UTC().Format(time.RFC3339Nano),
		"endTime":   gen.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if len(gen.Metadata) > 0 {
		genBody["metadata"] = gen.Metadata
	}
	genEvent := event{
		ID:        uuid.New().String(),
		Type:      "generation-create",
		Timestamp: now,
		Body:      genBody,
	}

	for _, ev := range []event{traceEvent, genEvent} {
		select {
		case c.events <- ev:
		default:
			c.logger.Warn("Langfuse event queue full, dropping event",
				zap.String("type", ev.Type),
			)
		}
	}
}

// Close stops the flush loop and drains pending events
func (c *Client) Close() {
	if c == nil {
		return
	}
	close(c.done)
	c.wg.Wait()
}

func (c *Client) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []event
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.send(batch); err != nil {
			c.logger.Warn("Langfuse ingestion failed",
				zap.Int("events", len(batch)),
				zap.Error(err),
			)
		}
		batch = nil
	}

	for {
		select {
		case ev := <-c.events:
			batch = append(batch, ev)
			if len(batch) >= maxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-c.done:
			// Drain whatever is still queued
			for {
				select {
				case ev := <-c.events:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (c *Client) send(batch []event) error {
	payload, err := json.Marshal(map[string]interface{}{
		"batch": batch,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.publicKey, c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()

	// 207 means partial success; individual failures are reported in the body
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ingestion API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("Langfuse batch ingested", zap.Int("events", len(batch)))
	return nil
}
