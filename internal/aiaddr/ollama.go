// Package aiaddr extracts structured addresses from listing text using a
// local Ollama model. It is strictly best-effort: when the daemon or the
// model is unavailable the caller falls back to heuristic extraction.
package aiaddr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "gemma3:4b"

	probeTimeout   = 3 * time.Second
	requestTimeout = 60 * time.Second
)

const promptTemplate = `Extract the property address from this Ukrainian real estate listing.

Title: %s
Breadcrumbs: %s
Description: %s

Rules:
1. Extract: city, street, house number, region (oblast), district (raion).
2. Translate everything to Ukrainian (e.g., "Киев" -> "Київ", "ул." -> "вулиця").
3. Set null for missing fields.

Return ONLY valid JSON:
{"city": "string or null", "street": "string or null", "number": "string or null", "district": "string or null", "region": "string or null"}`

// Client talks to a local Ollama daemon. The availability probe runs once
// and is cached; a lost connection resets it so a restarted daemon is
// picked up.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger

	mu        sync.Mutex
	available *bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Ollama endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// NewClient builds an Ollama-backed extractor.
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type addressPayload struct {
	City     *string `json:"city"`
	Street   *string `json:"street"`
	Number   *string `json:"number"`
	District *string `json:"district"`
	Region   *string `json:"region"`
}

// ExtractAddress asks the model for a structured address. nil means the
// model is unavailable or produced nothing usable.
func (c *Client) ExtractAddress(ctx context.Context, title, description, breadcrumbs string) *listing.ExtractedAddress {
	if !c.checkAvailable(ctx) {
		return nil
	}

	descSample := description
	if len(descSample) > 1500 {
		descSample = descSample[:1500]
	}
	prompt := fmt.Sprintf(promptTemplate, title, breadcrumbs, descSample)

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
		Options: map[string]any{
			"temperature": 0.1,
			"num_predict": 200,
		},
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("ollama request failed", zap.Error(err))
		c.resetAvailability()
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ollama error status", zap.Int("status", resp.StatusCode))
		return nil
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		c.logger.Warn("ollama response decode failed", zap.Error(err))
		return nil
	}

	text := strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(gen.Response))
	var payload addressPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		c.logger.Warn("ollama json parse failed", zap.Error(err))
		return nil
	}
	if payload.City == nil || *payload.City == "" {
		return nil
	}

	return &listing.ExtractedAddress{
		City:     deref(payload.City),
		Street:   deref(payload.Street),
		Number:   deref(payload.Number),
		District: deref(payload.District),
		Region:   deref(payload.Region),
	}
}

// checkAvailable probes /api/tags once and caches the answer.
func (c *Client) checkAvailable(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available != nil {
		return *c.available
	}

	ok := c.probe(ctx)
	c.available = &ok
	return ok
}

func (c *Client) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Info("ollama not running, address extraction degrades to heuristics")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.model) {
			c.logger.Info("ollama ready", zap.String("model", c.model))
			return true
		}
	}
	c.logger.Warn("ollama running but model not found", zap.String("model", c.model))
	return false
}

func (c *Client) resetAvailability() {
	c.mu.Lock()
	c.available = nil
	c.mu.Unlock()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
