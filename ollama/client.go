package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2-vision:latest"
)

type Client struct {
	client  *api.Client
	baseURL string

	mu    sync.RWMutex
	model string
}

// ChunkFunc receives each streamed chat response.
type ChunkFunc func(resp api.ChatResponse) error

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Chat sends a streaming chat request and calls fn for every response
// chunk. It returns when the stream ends, fn fails or ctx is done.
func (c *Client) Chat(ctx context.Context, modelName string, messages []api.Message, temperature float64, fn ChunkFunc) error {
	if modelName == "" {
		modelName = c.GetModel()
	}
	stream := true
	req := &api.ChatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   &stream,
		Options:  map[string]any{"temperature": temperature},
	}
	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		return fn(resp)
	})
}

func (c *Client) ListModels(ctx context.Context) ([]api.ListModelResponse, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return resp.Models, nil
}

func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *Client) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// visionModels tracks which model families accept image input.
// This is a curated list based on the Ollama model library.
var visionModels = map[string]bool{
	"llama3.2-vision":   true,
	"granite3.2-vision": true,
	"llava":             true, // llava, llava-llama3, llava-phi3
	"bakllava":          true,
	"moondream":         true,
	"minicpm-v":         true,
	"qwen2.5vl":         true,
	"gemma3":            true, // 4b and above

	"llama3.2": false,
	"llama3":   false,
	"mistral":  false,
	"qwen":     false,
	"phi":      false,
	"gemma":    false,
}

// orderedPrefixes defines the order to check model prefixes
// IMPORTANT: Check most specific prefixes first to avoid false matches
// (e.g., check "llama3.2-vision" before "llama3.2")
var orderedPrefixes = []string{
	"llama3.2-vision", "granite3.2-vision", "qwen2.5vl", "minicpm-v",
	"bakllava", "llava", "moondream", "gemma3",
	// Generic patterns LAST
	"llama3.2", "llama3", "mistral", "qwen", "phi", "gemma",
}

// SupportsVision checks if the current model accepts images.
func (c *Client) SupportsVision() bool {
	return ModelSupportsVision(c.GetModel())
}

// ModelSupportsVision reports whether modelName is known to accept images.
// Unknown models are assumed not to.
func ModelSupportsVision(modelName string) bool {
	supported, _ := visionSupport(modelName)
	return supported
}

// ModelRejectsImages reports whether modelName belongs to a family known to
// be text-only. Unknown models are given the benefit of the doubt.
func ModelRejectsImages(modelName string) bool {
	supported, known := visionSupport(modelName)
	return known && !supported
}

func visionSupport(modelName string) (supported, known bool) {
	modelName = strings.ToLower(modelName)

	// Check prefixes in deterministic order (most specific first)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := visionModels[prefix]; exists {
				return supported, true
			}
		}
	}

	return false, false
}
