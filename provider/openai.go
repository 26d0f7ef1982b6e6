package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"techbot/model"
)

// chatCompletions is the streaming core shared by every back end that
// speaks the OpenAI chat-completions protocol.
type chatCompletions struct {
	client openai.Client
	name   string // Used in error messages

	mu    sync.RWMutex
	model string
}

func (c *chatCompletions) Stream(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
	messages, err := ConvertToOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.GetModel()
	}

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(modelName),
		Temperature: openai.Float(req.Temperature),
	}

	// The request is sent here; a rejection is already visible on Err.
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, requestError(c.name, err)
	}

	return &openAIStream{stream: stream, name: c.name}, nil
}

func (c *chatCompletions) listModels(ctx context.Context) ([]openai.Model, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", c.name, err)
	}
	return page.Data, nil
}

func (c *chatCompletions) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *chatCompletions) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Ping attempts to list models.
func (c *chatCompletions) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.name, err)
	}
	return nil
}

// openAIStream adapts an SSE chunk stream to model.FragmentStream.
type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	name   string
	cur    model.Fragment
}

func (s *openAIStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	chunk := s.stream.Current()
	choices := make([]model.Choice, len(chunk.Choices))
	for i, c := range chunk.Choices {
		choices[i] = model.Choice{Delta: model.Delta{Content: c.Delta.Content}}
	}
	s.cur = model.Fragment{Choices: choices}
	return true
}

func (s *openAIStream) Current() model.Fragment { return s.cur }

func (s *openAIStream) Err() error { return streamError(s.name, s.stream.Err()) }

func (s *openAIStream) Close() error { return s.stream.Close() }

// OpenAIProvider implements model.Provider against the OpenAI API.
type OpenAIProvider struct {
	chatCompletions
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//   - model: Initial model to use (default: "gpt-4o-mini")
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)

	return &OpenAIProvider{chatCompletions{
		client: openai.NewClient(opts...),
		name:   "OpenAI",
		model:  model,
	}}, nil
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.listModels(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     string(ProviderTypeOpenAI),
		})
	}
	return result, nil
}
