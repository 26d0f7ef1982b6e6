package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"techbot/model"
)

// anthropicMaxTokens is required by the Messages API.
const anthropicMaxTokens = 4096

// AnthropicProvider implements model.Provider using Anthropic's official API.
type AnthropicProvider struct {
	client *anthropic.Client

	mu    sync.RWMutex
	model anthropic.Model
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//   - model: Initial model to use (default: "claude-sonnet-4-5-20250929")
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		model:  anthropicModel,
	}, nil
}

// Stream implements Provider.Stream.
func (p *AnthropicProvider) Stream(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
	messages, system, err := ConvertToAnthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	modelName := anthropic.Model(req.Model)
	if req.Model == "" {
		modelName = anthropic.Model(p.GetModel())
	}

	params := anthropic.MessageNewParams{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, requestError("Anthropic", err)
	}

	return &anthropicStream{stream: stream}, nil
}

// anthropicStream surfaces text deltas as fragments. Other events (message
// start, block boundaries, usage) become keepalive fragments.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	cur    model.Fragment
}

func (s *anthropicStream) Next() bool {
	if !s.stream.Next() {
		return false
	}
	s.cur = model.Fragment{}
	event := s.stream.Current()
	if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
			s.cur = model.TextFragment(text.Text)
		}
	}
	return true
}

func (s *anthropicStream) Current() model.Fragment { return s.cur }

func (s *anthropicStream) Err() error { return streamError("Anthropic", s.stream.Err()) }

func (s *anthropicStream) Close() error { return s.stream.Close() }

// ListModels implements Provider.ListModels.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err == nil && len(page.Data) > 0 {
		result := make([]model.ModelInfo, 0, len(page.Data))
		for _, m := range page.Data {
			result = append(result, model.ModelInfo{
				Name:         m.DisplayName,
				InternalName: m.ID,
				Provider:     string(ProviderTypeAnthropic),
			})
		}
		return result, nil
	}

	// Fall back to the models known to this SDK version.
	known := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}
	result := make([]model.ModelInfo, 0, len(known))
	for _, m := range known {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     string(ProviderTypeAnthropic),
		})
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = anthropic.Model(model)
}

// Ping implements Provider.Ping by making a minimal request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.GetModel()),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
