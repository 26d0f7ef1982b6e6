package provider

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ollama/ollama/api"

	"techbot/model"
	"techbot/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// The Ollama client delivers a streamed chat through a callback. Stream runs
// that call on its own goroutine and hands responses over a channel, so the
// caller gets the same pull-style iterator as the other providers.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (e.g., "http://localhost:11434").
//     If empty, defaults to ollama.DefaultBaseURL.
//   - model: The model name to use. If empty, defaults to ollama.DefaultModel.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{client: client}, nil
}

// Stream implements Provider.Stream.
//
// It waits for the first response before returning so that a refused
// request is reported here rather than from the stream.
func (p *OllamaProvider) Stream(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = p.client.GetModel()
	}
	if hasImages(req.Messages) && ollama.ModelRejectsImages(modelName) {
		return nil, fmt.Errorf("%w: %s does not accept images", model.ErrInvalidMessage, modelName)
	}

	messages, err := ConvertToOllamaMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ollamaStream{
		ctx:    ctx,
		chunks: make(chan model.Fragment),
		errc:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		defer close(s.chunks)
		s.errc <- p.client.Chat(ctx, modelName, messages, req.Temperature, func(resp api.ChatResponse) error {
			if resp.Done {
				s.sawDone.Store(true)
			}
			select {
			case s.chunks <- model.TextFragment(resp.Message.Content):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	first, ok := <-s.chunks
	if !ok {
		err := <-s.errc
		s.done = true
		if err != nil {
			cancel()
			return nil, requestError("Ollama", err)
		}
		return s, nil
	}
	s.pending = &first

	return s, nil
}

// ollamaStream is the pull side of the callback bridge. The producer
// goroutine sends its result on errc before closing chunks.
type ollamaStream struct {
	ctx     context.Context
	sawDone atomic.Bool
	chunks  chan model.Fragment
	errc    chan error
	cancel  context.CancelFunc
	pending *model.Fragment
	cur     model.Fragment
	err     error
	done    bool
}

func (s *ollamaStream) Next() bool {
	if s.pending != nil {
		s.cur = *s.pending
		s.pending = nil
		return true
	}
	if s.done {
		return false
	}
	frag, ok := <-s.chunks
	if !ok {
		s.done = true
		s.err = s.finish(<-s.errc)
		return false
	}
	s.cur = frag
	return true
}

// finish turns a clean return from the client into an interruption when
// the stream was cancelled or the server never sent its final response.
func (s *ollamaStream) finish(err error) error {
	if err != nil {
		return err
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !s.sawDone.Load() {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (s *ollamaStream) Current() model.Fragment { return s.cur }

func (s *ollamaStream) Err() error { return streamError("Ollama", s.err) }

// Close stops the producer goroutine.
func (s *ollamaStream) Close() error {
	s.cancel()
	return nil
}

// ListModels implements Provider.ListModels.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return ConvertFromOllamaModels(models), nil
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel.
func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

// Ping implements Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
