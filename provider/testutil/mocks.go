package testutil

import (
	"context"
	"sync"

	"techbot/model"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	StreamFunc     func(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error)
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	// State
	mu           sync.Mutex
	currentModel string
	requests     []model.CompletionRequest
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.StreamFunc = mock.defaultStream
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

// Replying returns a mock provider that streams the given chunks.
func Replying(modelName string, chunks ...string) *MockProvider {
	mock := NewMockProvider(modelName)
	mock.StreamFunc = func(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
		return model.NewSliceStream(Fragments(chunks...), nil), nil
	}
	return mock
}

func (m *MockProvider) defaultStream(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
	// Default: echo back a mock response
	if len(req.Messages) > 0 {
		return model.NewSliceStream(Fragments("Mock response"), nil), nil
	}
	return model.NewSliceStream(nil, nil), nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", InternalName: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", InternalName: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) Stream(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.StreamFunc(ctx, req)
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []model.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CompletionRequest(nil), m.requests...)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// ContextStream yields its fragments and then blocks until ctx is done,
// ending with ctx.Err(). It stands in for a server that stalls mid-stream.
type ContextStream struct {
	ctx   context.Context
	inner *model.SliceStream
	err   error
}

// NewContextStream returns a stream that stalls after fragments.
func NewContextStream(ctx context.Context, fragments ...model.Fragment) *ContextStream {
	return &ContextStream{ctx: ctx, inner: model.NewSliceStream(fragments, nil)}
}

func (s *ContextStream) Next() bool {
	if s.inner.Next() {
		return true
	}
	<-s.ctx.Done()
	s.err = s.ctx.Err()
	return false
}

func (s *ContextStream) Current() model.Fragment { return s.inner.Current() }
func (s *ContextStream) Err() error              { return s.err }
func (s *ContextStream) Close() error            { return s.inner.Close() }
