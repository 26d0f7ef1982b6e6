package model

import (
	"context"
)

// DefaultTemperature is the sampling temperature sent with every request.
const DefaultTemperature = 0.8

// CompletionRequest is a streaming chat completion request.
type CompletionRequest struct {
	Messages    []Message
	Model       string // Model or deployment identifier
	Temperature float64
	Stream      bool
}

// Delta is the incremental content carried by one choice of a fragment.
type Delta struct {
	Content string
}

// Choice is one candidate continuation within a fragment.
type Choice struct {
	Delta Delta
}

// Fragment is one incremental piece of a streamed completion. A fragment
// with no choices is a keepalive and carries no content.
type Fragment struct {
	Choices []Choice
}

// Text returns the delta content of the first choice, or "" for a keepalive.
func (f Fragment) Text() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}

// TextFragment builds a single-choice fragment carrying content.
func TextFragment(content string) Fragment {
	return Fragment{Choices: []Choice{{Delta: Delta{Content: content}}}}
}

// FragmentStream is a pull iterator over streamed fragments, shaped like the
// SDK streams it wraps: call Next until it returns false, then check Err.
type FragmentStream interface {
	Next() bool
	Current() Fragment
	Err() error
	Close() error
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name         string // Display name
	InternalName string // Name used in API calls
	Size         int64
	Provider     string // Provider ID: "azure", "openai", "anthropic", ...
}

// Provider abstracts the remote completion API.
//
// This interface is defined in the model package (not provider package) to
// avoid import cycles: provider implementations import model, and the
// session depends only on this contract.
type Provider interface {
	// Stream issues a streaming completion request. A request-level
	// rejection is returned here, before any fragment is produced; errors
	// after that point surface from FragmentStream.Err.
	Stream(ctx context.Context, req CompletionRequest) (FragmentStream, error)

	// ListModels returns the models available for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the model or deployment used for API calls.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// SliceStream is a FragmentStream over an in-memory list of fragments.
// It is used by adapters that receive whole responses and by tests.
type SliceStream struct {
	fragments []Fragment
	idx       int
	err       error
	closed    bool
	exhausted bool
}

// NewSliceStream returns a stream yielding fragments in order and then err.
func NewSliceStream(fragments []Fragment, err error) *SliceStream {
	return &SliceStream{fragments: fragments, idx: -1, err: err}
}

func (s *SliceStream) Next() bool {
	if s.closed {
		return false
	}
	if s.idx+1 >= len(s.fragments) {
		s.exhausted = true
		return false
	}
	s.idx++
	return true
}

func (s *SliceStream) Current() Fragment {
	if s.idx < 0 || s.idx >= len(s.fragments) {
		return Fragment{}
	}
	return s.fragments[s.idx]
}

func (s *SliceStream) Err() error {
	// The terminal error surfaces only after Next has reported the end.
	if !s.exhausted {
		return nil
	}
	return s.err
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}
