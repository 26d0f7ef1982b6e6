package tokens

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"techbot/model"
)

// Accounting constants for the chat message format.
const (
	TokensPerMessage   = 3   // Every message is wrapped in <|start|>{role}\n{content}<|end|>\n
	TokensPerName      = 1   // A name field replaces the role token plus one
	TokensPerImage     = 100 // Flat approximation, independent of image size
	ReplyPrimingTokens = 3   // Every reply is primed with <|start|>assistant<|message|>
)

// Field names counted for every message.
const (
	keyRole    = "role"
	keyContent = "content"
	keyName    = "name"
)

// Estimator computes token estimates for transcripts.
type Estimator struct {
	registry *Registry
	logger   *zap.Logger
	warned   sync.Map // model name -> struct{}
}

// NewEstimator creates an estimator backed by registry. A nil registry uses
// DefaultRegistry and a nil logger disables logging.
func NewEstimator(registry *Registry, logger *zap.Logger) *Estimator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		registry: registry,
		logger:   logger,
	}
}

// Knows reports whether modelName has a registered encoding.
func (e *Estimator) Knows(modelName string) bool {
	_, found := e.registry.Lookup(modelName)
	return found
}

// Resolve returns the encoding for modelName, falling back to the registry
// default when the model is unknown or its encoding cannot be loaded.
func (e *Estimator) Resolve(modelName string) (Encoding, error) {
	name, found := e.registry.Lookup(modelName)
	if !found {
		e.warnOnce(modelName, "model not found, using fallback encoding",
			zap.String("model", modelName),
			zap.String("encoding", e.registry.Fallback()),
			zap.NamedError("reason", model.ErrUnknownModelEncoding),
		)
		name = e.registry.Fallback()
	}

	enc, err := e.registry.Load(name)
	if err == nil {
		return enc, nil
	}
	if name == e.registry.Fallback() {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenEstimation, err)
	}

	e.logger.Warn("encoding unavailable, using fallback encoding",
		zap.String("model", modelName),
		zap.String("encoding", name),
		zap.Error(err),
	)
	enc, err = e.registry.Load(e.registry.Fallback())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenEstimation, err)
	}
	return enc, nil
}

// Estimate returns the approximate number of prompt tokens messages consume
// for modelName. The result is at least ReplyPrimingTokens.
func (e *Estimator) Estimate(messages []model.Message, modelName string) (int, error) {
	enc, err := e.Resolve(modelName)
	if err != nil {
		return 0, err
	}

	roleTokens := len(enc.Encode(keyRole))
	contentTokens := len(enc.Encode(keyContent))
	nameTokens := len(enc.Encode(keyName))

	total := 0
	for i, msg := range messages {
		total += TokensPerMessage + roleTokens + contentTokens

		switch m := msg.(type) {
		case model.SystemMessage:
			total += len(enc.Encode(m.Content))
		case model.TextMessage:
			total += len(enc.Encode(m.Content))
			if m.Name != "" {
				total += nameTokens + TokensPerName
			}
		case model.ImageMessage:
			total += TokensPerImage * len(m.Images)
		default:
			return 0, fmt.Errorf("%w: message %d has unsupported type %T", model.ErrTokenEstimation, i, msg)
		}
	}

	return total + ReplyPrimingTokens, nil
}

func (e *Estimator) warnOnce(modelName, msg string, fields ...zap.Field) {
	if _, loaded := e.warned.LoadOrStore(modelName, struct{}{}); loaded {
		return
	}
	e.logger.Warn(msg, fields...)
}
