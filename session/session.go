// Package session owns a single conversation: the transcript, the staged
// image attachment, and the streaming turn that turns the transcript into a
// new assistant message.
//
// A turn moves through Idle → Requesting → Streaming → Committed. A request
// the provider rejects outright, a transport failure, a timeout or a
// cancellation moves it to Failed instead; in every failure case the
// transcript is left exactly as it was before the turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"techbot/attachment"
	"techbot/model"
	"techbot/tokens"
	"techbot/tracing"
)

// CursorMarker is appended to the live view while fragments are arriving.
const CursorMarker = "▌"

// DefaultTimeout bounds a completion turn when Options.Timeout is unset.
const DefaultTimeout = 120 * time.Second

var (
	ErrNoStagedImage   = errors.New("no image staged")
	ErrNothingToAnswer = errors.New("transcript has no unanswered user message")
)

// State is the position of the current turn in the completion lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	// Model selects the tokenizer for usage estimates.
	Model string
	// Deployment is sent as the model identifier with each request. Empty
	// means the provider's current model.
	Deployment   string
	SystemPrompt string
	Timeout      time.Duration
	Logger       *zap.Logger
	Tracer       *tracing.Tracer
}

// UpdateFunc receives the live view of the reply being streamed. While
// fragments arrive the value ends with CursorMarker; the final call carries
// the complete text without it.
type UpdateFunc func(live string)

// Session is a single interactive conversation. All methods are safe for
// concurrent use; at most one completion runs at a time.
type Session struct {
	// turn is held for the whole of a completion so that no message can be
	// appended while a reply is streaming.
	turn sync.Mutex

	mu         sync.RWMutex
	transcript *model.Transcript
	staged     *attachment.Image
	live       string
	state      State
	lastErr    error
	opts       Options

	provider  model.Provider
	estimator *tokens.Estimator
	logger    *zap.Logger
	tracer    *tracing.Tracer
}

// New creates a session with an empty transcript.
func New(provider model.Provider, estimator *tokens.Estimator, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if estimator == nil {
		estimator = tokens.NewEstimator(nil, opts.Logger)
	}

	return &Session{
		transcript: model.NewTranscript(),
		state:      StateIdle,
		opts:       opts,
		provider:   provider,
		estimator:  estimator,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}
}

// AddUserMessage appends a user text message. Blank input is rejected.
func (s *Session) AddUserMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty message", model.ErrInvalidMessage)
	}
	if !s.turn.TryLock() {
		return model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	return s.appendUser(model.NewUserMessage(text))
}

// StageImage holds an image until AttachStagedImage adds it to the
// conversation. Staging replaces any previously staged image.
func (s *Session) StageImage(img *attachment.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = img
}

// Staged returns the staged image, or nil.
func (s *Session) Staged() *attachment.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staged
}

// AttachStagedImage appends the staged image as its own user message and
// clears it.
func (s *Session) AttachStagedImage() (model.ImageMessage, error) {
	if !s.turn.TryLock() {
		return model.ImageMessage{}, model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	s.mu.RLock()
	img := s.staged
	s.mu.RUnlock()
	if img == nil {
		return model.ImageMessage{}, ErrNoStagedImage
	}

	msg, err := img.Message()
	if err != nil {
		return model.ImageMessage{}, err
	}
	if err := s.appendUser(msg); err != nil {
		return model.ImageMessage{}, err
	}

	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()

	s.logger.Debug("image attached", zap.String("name", img.Name), zap.Int("bytes", img.Size()))
	return msg, nil
}

// AttachImage appends img immediately as a single-image user message.
func (s *Session) AttachImage(img *attachment.Image) (model.ImageMessage, error) {
	if !s.turn.TryLock() {
		return model.ImageMessage{}, model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	msg, err := img.Message()
	if err != nil {
		return model.ImageMessage{}, err
	}
	return msg, s.appendUser(msg)
}

// appendUser must be called with the turn lock held.
func (s *Session) appendUser(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureSystemLocked()
	if err := s.transcript.Append(msg); err != nil {
		return err
	}
	s.state = StateIdle
	s.lastErr = nil
	return nil
}

func (s *Session) ensureSystemLocked() {
	if s.transcript.EnsureSystemMessage(s.opts.SystemPrompt) {
		s.logger.Debug("system message inserted", zap.Int("index", s.transcript.Len()-1))
	}
}

// Send appends text as a user message and streams the reply.
func (s *Session) Send(ctx context.Context, text string, onUpdate UpdateFunc) (model.TextMessage, error) {
	if strings.TrimSpace(text) == "" {
		return model.TextMessage{}, fmt.Errorf("%w: empty message", model.ErrInvalidMessage)
	}
	if !s.turn.TryLock() {
		return model.TextMessage{}, model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	if err := s.appendUser(model.NewUserMessage(text)); err != nil {
		return model.TextMessage{}, err
	}
	return s.complete(ctx, onUpdate)
}

// Complete streams a reply to the current transcript. It is also how a
// failed turn is retried, since the unanswered user message is kept.
func (s *Session) Complete(ctx context.Context, onUpdate UpdateFunc) (model.TextMessage, error) {
	if !s.turn.TryLock() {
		return model.TextMessage{}, model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	return s.complete(ctx, onUpdate)
}

// complete must be called with the turn lock held.
func (s *Session) complete(ctx context.Context, onUpdate UpdateFunc) (reply model.TextMessage, err error) {
	s.mu.Lock()
	s.ensureSystemLocked()
	if !hasUnansweredUser(s.transcript.Messages()) {
		s.mu.Unlock()
		return model.TextMessage{}, ErrNothingToAnswer
	}
	messages := s.transcript.Messages()
	deployment := s.deploymentLocked()
	timeout := s.opts.Timeout
	s.state = StateRequesting
	s.live = ""
	s.lastErr = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := s.tracer.StartCompletion(ctx, deployment, len(messages))
	var (
		fragments int
		acc       strings.Builder
	)
	defer func() {
		tracing.EndCompletion(span, fragments, acc.Len(), err)
	}()

	start := time.Now()
	s.logger.Debug("completion requested",
		zap.String("deployment", deployment),
		zap.Int("messages", len(messages)),
		zap.Duration("timeout", timeout),
	)

	stream, err := s.provider.Stream(ctx, model.CompletionRequest{
		Messages:    messages,
		Model:       deployment,
		Temperature: model.DefaultTemperature,
		Stream:      true,
	})
	if err != nil {
		return model.TextMessage{}, s.fail(ctx, err)
	}
	defer stream.Close()

	s.setState(StateStreaming)

	for stream.Next() {
		fragments++
		frag := stream.Current()
		if len(frag.Choices) == 0 {
			continue
		}
		delta := frag.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		acc.WriteString(delta)
		current := acc.String()
		s.mu.Lock()
		s.live = current
		s.mu.Unlock()
		publish(onUpdate, current+CursorMarker)
	}

	if err := stream.Err(); err != nil {
		return model.TextMessage{}, s.fail(ctx, err)
	}
	// Some SDK streams stop quietly when the context ends.
	if ctx.Err() != nil {
		return model.TextMessage{}, s.fail(ctx, ctx.Err())
	}

	final := acc.String()
	publish(onUpdate, final)

	reply = model.NewAssistantMessage(final)
	s.mu.Lock()
	appendErr := s.transcript.Append(reply)
	s.live = ""
	if appendErr == nil {
		s.state = StateCommitted
	}
	s.mu.Unlock()
	if appendErr != nil {
		return model.TextMessage{}, s.fail(ctx, appendErr)
	}

	if final == "" {
		s.logger.Warn("completion returned no content", zap.Int("fragments", fragments))
	}
	s.logger.Debug("completion committed",
		zap.Int("fragments", fragments),
		zap.Int("chars", len(final)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return reply, nil
}

// fail records a failed turn. The transcript is not touched.
func (s *Session) fail(ctx context.Context, err error) error {
	err = classify(ctx, err)

	s.mu.Lock()
	s.state = StateFailed
	s.live = ""
	s.lastErr = err
	s.mu.Unlock()

	if errors.Is(err, model.ErrContentPolicy) {
		s.logger.Info("request rejected by provider", zap.Error(err))
	} else {
		s.logger.Warn("completion failed", zap.Error(err))
	}
	return err
}

// classify maps provider and context errors onto the recoverable taxonomy.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrContentPolicy), errors.Is(err, model.ErrStreamInterrupted):
		return err
	case errors.Is(err, model.ErrInvalidMessage):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", model.ErrStreamInterrupted, ctx.Err())
	default:
		return fmt.Errorf("%w: %w", model.ErrStreamInterrupted, err)
	}
}

func publish(onUpdate UpdateFunc, live string) {
	if onUpdate != nil {
		onUpdate(live)
	}
}

// hasUnansweredUser reports whether the last non-system message is from the
// user.
func hasUnansweredUser(messages []model.Message) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		switch messages[i].MessageRole() {
		case model.RoleSystem:
			continue
		case model.RoleUser:
			return true
		default:
			return false
		}
	}
	return false
}

func (s *Session) deploymentLocked() string {
	if s.opts.Deployment != "" {
		return s.opts.Deployment
	}
	return s.provider.GetModel()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// TokenUsage estimates the tokens consumed by the current transcript.
func (s *Session) TokenUsage() (int, error) {
	s.mu.RLock()
	messages := s.transcript.Messages()
	modelName := s.opts.Model
	s.mu.RUnlock()

	return s.estimator.Estimate(messages, modelName)
}

// Transcript returns a copy of every message, including the system message.
func (s *Session) Transcript() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.Messages()
}

// Visible returns the messages to render, without the system message.
func (s *Session) Visible() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.Visible()
}

// Len returns the number of messages in the transcript.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.Len()
}

// LastReply returns the most recent assistant reply.
func (s *Session) LastReply() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.LastAssistantText()
}

// State returns the state of the current or most recent turn.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the most recent failed turn.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Live returns the in-progress reply with the cursor marker, or "" when no
// reply is streaming.
func (s *Session) Live() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateStreaming || s.live == "" {
		return ""
	}
	return s.live + CursorMarker
}

// Model returns the model used for token estimates.
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Model
}

// Deployment returns the identifier sent with completion requests.
func (s *Session) Deployment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deploymentLocked()
}

// SetModel switches the request model. The tokenizer model follows only
// when name has a registered encoding, so switching to an arbitrarily named
// Azure deployment keeps the configured estimate.
func (s *Session) SetModel(name string) error {
	if !s.turn.TryLock() {
		return model.ErrSessionBusy
	}
	defer s.turn.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider.SetModel(name)
	s.opts.Deployment = name
	if s.estimator.Knows(name) {
		s.opts.Model = name
	}
	return nil
}

// ListModels returns the models offered by the provider.
func (s *Session) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return s.provider.ListModels(ctx)
}
