package model

import "errors"

var (
	// ErrContentPolicy is returned when the provider rejects a request
	// outright, before any fragment is streamed. Recovered locally: the
	// transcript is left unchanged and a notice is shown.
	ErrContentPolicy = errors.New("request rejected by content policy")

	// ErrStreamInterrupted covers transport failures, timeouts and
	// cancellation. It takes the same recovery path as ErrContentPolicy.
	ErrStreamInterrupted = errors.New("completion stream interrupted")

	// ErrUnknownModelEncoding means no encoding is registered for a model.
	// The estimator logs it and falls back to the default encoding.
	ErrUnknownModelEncoding = errors.New("no token encoding registered for model")

	// ErrTokenEstimation wraps any failure computing a token estimate.
	ErrTokenEstimation = errors.New("token estimation failed")

	// ErrSessionBusy is returned when a completion is already in flight.
	ErrSessionBusy = errors.New("a completion is already in progress")

	ErrInvalidMessage = errors.New("invalid message")
)

// IsRecoverable reports whether err belongs to the "show a notice, keep the
// transcript" class of errors.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrContentPolicy) ||
		errors.Is(err, ErrStreamInterrupted) ||
		errors.Is(err, ErrSessionBusy)
}
