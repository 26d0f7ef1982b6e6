package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"techbot/model"
)

// statusCode extracts the HTTP status from an SDK error, or 0.
func statusCode(err error) int {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) {
		return olErr.StatusCode
	}
	return 0
}

// requestError classifies an error returned before streaming began.
// A 400 means the service refused the prompt itself.
func requestError(name string, err error) error {
	if statusCode(err) == http.StatusBadRequest {
		return fmt.Errorf("%w: %s: %w", model.ErrContentPolicy, name, err)
	}
	return fmt.Errorf("%s request failed: %w", name, err)
}

// streamError classifies an error raised after streaming began.
func streamError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s streaming error: %w", model.ErrStreamInterrupted, name, err)
}
