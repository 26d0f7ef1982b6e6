package session

import (
	"context"
	"errors"

	"techbot/model"
)

// User-facing notices for recoverable failures.
const (
	NoticeContentPolicy = "The response was filtered due to the prompt triggering Azure OpenAI's content management policy. Please modify your prompt and retry."
	NoticeTimeout       = "The response timed out before it finished. Your message was kept; use Retry to try again."
	NoticeCancelled     = "The response was cancelled. Use Retry to ask again."
	NoticeInterrupted   = "The response could not be completed. Your message was kept; use Retry to try again."
	NoticeBusy          = "A response is still streaming. Wait for it to finish before sending another message."
	NoticeEmpty         = "Type a message before sending."
	NoticeNoStagedImage = "No image is staged. Upload an image first."
	NoticeNothingToSend = "There is no unanswered message to retry."
)

// Notice returns the message to show the user for err. Errors outside the
// recoverable taxonomy get their own text.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrContentPolicy):
		return NoticeContentPolicy
	case errors.Is(err, model.ErrSessionBusy):
		return NoticeBusy
	case errors.Is(err, context.DeadlineExceeded):
		return NoticeTimeout
	case errors.Is(err, context.Canceled):
		return NoticeCancelled
	case errors.Is(err, model.ErrStreamInterrupted):
		return NoticeInterrupted
	case errors.Is(err, model.ErrInvalidMessage):
		return NoticeEmpty
	case errors.Is(err, ErrNoStagedImage):
		return NoticeNoStagedImage
	case errors.Is(err, ErrNothingToAnswer):
		return NoticeNothingToSend
	default:
		return "Error: " + err.Error()
	}
}
