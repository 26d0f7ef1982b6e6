package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"techbot/attachment"
	"techbot/model"
	"techbot/session"
)

const (
	flashDuration = 2 * time.Second

	// streamBuffer bounds the chunk messages waiting for the UI. Chunks
	// carry the whole reply so far, so dropping one when the UI lags only
	// skips a frame.
	streamBuffer = 64
)

// turnFunc is a session operation that streams one reply.
type turnFunc func(ctx context.Context, onUpdate session.UpdateFunc) (model.TextMessage, error)

// beginTurn runs fn on its own goroutine and returns the command that
// delivers its progress. The turn can be stopped with a.cancelTurn.
func (a *AppView) beginTurn(fn turnFunc) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan tea.Msg, streamBuffer)

	a.streaming = true
	a.live = ""
	a.notice = ""
	a.streamCh = ch
	a.cancelTurn = cancel

	logger := a.logger
	go func() {
		defer close(ch)
		defer cancel()

		ch <- streamStartedMsg{}
		reply, err := fn(ctx, func(live string) {
			select {
			case ch <- streamChunkMsg{Live: live}:
			default:
			}
		})
		if err != nil {
			logger.Debug("turn failed", zap.Error(err))
			ch <- streamErrorMsg{Err: err, Notice: session.Notice(err)}
			return
		}
		ch <- streamDoneMsg{Message: reply}
	}()

	return waitForStream(ch)
}

// waitForStream delivers the next message of a turn. It is re-armed after
// every message until the turn ends.
func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func tokenUsageCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		count, err := sess.TokenUsage()
		return tokenUsageMsg{Count: count, Err: err}
	}
}

// stageImageCmd loads the image at path and stages it on the session.
func stageImageCmd(sess *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		img, err := attachment.Load(path)
		if err != nil {
			return imageStagedMsg{Err: err}
		}
		sess.StageImage(img)
		return imageStagedMsg{Name: img.Name, Size: img.Size()}
	}
}

func copyToClipboardCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardCopiedMsg{Err: clipboard.WriteAll(text)}
	}
}

func flashTick() tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashTickMsg{}
	})
}
