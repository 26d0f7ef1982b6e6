package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"techbot/attachment"
	"techbot/config"
	"techbot/model"
	"techbot/provider/testutil"
	"techbot/session"
	"techbot/tokens"
)

type wordEncoding struct{}

func (wordEncoding) Name() string { return "words" }

func (wordEncoding) Encode(text string) []int {
	return make([]int, len(strings.Fields(text)))
}

func newTestApp(t *testing.T, p model.Provider) (AppView, *session.Session) {
	t.Helper()
	registry := tokens.NewModelRegistry(func(string) (tokens.Encoding, error) {
		return wordEncoding{}, nil
	})
	sess := session.New(p, tokens.NewEstimator(registry, nil), session.Options{
		Model:        "gpt-4",
		Deployment:   p.GetModel(),
		SystemPrompt: "Be brief.",
	})

	a := NewAppView(sess, p, config.DefaultKeybindings(), nil)
	m, _ := a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m.(AppView), sess
}

func update(a AppView, msg tea.Msg) (AppView, tea.Cmd) {
	m, cmd := a.Update(msg)
	return m.(AppView), cmd
}

func altKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runTurn feeds stream messages back into the app until the turn ends and
// returns the command produced by the final message.
func runTurn(t *testing.T, a AppView) (AppView, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for a.streaming {
		msg := waitForStream(a.streamCh)()
		if msg == nil {
			t.Fatal("stream closed before the turn ended")
		}
		a, cmd = update(a, msg)
	}
	return a, cmd
}

// execCmd runs cmd and every command batched inside it.
func execCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, execCmd(c)...)
	}
	return out
}

func TestSendStreamsReply(t *testing.T) {
	p := testutil.Replying("chat-deploy", "Hel", "lo")
	a, sess := newTestApp(t, p)

	a.textarea.SetValue("hi there")
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})
	if !a.streaming {
		t.Fatal("Enter did not start a turn")
	}
	if a.textarea.Value() != "" {
		t.Errorf("textarea = %q, want cleared", a.textarea.Value())
	}

	a, cmd := runTurn(t, a)

	if reply, ok := sess.LastReply(); !ok || reply != "Hello" {
		t.Fatalf("LastReply() = %q, %v", reply, ok)
	}
	if sess.Len() != 3 {
		t.Errorf("transcript length = %d, want 3", sess.Len())
	}
	if a.notice != "" {
		t.Errorf("notice = %q, want none", a.notice)
	}
	if !strings.Contains(a.viewport.View(), "Hello") {
		t.Error("viewport does not show the reply")
	}

	for _, msg := range execCmd(cmd) {
		a, _ = update(a, msg)
	}
	if len(a.rendered) != 1 {
		t.Errorf("rendered = %d messages, want the reply rendered", len(a.rendered))
	}
	want, _ := sess.TokenUsage()
	if !strings.Contains(a.View(), fmt.Sprintf("Total tokens used: %d", want)) {
		t.Errorf("sidebar does not show %d tokens", want)
	}

	reqs := p.Requests()
	if len(reqs) != 1 || reqs[0].Model != "chat-deploy" || !reqs[0].Stream {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestSendBlankShowsNotice(t *testing.T) {
	p := testutil.Replying("chat", "unused")
	a, sess := newTestApp(t, p)

	a.textarea.SetValue("   ")
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})

	if a.streaming {
		t.Error("blank input started a turn")
	}
	if a.notice != session.NoticeEmpty {
		t.Errorf("notice = %q", a.notice)
	}
	if sess.Len() != 0 {
		t.Errorf("transcript length = %d, want 0", sess.Len())
	}
}

func TestFailedTurnShowsNoticeAndRetries(t *testing.T) {
	p := testutil.NewMockProvider("chat")
	calls := 0
	p.StreamFunc = func(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: status 400", model.ErrContentPolicy)
		}
		return model.NewSliceStream(testutil.Fragments("Sure."), nil), nil
	}
	a, sess := newTestApp(t, p)

	a.textarea.SetValue("something edgy")
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = runTurn(t, a)

	if a.notice != session.NoticeContentPolicy {
		t.Errorf("notice = %q", a.notice)
	}
	if sess.Len() != 2 {
		t.Errorf("transcript length = %d, want system and user only", sess.Len())
	}

	a, _ = update(a, altKey('r'))
	if !a.streaming {
		t.Fatal("retry did not start a turn")
	}
	a, _ = runTurn(t, a)

	if reply, _ := sess.LastReply(); reply != "Sure." {
		t.Errorf("LastReply() = %q", reply)
	}
	if a.notice != "" {
		t.Errorf("notice = %q after successful retry", a.notice)
	}
}

func TestEscCancelsStream(t *testing.T) {
	p := testutil.NewMockProvider("chat")
	p.StreamFunc = func(ctx context.Context, req model.CompletionRequest) (model.FragmentStream, error) {
		return testutil.NewContextStream(ctx, testutil.Fragments("partial")...), nil
	}
	a, sess := newTestApp(t, p)

	a.textarea.SetValue("tell me a long story")
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEsc})
	a, _ = runTurn(t, a)

	if a.notice != session.NoticeCancelled {
		t.Errorf("notice = %q", a.notice)
	}
	if _, ok := sess.LastReply(); ok {
		t.Error("cancelled turn committed a reply")
	}
	if !errors.Is(sess.Err(), model.ErrStreamInterrupted) {
		t.Errorf("session error = %v", sess.Err())
	}
}

func TestAddStagedImage(t *testing.T) {
	p := testutil.Replying("chat", "unused")
	a, sess := newTestApp(t, p)

	a, _ = update(a, altKey('a'))
	if a.notice != session.NoticeNoStagedImage {
		t.Errorf("notice = %q", a.notice)
	}

	sess.StageImage(attachment.FromBytes("dot.png", testutil.TinyPNG))
	if !strings.Contains(a.View(), "dot.png") {
		t.Error("sidebar does not show the staged image")
	}

	a, _ = update(a, altKey('a'))
	if sess.Len() != 2 {
		t.Fatalf("transcript length = %d, want system and image", sess.Len())
	}
	if _, ok := sess.Transcript()[1].(model.ImageMessage); !ok {
		t.Errorf("message = %T, want ImageMessage", sess.Transcript()[1])
	}
	if sess.Staged() != nil {
		t.Error("image still staged after adding it")
	}
	if a.streaming || len(p.Requests()) != 0 {
		t.Error("adding an image must not request a reply")
	}
	if !strings.Contains(a.viewport.View(), "[image] image/png") {
		t.Error("viewport does not show the image")
	}
}

func TestModelSelector(t *testing.T) {
	p := testutil.NewMockProvider("mock-model-1")
	a, sess := newTestApp(t, p)

	a, cmd := update(a, altKey('m'))
	if !a.showModelSelector || !a.modelsLoading {
		t.Fatal("model selector not opened")
	}
	a, _ = update(a, cmd())
	if len(a.modelList) != 2 {
		t.Fatalf("modelList = %+v", a.modelList)
	}

	a, _ = update(a, runes("j"))
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})

	if a.showModelSelector {
		t.Error("selector still open")
	}
	if got := sess.Deployment(); got != "mock-model-2" {
		t.Errorf("Deployment() = %q", got)
	}
	if got := p.GetModel(); got != "mock-model-2" {
		t.Errorf("provider model = %q", got)
	}
}

func TestModelSelectorFilter(t *testing.T) {
	p := testutil.NewMockProvider("mock-model-2")
	a, sess := newTestApp(t, p)

	a, cmd := update(a, altKey('m'))
	a, _ = update(a, cmd())
	a, _ = update(a, runes("/"))
	a, _ = update(a, runes("1"))

	if len(a.filteredModelList) != 1 || a.filteredModelList[0].Name != "mock-model-1" {
		t.Fatalf("filtered = %+v", a.filteredModelList)
	}

	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})
	if got := sess.Deployment(); got != "mock-model-1" {
		t.Errorf("Deployment() = %q", got)
	}
}

func TestModelListErrorShowsModal(t *testing.T) {
	p := testutil.NewMockProvider("chat")
	p.ListModelsFunc = func(ctx context.Context) ([]model.ModelInfo, error) {
		return nil, errors.New("forbidden")
	}
	a, _ := newTestApp(t, p)

	a, cmd := update(a, altKey('m'))
	a, _ = update(a, cmd())

	if a.showModelSelector || !a.showAcknowledgeModal {
		t.Fatal("expected the error modal")
	}
	if !strings.Contains(a.View(), "forbidden") {
		t.Error("modal does not show the error")
	}
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEnter})
	if a.showAcknowledgeModal {
		t.Error("Enter did not dismiss the modal")
	}
}

func TestSidebarTokenUsage(t *testing.T) {
	a, _ := newTestApp(t, testutil.NewMockProvider("chat"))

	a, _ = update(a, tokenUsageMsg{Count: 42})
	if !strings.Contains(a.View(), "Total tokens used: 42") {
		t.Error("sidebar does not show the count")
	}

	a, _ = update(a, tokenUsageMsg{Err: errors.New("boom")})
	view := a.View()
	if !strings.Contains(view, "Error calculating") || strings.Contains(view, "Total tokens used") {
		t.Error("sidebar does not show the estimation error")
	}
}

func TestPingFailureShowsNotice(t *testing.T) {
	a, _ := newTestApp(t, testutil.NewMockProvider("chat"))

	a, _ = update(a, pingProviderMsg{Model: "chat", Err: errors.New("401 unauthorized")})
	if !strings.Contains(a.notice, "401 unauthorized") {
		t.Errorf("notice = %q", a.notice)
	}
	if !strings.Contains(a.View(), "unreachable") {
		t.Error("sidebar does not show provider status")
	}
}

func TestStatusBarFollowsKeybindings(t *testing.T) {
	p := testutil.NewMockProvider("chat")
	sess := session.New(p, nil, session.Options{})
	kb := &config.KeyBindingsConfig{Modifiers: config.ModifierConfig{Primary: "ctrl", Secondary: "ctrl+shift"}}

	a := NewAppView(sess, p, kb, nil)
	a, _ = update(a, tea.WindowSizeMsg{Width: 160, Height: 40})

	if !strings.Contains(a.View(), "Ctrl+O") {
		t.Error("status bar does not use the configured modifier")
	}
}

func TestHelpToggle(t *testing.T) {
	a, _ := newTestApp(t, testutil.NewMockProvider("chat"))

	a, _ = update(a, altKey('h'))
	if !a.showHelp || !strings.Contains(a.View(), "Keyboard Shortcuts") {
		t.Fatal("help not shown")
	}
	a, _ = update(a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.showHelp {
		t.Error("Esc did not close help")
	}
}
