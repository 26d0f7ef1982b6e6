package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"techbot/model"
	"techbot/provider"
	"techbot/session"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// Spinners first so their ticks keep running under any modal
	if tick, ok := msg.(spinner.TickMsg); ok {
		if a.streaming && a.live == "" {
			a.loadingSpinner, cmd = a.loadingSpinner.Update(tick)
			cmds = append(cmds, cmd)
			a.updateViewportContent(true)
		}
		if a.imagePicker.Processing {
			a.imagePicker.Spinner, cmd = a.imagePicker.Spinner.Update(tick)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)
	}

	// The file picker needs its own messages (directory reads); keys are
	// handled in handleImagePicker
	if a.imagePicker.Active && !a.imagePicker.Processing {
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			a.imagePicker.Picker, cmd = a.imagePicker.Picker.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		widthChanged := a.width != msg.Width
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()

		// Markdown is wrapped to the viewport width
		if widthChanged {
			a.rendered = make(map[string]string)
			cmds = append(cmds, a.renderPending())
		}
		a.updateViewportContent(true)
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		return a.handleKey(msg)

	case streamStartedMsg:
		return a, waitForStream(a.streamCh)

	case streamChunkMsg:
		if !a.streaming {
			return a, nil
		}
		a.live = msg.Live
		a.updateViewportContent(true)
		return a, waitForStream(a.streamCh)

	case streamDoneMsg:
		a.endTurn()
		a.logger.Debug("reply committed",
			zap.String("message_id", msg.Message.ID),
			zap.Int("chars", len(msg.Message.Content)))
		a.updateViewportContent(true)
		return a, tea.Batch(
			a.renderMarkdownAsync(msg.Message.ID, msg.Message.Content),
			tokenUsageCmd(a.session),
		)

	case streamErrorMsg:
		a.endTurn()
		a.notice = msg.Notice
		a.logger.Warn("turn failed", zap.Error(msg.Err), zap.Bool("recoverable", model.IsRecoverable(msg.Err)))
		a.updateViewportContent(true)
		return a, tokenUsageCmd(a.session)

	case tokenUsageMsg:
		a.tokenCount = msg.Count
		a.tokenErr = msg.Err
		return a, nil

	case pingProviderMsg:
		a.pinged = true
		a.pingErr = msg.Err
		if msg.Err != nil {
			a.logger.Warn("provider ping failed", zap.String("model", msg.Model), zap.Error(msg.Err))
			if a.notice == "" {
				a.notice = fmt.Sprintf("Provider unreachable: %v", msg.Err)
			}
		}
		return a, nil

	case modelsListMsg:
		a.modelsLoading = false
		if msg.Err != nil {
			a.logger.Warn("listing models failed", zap.Error(msg.Err))
			a.showModelSelector = false
			a.showAcknowledge("Could not list models", msg.Err.Error(), ModalTypeError)
			return a, nil
		}
		a.modelList = msg.Models
		a.filteredModelList = filterModels(a.modelList, a.modelFilterInput.Value())
		a.selectedModelIdx = max(FindModelByName(a.modelList, a.session.Deployment()), 0)
		return a, nil

	case imageStagedMsg:
		a.imagePicker.Reset()
		if msg.Err != nil {
			a.showAcknowledge("Could not load image", msg.Err.Error(), ModalTypeError)
			return a, nil
		}
		a.flash = fmt.Sprintf("Staged %s (%s). Press %s to add it to the conversation.",
			msg.Name, humanize.IBytes(uint64(msg.Size)), a.kb.DisplayActionKey("add_image"))
		return a, flashTick()

	case markdownRenderedMsg:
		a.rendered[msg.MessageID] = msg.Rendered
		a.updateViewportContent(a.viewport.AtBottom())
		return a, nil

	case clipboardCopiedMsg:
		if msg.Err != nil {
			a.notice = fmt.Sprintf("Could not copy to clipboard: %v", msg.Err)
			return a, nil
		}
		a.flash = "Copied to clipboard"
		return a, flashTick()

	case flashTickMsg:
		a.flash = ""
		return a, nil
	}

	if !a.streaming {
		a.textarea, cmd = a.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *AppView) endTurn() {
	a.streaming = false
	a.live = ""
	a.streamCh = nil
	a.cancelTurn = nil
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyPress := msg.String()

	if keyPress == "ctrl+c" {
		return a.quit()
	}

	// PRIORITY 1: Modals
	if a.showHelp {
		if keyPress == "esc" || keyPress == "?" || a.kb.Matches(keyPress, "help") {
			a.showHelp = false
		}
		return a, nil
	}

	if a.showAcknowledgeModal {
		if keyPress == "enter" || keyPress == "esc" {
			a.showAcknowledgeModal = false
		}
		return a, nil
	}

	if a.imagePicker.Active {
		return a.handleImagePicker(msg)
	}

	if a.showModelSelector {
		return a.handleModelSelectorUpdate(msg)
	}

	// PRIORITY 2: Streaming cancellation
	if keyPress == "esc" {
		if a.streaming && a.cancelTurn != nil {
			a.logger.Debug("turn cancelled by user")
			a.cancelTurn()
			return a, nil
		}
		a.notice = ""
		return a, nil
	}

	// PRIORITY 3: Actions
	switch {
	case a.kb.Matches(keyPress, "quit"):
		return a.quit()

	case a.kb.Matches(keyPress, "help"), keyPress == "f1":
		a.showHelp = true
		return a, nil

	case a.kb.Matches(keyPress, "pick_image"):
		a.imagePicker.Activate()
		return a, a.imagePicker.Picker.Init()

	case a.kb.Matches(keyPress, "add_image"):
		return a.addStagedImage()

	case a.kb.Matches(keyPress, "model_selector"):
		return a.openModelSelector()

	case a.kb.Matches(keyPress, "retry"):
		if a.streaming {
			a.notice = session.NoticeBusy
			return a, nil
		}
		cmd := a.beginTurn(a.session.Complete)
		a.updateViewportContent(true)
		return a, tea.Batch(cmd, a.loadingSpinner.Tick)

	case a.kb.Matches(keyPress, "yank_last_response"):
		reply, ok := a.session.LastReply()
		if !ok {
			a.notice = "There is no reply to copy yet."
			return a, nil
		}
		return a, copyToClipboardCmd(reply)

	case a.kb.Matches(keyPress, "yank_conversation"):
		return a, copyToClipboardCmd(transcriptText(a.session.Visible()))

	case a.kb.Matches(keyPress, "clear_input"):
		a.textarea.Reset()
		return a, nil

	case a.kb.Matches(keyPress, "scroll_down"):
		a.viewport.HalfPageDown()
		return a, nil

	case a.kb.Matches(keyPress, "scroll_up"):
		a.viewport.HalfPageUp()
		return a, nil

	case a.kb.Matches(keyPress, "page_down"), keyPress == "pgdown":
		a.viewport.PageDown()
		return a, nil

	case a.kb.Matches(keyPress, "page_up"), keyPress == "pgup":
		a.viewport.PageUp()
		return a, nil

	case a.kb.Matches(keyPress, "scroll_to_top"):
		a.viewport.GotoTop()
		return a, nil

	case a.kb.Matches(keyPress, "scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil
	}

	// Enter sends; Alt+Enter reaches the textarea as a newline
	if msg.Type == tea.KeyEnter && !msg.Alt {
		return a.send()
	}

	if a.streaming {
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

// send appends the typed message and starts streaming the reply.
func (a AppView) send() (tea.Model, tea.Cmd) {
	if a.streaming {
		a.notice = session.NoticeBusy
		return a, nil
	}

	if err := a.session.AddUserMessage(a.textarea.Value()); err != nil {
		a.notice = session.Notice(err)
		return a, nil
	}
	a.textarea.Reset()
	a.logger.Debug("user message sent", zap.Int("transcript_len", a.session.Len()))

	cmd := a.beginTurn(a.session.Complete)
	a.updateViewportContent(true)

	return a, tea.Batch(cmd, a.loadingSpinner.Tick, tokenUsageCmd(a.session))
}

// addStagedImage adds the staged image as its own message. Like the
// sidebar button it replaces, it does not request a reply.
func (a AppView) addStagedImage() (tea.Model, tea.Cmd) {
	if a.streaming {
		a.notice = session.NoticeBusy
		return a, nil
	}

	msg, err := a.session.AttachStagedImage()
	if err != nil {
		a.notice = session.Notice(err)
		return a, nil
	}

	a.notice = ""
	a.flash = "Image added to the conversation"
	a.logger.Debug("image added", zap.String("message_id", msg.ID))
	a.updateViewportContent(true)

	return a, tea.Batch(tokenUsageCmd(a.session), flashTick())
}

func (a AppView) quit() (tea.Model, tea.Cmd) {
	if a.cancelTurn != nil {
		a.cancelTurn()
	}
	return a, tea.Quit
}

func (a AppView) handleImagePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.imagePicker.Processing {
		return a, nil
	}

	if msg.String() == "esc" {
		a.imagePicker.Reset()
		return a, nil
	}

	// Update picker with the KeyMsg FIRST, then look for a selected file
	var cmd tea.Cmd
	a.imagePicker.Picker, cmd = a.imagePicker.Picker.Update(msg)

	if path, ok := a.imagePicker.SelectedFile(); ok {
		a.logger.Debug("image selected", zap.String("path", path))
		a.imagePicker.Processing = true
		return a, tea.Batch(stageImageCmd(a.session, path), a.imagePicker.Spinner.Tick)
	}

	return a, cmd
}

func (a AppView) openModelSelector() (tea.Model, tea.Cmd) {
	a.showModelSelector = true
	a.modelFilterMode = false
	a.modelFilterInput.SetValue("")
	if len(a.modelList) > 0 {
		return a, nil
	}
	a.modelsLoading = true
	return a, provider.FetchModels(a.provider)
}

func (a AppView) handleModelSelectorUpdate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyPress := msg.String()

	if a.modelFilterMode {
		switch {
		case keyPress == "esc":
			a.modelFilterMode = false
			a.modelFilterInput.Blur()
			a.modelFilterInput.SetValue("")
			a.filteredModelList = nil
			a.selectedModelIdx = 0
			return a, nil

		case keyPress == "enter":
			return a.selectModel()

		case a.kb.Matches(keyPress, "model_selector_down_filtered"), keyPress == "down":
			if a.selectedModelIdx < len(a.getModelList())-1 {
				a.selectedModelIdx++
			}
			return a, nil

		case a.kb.Matches(keyPress, "model_selector_up_filtered"), keyPress == "up":
			if a.selectedModelIdx > 0 {
				a.selectedModelIdx--
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.modelFilterInput, cmd = a.modelFilterInput.Update(msg)
		a.filteredModelList = filterModels(a.modelList, a.modelFilterInput.Value())

		list := a.getModelList()
		if a.selectedModelIdx >= len(list) {
			a.selectedModelIdx = max(len(list)-1, 0)
		}
		return a, cmd
	}

	switch {
	case keyPress == "/":
		a.modelFilterMode = true
		a.modelFilterInput.Focus()
		a.modelFilterInput.SetValue("")
		a.filteredModelList = a.modelList
		return a, textinput.Blink

	case keyPress == "esc", a.kb.Matches(keyPress, "close_model_selector"):
		a.showModelSelector = false
		return a, nil

	case a.kb.Matches(keyPress, "model_selector_refresh"):
		a.modelsLoading = true
		a.modelList = nil
		return a, provider.FetchModels(a.provider)

	case a.kb.Matches(keyPress, "model_selector_down"), keyPress == "down":
		if a.selectedModelIdx < len(a.getModelList())-1 {
			a.selectedModelIdx++
		}
		return a, nil

	case a.kb.Matches(keyPress, "model_selector_up"), keyPress == "up":
		if a.selectedModelIdx > 0 {
			a.selectedModelIdx--
		}
		return a, nil

	case keyPress == "enter":
		return a.selectModel()
	}

	return a, nil
}

func (a AppView) selectModel() (tea.Model, tea.Cmd) {
	list := a.getModelList()
	if a.selectedModelIdx < 0 || a.selectedModelIdx >= len(list) {
		return a, nil
	}
	selected := list[a.selectedModelIdx]

	a.showModelSelector = false
	a.modelFilterMode = false
	a.modelFilterInput.Blur()

	if err := a.session.SetModel(selected.InternalName); err != nil {
		a.notice = session.Notice(err)
		return a, nil
	}

	a.logger.Info("model switched", zap.String("model", selected.InternalName))
	a.flash = "Switched to " + selected.Name
	return a, tea.Batch(tokenUsageCmd(a.session), flashTick())
}
