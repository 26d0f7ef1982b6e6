// Package ui is the terminal front end: a bubbletea program that shows the
// transcript, streams replies into it and exposes the image and model
// controls in a sidebar.
package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"techbot/config"
	"techbot/model"
	"techbot/provider"
	"techbot/session"
)

const (
	sidebarWidth    = 34
	minWidthSidebar = 80 // Narrower terminals hide the sidebar
)

type AppView struct {
	session  *session.Session
	provider model.Provider
	kb       *config.KeyBindingsConfig
	logger   *zap.Logger

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	// Window state
	width  int
	height int
	ready  bool

	// Streaming state
	streaming      bool
	live           string
	streamCh       <-chan tea.Msg
	cancelTurn     context.CancelFunc
	loadingSpinner spinner.Model

	// Rendered markdown by message ID
	rendered map[string]string

	// Sidebar
	tokenCount int
	tokenErr   error
	pinged     bool
	pingErr    error

	// Notices for recoverable failures, flashes for confirmations
	notice string
	flash  string

	showHelp bool

	imagePicker FilePickerState

	// Model selector
	showModelSelector bool
	modelsLoading     bool
	modelList         []model.ModelInfo
	filteredModelList []model.ModelInfo
	selectedModelIdx  int
	modelFilterMode   bool
	modelFilterInput  textinput.Model

	// Acknowledge modal (for errors requiring only acknowledgement)
	showAcknowledgeModal  bool
	acknowledgeModalTitle string
	acknowledgeModalMsg   string
	acknowledgeModalType  ModalType
}

func NewAppView(sess *session.Session, p model.Provider, kb *config.KeyBindingsConfig, logger *zap.Logger) AppView {
	if kb == nil {
		kb = config.DefaultKeybindings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter for newline, Enter alone sends (handled in Update)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	modelFilterInput := textinput.New()
	modelFilterInput.Prompt = "Filter: "
	modelFilterInput.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	return AppView{
		session:          sess,
		provider:         p,
		kb:               kb,
		logger:           logger,
		textarea:         ta,
		viewport:         viewport.New(0, 0),
		loadingSpinner:   sp,
		rendered:         make(map[string]string),
		imagePicker:      NewImagePickerState(),
		modelFilterInput: modelFilterInput,
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		provider.PingProvider(a.provider),
		tokenUsageCmd(a.session),
	)
}

// mainWidth is the width of the transcript column.
func (a AppView) mainWidth() int {
	if a.width >= minWidthSidebar {
		return a.width - sidebarWidth
	}
	return a.width
}

// layout sizes the viewport and input for the current window.
func (a *AppView) layout() {
	// Title (1), separator (1), notice (1), textarea (3), status bar (1)
	viewportHeight := a.height - 7
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	a.viewport.Width = a.mainWidth()
	a.viewport.Height = viewportHeight
	a.textarea.SetWidth(a.mainWidth())
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading techbot..."
	}

	// Modal rendering order: help, acknowledge, picker, model selector
	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}
	if a.showAcknowledgeModal {
		return RenderAcknowledgeModal(a.acknowledgeModalTitle, a.acknowledgeModalMsg, a.acknowledgeModalType, a.width, a.height)
	}
	if a.imagePicker.Active {
		return RenderFilePickerModal(a.imagePicker, a.width, a.height)
	}
	if a.showModelSelector {
		return renderModelSelector(a.modelList, a.selectedModelIdx, a.session.Deployment(), a.modelsLoading, a.modelFilterMode, a.modelFilterInput, a.filteredModelList, a.width, a.height)
	}

	title := AssistantStyle.Render("techbot") + TitleStyle.Render(fmt.Sprintf(" - %s", a.session.Deployment()))
	if a.streaming {
		title += DimStyle.Render(" | streaming, Esc to cancel")
	}

	main := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		a.renderNotice(),
		a.textarea.View(),
		a.renderStatusBar(),
	)

	if a.width < minWidthSidebar {
		return main
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.NewStyle().Width(a.mainWidth()).Render(main),
		a.renderSidebar(sidebarWidth, a.height),
	)
}

func (a AppView) renderStatusBar() string {
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	parts := []struct{ action, desc string }{
		{"quit", "Quit"},
		{"pick_image", "Image"},
		{"model_selector", "Models"},
		{"retry", "Retry"},
		{"yank_last_response", "Copy"},
		{"help", "Help"},
	}

	status := "Enter " + descStyle.Render("Send")
	for _, p := range parts {
		status += "  " + a.kb.DisplayActionKey(p.action) + " " + descStyle.Render(p.desc)
	}
	return StatusStyle.Render(status)
}

func (a *AppView) showAcknowledge(title, msg string, modalType ModalType) {
	a.showAcknowledgeModal = true
	a.acknowledgeModalTitle = title
	a.acknowledgeModalMsg = msg
	a.acknowledgeModalType = modalType
}

// getModelList returns the list the selector is currently navigating.
func (a AppView) getModelList() []model.ModelInfo {
	if a.modelFilterMode {
		return a.filteredModelList
	}
	return a.modelList
}
