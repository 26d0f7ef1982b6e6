package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"techbot/attachment"
	"techbot/config"
)

type FilePickerConfig struct {
	Title          string
	AllowedTypes   []string
	StartDirectory string
	ShowHidden     bool
}

type FilePickerState struct {
	Active     bool
	Picker     filepicker.Model
	Config     FilePickerConfig
	Processing bool
	Spinner    spinner.Model
}

// NewImagePickerState returns a picker restricted to the upload extensions.
func NewImagePickerState() FilePickerState {
	return NewFilePickerState(FilePickerConfig{
		Title:        "Upload an Image",
		AllowedTypes: attachment.AllowedExtensions,
	})
}

func NewFilePickerState(cfg FilePickerConfig) FilePickerState {
	fp := filepicker.New()
	fp.AllowedTypes = cfg.AllowedTypes
	fp.Height = 10
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.ShowHidden = cfg.ShowHidden

	startDir := cfg.StartDirectory
	if startDir == "" {
		startDir = config.GetHomeDir()
	}
	fp.CurrentDirectory = startDir

	fp.Styles.Directory = lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true)
	fp.Styles.File = lipgloss.NewStyle().
		Foreground(lipgloss.Color("15"))
	fp.Styles.Selected = lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true)
	fp.Styles.Cursor = lipgloss.NewStyle().
		Foreground(successColor)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return FilePickerState{
		Picker:  fp,
		Config:  cfg,
		Spinner: sp,
	}
}

func (fps *FilePickerState) Activate() {
	fps.Active = true
	fps.Processing = false
	fps.Picker.Path = ""
}

func (fps *FilePickerState) Reset() {
	fps.Active = false
	fps.Processing = false
	fps.Picker.Path = ""
}

// SelectedFile returns the chosen path once the picker has selected a
// regular file, clearing the selection otherwise.
func (fps *FilePickerState) SelectedFile() (string, bool) {
	path := fps.Picker.Path
	if path == "" {
		return "", false
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() && attachment.IsAllowed(path) {
		return path, true
	}
	fps.Picker.Path = ""
	return "", false
}

func RenderFilePickerModal(state FilePickerState, width, height int) string {
	if width < 20 || height < 10 {
		return "Terminal too small"
	}

	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}

	if state.Processing {
		processing := lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(fmt.Sprintf("%s Loading image...", state.Spinner.View()))

		return RenderThreeSectionModal(state.Config.Title, []string{processing}, "Please wait", ModalTypeInfo, modalWidth, width, height)
	}

	contentStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Left)

	var messageLines []string
	allowed := DimStyle.Render("  Allowed: " + strings.Join(state.Config.AllowedTypes, " "))
	messageLines = append(messageLines, contentStyle.Render(allowed), "")
	for _, line := range strings.Split(state.Picker.View(), "\n") {
		messageLines = append(messageLines, contentStyle.Render("  "+strings.TrimRight(line, " ")))
	}

	footer := FormatFooter("j/k", "Navigate", "h/l", "Back/Forward", "Enter", "Select", "Esc", "Cancel")

	return RenderThreeSectionModal(state.Config.Title, messageLines, footer, ModalTypeInfo, modalWidth, width, height)
}
