package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"techbot/attachment"
	"techbot/model"
)

// Pre-compiled regex patterns for better performance
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

// codeBlockBar is the gutter go-term-markdown draws in front of code lines.
const codeBlockBar = "┃"

func (a *AppView) updateViewportContent(gotoBottom bool) {
	messages := a.session.Visible()
	if len(messages) == 0 && !a.streaming {
		a.viewport.SetContent(DimStyle.Render("No messages yet. Ask anything, or press " +
			a.kb.DisplayActionKey("pick_image") + " to upload an image."))
		return
	}

	var content strings.Builder
	for _, msg := range messages {
		content.WriteString(a.renderMessage(msg))
	}

	if a.streaming {
		timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
		role := AssistantStyle.Render("Assistant")

		// Spinner until the first fragment, then the text with its cursor
		streamContent := a.loadingSpinner.View() + " Waiting for response..."
		if a.live != "" {
			streamContent = a.live
		}
		content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, role, streamContent))
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) renderMessage(msg model.Message) string {
	timestamp := DimStyle.Render(msg.CreatedAt().Format("[15:04]"))

	switch m := msg.(type) {
	case model.TextMessage:
		rendered, ok := a.rendered[m.ID]
		if !ok {
			rendered = m.Content
		}
		if m.Role == model.RoleUser {
			return formatUserMessage(timestamp, UserStyle.Render("You"), rendered)
		}
		return fmt.Sprintf("%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), rendered)

	case model.ImageMessage:
		lines := make([]string, len(m.Images))
		for i, img := range m.Images {
			lines[i] = DimStyle.Render(describeImage(img.URL))
		}
		return formatUserMessage(timestamp, UserStyle.Render("You"), strings.Join(lines, "\n"))

	default:
		return ""
	}
}

// describeImage summarizes an image part for the transcript.
func describeImage(url string) string {
	mediaType, payload, ok := attachment.ParseDataURI(url)
	if !ok {
		return "[image] " + url
	}
	// Decoded size is three bytes per four base64 characters.
	size := uint64(len(strings.TrimRight(payload, "="))) * 3 / 4
	return fmt.Sprintf("[image] %s, %s", mediaType, humanize.IBytes(size))
}

func formatUserMessage(timestamp, role, content string) string {
	bar := "\x1b[32;1m" + "┃" + "\x1b[0m"

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

// renderSidebar shows token usage, the staged image and provider status.
func (a AppView) renderSidebar(width, height int) string {
	inner := width - 2 // Border and padding
	truncate := func(s string) string {
		return runewidth.Truncate(s, inner, "…")
	}

	var lines []string

	lines = append(lines, SidebarHeadingStyle.Render("Usage"))
	if a.tokenErr != nil {
		for _, l := range strings.Split(wordWrap(fmt.Sprintf("Error calculating token usage: %v", a.tokenErr), inner), "\n") {
			lines = append(lines, ErrorStyle.Render(l))
		}
	} else {
		lines = append(lines, truncate(fmt.Sprintf("Total tokens used: %d", a.tokenCount)))
	}
	lines = append(lines, "")

	lines = append(lines, SidebarHeadingStyle.Render("Image"))
	if staged := a.session.Staged(); staged != nil {
		lines = append(lines,
			truncate(staged.Name),
			DimStyle.Render(truncate(fmt.Sprintf("%s, %s", staged.MediaType, humanize.IBytes(uint64(staged.Size()))))),
			truncate(a.kb.DisplayActionKey("add_image")+" Add Image to Conversation"),
		)
	} else {
		lines = append(lines, DimStyle.Render("No image staged"))
	}
	lines = append(lines, truncate(a.kb.DisplayActionKey("pick_image")+" Upload an image"), "")

	lines = append(lines, SidebarHeadingStyle.Render("Model"))
	lines = append(lines, truncate(a.session.Deployment()))
	switch {
	case a.pingErr != nil:
		lines = append(lines, ErrorStyle.Render(truncate("✗ unreachable")))
	case a.pinged:
		lines = append(lines, UserStyle.Render(truncate("✓ connected")))
	default:
		lines = append(lines, DimStyle.Render(truncate("… connecting")))
	}

	return SidebarStyle.
		Width(width - 1).
		Height(height).
		Render(strings.Join(lines, "\n"))
}

func (a AppView) renderNotice() string {
	switch {
	case a.notice != "":
		return NoticeStyle.Render(runewidth.Truncate(a.notice, a.mainWidth(), "…"))
	case a.flash != "":
		return UserStyle.Render(a.flash)
	default:
		return ""
	}
}

func postProcessMarkdown(rendered string, width int) string {
	// 1. Inline code: blue background → red text
	rendered = fixInlineCode(rendered)

	// 2. Color plain URLs red (autolink disabled keeps URLs plain)
	rendered = fixMarkdownLinks(rendered)

	// 3. Frame code blocks with horizontal lines
	return frameCodeBlocks(rendered, width)
}

// preprocessLinks strips markdown link syntax [text](url) → url so every
// link shows as a plain URL the terminal can detect.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBlockBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

func frameCodeBlocks(s string, width int) string {
	const (
		darkGray = "\x1b[90m"
		reset    = "\x1b[0m"
	)

	lineLen := width - 4
	if lineLen < 8 {
		lineLen = 8
	}
	bottomBorder := darkGray + strings.Repeat("━", lineLen) + reset

	lines := strings.Split(s, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.Contains(line, codeBlockBar) {
			if !inCodeBlock {
				inCodeBlock = true

				label := "[code]"
				leftLen := (lineLen - len(label)) / 2
				rightLen := lineLen - len(label) - leftLen
				border := darkGray + strings.Repeat("━", leftLen) + reset + label + darkGray + strings.Repeat("━", rightLen) + reset
				result = append(result, "", border, "")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}

		if inCodeBlock {
			result = append(result, "", bottomBorder, "")
			inCodeBlock = false
		}
		result = append(result, line)
	}

	if inCodeBlock {
		result = append(result, "", bottomBorder, "")
	}

	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBlockBar)
	if idx < 0 {
		return line
	}
	after := idx + len(codeBlockBar)
	if after < len(line) && line[after] == ' ' {
		after++
	}
	return line[after:]
}

// renderMarkdown renders content for a terminal of the given width.
func renderMarkdown(content string, width int) string {
	content = preprocessLinks(content)

	// Disable autolink to keep plain URLs as plain text
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return strings.TrimRight(postProcessMarkdown(string(rendered), width), "\n")
}

func (a AppView) renderMarkdownAsync(messageID, content string) tea.Cmd {
	width := a.mainWidth()
	logger := a.logger
	return func() tea.Msg {
		start := time.Now()
		rendered := renderMarkdown(content, width)
		logger.Debug("markdown rendered",
			zap.String("message_id", messageID),
			zap.Int("chars", len(content)),
			zap.Duration("elapsed", time.Since(start)))

		return markdownRenderedMsg{MessageID: messageID, Rendered: rendered}
	}
}

// renderPending schedules markdown rendering for assistant messages that
// have no cached rendering. User text is shown as typed.
func (a AppView) renderPending() tea.Cmd {
	var cmds []tea.Cmd
	for _, msg := range a.session.Visible() {
		m, ok := msg.(model.TextMessage)
		if !ok || m.Role != model.RoleAssistant {
			continue
		}
		if _, done := a.rendered[m.ID]; done {
			continue
		}
		cmds = append(cmds, a.renderMarkdownAsync(m.ID, m.Content))
	}
	return tea.Batch(cmds...)
}

// transcriptText formats the conversation as plain text for the clipboard.
func transcriptText(messages []model.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		role := "You"
		var body string
		switch m := msg.(type) {
		case model.TextMessage:
			if m.Role == model.RoleAssistant {
				role = "Assistant"
			}
			body = m.Content
		case model.ImageMessage:
			parts := make([]string, len(m.Images))
			for i, img := range m.Images {
				parts[i] = describeImage(img.URL)
			}
			body = strings.Join(parts, "\n")
		default:
			continue
		}
		b.WriteString(fmt.Sprintf("[%s] %s:\n%s\n\n", msg.CreatedAt().Format("15:04"), role, body))
	}
	return strings.TrimRight(b.String(), "\n")
}
