package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"techbot/model"
)

// filterModels returns the models whose display name fuzzy-matches query,
// best match first. An empty query returns all models.
func filterModels(models []model.ModelInfo, query string) []model.ModelInfo {
	if query == "" {
		return models
	}

	targets := make([]string, len(models))
	for i, m := range models {
		targets[i] = m.Name
	}

	matches := fuzzy.Find(query, targets)
	filtered := make([]model.ModelInfo, len(matches))
	for i, match := range matches {
		filtered[i] = models[match.Index]
	}
	return filtered
}

func renderModelSelector(models []model.ModelInfo, selectedIdx int, currentModel string, loading bool, filterMode bool, filterInput textinput.Model, filteredModels []model.ModelInfo, width, height int) string {
	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}
	modalHeight := height - 6

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Select Model")

	displayList := models
	if filterMode {
		displayList = filteredModels
	}

	var header string
	switch {
	case filterMode:
		header = filterInput.View()
	case len(models) == len(displayList):
		header = fmt.Sprintf("%d models", len(models))
	default:
		header = fmt.Sprintf("%d of %d models", len(displayList), len(models))
	}

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	var modelLines []string
	maxLines := modalHeight - 8 // Reserve space for title, borders, header, footer
	if maxLines < 1 {
		maxLines = 1
	}

	if len(displayList) == 0 {
		emptyMsg := "No models available"
		switch {
		case loading:
			emptyMsg = "Loading models..."
		case filterMode:
			emptyMsg = "No matches found"
		}
		modelLines = append(modelLines, lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(emptyMsg))
	} else {
		startIdx, endIdx := scrollWindow(len(displayList), selectedIdx, maxLines)

		for i := startIdx; i < endIdx; i++ {
			m := displayList[i]

			indicator := "  "
			if i == selectedIdx {
				indicator = "▶ "
			}

			currentMarker := ""
			if IsCurrentModel(m, currentModel) {
				currentMarker = " (current)"
			}

			imageIndicator := ""
			if ModelAcceptsImages(m) {
				imageIndicator = " [img]"
			}

			size := formatSize(m.Size)

			maxNameWidth := modalWidth - 20 // Reserve space for size
			name := runewidth.Truncate(m.Name, maxNameWidth, "...")

			spacing := modalWidth - runewidth.StringWidth(indicator) - runewidth.StringWidth(name) - len(imageIndicator) - len(currentMarker) - len(size) - 4
			if spacing < 1 {
				spacing = 1
			}

			line := indicator + name + imageIndicator + currentMarker + strings.Repeat(" ", spacing) + size

			lineStyle := lipgloss.NewStyle()
			if i == selectedIdx {
				lineStyle = lineStyle.Foreground(successColor).Bold(true)
			} else if IsCurrentModel(m, currentModel) {
				lineStyle = lineStyle.Foreground(accentColor).Bold(true)
			}

			modelLines = append(modelLines, lipgloss.NewStyle().
				Width(modalWidth).
				Render(lineStyle.Render(line)))
		}
	}

	emptyLine := strings.Repeat(" ", modalWidth)
	modelLines = append([]string{emptyLine}, modelLines...)
	modelLines = append(modelLines, emptyLine)

	var footerText string
	if filterMode {
		footerText = FormatFooter("Type", "to filter", "Alt+J/K", "Navigate", "Enter", "Select", "Esc", "Cancel")
	} else {
		footerText = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Select", "[img]", "Accepts images", "Esc", "Exit")
	}
	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footerText)

	sections := []string{titleSection, headerSection}
	sections = append(sections, modelLines...)
	sections = append(sections, footerSection)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}

// scrollWindow keeps the selected row roughly centered in a window of
// maxLines rows over total rows.
func scrollWindow(total, selectedIdx, maxLines int) (start, end int) {
	if total <= maxLines {
		return 0, total
	}
	switch {
	case selectedIdx < maxLines/2:
		return 0, maxLines
	case selectedIdx >= total-maxLines/2:
		return total - maxLines, total
	default:
		start = selectedIdx - maxLines/2
		return start, start + maxLines
	}
}

// formatSize converts bytes to human-readable format. Unknown sizes
// (cloud providers) render as "".
func formatSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(bytes))
}
