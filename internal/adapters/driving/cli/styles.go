package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// Colour palette shared by all command output.
var (
	colourPrimary   = lipgloss.Color("#7C3AED") // Purple
	colourSecondary = lipgloss.Color("#06B6D4") // Cyan
	colourMuted     = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess   = lipgloss.Color("#A6E3A1") // Green
	colourWarning   = lipgloss.Color("#F9E2AF") // Yellow
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	groupStyle   = lipgloss.NewStyle().Foreground(colourSecondary)
	nameStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	snippetStyle = lipgloss.NewStyle().PaddingLeft(6).Foreground(colourMuted)
)

// maxSnippetLen keeps review snippets on one or two terminal lines.
const maxSnippetLen = 160

// renderRecommendation formats grouped results for the terminal.
// Items of one group share a rank number.
func renderRecommendation(rec *domain.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", titleStyle.Render(fmt.Sprintf("Results for %q", rec.Query)))
	for g, group := range rec.Groups {
		label := fmt.Sprintf("#%d", g+1)
		if len(group) > 1 {
			label += fmt.Sprintf(" (%d tied)", len(group))
		}
		fmt.Fprintf(&b, "%s\n", groupStyle.Render(label))

		for _, item := range group {
			name := item.Item.Name
			if name == "" {
				name = item.Item.ID
			}
			fmt.Fprintf(&b, "  %s %s\n",
				nameStyle.Render(name),
				mutedStyle.Render(fmt.Sprintf("[%s] %.3f", item.Item.ID, item.Score)))

			if attrs := formatAttributes(item.Item.Attributes); attrs != "" {
				fmt.Fprintf(&b, "    %s\n", mutedStyle.Render(attrs))
			}
			for _, ev := range item.Evidence {
				b.WriteString(snippetStyle.Render(fmt.Sprintf("%.3f  %s", ev.Score, truncate(ev.Text, maxSnippetLen))))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatAttributes renders attributes as sorted key=value pairs.
func formatAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
