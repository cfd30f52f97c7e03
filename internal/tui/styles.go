package tui

import "github.com/charmbracelet/lipgloss"

// ------- minimal styling helpers (Lip Gloss) -------
var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle     = lipgloss.NewStyle().Faint(true)
	highlightStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	toastStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// badgeColors maps badge colour classes to terminal colours.
var badgeColors = map[string]lipgloss.Color{
	"success": lipgloss.Color("42"),
	"warning": lipgloss.Color("214"),
	"danger":  lipgloss.Color("9"),
	"info":    lipgloss.Color("12"),
}

// badgeIcons maps badge icon names to terminal glyphs.
var badgeIcons = map[string]string{
	"check-circle":    "✔",
	"clock":           "•",
	"x-circle":        "✖",
	"question-circle": "?",
}

// badge renders a status the way the page's badge shows it.
func badge(status, color, icon string) string {
	glyph, ok := badgeIcons[icon]
	if !ok {
		glyph = "?"
	}
	text := glyph + " " + status

	c, ok := badgeColors[color]
	if !ok {
		return mutedStyle.Render(text)
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}
