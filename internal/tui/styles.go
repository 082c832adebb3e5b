package tui

import "github.com/charmbracelet/lipgloss"

// Colors follow the category palette so the chrome sits well next to
// category dots.
var (
	colorPrimary   = lipgloss.Color("#5c6bc0")
	colorAccent    = lipgloss.Color("#ec407a")
	colorMuted     = lipgloss.Color("#78909c")
	colorSuccess   = lipgloss.Color("#66bb6a")
	colorWarning   = lipgloss.Color("#ffa726")
	colorError     = lipgloss.Color("#ef5350")
	colorFg        = lipgloss.Color("#eceff1")
	colorSubtle    = lipgloss.Color("#455a64")
	colorHighlight = lipgloss.Color("#42a5f5")
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 2)

	panelStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSubtle).Padding(1, 2)
	activePanelStyle = panelStyle.BorderForeground(colorPrimary)

	// The big clock; running and paused only change the color.
	timerStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorMuted).Align(lipgloss.Center)
	timerRunningStyle = timerStyle.Foreground(colorSuccess)
	timerPausedStyle  = timerStyle.Foreground(colorWarning)

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorFg)
	accentStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	successStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle   = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	highlightStyle = lipgloss.NewStyle().Foreground(colorHighlight)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = mutedStyle.Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	normalItemStyle   = lipgloss.NewStyle().Foreground(colorFg)
)

// colorDot renders a bullet in a category color.
func colorDot(color string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}
