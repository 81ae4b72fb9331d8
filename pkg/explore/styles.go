package explore

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	colorPrimary   = lipgloss.Color("#e63948") // red
	colorSecondary = lipgloss.Color("10")      // green
	colorMatch     = lipgloss.Color("#D4AF37") // gold
	colorMuted     = lipgloss.Color("8")       // gray
	colorAccent    = lipgloss.Color("#11C3DB") // cyan
	colorHighlight = lipgloss.Color("15")      // white
	colorCall      = lipgloss.Color("12")      // blue
	colorThread    = lipgloss.Color("13")      // magenta
)

// Pane border styles
var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary)

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorMuted)
)

// Title style for pane headers
var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Background(colorPrimary).
	Padding(0, 1)

// Table row styles
var (
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("17")).
				Foreground(colorHighlight)

	headerRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)
)

// Result tree styles
var (
	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMatch)

	treeStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)

// Scope styles
var (
	fileScopeStyle    = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	processScopeStyle = lipgloss.NewStyle().Foreground(colorPrimary)
	threadScopeStyle  = lipgloss.NewStyle().Foreground(colorThread)
	callScopeStyle    = lipgloss.NewStyle().Foreground(colorCall)
)

// Status bar
var statusBarStyle = lipgloss.NewStyle().
	Foreground(colorMuted)

// Help styles
var (
	helpKeyStyle  = lipgloss.NewStyle().Foreground(colorAccent)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// Facet styles
var (
	facetLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	facetSelectedStyle = lipgloss.NewStyle().Foreground(colorSecondary)
	facetCountStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

// Detail field styles
var (
	fieldLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	fieldValueStyle = lipgloss.NewStyle().Foreground(colorHighlight)
)

// Modal overlay style
var modalStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// renderScope returns a scope name styled and padded to width.
func renderScope(scope string, width int) string {
	style := lipgloss.NewStyle()
	switch scope {
	case "file":
		style = fileScopeStyle
	case "process":
		style = processScopeStyle
	case "thread":
		style = threadScopeStyle
	case "call":
		style = callScopeStyle
	}
	return padRight(style.Render(truncateString(scope, width)), width)
}
