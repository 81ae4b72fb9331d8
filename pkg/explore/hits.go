package explore

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// sortField defines which column to sort by.
type sortField int

const (
	sortByOrder sortField = iota
	sortByProbe
	sortByScope
	sortByEvidence
	sortFieldCount // sentinel
)

var sortFieldNames = [sortFieldCount]string{
	"Scan Order", "Probe", "Scope", "Evidence",
}

// hitsPane is the top-right hits table.
type hitsPane struct {
	rows    []*hitRow // filtered rows
	allRows []*hitRow // all rows (unfiltered)
	cursor  int
	offset  int
	width   int
	height  int
	focused bool
	sortBy  sortField
	sortAsc bool

	// Column widths
	colProbe    int
	colScope    int
	colAddress  int
	colEvidence int
}

func newHitsPane(rows []*hitRow) hitsPane {
	hp := hitsPane{
		allRows: rows,
		rows:    rows,
		sortAsc: true,
	}
	hp.sort()
	return hp
}

func (hp *hitsPane) setFilteredRows(rows []*hitRow) {
	hp.rows = rows
	hp.sort()
	if hp.cursor >= len(hp.rows) {
		hp.cursor = max(0, len(hp.rows)-1)
	}
	hp.ensureVisible()
}

func (hp hitsPane) selectedHit() *hitRow {
	if hp.cursor < 0 || hp.cursor >= len(hp.rows) {
		return nil
	}
	return hp.rows[hp.cursor]
}

func (hp hitsPane) Update(msg tea.Msg) (hitsPane, tea.Cmd) {
	if !hp.focused {
		return hp, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if hp.cursor > 0 {
				hp.cursor--
				hp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Down):
			if hp.cursor < len(hp.rows)-1 {
				hp.cursor++
				hp.ensureVisible()
			}
		case keyMatches(msg, defaultKeys.Home):
			hp.cursor = 0
			hp.offset = 0
		case keyMatches(msg, defaultKeys.End):
			hp.cursor = max(0, len(hp.rows)-1)
			hp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageDown):
			hp.cursor = max(0, min(hp.cursor+hp.visibleRows(), len(hp.rows)-1))
			hp.ensureVisible()
		case keyMatches(msg, defaultKeys.PageUp):
			hp.cursor = max(hp.cursor-hp.visibleRows(), 0)
			hp.ensureVisible()
		case keyMatches(msg, defaultKeys.SortNext):
			hp.sortBy = (hp.sortBy + 1) % sortFieldCount
			hp.sort()
		case keyMatches(msg, defaultKeys.SortReverse):
			hp.sortAsc = !hp.sortAsc
			hp.sort()
		}
	}

	return hp, nil
}

func (hp *hitsPane) sort() {
	// ties fall back to scan order
	byOrder := func(a, b *hitRow) bool { return a.Order < b.Order }
	switch hp.sortBy {
	case sortByOrder:
		sortSlice(hp.rows, byOrder, hp.sortAsc)
	case sortByProbe:
		sortSlice(hp.rows, func(a, b *hitRow) bool {
			if a.ProbeName != b.ProbeName {
				return a.ProbeName < b.ProbeName
			}
			return byOrder(a, b)
		}, hp.sortAsc)
	case sortByScope:
		sortSlice(hp.rows, func(a, b *hitRow) bool {
			if ra, rb := scopeRank(a.Scope), scopeRank(b.Scope); ra != rb {
				return ra < rb
			}
			return byOrder(a, b)
		}, hp.sortAsc)
	case sortByEvidence:
		sortSlice(hp.rows, func(a, b *hitRow) bool {
			if len(a.Evidence) != len(b.Evidence) {
				return len(a.Evidence) < len(b.Evidence)
			}
			return byOrder(a, b)
		}, hp.sortAsc)
	}
}

func sortSlice[T any](s []T, less func(a, b T) bool, asc bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			if asc {
				if less(s[j], s[j-1]) {
					s[j], s[j-1] = s[j-1], s[j]
				}
			} else {
				if less(s[j-1], s[j]) {
					s[j], s[j-1] = s[j-1], s[j]
				}
			}
		}
	}
}

func (hp hitsPane) View() string {
	if hp.width <= 0 || hp.height <= 0 {
		return ""
	}

	// Calculate column widths
	contentWidth := hp.width - 4 // borders
	hp.colScope = 8
	hp.colEvidence = 8
	hp.colAddress = min(28, contentWidth/3)
	hp.colProbe = contentWidth - hp.colScope - hp.colAddress - hp.colEvidence - 4 // separators
	if hp.colProbe < 10 {
		hp.colProbe = 10
	}

	var b strings.Builder

	// Header row
	sortIndicator := func(f sortField) string {
		if hp.sortBy == f {
			if hp.sortAsc {
				return " ^"
			}
			return " v"
		}
		return ""
	}

	header := fmt.Sprintf(" %-*s %-*s %-*s %*s",
		hp.colProbe, "Probe"+sortIndicator(sortByProbe),
		hp.colScope, "Scope"+sortIndicator(sortByScope),
		hp.colAddress, "Address",
		hp.colEvidence, "Evid"+sortIndicator(sortByEvidence),
	)
	b.WriteString(headerRowStyle.Width(contentWidth).Render(truncateString(header, contentWidth)))
	b.WriteString("\n")

	// Separator
	b.WriteString(strings.Repeat("─", contentWidth))
	b.WriteString("\n")

	// Data rows
	visibleEnd := min(hp.offset+hp.visibleRows(), len(hp.rows))
	for i := hp.offset; i < visibleEnd; i++ {
		row := hp.rows[i]
		isCurrent := i == hp.cursor

		line := fmt.Sprintf(" %-*s %s %-*s %*d",
			hp.colProbe, truncateString(row.ProbeName, hp.colProbe),
			renderScope(row.Scope, hp.colScope),
			hp.colAddress, truncateString(row.Address, hp.colAddress),
			hp.colEvidence, len(row.Evidence),
		)

		if isCurrent && hp.focused {
			line = selectedRowStyle.Width(contentWidth).Render(ansi.Strip(line))
		}

		b.WriteString(padRight(line, contentWidth))
		if i < visibleEnd-1 {
			b.WriteString("\n")
		}
	}

	// Fill empty rows
	for i := visibleEnd - hp.offset; i < hp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", contentWidth))
		if i < hp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	title := titleStyle.Render(fmt.Sprintf(" Hits (%d/%d) [sort: %s] ", len(hp.rows), len(hp.allRows), sortFieldNames[hp.sortBy]))

	borderStyle := inactiveBorderStyle
	if hp.focused {
		borderStyle = activeBorderStyle
	}

	content := borderStyle.
		Width(hp.width - 2).
		Height(hp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, title, content)
}

func (hp hitsPane) visibleRows() int {
	return max(1, hp.height-6) // title + border + header + separator
}

func (hp *hitsPane) ensureVisible() {
	if hp.cursor < hp.offset {
		hp.offset = hp.cursor
	}
	if hp.cursor >= hp.offset+hp.visibleRows() {
		hp.offset = hp.cursor - hp.visibleRows() + 1
	}
}

func (hp *hitsPane) setSize(w, h int) {
	hp.width = w
	hp.height = h
}
