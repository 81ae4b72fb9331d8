package explore

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// detailsPane shows the evidence and result tree of the selected hit.
type detailsPane struct {
	hit            *hitRow
	evidenceCursor int
	width          int
	height         int
	offset         int // scroll offset for content
	focused        bool
}

func newDetailsPane() detailsPane {
	return detailsPane{}
}

func (dp *detailsPane) setHit(h *hitRow) {
	dp.hit = h
	dp.evidenceCursor = 0
	dp.offset = 0
}

func (dp detailsPane) selectedEvidence() *evidenceRow {
	if dp.hit == nil || dp.evidenceCursor < 0 || dp.evidenceCursor >= len(dp.hit.Evidence) {
		return nil
	}
	return dp.hit.Evidence[dp.evidenceCursor]
}

func (dp detailsPane) Update(msg tea.Msg) (detailsPane, tea.Cmd) {
	if !dp.focused {
		return dp, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case keyMatches(msg, defaultKeys.Up):
			if dp.offset > 0 {
				dp.offset--
			}
		case keyMatches(msg, defaultKeys.Down):
			dp.offset++
		case keyMatches(msg, defaultKeys.Left):
			if dp.evidenceCursor > 0 {
				dp.evidenceCursor--
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Right):
			if dp.hit != nil && dp.evidenceCursor < len(dp.hit.Evidence)-1 {
				dp.evidenceCursor++
				dp.offset = 0
			}
		case keyMatches(msg, defaultKeys.Home):
			dp.offset = 0
		case keyMatches(msg, defaultKeys.PageDown):
			dp.offset += dp.visibleRows()
		case keyMatches(msg, defaultKeys.PageUp):
			dp.offset = max(0, dp.offset-dp.visibleRows())
		}
	}

	return dp, nil
}

// lines renders the pane content before scrolling.
func (dp detailsPane) lines(contentWidth int) []string {
	if dp.hit == nil {
		return []string{"  No hit selected"}
	}
	h := dp.hit

	var lines []string
	field := func(label, value string) {
		lines = append(lines, fmt.Sprintf("  %s %s",
			fieldLabelStyle.Render(label),
			fieldValueStyle.Render(value)))
	}

	name := h.ProbeName
	if h.ProbeID != h.ProbeName {
		name = fmt.Sprintf("%s (%s)", h.ProbeName, h.ProbeID)
	}
	field("Probe:", name)
	if h.Description != "" {
		field("Description:", h.Description)
	}
	field("Feature:", h.Feature)
	lines = append(lines, fmt.Sprintf("  %s %s %s",
		fieldLabelStyle.Render("Scope:"),
		renderScope(h.Scope, len(h.Scope)),
		fieldValueStyle.Render(h.Address)))
	if h.Process != "-" {
		field("Process:", h.Process)
	}

	lines = append(lines, "")

	if len(h.Evidence) > 0 {
		lines = append(lines, "  "+headerRowStyle.Render(
			fmt.Sprintf("Evidence %d/%d (h/l to navigate)", dp.evidenceCursor+1, len(h.Evidence))))
		lines = append(lines, "  "+strings.Repeat("─", max(0, min(40, contentWidth-4))))
		if e := dp.selectedEvidence(); e != nil {
			lines = append(lines, renderEvidence(e, contentWidth)...)
		}
	} else {
		lines = append(lines, "  No evidence locations")
	}

	lines = append(lines, "")
	lines = append(lines, "  "+fieldLabelStyle.Render("Result:"))
	for _, l := range h.Tree {
		lines = append(lines, "    "+treeStyle.Render(truncateString(l, contentWidth-6)))
	}

	return lines
}

func (dp detailsPane) View() string {
	if dp.width <= 0 || dp.height <= 0 {
		return ""
	}

	contentWidth := dp.width - 4
	lines := dp.lines(contentWidth)

	// Apply scroll offset
	if dp.offset >= len(lines) {
		dp.offset = max(0, len(lines)-1)
	}
	visibleLines := lines[dp.offset:]
	if len(visibleLines) > dp.visibleRows() {
		visibleLines = visibleLines[:dp.visibleRows()]
	}

	var b strings.Builder
	for i, line := range visibleLines {
		b.WriteString(padRight(line, contentWidth))
		if i < len(visibleLines)-1 {
			b.WriteString("\n")
		}
	}
	// Fill empty
	for i := len(visibleLines); i < dp.visibleRows(); i++ {
		b.WriteString(strings.Repeat(" ", contentWidth))
		if i < dp.visibleRows()-1 {
			b.WriteString("\n")
		}
	}

	title := titleStyle.Render(" Details ")

	borderStyle := inactiveBorderStyle
	if dp.focused {
		borderStyle = activeBorderStyle
	}

	content := borderStyle.
		Width(dp.width - 2).
		Height(dp.height - 3).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, title, content)
}

func renderEvidence(e *evidenceRow, maxWidth int) []string {
	lines := []string{fmt.Sprintf("  %s %s",
		fieldLabelStyle.Render("Location:"),
		fieldValueStyle.Render(e.Location))}

	if e.Call != "" {
		lines = append(lines, fmt.Sprintf("  %s %s",
			fieldLabelStyle.Render("Call:"),
			fieldValueStyle.Render(truncateString(e.Call, maxWidth-10))))
	}

	if len(e.Strings) > 0 {
		lines = append(lines, "  "+fieldLabelStyle.Render("Matched:"))
		for _, s := range e.Strings {
			lines = append(lines, "    "+matchStyle.Render(truncateString(strconv.Quote(s), maxWidth-6)))
		}
	}

	return lines
}

func (dp detailsPane) visibleRows() int {
	return max(1, dp.height-4)
}

func (dp *detailsPane) setSize(w, h int) {
	dp.width = w
	dp.height = h
}
