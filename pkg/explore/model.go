// Package explore is an interactive terminal browser for the hits of a
// scan: facets on the left, the hits table on the top right and the
// evidence of the selected hit below it.
package explore

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

// focusedPane tracks which pane has keyboard focus.
type focusedPane int

const (
	paneFilters focusedPane = iota
	paneHits
	paneDetails
)

// overlay tracks which modal overlay is active.
type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlayTree
)

// pagerFinishedMsg is sent when an external pager process exits.
type pagerFinishedMsg struct{ err error }

// Model is the root Bubble Tea model for the explore TUI.
type Model struct {
	data    *exploreData
	filters filterPane
	hits    hitsPane
	details detailsPane

	focus         focusedPane
	activeOverlay overlay
	showFilters   bool

	// Scrollable overlay state
	overlayContent string
	overlayOffset  int

	width  int
	height int
	err    error
}

// New creates a Model over the hits of result. tracePath names the trace
// the result came from; it may be empty.
func New(result *scanner.ScanResult, tracePath string) Model {
	data := loadData(result, tracePath)

	m := Model{
		data:        data,
		filters:     newFilterPane(buildFacets(data.hits)),
		hits:        newHitsPane(data.hits),
		details:     newDetailsPane(),
		focus:       paneHits,
		showFilters: true,
	}

	m.hits.focused = true
	if h := m.hits.selectedHit(); h != nil {
		m.details.setHit(h)
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("capmatch explore")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pagerFinishedMsg:
		m.err = msg.err
		return m, nil

	case tea.MouseMsg:
		if m.activeOverlay != overlayNone {
			return m, nil
		}
		if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		m.handleMouseClick(msg.X, msg.Y)
		return m, nil

	case tea.KeyMsg:
		if m.activeOverlay != overlayNone {
			return m.updateOverlay(msg)
		}

		// Global keys (work regardless of focus)
		switch {
		case keyMatches(msg, defaultKeys.ForceQuit), keyMatches(msg, defaultKeys.Quit):
			return m, tea.Quit
		case keyMatches(msg, defaultKeys.ToggleHelp):
			m.openOverlay(overlayHelp, renderHelp())
			return m, nil
		case keyMatches(msg, defaultKeys.ToggleFilters):
			m.showFilters = !m.showFilters
			if !m.showFilters && m.focus == paneFilters {
				m.setFocus(paneHits)
			}
			return m, nil
		case keyMatches(msg, defaultKeys.FocusFilters):
			if m.showFilters {
				m.setFocus(paneFilters)
			}
			return m, nil
		case keyMatches(msg, defaultKeys.FocusHits):
			m.setFocus(paneHits)
			return m, nil
		case keyMatches(msg, defaultKeys.FocusDetails):
			m.setFocus(paneDetails)
			return m, nil
		case keyMatches(msg, defaultKeys.ShowTree):
			if h := m.hits.selectedHit(); h != nil {
				m.openOverlay(overlayTree, strings.Join(h.Tree, "\n"))
			}
			return m, nil
		case keyMatches(msg, defaultKeys.OpenTrace):
			return m, m.openTrace()
		}

		// Delegate to focused pane
		switch m.focus {
		case paneFilters:
			var cmd tea.Cmd
			m.filters, cmd = m.filters.Update(msg)
			m.applyFilters()
			return m, cmd
		case paneHits:
			prevCursor := m.hits.cursor
			prevSort := m.hits.sortBy
			prevAsc := m.hits.sortAsc
			var cmd tea.Cmd
			m.hits, cmd = m.hits.Update(msg)
			if m.hits.cursor != prevCursor || m.hits.sortBy != prevSort || m.hits.sortAsc != prevAsc {
				m.details.setHit(m.hits.selectedHit())
			}
			return m, cmd
		case paneDetails:
			var cmd tea.Cmd
			m.details, cmd = m.details.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *Model) openOverlay(o overlay, content string) {
	m.activeOverlay = o
	m.overlayContent = content
	m.overlayOffset = 0
}

func (m Model) updateOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(msg, defaultKeys.Quit),
		keyMatches(msg, defaultKeys.ForceQuit),
		keyMatches(msg, defaultKeys.ToggleHelp) && m.activeOverlay == overlayHelp,
		keyMatches(msg, defaultKeys.ShowTree) && m.activeOverlay == overlayTree,
		msg.String() == "esc":
		m.activeOverlay = overlayNone
	case keyMatches(msg, defaultKeys.Down):
		m.overlayOffset++
	case keyMatches(msg, defaultKeys.Up):
		if m.overlayOffset > 0 {
			m.overlayOffset--
		}
	case keyMatches(msg, defaultKeys.PageDown):
		m.overlayOffset += m.height / 2
	case keyMatches(msg, defaultKeys.PageUp):
		m.overlayOffset = max(0, m.overlayOffset-m.height/2)
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.activeOverlay != overlayNone {
		return m.renderOverlay()
	}

	statusBar := m.renderStatusBar()
	contentHeight := m.height - 2 // status bar + padding
	hitsHeight := contentHeight * 40 / 100
	detailsHeight := contentHeight - hitsHeight

	dataWidth := m.width
	var filtersView string
	if m.showFilters {
		filtersWidth := m.filtersWidth()
		dataWidth = m.width - filtersWidth
		m.filters.setSize(filtersWidth, contentHeight)
		filtersView = m.filters.View()
	}

	m.hits.setSize(dataWidth, hitsHeight)
	m.details.setSize(dataWidth, detailsHeight)
	dataColumn := lipgloss.JoinVertical(lipgloss.Left, m.hits.View(), m.details.View())

	mainContent := dataColumn
	if m.showFilters {
		mainContent = lipgloss.JoinHorizontal(lipgloss.Top, filtersView, dataColumn)
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) filtersWidth() int {
	return min(m.width*30/100, 50)
}

func (m Model) renderStatusBar() string {
	summary := fmt.Sprintf(" %d hits | %d shown", len(m.data.hits), len(m.hits.rows))
	if m.err != nil {
		summary += " | " + m.err.Error()
	}
	left := statusBarStyle.Render(summary)

	right := fmt.Sprintf("%s:%s  %s:%s  %s:%s  %s:%s  %s:%s  %s:%s  %s:%s",
		helpKeyStyle.Render("j/k"), helpDescStyle.Render("nav"),
		helpKeyStyle.Render("f/d"), helpDescStyle.Render("focus"),
		helpKeyStyle.Render("s"), helpDescStyle.Render("sort"),
		helpKeyStyle.Render("t"), helpDescStyle.Render("tree"),
		helpKeyStyle.Render("o"), helpDescStyle.Render("trace"),
		helpKeyStyle.Render("F7"), helpDescStyle.Render("filters"),
		helpKeyStyle.Render("?"), helpDescStyle.Render("help"),
	)

	gap := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderOverlay() string {
	overlayWidth := m.width * 80 / 100
	overlayHeight := m.height * 80 / 100

	title := " Help (q to close) "
	if m.activeOverlay == overlayTree {
		title = " Result tree (q to close) "
	}
	content := m.renderOverlayContent(overlayHeight - 4)

	box := modalStyle.
		Width(overlayWidth - 4).
		Height(overlayHeight - 2).
		Render(content)

	overlayView := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), box)

	// Center on screen
	hPad := (m.width - lipgloss.Width(overlayView)) / 2
	vPad := (m.height - lipgloss.Height(overlayView)) / 2

	return strings.Repeat("\n", max(0, vPad)) +
		lipgloss.NewStyle().PaddingLeft(max(0, hPad)).Render(overlayView)
}

func (m Model) renderOverlayContent(height int) string {
	lines := strings.Split(m.overlayContent, "\n")
	offset := min(m.overlayOffset, max(0, len(lines)-1))
	end := min(offset+max(1, height), len(lines))
	return strings.Join(lines[offset:end], "\n")
}

func (m *Model) setFocus(p focusedPane) {
	m.filters.focused = p == paneFilters
	m.hits.focused = p == paneHits
	m.details.focused = p == paneDetails
	m.focus = p
}

func (m *Model) handleMouseClick(x, y int) {
	contentHeight := m.height - 2
	hitsHeight := contentHeight * 40 / 100

	dataLeft := 0
	if m.showFilters {
		dataLeft = m.filtersWidth()
	}

	switch {
	case y >= contentHeight:
		return
	case x < dataLeft:
		m.setFocus(paneFilters)
		row := y - 2 // title + border top
		if idx := row + m.filters.offset; row >= 0 && idx < len(m.filters.items) {
			m.filters.cursor = idx
			m.filters.toggleCurrent()
			m.applyFilters()
		}
	case y < hitsHeight:
		m.setFocus(paneHits)
		row := y - 4 // title + border top + header + separator
		if idx := row + m.hits.offset; row >= 0 && idx < len(m.hits.rows) {
			m.hits.cursor = idx
			m.details.setHit(m.hits.selectedHit())
		}
	default:
		m.setFocus(paneDetails)
	}
}

func (m *Model) applyFilters() {
	if !m.filters.facets.hasActiveFilters() {
		m.hits.setFilteredRows(m.data.hits)
	} else {
		var filtered []*hitRow
		for _, h := range m.data.hits {
			if m.filters.facets.matchesHit(h) {
				filtered = append(filtered, h)
			}
		}
		m.hits.setFilteredRows(filtered)
	}
	m.filters.facets.updateCounts(m.data.hits)

	m.details.setHit(m.hits.selectedHit())
}

// openTrace shows the trace file in $PAGER, or the result tree when there
// is no trace on disk.
func (m *Model) openTrace() tea.Cmd {
	if m.data.tracePath != "" {
		if _, err := os.Stat(m.data.tracePath); err == nil {
			return openInPager(m.data.tracePath)
		}
	}
	if h := m.hits.selectedHit(); h != nil {
		m.openOverlay(overlayTree, strings.Join(h.Tree, "\n"))
	}
	return nil
}

func openInPager(path string) tea.Cmd {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	c := exec.Command(pager, path)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return pagerFinishedMsg{err: err}
	})
}
