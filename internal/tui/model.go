package tui

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/guardscan/internal/models"
)

// Labeler records labels and reports the resulting rate.
// *classifier.Classifier satisfies it.
type Labeler interface {
	RecordLabel(f models.Finding, label models.Label) error
	EstimateRate(ruleID string) models.RateEstimate
}

// mode represents the current UI interaction mode.
type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeFilterRule
)

const defaultTableHeight = 15

// Model is the top-level Bubble Tea model for the labeling TUI.
type Model struct {
	// Data
	report    *models.Report
	trend     *models.TrendSummary
	labeler   Labeler
	allItems  []sampleItem
	ruleRates map[string]models.RateEstimate

	// UI state
	table         table.Model
	searchInput   textinput.Model
	filteredItems []sampleItem
	filters       filterState
	sortBy        sortField
	mode          mode
	ruleChoices   []string
	ruleCursor    int
	width         int
	height        int
	statusMsg     string
	// clipboard is captured here for testing instead of writing to stdout
	clipboard string
}

// New creates a new TUI model over the sampled findings of report.
func New(report *models.Report, trend *models.TrendSummary, labeler Labeler) Model {
	items := itemsFromReport(report)
	sortItems(items, sortBySeverity)
	rows := buildRows(items)
	t := newTable(rows, defaultTableHeight)

	ti := textinput.New()
	ti.Placeholder = "search..."
	ti.CharLimit = 64

	return Model{
		report:        report,
		trend:         trend,
		labeler:       labeler,
		allItems:      items,
		ruleRates:     make(map[string]models.RateEstimate),
		filteredItems: items,
		table:         t,
		searchInput:   ti,
		sortBy:        sortBySeverity,
		mode:          modeNormal,
		ruleChoices:   uniqueRules(items),
		width:         80,
		height:        24,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		tableH := msg.Height - headerHeight - detailHeight - 3
		if tableH < 3 {
			tableH = 3
		}
		m.table.SetHeight(tableH)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	default:
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeFilterRule:
		return m.handleFilterRuleKey(msg)
	default:
		return m.handleNormalKey(msg)
	}
}

func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Search):
		m.mode = modeSearch
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.FilterRule):
		m.mode = modeFilterRule
		m.ruleCursor = 0
		return m, nil
	case key.Matches(msg, keys.Sort):
		m.sortBy = (m.sortBy + 1) % sortField(sortFieldCount)
		m.rebuildTable()
		m.statusMsg = fmt.Sprintf("Sort: %s", sortFieldName(m.sortBy))
		return m, nil
	case key.Matches(msg, keys.Copy):
		m.copySelectedFingerprint()
		return m, nil
	case key.Matches(msg, keys.ClearFilter):
		m.filters = filterState{}
		m.statusMsg = ""
		m.rebuildTable()
		return m, nil
	case key.Matches(msg, keys.Unlabeled):
		m.filters.Unlabeled = !m.filters.Unlabeled
		m.rebuildTable()
		if m.filters.Unlabeled {
			m.statusMsg = "Filter: unlabeled"
		} else {
			m.statusMsg = ""
		}
		return m, nil
	case key.Matches(msg, keys.TruePositive):
		m.labelSelected(models.LabelTruePositive)
		return m, nil
	case key.Matches(msg, keys.FalsePositive):
		m.labelSelected(models.LabelFalsePositive)
		return m, nil
	case key.Matches(msg, keys.Informational):
		m.labelSelected(models.LabelInformational)
		return m, nil
	case key.Matches(msg, keys.Unclassify):
		m.labelSelected(models.LabelUnclassified)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filters.SearchText = m.searchInput.Value()
		m.mode = modeNormal
		m.searchInput.Blur()
		m.rebuildTable()
		return m, nil
	case "esc":
		m.mode = modeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleFilterRuleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.ruleCursor > 0 {
			m.ruleCursor--
		}
	case "down", "j":
		if m.ruleCursor < len(m.ruleChoices) {
			m.ruleCursor++
		}
	case "enter":
		if m.ruleCursor == 0 {
			m.filters.Rule = ""
		} else if m.ruleCursor <= len(m.ruleChoices) {
			m.filters.Rule = m.ruleChoices[m.ruleCursor-1]
		}
		m.mode = modeNormal
		m.rebuildTable()
		if m.filters.Rule != "" {
			m.statusMsg = fmt.Sprintf("Filter: %s", m.filters.Rule)
		} else {
			m.statusMsg = ""
		}
	case "esc":
		m.mode = modeNormal
	}
	return m, nil
}

// labelSelected records label for the selected sample and refreshes the
// row and the rule's rate. Nothing changes in the table if recording fails.
func (m *Model) labelSelected(label models.Label) {
	it := m.selectedItem()
	if it == nil {
		m.statusMsg = "Nothing to label"
		return
	}
	if m.labeler == nil {
		m.statusMsg = "Labeling unavailable"
		return
	}
	if err := m.labeler.RecordLabel(it.finding(), label); err != nil {
		m.statusMsg = fmt.Sprintf("Label failed: %v", err)
		return
	}

	fp := it.Sample.Fingerprint
	for i := range m.allItems {
		if m.allItems[i].Sample.Fingerprint == fp {
			m.allItems[i].Label = label
		}
	}
	delete(m.ruleRates, it.RuleID)

	cursor := m.table.Cursor()
	m.rebuildTable()
	next := cursor + 1
	if m.filters.Unlabeled && label != models.LabelUnclassified {
		next = cursor
	}
	if next >= len(m.filteredItems) {
		next = len(m.filteredItems) - 1
	}
	if next >= 0 {
		m.table.SetCursor(next)
	}
	m.statusMsg = fmt.Sprintf("%s → %s", it.location(), label)
}

func (m *Model) rebuildTable() {
	filtered := applyFilters(m.allItems, m.filters)
	sortItems(filtered, m.sortBy)
	m.filteredItems = filtered
	m.table.SetRows(buildRows(filtered))
}

func (m *Model) selectedItem() *sampleItem {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.filteredItems) {
		return nil
	}
	return &m.filteredItems[cursor]
}

// selectedRate returns the rate estimate for the selected sample's rule.
func (m *Model) selectedRate() *models.RateEstimate {
	it := m.selectedItem()
	if it == nil || m.labeler == nil {
		return nil
	}
	est, ok := m.ruleRates[it.RuleID]
	if !ok {
		est = m.labeler.EstimateRate(it.RuleID)
		m.ruleRates[it.RuleID] = est
	}
	return &est
}

func (m *Model) labeledCount() int {
	n := 0
	for _, it := range m.allItems {
		if it.Label != models.LabelUnclassified {
			n++
		}
	}
	return n
}

// copySelectedFingerprint writes the selected fingerprint to clipboard via OSC 52.
func (m *Model) copySelectedFingerprint() {
	it := m.selectedItem()
	if it == nil {
		m.statusMsg = "Nothing to copy"
		return
	}
	text := it.Sample.Fingerprint
	m.clipboard = text
	m.statusMsg = "Copied!"
	// OSC 52 clipboard escape: works in most modern terminals
	fmt.Printf("\033]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(text)))
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	var sparkline []int
	if m.trend != nil {
		sparkline = m.trend.FindingSparkline
	}
	b.WriteString(renderHeader(m.report, m.labeledCount(), len(m.allItems), m.selectedRate(), sparkline, m.width))
	b.WriteString("\n")

	if m.mode == modeSearch {
		b.WriteString(styleSearchPrompt.Render("/ "))
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}

	if m.mode == modeFilterRule {
		b.WriteString(m.renderRuleFilter())
		b.WriteString("\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	b.WriteString(renderDetail(m.selectedItem(), m.width))
	b.WriteString("\n")

	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderRuleFilter() string {
	var b strings.Builder
	b.WriteString("Filter by rule:\n")

	options := append([]string{"All"}, m.ruleChoices...)
	for i, opt := range options {
		cursor := "  "
		if i == m.ruleCursor {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%s\n", cursor, opt))
	}
	return b.String()
}

func (m *Model) renderFooter() string {
	left := "q:quit  t/f/i/u:label  x:unlabeled  /:search  r:rule  s:sort  c:copy  esc:clear"
	right := fmt.Sprintf("%d/%d samples", len(m.filteredItems), len(m.allItems))

	if m.statusMsg != "" {
		right = m.statusMsg + "  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return styleFooter.Render(left + strings.Repeat(" ", gap) + right)
}

// Run starts the Bubble Tea program. Called from the label command.
func Run(report *models.Report, trend *models.TrendSummary, labeler Labeler) error {
	m := New(report, trend, labeler)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
