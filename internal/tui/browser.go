// Package tui is the interactive browser for archived reports.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/hugo-lorenzo-mato/postmortem/internal/clip"
	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/render"
)

const defaultWidth = 80

// dumpsLoadedMsg carries a fresh archive listing.
type dumpsLoadedMsg struct {
	dumps []diagnostics.CrashDump
	err   error
}

// Model browses the crash dumps of one archive directory.
type Model struct {
	dir      string
	dumps    []diagnostics.CrashDump
	filtered []int
	cursor   int

	filter    textinput.Model
	filtering bool

	viewport viewport.Model
	viewing  bool
	ready    bool

	width  int
	height int
	status string

	// Replaced in tests.
	readReport func(dir string, d *diagnostics.CrashDump) ([]byte, error)
	listDumps  func(dir string) ([]diagnostics.CrashDump, error)
	copyText   func(text string) (clip.Result, error)
}

// NewModel creates a browser over dumps, newest first.
func NewModel(dir string, dumps []diagnostics.CrashDump) Model {
	ti := textinput.New()
	ti.Placeholder = "function, file or message..."
	ti.Prompt = "/ "
	ti.CharLimit = 128

	m := Model{
		dir:        dir,
		dumps:      dumps,
		filter:     ti,
		readReport: diagnostics.ReadReport,
		listDumps:  diagnostics.ListCrashDumps,
		copyText:   clip.WriteAll,
	}
	m.applyFilter()
	return m
}

// Run starts the browser in the alternate screen.
func Run(dir string, dumps []diagnostics.CrashDump) error {
	_, err := tea.NewProgram(NewModel(dir, dumps), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case dumpsLoadedMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
			return m, nil
		}
		m.dumps = msg.dumps
		m.applyFilter()
		m.status = fmt.Sprintf("%d reports", len(m.dumps))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.filtering:
			return m.updateFilter(msg)
		case m.viewing:
			return m.updateViewer(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		if len(m.filtered) > 0 {
			m.cursor = len(m.filtered) - 1
		}
	case "/":
		m.filtering = true
		m.filter.Focus()
	case "enter":
		m.openSelected()
	case "y":
		m.copySelected()
	case "r":
		return m, m.reload()
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filter.Reset()
		m.filtering = false
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "backspace":
		m.viewing = false
		return m, nil
	case "y":
		m.copySelected()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height
	m.filter.Width = max(width-4, 10)

	vw, vh := max(width, 20), max(height-2, 3)
	if !m.ready {
		m.viewport = viewport.New(vw, vh)
		m.ready = true
	} else {
		m.viewport.Width = vw
		m.viewport.Height = vh
	}
}

// applyFilter fuzzy-matches the query against each dump's summary line.
func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	m.filtered = make([]int, 0, len(m.dumps))

	if query == "" {
		for i := range m.dumps {
			m.filtered = append(m.filtered, i)
		}
	} else {
		targets := make([]string, len(m.dumps))
		for i := range m.dumps {
			targets[i] = searchText(&m.dumps[i])
		}
		for _, match := range fuzzy.Find(query, targets) {
			m.filtered = append(m.filtered, match.Index)
		}
	}

	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
}

func searchText(d *diagnostics.CrashDump) string {
	return fmt.Sprintf("%s %s:%d %s %s", d.Function, d.File, d.Line, d.Message, d.ID)
}

// Selected returns the dump under the cursor.
func (m Model) Selected() (*diagnostics.CrashDump, bool) {
	if len(m.filtered) == 0 {
		return nil, false
	}
	return &m.dumps[m.filtered[m.cursor]], true
}

func (m *Model) openSelected() {
	d, ok := m.Selected()
	if !ok {
		return
	}
	report, err := m.readReport(m.dir, d)
	if err != nil {
		m.status = err.Error()
		return
	}

	width := m.width
	if width == 0 {
		width = defaultWidth
	}
	content, err := render.Dump(d, report, width)
	if err != nil {
		content = string(report)
	}

	if !m.ready {
		m.setSize(defaultWidth, 24)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
	m.viewing = true
	m.status = ""
}

func (m *Model) copySelected() {
	d, ok := m.Selected()
	if !ok {
		return
	}
	report, err := m.readReport(m.dir, d)
	if err != nil {
		m.status = err.Error()
		return
	}
	res, err := m.copyText(string(report))
	if err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = res.Message()
}

func (m Model) reload() tea.Cmd {
	dir, list := m.dir, m.listDumps
	return func() tea.Msg {
		dumps, err := list(dir)
		return dumpsLoadedMsg{dumps: dumps, err: err}
	}
}

func (m Model) View() string {
	if m.viewing {
		return m.viewport.View() + "\n" + m.footer("↑/↓ scroll • y copy • esc back")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Crash reports in %s", m.dir)))
	b.WriteString("\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.filtered) == 0 {
		b.WriteString(mutedStyle.Render("  no reports"))
		b.WriteString("\n")
	}

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer("enter view • / filter • y copy • r reload • q quit"))
	return b.String()
}

// visibleRange keeps the cursor on screen.
func (m Model) visibleRange() (int, int) {
	rows := len(m.filtered)
	if m.height > 0 {
		rows = max(m.height-6, 1)
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	return start, min(start+rows, len(m.filtered))
}

func (m Model) renderItem(i int) string {
	d := &m.dumps[m.filtered[i]]
	line := fmt.Sprintf("%s  %-24s %s:%d  %s",
		d.Timestamp.Local().Format(time.DateTime),
		d.Function,
		d.File, d.Line,
		outcomeStyle(d.Outcome).Render(d.Outcome),
	)
	if i == m.cursor {
		return selectedStyle.Render("> " + line)
	}
	return itemStyle.Render("  " + line)
}

func (m Model) footer(keys string) string {
	if m.status != "" {
		return statusStyle.Render(m.status) + "  " + mutedStyle.Render(keys)
	}
	return mutedStyle.Render(keys)
}
