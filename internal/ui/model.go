// Package ui is the interactive bubbletea viewer over an engine.Engine.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/sile/magpies/internal/engine"
	"github.com/sile/magpies/internal/ingest"
	"github.com/sile/magpies/internal/navigation"
	"github.com/sile/magpies/internal/terminal"
	"github.com/sile/magpies/internal/view"
)

const (
	// maxBatch bounds how many queued lines one update ingests.
	maxBatch = 512

	chartHeight  = 6
	chartReserve = 12 // y-axis labels
	minTableRows = 3
)

type Options struct {
	Engine *engine.Engine
	// Lines is the input hand-off; nil means no live input.
	Lines <-chan string
	// InputErr reports why input stopped once Lines is closed.
	InputErr func() error
	Source   string
	// AutoVisible derives the visible interval count from the terminal width.
	AutoVisible     bool
	Colors          bool
	AltScreen       bool
	RefreshInterval time.Duration
	Decimals        int
	Logger          *zap.Logger
}

type linesMsg struct{ lines []string }

type inputClosedMsg struct{ err error }

type tickMsg time.Time

type Model struct {
	opts        Options
	eng         *engine.Engine
	styles      styles
	help        help.Model
	filterInput textinput.Model
	filtering   bool
	showHelp    bool

	width  int
	height int

	current   view.Model
	dirty     bool
	inputDone bool
	message   string
	isError   bool
}

func New(opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Second
	}
	if opts.Decimals <= 0 {
		opts.Decimals = view.DefaultDecimals
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Placeholder = "filter metrics (re: for regex)"
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		opts:        opts,
		eng:         opts.Engine,
		styles:      newStyles(opts.Colors && !terminal.ColorDisabled()),
		help:        help.New(),
		filterInput: ti,
		inputDone:   opts.Lines == nil,
	}
	m.current = m.eng.CurrentView()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForLines(m.opts.Lines, m.opts.InputErr), tick(m.opts.RefreshInterval))
}

func waitForLines(ch <-chan string, errFn func() error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			var err error
			if errFn != nil {
				err = errFn()
			}
			return inputClosedMsg{err: err}
		}
		return linesMsg{lines: ingest.Drain(line, ch, maxBatch)}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case linesMsg:
		for _, line := range msg.lines {
			if err := m.eng.IngestLine(line); err != nil {
				m.setError(err)
			}
		}
		m.dirty = true
		return m, waitForLines(m.opts.Lines, m.opts.InputErr)
	case inputClosedMsg:
		m.inputDone = true
		if msg.err != nil {
			m.setError(fmt.Errorf("input stopped: %w", msg.err))
		} else {
			m.setInfo("input complete")
		}
		m.refresh()
		return m, nil
	case tickMsg:
		if m.dirty {
			m.refresh()
		}
		return m, tick(m.opts.RefreshInterval)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if m.opts.AutoVisible {
			visible := terminal.VisibleIntervals(msg.Width, 1, chartReserve)
			if err := m.eng.Navigate(navigation.Resize{Visible: visible}); err != nil {
				m.setError(err)
			}
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if err := m.eng.Navigate(navigation.SetFilter{Pattern: m.filterInput.Value()}); err != nil {
			m.setError(err)
			return m, nil
		}
		m.filtering = false
		m.filterInput.Blur()
		m.clearMessage()
		m.refresh()
		return m, nil
	case "esc":
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue(m.current.Filter)
		return m, nil
	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd navigation.Command
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case key.Matches(msg, keys.Filter):
		m.filtering = true
		m.filterInput.SetValue(m.current.Filter)
		m.filterInput.CursorEnd()
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Clear):
		cmd = navigation.SetFilter{Pattern: ""}
	case key.Matches(msg, keys.Prev):
		cmd = navigation.Prev{}
	case key.Matches(msg, keys.Next):
		cmd = navigation.Next{}
	case key.Matches(msg, keys.Start):
		cmd = navigation.Start{}
	case key.Matches(msg, keys.End):
		cmd = navigation.End{}
	case key.Matches(msg, keys.Up):
		cmd = navigation.MoveCursor{Delta: -1}
	case key.Matches(msg, keys.Down):
		cmd = navigation.MoveCursor{Delta: 1}
	default:
		return m, nil
	}
	if err := m.eng.Navigate(cmd); err != nil {
		m.setError(err)
	}
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	m.current = m.eng.CurrentView()
	m.dirty = false
}

func (m *Model) setError(err error) {
	m.message, m.isError = err.Error(), true
	m.opts.Logger.Debug("viewer error", zap.Error(err))
}

func (m *Model) setInfo(s string) { m.message, m.isError = s, false }

func (m *Model) clearMessage() { m.message, m.isError = "", false }

// Current is the view model last rendered.
func (m Model) Current() view.Model { return m.current }

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.filtering {
		b.WriteString("Filter: " + m.filterInput.View() + "\n")
	}
	b.WriteString("\n")

	v := m.current
	if v.Empty {
		b.WriteString(m.styles.Muted.Render("  (waiting for records)"))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.renderTables(v))
		b.WriteString("\n")
		title := "Δ/s"
		if v.CursorPath != "" {
			title = v.CursorPath + "  Δ/s"
		}
		b.WriteString(m.styles.Title.Render(title))
		b.WriteString("\n")
		if v.CursorPath == "" {
			b.WriteString(m.styles.Muted.Render("  (no metric selected)"))
			b.WriteString("\n")
		} else {
			b.WriteString(m.renderChart(v.Chart, chartHeight))
		}
	}

	if m.message != "" {
		style := m.styles.Muted
		if m.isError {
			style = m.styles.Error
		}
		b.WriteString(style.Render(truncate(m.message, max(m.width, 20))))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) renderHeader() string {
	st := m.eng.Status()
	w := m.current.Window
	parts := []string{
		m.styles.Header.Render("magpies"),
		m.opts.Source,
		fmt.Sprintf("%s → %s", view.FormatTimestamp(w.Start), view.FormatTimestamp(w.End)),
		fmt.Sprintf("every %s", formatWidth(w.Width)),
		fmt.Sprintf("%s targets, %s metrics", view.FormatCount(st.Targets), view.FormatCount(st.Paths)),
	}
	if m.current.Filter != "" {
		parts = append(parts, "filter "+m.current.Filter)
	}
	if m.current.Following {
		parts = append(parts, m.styles.Up.Render("FOLLOW"))
	}
	if !m.inputDone {
		parts = append(parts, m.styles.Muted.Render("reading"))
	}
	if st.Rejected > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("%s rejected", view.FormatCount(st.Rejected))))
	}
	return strings.Join(filterEmpty(parts), "  •  ")
}

func formatWidth(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).String()
}

func filterEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) tableRows() int {
	if m.height <= 0 {
		return 20
	}
	// header, filter, blank, table title, chart title+rows+axis, message, help
	used := 4 + chartHeight + 3 + 2
	if m.filtering {
		used++
	}
	return max(m.height-used, minTableRows)
}

func (m Model) renderTables(v view.Model) string {
	rows := m.tableRows()
	left, right := computePaneWidths(max(m.width, 60), 60)

	start := 0
	if v.Cursor >= rows {
		start = v.Cursor - rows + 1
	}
	end := min(start+rows, len(v.Metrics))

	nameW := max(left-28, 10)
	var lb strings.Builder
	lb.WriteString(m.styles.Title.Render(padRight("metric", nameW) + padLeft("value", 14) + padLeft("Δ/s", 12)))
	lb.WriteString("\n")
	if len(v.Metrics) == 0 {
		lb.WriteString(m.styles.Muted.Render("  (no metrics match the filter)"))
		lb.WriteString("\n")
	}
	for _, row := range v.Metrics[start:end] {
		line := padRight(truncate(row.Name, nameW-1), nameW) + padLeft(truncate(row.Value, 13), 14) + padLeft(truncate(row.Delta, 11), 12)
		if row.Selected {
			line = m.styles.Selected.Render(line)
		}
		lb.WriteString(line)
		lb.WriteString("\n")
	}

	targetW := max(right-28, 8)
	var rb strings.Builder
	rb.WriteString(m.styles.Title.Render(padRight("target", targetW) + padLeft("value", 14) + padLeft("Δ/s", 12)))
	rb.WriteString("\n")
	if len(v.Targets) == 0 {
		rb.WriteString(m.styles.Muted.Render("  (no target data)"))
		rb.WriteString("\n")
	}
	for i, row := range v.Targets {
		if i >= rows {
			rb.WriteString(m.styles.Muted.Render(fmt.Sprintf("  +%d more", len(v.Targets)-rows)))
			rb.WriteString("\n")
			break
		}
		rb.WriteString(padRight(truncate(row.Target, targetW-1), targetW) + padLeft(truncate(row.Value, 13), 14) + padLeft(truncate(row.Delta, 11), 12))
		rb.WriteString("\n")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(left).Render(strings.TrimRight(lb.String(), "\n")),
		lipgloss.NewStyle().Width(right).Render(strings.TrimRight(rb.String(), "\n")),
	) + "\n"
}

func computePaneWidths(totalWidth int, splitPercent int) (left, right int) {
	if totalWidth <= 1 {
		return 1, 1
	}
	left = totalWidth * splitPercent / 100
	left = min(max(left, 1), totalWidth-1)
	right = totalWidth - left

	const minPane = 30
	if totalWidth >= minPane*2 {
		if left < minPane {
			left = minPane
			right = totalWidth - left
		}
		if right < minPane {
			right = minPane
			left = totalWidth - right
		}
	}
	return left, right
}
