package ui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sile/magpies/internal/view"
)

var blocks = []rune(" ▁▂▃▄▅▆▇█")

const (
	absentCell = '·'
	zeroCell   = '_'

	// chartLabelWidth plus one separating space fills chartReserve.
	chartLabelWidth = chartReserve - 1
)

// chartCells lays out one column per point and height rows, top row first.
// Bars are scaled to the largest absolute delta; the sign is returned per
// column so the renderer can colour it.
func chartCells(points []view.ChartPoint, height int) ([][]rune, []int, float64) {
	height = max(height, 1)
	var maxAbs float64
	for _, p := range points {
		if p.Present {
			maxAbs = max(maxAbs, math.Abs(p.Delta))
		}
	}

	rows := make([][]rune, height)
	for r := range rows {
		rows[r] = []rune(strings.Repeat(" ", len(points)))
	}
	signs := make([]int, len(points))
	bottom := height - 1

	for c, p := range points {
		switch {
		case !p.Present:
			rows[bottom][c] = absentCell
			continue
		case p.Delta == 0 || maxAbs == 0:
			rows[bottom][c] = zeroCell
			continue
		case p.Delta > 0:
			signs[c] = 1
		default:
			signs[c] = -1
		}
		level := int(math.Round(math.Abs(p.Delta) / maxAbs * float64(height*8)))
		level = max(level, 1)
		for r := 0; r < height; r++ {
			fromBottom := bottom - r
			fill := min(max(level-fromBottom*8, 0), 8)
			rows[r][c] = blocks[fill]
		}
	}
	return rows, signs, maxAbs
}

func (m Model) renderChart(points []view.ChartPoint, height int) string {
	rows, signs, maxAbs := chartCells(points, height)
	top := chartLabel(maxAbs, m.opts.Decimals)
	labelW := chartLabelWidth

	var b strings.Builder
	for r, row := range rows {
		label := ""
		switch r {
		case 0:
			label = top
		case len(rows) - 1:
			label = "0"
		}
		b.WriteString(m.styles.Muted.Render(padLeft(label, labelW)))
		b.WriteString(" ")
		for c, cell := range row {
			s := string(cell)
			switch signs[c] {
			case 1:
				s = m.styles.Up.Render(s)
			case -1:
				s = m.styles.Down.Render(s)
			default:
				s = m.styles.Muted.Render(s)
			}
			b.WriteString(s)
		}
		b.WriteByte('\n')
	}
	if len(points) > 0 {
		first := view.FormatTimestamp(points[0].Start)
		last := view.FormatTimestamp(points[len(points)-1].Start)
		axis := first
		if gap := len(points) - lipgloss.Width(first) - lipgloss.Width(last); gap > 0 {
			axis = first + strings.Repeat(" ", gap) + last
		}
		b.WriteString(strings.Repeat(" ", labelW+1))
		b.WriteString(m.styles.Muted.Render(axis))
		b.WriteByte('\n')
	}
	return b.String()
}

// chartLabel formats the y-axis maximum, falling back to three significant
// digits when the full value does not fit the label column.
func chartLabel(maxAbs float64, decimals int) string {
	s := view.FormatValue(maxAbs, decimals)
	if lipgloss.Width(s) <= chartLabelWidth {
		return s
	}
	return truncate(strconv.FormatFloat(maxAbs, 'g', 3, 64), chartLabelWidth)
}

func padLeft(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return strings.Repeat(" ", w-n) + s
}

func padRight(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}

func truncate(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	if w == 1 {
		return "…"
	}
	return string(r[:w-1]) + "…"
}
