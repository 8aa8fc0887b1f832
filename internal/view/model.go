// Package view shapes aggregates for the current navigation state into the
// rows and series a renderer draws.
package view

import (
	"github.com/sile/magpies/internal/aggregate"
	"github.com/sile/magpies/internal/navigation"
	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
)

const DefaultDecimals = 3

type Options struct {
	// Decimals used for fractional values and deltas.
	Decimals int
	// MaxUnionItems truncates union displays; zero shows everything.
	MaxUnionItems int
}

// MetricRow is one line of the aggregated-metrics table.
type MetricRow struct {
	Path     record.MetricPath
	Name     string
	Kind     record.Kind
	Value    string
	Delta    string
	HasValue bool
	HasDelta bool
	Selected bool
}

// TargetRow is one line of the per-target table for the cursor path.
type TargetRow struct {
	Target   string
	Value    string
	Delta    string
	HasValue bool
	HasDelta bool
}

// ChartPoint is the aggregated delta of the cursor path in one interval.
type ChartPoint struct {
	Start   float64
	Delta   float64
	Present bool
}

type Model struct {
	Window    navigation.Window
	Filter    string
	Following bool
	Empty     bool

	Metrics []MetricRow
	// Cursor indexes Metrics, or is -1.
	Cursor     int
	CursorPath string
	Targets    []TargetRow
	Chart      []ChartPoint
}

// Build derives the view for nav from store. It never fails; an empty store
// yields an empty model.
func Build(store *series.Store, agg *aggregate.Aggregator, nav *navigation.State, opts Options) Model {
	if opts.Decimals <= 0 {
		opts.Decimals = DefaultDecimals
	}
	m := Model{
		Window:    nav.Window(),
		Filter:    nav.Filter().Pattern(),
		Following: nav.Following(),
		Cursor:    -1,
	}
	if _, _, err := store.Bounds(); err != nil {
		m.Empty = true
		return m
	}

	last := nav.Last()
	cursor, hasCursor := nav.Cursor()

	for _, p := range store.Paths(nav.Filter()) {
		kind, _ := store.Kind(p)
		row := MetricRow{Path: p, Name: p.String(), Kind: kind, Value: Placeholder, Delta: Placeholder}
		if v, ok := agg.AggregatedValue(p, last); ok {
			row.Value, row.HasValue = formatAggregate(v, opts), true
		}
		if d, ok := agg.AggregatedDelta(p, last); ok {
			row.Delta, row.HasDelta = FormatValue(d, opts.Decimals), true
		}
		if hasCursor && p == cursor {
			row.Selected = true
			m.Cursor = len(m.Metrics)
		}
		m.Metrics = append(m.Metrics, row)
	}
	if !hasCursor {
		return m
	}

	m.CursorPath = cursor.String()
	for _, target := range store.Targets() {
		row := TargetRow{Target: target, Value: Placeholder, Delta: Placeholder}
		if v, ok := agg.BucketValue(target, cursor, last); ok {
			row.Value, row.HasValue = formatAggregate(v, opts), true
		}
		if d, ok := agg.Delta(target, cursor, last); ok {
			row.Delta, row.HasDelta = FormatValue(d, opts.Decimals), true
		}
		m.Targets = append(m.Targets, row)
	}

	for _, iv := range nav.Intervals() {
		d, ok := agg.AggregatedDelta(cursor, iv)
		m.Chart = append(m.Chart, ChartPoint{Start: iv.Start, Delta: d, Present: ok})
	}
	return m
}

func formatAggregate(v aggregate.Value, opts Options) string {
	if f, ok := v.Float(); ok {
		return FormatValue(f, opts.Decimals)
	}
	return FormatUnion(v.Items(), opts.MaxUnionItems)
}
