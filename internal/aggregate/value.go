package aggregate

import (
	"sort"
	"strings"

	"github.com/sile/magpies/internal/record"
)

// Interval is the half-open range [Start, End()). Intervals built with At
// lie on a grid, and their bounds and neighbours are computed from the grid
// index so adjacent intervals share bit-identical bounds.
type Interval struct {
	Start float64
	Width float64

	origin float64
	index  int
	onGrid bool
}

// At is the index-th interval of width starting at origin.
func At(origin float64, index int, width float64) Interval {
	return Interval{
		Start:  origin + float64(index)*width,
		Width:  width,
		origin: origin,
		index:  index,
		onGrid: true,
	}
}

func (iv Interval) grid() (origin float64, index int) {
	if iv.onGrid {
		return iv.origin, iv.index
	}
	return iv.Start, 0
}

func (iv Interval) End() float64 {
	if !iv.onGrid {
		return iv.Start + iv.Width
	}
	return iv.origin + float64(iv.index+1)*iv.Width
}

func (iv Interval) Contains(ts float64) bool {
	return ts >= iv.Start && ts < iv.End()
}

// Prev is the interval immediately before iv.
func (iv Interval) Prev() Interval {
	origin, index := iv.grid()
	return At(origin, index-1, iv.Width)
}

// Value is a bucket or aggregated value: a number for numeric paths, a
// sorted set of distinct canonical JSON values otherwise.
type Value struct {
	kind  record.Kind
	num   float64
	items []string
}

func NumericValue(v float64) Value { return Value{kind: record.KindNumeric, num: v} }

// UnionValue de-duplicates and sorts items.
func UnionValue(items []string) Value {
	set := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := set[it]; ok {
			continue
		}
		set[it] = struct{}{}
		out = append(out, it)
	}
	sort.Strings(out)
	return Value{kind: record.KindOther, items: out}
}

func (v Value) Kind() record.Kind { return v.kind }

func (v Value) Float() (float64, bool) {
	return v.num, v.kind == record.KindNumeric
}

// Items returns the union members; it must not be modified.
func (v Value) Items() []string { return v.items }

func (v Value) String() string {
	if v.kind == record.KindNumeric {
		return record.Numeric(v.num).Raw()
	}
	return "{" + strings.Join(v.items, ", ") + "}"
}
