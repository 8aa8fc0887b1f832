// Package aggregate computes per-interval bucket values, cross-target
// aggregates and deltas from a series.Store.
package aggregate

import (
	"math"

	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
)

// maxMemoEntries bounds each memo table; a full table is dropped wholesale.
const maxMemoEntries = 1 << 16

type memoKey struct {
	target string
	all    bool
	path   record.MetricPath
	start  uint64
	end    uint64
}

type memoEntry struct {
	gen   uint64
	value Value
	ok    bool
}

// Stats counts memo lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Aggregator evaluates buckets lazily. Results are memoized per interval and
// reused until a new point lands in the series (or, for aggregates, the path)
// they were computed from.
type Aggregator struct {
	store *series.Store
	memo  map[memoKey]memoEntry
	stats Stats
}

func New(store *series.Store) *Aggregator {
	return &Aggregator{store: store, memo: make(map[memoKey]memoEntry)}
}

func (a *Aggregator) Stats() Stats { return a.stats }

func key(target string, all bool, path record.MetricPath, iv Interval) memoKey {
	return memoKey{
		target: target,
		all:    all,
		path:   path,
		start:  math.Float64bits(iv.Start),
		end:    math.Float64bits(iv.End()),
	}
}

func (a *Aggregator) lookup(k memoKey, gen uint64) (memoEntry, bool) {
	e, ok := a.memo[k]
	if ok && e.gen == gen {
		a.stats.Hits++
		return e, true
	}
	a.stats.Misses++
	return memoEntry{}, false
}

func (a *Aggregator) remember(k memoKey, e memoEntry) {
	if len(a.memo) >= maxMemoEntries {
		a.memo = make(map[memoKey]memoEntry)
	}
	a.memo[k] = e
}

// BucketValue merges the points of one series that fall in iv: the mean for
// numeric paths, the union of distinct values otherwise. Other values in a
// numeric series do not take part in the mean.
func (a *Aggregator) BucketValue(target string, path record.MetricPath, iv Interval) (Value, bool) {
	kind, known := a.store.Kind(path)
	if !known || iv.Width <= 0 {
		return Value{}, false
	}
	k := key(target, false, path, iv)
	gen := a.store.SeriesGeneration(target, path)
	if e, ok := a.lookup(k, gen); ok {
		return e.value, e.ok
	}

	pts := a.store.PointsBetween(target, path, iv.Start, iv.End())
	v, ok := bucket(kind, pts)
	a.remember(k, memoEntry{gen: gen, value: v, ok: ok})
	return v, ok
}

func bucket(kind record.Kind, pts []series.Point) (Value, bool) {
	if len(pts) == 0 {
		return Value{}, false
	}
	if kind == record.KindNumeric {
		var (
			sum float64
			n   int
		)
		for _, p := range pts {
			if f, ok := p.Value.Float(); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return Value{}, false
		}
		return NumericValue(sum / float64(n)), true
	}

	var items []string
	for _, p := range pts {
		items = append(items, p.Value.Items()...)
	}
	return UnionValue(items), true
}

// AggregatedValue combines the bucket values of every target that has one:
// the sum for numeric paths, the union otherwise.
func (a *Aggregator) AggregatedValue(path record.MetricPath, iv Interval) (Value, bool) {
	kind, known := a.store.Kind(path)
	if !known || iv.Width <= 0 {
		return Value{}, false
	}
	k := key("", true, path, iv)
	gen := a.store.PathGeneration(path)
	if e, ok := a.lookup(k, gen); ok {
		return e.value, e.ok
	}

	var (
		sum   float64
		items []string
		found bool
	)
	for _, target := range a.store.Targets() {
		bv, ok := a.BucketValue(target, path, iv)
		if !ok {
			continue
		}
		found = true
		if kind == record.KindNumeric {
			f, _ := bv.Float()
			sum += f
		} else {
			items = append(items, bv.Items()...)
		}
	}

	var v Value
	switch {
	case !found:
	case kind == record.KindNumeric:
		v = NumericValue(sum)
	default:
		v = UnionValue(items)
	}
	a.remember(k, memoEntry{gen: gen, value: v, ok: found})
	return v, found
}

// Delta is the per-second change of a numeric series between the interval
// before iv and iv.
func (a *Aggregator) Delta(target string, path record.MetricPath, iv Interval) (float64, bool) {
	cur, ok := a.BucketValue(target, path, iv)
	if !ok {
		return 0, false
	}
	prev, ok := a.BucketValue(target, path, iv.Prev())
	if !ok {
		return 0, false
	}
	return delta(prev, cur, iv.Width)
}

// AggregatedDelta is Delta over the cross-target aggregate.
func (a *Aggregator) AggregatedDelta(path record.MetricPath, iv Interval) (float64, bool) {
	cur, ok := a.AggregatedValue(path, iv)
	if !ok {
		return 0, false
	}
	prev, ok := a.AggregatedValue(path, iv.Prev())
	if !ok {
		return 0, false
	}
	return delta(prev, cur, iv.Width)
}

func delta(prev, cur Value, width float64) (float64, bool) {
	p, ok := prev.Float()
	if !ok {
		return 0, false
	}
	c, ok := cur.Float()
	if !ok {
		return 0, false
	}
	return (c - p) / width, true
}
