package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sile/magpies/internal/record"
	"github.com/sile/magpies/internal/series"
)

var path = record.NewPath("memory", "used_memory")

func ingestNum(s *series.Store, target string, ts, v float64) {
	s.Ingest(&record.Sample{
		Target:    target,
		Timestamp: ts,
		Metrics:   []record.Metric{{Path: path, Value: record.Numeric(v)}},
	})
}

func ingestOther(t *testing.T, s *series.Store, target string, ts float64, v any) {
	t.Helper()
	mv, err := record.Other(v)
	require.NoError(t, err)
	s.Ingest(&record.Sample{Target: target, Timestamp: ts, Metrics: []record.Metric{{Path: path, Value: mv}}})
}

func TestBucketValueMean(t *testing.T) {
	s := series.NewStore()
	ingestNum(s, "t", 0, 1)
	ingestNum(s, "t", 1, 2)
	ingestNum(s, "t", 2, 3)
	ingestNum(s, "t", 5, 100)

	a := New(s)
	v, ok := a.BucketValue("t", path, Interval{Start: 0, Width: 5})
	require.True(t, ok)
	f, isNum := v.Float()
	require.True(t, isNum)
	assert.Equal(t, 2.0, f)

	_, ok = a.BucketValue("t", path, Interval{Start: 10, Width: 5})
	assert.False(t, ok)
	_, ok = a.BucketValue("missing", path, Interval{Start: 0, Width: 5})
	assert.False(t, ok)
}

func TestAggregatedValueSumsPresentTargets(t *testing.T) {
	s := series.NewStore()
	ingestNum(s, "local", 0, 10)
	ingestNum(s, "remote", 1, 20)
	ingestNum(s, "local", 6, 7)

	a := New(s)
	v, ok := a.AggregatedValue(path, Interval{Start: 0, Width: 5})
	require.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 30.0, f)

	v, ok = a.AggregatedValue(path, Interval{Start: 5, Width: 5})
	require.True(t, ok)
	f, _ = v.Float()
	assert.Equal(t, 7.0, f)

	_, ok = a.AggregatedValue(path, Interval{Start: 20, Width: 5})
	assert.False(t, ok)
}

func TestAggregatedValueUnion(t *testing.T) {
	s := series.NewStore()
	ingestOther(t, s, "local", 0, "a")
	ingestOther(t, s, "remote", 1, "b")
	ingestOther(t, s, "remote", 2, "a")

	a := New(s)
	v, ok := a.AggregatedValue(path, Interval{Start: 0, Width: 5})
	require.True(t, ok)
	assert.Equal(t, record.KindOther, v.Kind())
	assert.Equal(t, []string{`"a"`, `"b"`}, v.Items())
	_, isNum := v.Float()
	assert.False(t, isNum)

	_, ok = a.AggregatedDelta(path, Interval{Start: 5, Width: 5})
	assert.False(t, ok)
}

func TestUnionFlattensArrays(t *testing.T) {
	s := series.NewStore()
	ingestOther(t, s, "t", 0, []any{"x", "y"})
	ingestOther(t, s, "t", 1, []any{"y", "z"})

	v, ok := New(s).BucketValue("t", path, Interval{Start: 0, Width: 5})
	require.True(t, ok)
	assert.Equal(t, []string{`"x"`, `"y"`, `"z"`}, v.Items())
}

func TestDelta(t *testing.T) {
	s := series.NewStore()
	ingestNum(s, "t", 0, 100)
	ingestNum(s, "t", 5, 150)

	a := New(s)
	d, ok := a.Delta("t", path, Interval{Start: 5, Width: 5})
	require.True(t, ok)
	assert.Equal(t, 10.0, d)

	d, ok = a.AggregatedDelta(path, Interval{Start: 5, Width: 5})
	require.True(t, ok)
	assert.Equal(t, 10.0, d)

	_, ok = a.Delta("t", path, Interval{Start: 0, Width: 5})
	assert.False(t, ok, "no previous bucket")
	_, ok = a.Delta("t", path, Interval{Start: 10, Width: 5})
	assert.False(t, ok, "no current bucket")
}

func TestNumericBucketIgnoresOtherValues(t *testing.T) {
	s := series.NewStore()
	ingestNum(s, "t", 0, 4)
	ingestOther(t, s, "t", 1, "oops")
	ingestOther(t, s, "t", 6, "only")

	a := New(s)
	v, ok := a.BucketValue("t", path, Interval{Start: 0, Width: 5})
	require.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 4.0, f)

	_, ok = a.BucketValue("t", path, Interval{Start: 5, Width: 5})
	assert.False(t, ok)
}

func TestMemoInvalidatedByIngest(t *testing.T) {
	s := series.NewStore()
	ingestNum(s, "t", 0, 10)
	a := New(s)
	iv := Interval{Start: 0, Width: 5}

	v, _ := a.AggregatedValue(path, iv)
	f, _ := v.Float()
	assert.Equal(t, 10.0, f)

	_, _ = a.AggregatedValue(path, iv)
	assert.Positive(t, a.Stats().Hits)

	ingestNum(s, "t", 1, 20)
	v, _ = a.AggregatedValue(path, iv)
	f, _ = v.Float()
	assert.Equal(t, 15.0, f)

	ingestNum(s, "other", 2, 5)
	v, _ = a.AggregatedValue(path, iv)
	f, _ = v.Float()
	assert.Equal(t, 20.0, f)
}

func TestIntervalHelpers(t *testing.T) {
	iv := Interval{Start: 10, Width: 2}
	assert.Equal(t, 12.0, iv.End())
	assert.True(t, iv.Contains(10))
	assert.False(t, iv.Contains(12))
	prev := iv.Prev()
	assert.Equal(t, 8.0, prev.Start)
	assert.Equal(t, 10.0, prev.End())

	g := At(4, 3, 2)
	assert.Equal(t, 10.0, g.Start)
	assert.Equal(t, 12.0, g.End())
	assert.Equal(t, At(4, 2, 2), g.Prev())
}

func TestGridNeighboursShareBounds(t *testing.T) {
	// 0.1+0.3-0.3 != 0.1 in floating point
	const origin, width = 0.1, 0.3
	cur := At(origin, 1, width)
	first := At(origin, 0, width)
	require.Equal(t, first.Start, cur.Prev().Start)
	require.Equal(t, cur.Start, cur.Prev().End())

	s := series.NewStore()
	ingestNum(s, "t", origin, 1)
	ingestNum(s, "t", cur.Start, 4)
	a := New(s)

	v, ok := a.BucketValue("t", path, first)
	require.True(t, ok)
	f, _ := v.Float()
	assert.Equal(t, 1.0, f)

	d, ok := a.Delta("t", path, cur)
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-9)
	d, ok = a.AggregatedDelta(path, cur)
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-9)
}
