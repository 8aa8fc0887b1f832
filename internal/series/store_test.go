package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sile/magpies/internal/record"
)

func numSample(target string, ts float64, path record.MetricPath, v float64) *record.Sample {
	return &record.Sample{
		Target:    target,
		Timestamp: ts,
		Metrics:   []record.Metric{{Path: path, Value: record.Numeric(v)}},
	}
}

func otherSample(t *testing.T, target string, ts float64, path record.MetricPath, v any) *record.Sample {
	t.Helper()
	mv, err := record.Other(v)
	require.NoError(t, err)
	return &record.Sample{Target: target, Timestamp: ts, Metrics: []record.Metric{{Path: path, Value: mv}}}
}

func timestamps(pts []Point) []float64 {
	out := make([]float64, 0, len(pts))
	for _, p := range pts {
		out = append(out, p.Timestamp)
	}
	return out
}

func TestStoreEmpty(t *testing.T) {
	s := NewStore()
	_, _, err := s.Bounds()
	assert.True(t, errors.Is(err, ErrEmptyStore))
	_, ok := s.Earliest()
	assert.False(t, ok)
	assert.Empty(t, s.Targets())
	assert.Empty(t, s.Paths(nil))
	assert.Empty(t, s.Points("x", record.NewPath("a")))
}

func TestStoreOutOfOrderIngestion(t *testing.T) {
	s := NewStore()
	p := record.NewPath("a")
	for _, ts := range []float64{10, 5, 7} {
		s.Ingest(numSample("t", ts, p, ts))
	}
	assert.Equal(t, []float64{5, 7, 10}, timestamps(s.Points("t", p)))

	lo, hi, err := s.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 5.0, lo)
	assert.Equal(t, 10.0, hi)
}

func TestStoreTiesKeepArrivalOrder(t *testing.T) {
	s := NewStore()
	p := record.NewPath("a")
	s.Ingest(numSample("t", 3, p, 1))
	s.Ingest(numSample("t", 1, p, 2))
	s.Ingest(numSample("t", 1, p, 3))

	pts := s.Points("t", p)
	require.Len(t, pts, 3)
	first, _ := pts[0].Value.Float()
	second, _ := pts[1].Value.Float()
	assert.Equal(t, 2.0, first)
	assert.Equal(t, 3.0, second)
}

func TestStoreTypeStability(t *testing.T) {
	s := NewStore()
	p := record.NewPath("v")
	s.Ingest(numSample("t", 1, p, 1))
	s.Ingest(numSample("t", 2, p, 2))
	s.Ingest(otherSample(t, "t", 3, p, "x"))
	s.Ingest(numSample("t", 4, p, 3))

	kind, ok := s.Kind(p)
	require.True(t, ok)
	assert.Equal(t, record.KindNumeric, kind)

	pts := s.Points("t", p)
	require.Len(t, pts, 4)
	assert.Equal(t, record.KindNumeric, pts[0].Value.Kind())
	assert.Equal(t, record.KindOther, pts[2].Value.Kind())
	assert.Equal(t, record.KindNumeric, pts[3].Value.Kind())

	q := record.NewPath("w")
	s.Ingest(otherSample(t, "t", 5, q, "first"))
	s.Ingest(numSample("t", 6, q, 42))
	kind, _ = s.Kind(q)
	assert.Equal(t, record.KindOther, kind)
	assert.Equal(t, record.KindOther, s.Points("t", q)[1].Value.Kind())
	assert.Equal(t, "42", s.Points("t", q)[1].Value.Raw())
}

func TestStoreDiscoveryOrderAndGenerations(t *testing.T) {
	s := NewStore()
	b, a := record.NewPath("b"), record.NewPath("a")
	s.Ingest(numSample("remote", 1, b, 1))
	s.Ingest(numSample("local", 2, a, 1))
	s.Ingest(numSample("remote", 3, a, 1))

	assert.Equal(t, []string{"remote", "local"}, s.Targets())
	assert.Equal(t, []record.MetricPath{b, a}, s.Paths(nil))
	assert.Equal(t, uint64(1), s.SeriesGeneration("local", a))
	assert.Equal(t, uint64(2), s.PathGeneration(a))
	assert.Equal(t, uint64(0), s.SeriesGeneration("local", b))
	assert.Equal(t, 3, s.NumSamples())
	assert.Equal(t, 2, s.NumPaths())
}

func TestStorePointsBetween(t *testing.T) {
	s := NewStore()
	p := record.NewPath("a")
	for _, ts := range []float64{0, 1, 2, 3, 4} {
		s.Ingest(numSample("t", ts, p, ts))
	}
	assert.Equal(t, []float64{1, 2}, timestamps(s.PointsBetween("t", p, 1, 3)))
	assert.Empty(t, s.PointsBetween("t", p, 5, 7))
	assert.Empty(t, s.PointsBetween("t", p, 3, 3))
}

func TestFilter(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		mode    FilterMode
		path    string
		want    bool
	}{
		{name: "empty matches all", pattern: "", path: "memory.used", want: true},
		{name: "substring", pattern: "used_memory", path: "memory.used_memory", want: true},
		{name: "substring case-insensitive", pattern: "USED", path: "memory.used", want: true},
		{name: "substring miss", pattern: "peak", path: "memory.used", want: false},
		{name: "regex", pattern: `^memory\.u`, mode: FilterRegex, path: "memory.used", want: true},
		{name: "regex miss", pattern: `^used`, mode: FilterRegex, path: "memory.used", want: false},
		{name: "re prefix", pattern: `re:d$`, path: "memory.used", want: true},
		{name: "dot is literal in substring", pattern: "y.u", path: "memoryxused", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilter(tc.pattern, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.Match(tc.path))
		})
	}
}

func TestFilterInvalidPattern(t *testing.T) {
	_, err := NewFilter("re:(", FilterSubstring)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilterPattern))

	_, err = NewFilter("(", FilterRegex)
	assert.True(t, errors.Is(err, ErrInvalidFilterPattern))

	f, err := NewFilter("(", FilterSubstring)
	require.NoError(t, err)
	assert.True(t, f.Match("a(b"))
}

func TestParseFilterMode(t *testing.T) {
	m, err := ParseFilterMode("regex")
	require.NoError(t, err)
	assert.Equal(t, FilterRegex, m)
	m, err = ParseFilterMode("")
	require.NoError(t, err)
	assert.Equal(t, FilterSubstring, m)
	_, err = ParseFilterMode("glob")
	assert.Error(t, err)
}
