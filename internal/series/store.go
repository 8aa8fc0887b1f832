// Package series indexes parsed samples into per-(target, path) time series.
//
// A Store is not safe for concurrent use. Ingestion and reads happen on the
// single goroutine that owns the engine.
package series

import (
	"errors"
	"sort"

	"github.com/sile/magpies/internal/record"
)

// ErrEmptyStore is returned by Bounds before anything has been ingested.
var ErrEmptyStore = errors.New("store is empty")

// Point is one observation of a series.
type Point struct {
	Timestamp float64
	Value     record.MetricValue
}

type seriesKey struct {
	target string
	path   record.MetricPath
}

type seriesData struct {
	points []Point
	gen    uint64
}

// Store holds every ingested point for the life of the process. Targets and
// paths are kept in discovery order and only ever grow.
type Store struct {
	targets   []string
	targetSet map[string]struct{}

	paths   []record.MetricPath
	kinds   map[record.MetricPath]record.Kind
	pathGen map[record.MetricPath]uint64

	series map[seriesKey]*seriesData

	earliest float64
	latest   float64
	hasData  bool

	samples int
	points  int
}

func NewStore() *Store {
	return &Store{
		targetSet: make(map[string]struct{}),
		kinds:     make(map[record.MetricPath]record.Kind),
		pathGen:   make(map[record.MetricPath]uint64),
		series:    make(map[seriesKey]*seriesData),
	}
}

// Ingest appends every metric of sample to its series. A value whose type
// differs from the first type seen for its path is stored as an Other value.
func (s *Store) Ingest(sample *record.Sample) {
	if sample == nil {
		return
	}
	if _, ok := s.targetSet[sample.Target]; !ok {
		s.targetSet[sample.Target] = struct{}{}
		s.targets = append(s.targets, sample.Target)
	}

	ts := sample.Timestamp
	if !s.hasData {
		s.earliest, s.latest, s.hasData = ts, ts, true
	} else {
		s.earliest = min(s.earliest, ts)
		s.latest = max(s.latest, ts)
	}
	s.samples++

	for _, m := range sample.Metrics {
		v := m.Value
		kind, known := s.kinds[m.Path]
		if !known {
			kind = v.Kind()
			s.kinds[m.Path] = kind
			s.paths = append(s.paths, m.Path)
		}
		if v.Kind() != kind {
			v = v.AsOther()
		}

		key := seriesKey{target: sample.Target, path: m.Path}
		sd := s.series[key]
		if sd == nil {
			sd = &seriesData{}
			s.series[key] = sd
		}
		sd.insert(Point{Timestamp: ts, Value: v})
		sd.gen++
		s.pathGen[m.Path]++
		s.points++
	}
}

// insert keeps points sorted by timestamp; equal timestamps keep arrival order.
func (sd *seriesData) insert(p Point) {
	n := len(sd.points)
	if n == 0 || sd.points[n-1].Timestamp <= p.Timestamp {
		sd.points = append(sd.points, p)
		return
	}
	i := sort.Search(n, func(i int) bool { return sd.points[i].Timestamp > p.Timestamp })
	sd.points = append(sd.points, Point{})
	copy(sd.points[i+1:], sd.points[i:])
	sd.points[i] = p
}

// Earliest is the smallest ingested timestamp.
func (s *Store) Earliest() (float64, bool) { return s.earliest, s.hasData }

// Latest is the largest ingested timestamp.
func (s *Store) Latest() (float64, bool) { return s.latest, s.hasData }

// Bounds returns the earliest and latest timestamps, or ErrEmptyStore.
func (s *Store) Bounds() (earliest, latest float64, err error) {
	if !s.hasData {
		return 0, 0, ErrEmptyStore
	}
	return s.earliest, s.latest, nil
}

// Points returns the ordered points of one series. The returned slice is
// shared with the store and must not be modified; it is empty for unknown
// series.
func (s *Store) Points(target string, path record.MetricPath) []Point {
	sd := s.series[seriesKey{target: target, path: path}]
	if sd == nil {
		return nil
	}
	return sd.points[:len(sd.points):len(sd.points)]
}

// PointsBetween returns the points with lo <= timestamp < hi.
func (s *Store) PointsBetween(target string, path record.MetricPath, lo, hi float64) []Point {
	pts := s.Points(target, path)
	if len(pts) == 0 || hi <= lo {
		return nil
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Timestamp >= lo })
	j := sort.Search(len(pts), func(j int) bool { return pts[j].Timestamp >= hi })
	if i >= j {
		return nil
	}
	return pts[i:j:j]
}

// Targets lists target names in discovery order.
func (s *Store) Targets() []string {
	return append([]string(nil), s.targets...)
}

// Paths lists the paths accepted by f in discovery order. A nil filter
// accepts every path.
func (s *Store) Paths(f *Filter) []record.MetricPath {
	out := make([]record.MetricPath, 0, len(s.paths))
	for _, p := range s.paths {
		if f.MatchPath(p) {
			out = append(out, p)
		}
	}
	return out
}

// Kind returns the classification fixed for path.
func (s *Store) Kind(path record.MetricPath) (record.Kind, bool) {
	k, ok := s.kinds[path]
	return k, ok
}

// SeriesGeneration changes whenever a point is added to the series.
func (s *Store) SeriesGeneration(target string, path record.MetricPath) uint64 {
	if sd := s.series[seriesKey{target: target, path: path}]; sd != nil {
		return sd.gen
	}
	return 0
}

// PathGeneration changes whenever a point is added to any series of path.
func (s *Store) PathGeneration(path record.MetricPath) uint64 {
	return s.pathGen[path]
}

func (s *Store) NumTargets() int { return len(s.targets) }
func (s *Store) NumPaths() int   { return len(s.paths) }
func (s *Store) NumSamples() int { return s.samples }
func (s *Store) NumPoints() int  { return s.points }
